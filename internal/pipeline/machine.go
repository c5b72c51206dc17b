package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelcraft/internal/locator"
	"reelcraft/internal/logging"
	"reelcraft/internal/services"
	"reelcraft/internal/videoapi"
)

const modeSyncTimeout = 30 * time.Second

var (
	// ErrReset is returned by a transition whose result was discarded
	// because the pipeline was reset while it ran.
	ErrReset = errors.New("pipeline reset while task was running")
	// ErrClosed is returned once the Machine has been closed.
	ErrClosed = errors.New("pipeline closed")
)

// API is the generation service surface the Machine drives.
type API interface {
	SetVideoMode(ctx context.Context, tall bool) error
	GenerateContent(ctx context.Context, req videoapi.ContentRequest) (string, error)
	GenerateScripts(ctx context.Context, req videoapi.ScriptsRequest) (videoapi.Scripts, error)
	GenerateImages(ctx context.Context, prompts []string, tall bool) ([]string, error)
	ModifyImage(ctx context.Context, relPath, prompt string, tall bool) error
	UploadCustomVoice(ctx context.Context, upload *videoapi.Upload) (string, error)
	GenerateVoices(ctx context.Context, req videoapi.VoicesRequest) (videoapi.VoicePaths, error)
	Edit(ctx context.Context, tall bool) error
	UploadMusic(ctx context.Context, upload *videoapi.Upload) (string, error)
	AddMusic(ctx context.Context, musicPath string, tall bool) error
	AddCaptions(ctx context.Context, tall bool) error
	FinalVideoURL(file string, token int64) string
	ProbeFinalVideo(ctx context.Context, file string, token int64) error
}

// Machine owns the PipelineState of one job.
type Machine struct {
	api    API
	assets *locator.Resolver
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	scope       context.Context
	cancelScope context.CancelFunc
	background  sync.WaitGroup

	mu          sync.Mutex
	state       State
	customVoice *videoapi.Upload
	observers   []Observer
	generation  uint64
	taskSeq     uint64
	activeTask  uint64
	cancelTask  context.CancelFunc
	lastToken   int64
	closed      bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the machine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for events and cache tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides job ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(m *Machine) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(obs Observer) Option {
	return func(m *Machine) {
		if obs != nil {
			m.observers = append(m.observers, obs)
		}
	}
}

// New constructs a Machine at the landing step with a fresh job ID.
func New(api API, assets *locator.Resolver, opts ...Option) *Machine {
	if assets == nil {
		assets = locator.New("")
	}
	m := &Machine{
		api:    api,
		assets: assets,
		logger: logging.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "pipeline")
	m.scope, m.cancelScope = context.WithCancel(context.Background())
	m.state = freshState(m.newID())
	return m
}

// Snapshot returns a deep copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Busy reports whether a transition occupies the task slot.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeTask != 0
}

// Subscribe registers an observer after construction.
func (m *Machine) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, obs)
	m.mu.Unlock()
}

// SetTitle sets the video title seed.
func (m *Machine) SetTitle(title string) {
	m.mu.Lock()
	m.state.Title = title
	m.mu.Unlock()
}

// SetChannelType sets the optional channel type seed.
func (m *Machine) SetChannelType(channelType string) {
	m.mu.Lock()
	m.state.ChannelType = channelType
	m.mu.Unlock()
}

// SetVoiceChoice selects a named voice.
func (m *Machine) SetVoiceChoice(voice string) {
	m.mu.Lock()
	m.state.VoiceChoice = voice
	m.mu.Unlock()
}

// SetOwnVoice toggles use of an uploaded voice sample.
func (m *Machine) SetOwnVoice(own bool) {
	m.mu.Lock()
	m.state.OwnVoice = own
	m.mu.Unlock()
}

// SetCustomVoice stores the voice sample uploaded with the next voice
// generation. A nil upload clears it.
func (m *Machine) SetCustomVoice(upload *videoapi.Upload) {
	m.mu.Lock()
	m.customVoice = upload
	m.state.CustomVoice = ""
	if upload != nil {
		m.state.CustomVoice = upload.Name
	}
	m.mu.Unlock()
}

// SetVideoMode records the orientation and syncs it to the service in the
// background. Sync failures are logged only.
func (m *Machine) SetVideoMode(ctx context.Context, tall bool) {
	m.mu.Lock()
	m.state.VideoMode = tall
	closed := m.closed
	m.mu.Unlock()
	if closed || m.api == nil {
		return
	}

	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), modeSyncTimeout)
	stop := context.AfterFunc(m.scope, cancel)
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		defer cancel()
		defer stop()
		if err := m.api.SetVideoMode(syncCtx, tall); err != nil {
			logging.WarnWithContext(logging.WithContext(syncCtx, m.logger), "video mode sync failed", "video_mode_sync_failed",
				logging.Bool("video_mode", tall),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "orientation is still sent with every stage request"),
			)
		}
	}()
}

// GoTo navigates to a previously reached step.
func (m *Machine) GoTo(step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.activeTask != 0 {
		return services.Wrap(services.ErrBusy, "navigation", "go to", "Another task is in progress", nil)
	}
	if !step.Valid() || step > m.state.Reached {
		return services.Wrap(services.ErrPrecondition, "navigation", "go to", "That step has not been reached yet", nil)
	}
	m.state.Step = step
	m.state.Error = ""
	return nil
}

// Reset abandons the current job. An in-flight transition is cancelled and
// its result discarded.
func (m *Machine) Reset() {
	m.mu.Lock()
	if m.cancelTask != nil {
		m.cancelTask()
		m.cancelTask = nil
	}
	m.generation++
	m.activeTask = 0
	previous := m.state.JobID
	m.state = freshState(m.newID())
	m.customVoice = nil
	next := m.state.JobID
	m.mu.Unlock()

	m.logger.Info("pipeline reset",
		logging.String("previous_job_id", previous),
		logging.String(logging.FieldJobID, next),
		logging.String(logging.FieldEventType, "pipeline_reset"),
	)
}

// Close cancels any in-flight work and waits for background mode syncs.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.cancelTask != nil {
		m.cancelTask()
		m.cancelTask = nil
	}
	m.mu.Unlock()
	m.cancelScope()
	m.background.Wait()
}

// outcome is what a transition commits on success.
type outcome struct {
	to      Step
	commit  func(*State)
	locator string
	// keepReached preserves a further Reached step for transitions that do
	// not regenerate anything.
	keepReached bool
}

type task struct {
	id         uint64
	generation uint64
	snapshot   State
	custom     *videoapi.Upload
}

// work performs the remote part of a transition against a snapshot.
type work func(ctx context.Context, t task) (outcome, error)

// precondition inspects the live state before the slot is taken.
type precondition func(s *State, custom *videoapi.Upload) error

// run executes one transition through the task slot.
func (m *Machine) run(ctx context.Context, stage Stage, check precondition, fn work) error {
	spec := stageSpecs[stage]

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.activeTask != 0 {
		m.mu.Unlock()
		return services.Wrap(services.ErrBusy, string(stage), "start", "Another task is in progress", nil)
	}
	if !spec.permits(m.state.Step) {
		err := services.Wrap(services.ErrPrecondition, string(stage), "start",
			"Not available at the "+m.state.Step.String()+" step", nil)
		m.state.Error = services.Message(err)
		m.mu.Unlock()
		return err
	}
	if check != nil {
		if err := check(&m.state, m.customVoice); err != nil {
			err = services.Wrap(services.ErrPrecondition, string(stage), "precondition", services.Message(err), err)
			m.state.Error = services.Message(err)
			m.mu.Unlock()
			return err
		}
	}

	m.taskSeq++
	t := task{id: m.taskSeq, generation: m.generation, snapshot: m.state.clone(), custom: m.customVoice}
	m.activeTask = t.id
	m.state.Loading = true
	m.state.LoadingMessage = spec.loading
	m.state.Error = ""
	taskCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.scope, cancel)
	m.cancelTask = cancel
	m.mu.Unlock()
	defer stop()
	defer cancel()

	taskCtx = services.WithJobID(taskCtx, t.snapshot.JobID)
	taskCtx = services.WithStage(taskCtx, string(stage))
	logger := logging.WithContext(taskCtx, m.logger)
	started := m.now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	m.emit(taskCtx, Event{JobID: t.snapshot.JobID, Title: t.snapshot.Title, Stage: stage, Kind: EventStarted, Step: t.snapshot.Step, Message: spec.loading})

	result, err := fn(taskCtx, t)

	m.mu.Lock()
	if t.generation != m.generation || m.activeTask != t.id {
		m.mu.Unlock()
		logger.Info("stage result discarded after reset", logging.String(logging.FieldEventType, "stage_discarded"))
		return ErrReset
	}
	m.activeTask = 0
	m.cancelTask = nil
	m.state.Loading = false
	m.state.LoadingMessage = ""
	if err != nil {
		wrapped := wrapStageError(stage, spec.fallback, err)
		m.state.Error = services.Message(wrapped)
		failedAt := m.state.Step
		m.mu.Unlock()

		logging.WarnWithContext(logger, "stage failed", "stage_failed",
			logging.Error(err),
			logging.String("message", services.Message(wrapped)),
			logging.Duration("elapsed", m.now().Sub(started)),
			logging.String(logging.FieldErrorHint, "re-run the same stage to retry"),
		)
		m.emit(taskCtx, Event{JobID: t.snapshot.JobID, Title: t.snapshot.Title, Stage: stage, Kind: EventFailed, Step: failedAt, Message: services.Message(wrapped), Err: wrapped})
		return wrapped
	}
	if result.commit != nil {
		result.commit(&m.state)
	}
	m.advance(result.to, result.keepReached)
	step := m.state.Step
	m.mu.Unlock()

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("step", step.String()),
		logging.Duration("elapsed", m.now().Sub(started)),
	)
	m.emit(taskCtx, Event{JobID: t.snapshot.JobID, Title: t.snapshot.Title, Stage: stage, Kind: EventCompleted, Step: step, Locator: result.locator})
	return nil
}

// advance moves to step. Callers hold m.mu.
func (m *Machine) advance(to Step, keepReached bool) {
	m.state.Step = to
	if keepReached && m.state.Reached > to {
		return
	}
	m.state.Reached = to
}

// setLoadingMessage updates the progress text of the running task.
func (m *Machine) setLoadingMessage(t task, message string) {
	m.mu.Lock()
	if m.activeTask == t.id && t.generation == m.generation {
		m.state.LoadingMessage = message
	}
	m.mu.Unlock()
}

// immediate runs a transition that issues no request.
func (m *Machine) immediate(ctx context.Context, stage Stage, check precondition, to Step, keepReached bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.activeTask != 0 {
		m.mu.Unlock()
		return services.Wrap(services.ErrBusy, string(stage), "start", "Another task is in progress", nil)
	}
	spec := stageSpecs[stage]
	if !spec.permits(m.state.Step) {
		err := services.Wrap(services.ErrPrecondition, string(stage), "start",
			"Not available at the "+m.state.Step.String()+" step", nil)
		m.state.Error = services.Message(err)
		m.mu.Unlock()
		return err
	}
	if check != nil {
		if err := check(&m.state, m.customVoice); err != nil {
			err = services.Wrap(services.ErrPrecondition, string(stage), "precondition", services.Message(err), err)
			m.state.Error = services.Message(err)
			m.mu.Unlock()
			return err
		}
	}
	m.state.Error = ""
	m.advance(to, keepReached)
	evt := Event{JobID: m.state.JobID, Title: m.state.Title, Stage: stage, Kind: EventCompleted, Step: m.state.Step}
	m.mu.Unlock()

	m.emit(services.WithJobID(ctx, evt.JobID), evt)
	return nil
}

func (m *Machine) emit(ctx context.Context, evt Event) {
	if evt.At.IsZero() {
		evt.At = m.now()
	}
	m.mu.Lock()
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()
	for _, obs := range observers {
		obs.Observe(ctx, evt)
	}
}

// nextToken returns a strictly increasing cache-busting value.
func (m *Machine) nextToken() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.now().UnixMilli()
	if n <= m.lastToken {
		n = m.lastToken + 1
	}
	m.lastToken = n
	return n
}

func wrapStageError(stage Stage, fallback string, err error) error {
	return services.Wrap(markerFor(err), string(stage), "request", fallback, err)
}

func markerFor(err error) error {
	switch {
	case errors.Is(err, services.ErrPrecondition):
		return services.ErrPrecondition
	case errors.Is(err, services.ErrUnauthenticated):
		return services.ErrUnauthenticated
	case errors.Is(err, services.ErrApplication):
		return services.ErrApplication
	case errors.Is(err, services.ErrTransport), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return services.ErrTransport
	default:
		return services.ErrApplication
	}
}

func preconditionError(message string) error {
	return services.Wrap(services.ErrPrecondition, "", "", strings.TrimSpace(message), nil)
}
