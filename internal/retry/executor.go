// Package retry runs optimistic mutations in the background, retrying failed
// attempts with exponential backoff and reporting the terminal outcome once.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"reelcraft/internal/logging"
	"reelcraft/internal/services"
)

// ErrDuplicateTicket is returned when a key already has an outstanding ticket.
var ErrDuplicateTicket = errors.New("retry ticket already outstanding")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("retry executor closed")

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultFactor      = 1.6
)

// Policy controls attempt count and backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
}

// DefaultPolicy returns three attempts waiting 500ms then 800ms.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay, Factor: defaultFactor}
}

// Delay returns the wait after the failed attempt with the given zero-based index.
func (p Policy) Delay(failedAttempt int) time.Duration {
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	return time.Duration(math.Round(float64(p.BaseDelay) * math.Pow(factor, float64(failedAttempt))))
}

// Ticket describes one outstanding mutation.
type Ticket struct {
	Key         string
	Attempts    int
	MaxAttempts int
	Submitted   time.Time
}

// Operation performs one attempt.
type Operation func(ctx context.Context) error

// Executor owns outstanding tickets and their timers.
type Executor struct {
	policy  Policy
	logger  *slog.Logger
	sleeper func(context.Context, time.Duration) error
	gaveUp  func(key string, err error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	tickets map[string]*Ticket

	// cbMu serializes callback delivery against Close so no callback runs
	// once Close has returned.
	cbMu   sync.RWMutex
	closed bool
}

// Option customizes the executor.
type Option func(*Executor)

// WithPolicy overrides the attempt count and backoff.
func WithPolicy(p Policy) Option {
	return func(e *Executor) {
		if p.MaxAttempts > 0 {
			e.policy.MaxAttempts = p.MaxAttempts
		}
		if p.BaseDelay >= 0 {
			e.policy.BaseDelay = p.BaseDelay
		}
		if p.Factor > 0 {
			e.policy.Factor = p.Factor
		}
	}
}

// WithLogger routes retry diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSleeper overrides how backoff waits are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(e *Executor) {
		if sleeper != nil {
			e.sleeper = sleeper
		}
	}
}

// WithGaveUp registers a hook invoked after onFailure when a ticket is
// abandoned.
func WithGaveUp(hook func(key string, err error)) Option {
	return func(e *Executor) {
		e.gaveUp = hook
	}
}

// New constructs an executor whose lifetime is bounded by parent.
func New(parent context.Context, opts ...Option) *Executor {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	e := &Executor{
		policy:  DefaultPolicy(),
		logger:  logging.NewNop(),
		sleeper: sleep,
		ctx:     ctx,
		cancel:  cancel,
		tickets: make(map[string]*Ticket),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "retry")
	return e
}

// Policy returns the active policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Submit starts op immediately in the background. onSuccess runs after the
// first successful attempt; onFailure runs once after the final failed
// attempt. Neither runs after Close.
func (e *Executor) Submit(key string, op Operation, onSuccess func(), onFailure func(error)) (Ticket, error) {
	if op == nil {
		return Ticket{}, fmt.Errorf("retry submit %s: nil operation", key)
	}
	if e.ctx.Err() != nil {
		return Ticket{}, ErrClosed
	}

	e.mu.Lock()
	if _, exists := e.tickets[key]; exists {
		e.mu.Unlock()
		return Ticket{}, fmt.Errorf("%w: %s", ErrDuplicateTicket, key)
	}
	ticket := &Ticket{Key: key, MaxAttempts: e.policy.MaxAttempts, Submitted: time.Now()}
	e.tickets[key] = ticket
	snapshot := *ticket
	e.wg.Add(1)
	e.mu.Unlock()

	go e.run(ticket, op, onSuccess, onFailure)
	return snapshot, nil
}

func (e *Executor) run(ticket *Ticket, op Operation, onSuccess func(), onFailure func(error)) {
	defer e.wg.Done()
	defer e.release(ticket)

	var lastErr error
	for attempt := 0; attempt < ticket.MaxAttempts; attempt++ {
		if e.ctx.Err() != nil {
			return
		}
		err := op(e.ctx)
		e.mu.Lock()
		ticket.Attempts = attempt + 1
		e.mu.Unlock()
		if err == nil {
			e.release(ticket)
			e.deliver(func() {
				if onSuccess != nil {
					onSuccess()
				}
			})
			return
		}
		if e.ctx.Err() != nil {
			return
		}
		lastErr = err
		if attempt+1 >= ticket.MaxAttempts {
			break
		}
		delay := e.policy.Delay(attempt)
		e.logger.Debug("retry scheduled",
			logging.String("key", ticket.Key),
			logging.Int("attempt", attempt+1),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "retry_scheduled"),
		)
		if err := e.sleeper(e.ctx, delay); err != nil {
			return
		}
	}

	final := services.Wrap(services.ErrExhausted, "", ticket.Key,
		fmt.Sprintf("gave up after %d attempts", ticket.MaxAttempts), lastErr)
	logging.WarnWithContext(e.logger, "retry gave up", "retry_gave_up",
		logging.String("key", ticket.Key),
		logging.Int("attempts", ticket.MaxAttempts),
		logging.Error(lastErr),
		logging.String(logging.FieldErrorHint, "the change was rolled back; try again later"),
	)
	e.release(ticket)
	e.deliver(func() {
		if onFailure != nil {
			onFailure(final)
		}
		if e.gaveUp != nil {
			e.gaveUp(ticket.Key, final)
		}
	})
}

func (e *Executor) deliver(fn func()) {
	e.cbMu.RLock()
	defer e.cbMu.RUnlock()
	if e.closed || e.ctx.Err() != nil {
		return
	}
	fn()
}

// release drops ticket from the outstanding set. A newer ticket submitted
// under the same key from a callback is left alone.
func (e *Executor) release(ticket *Ticket) {
	e.mu.Lock()
	if e.tickets[ticket.Key] == ticket {
		delete(e.tickets, ticket.Key)
	}
	e.mu.Unlock()
}

// Pending lists outstanding tickets ordered by key.
func (e *Executor) Pending() []Ticket {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Ticket, 0, len(e.tickets))
	for _, t := range e.tickets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Wait blocks until every outstanding ticket has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Close cancels pending timers and in-flight attempts. No callback runs after
// Close returns. Callbacks must not call Close.
func (e *Executor) Close() {
	e.cancel()
	e.cbMu.Lock()
	e.closed = true
	e.cbMu.Unlock()
	e.wg.Wait()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
