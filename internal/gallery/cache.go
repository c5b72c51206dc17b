package gallery

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"reelcraft/internal/locator"
	"reelcraft/internal/logging"
	"reelcraft/internal/retry"
	"reelcraft/internal/services"
	"reelcraft/internal/transport"
	"reelcraft/internal/videoapi"
)

const stageName = "gallery"

// API is the gallery surface of the generation service.
type API interface {
	ListGallery(ctx context.Context, userID string) ([]videoapi.GalleryItem, error)
	RenameGalleryItem(ctx context.Context, userID, name, newBase string) (videoapi.Renamed, error)
	DeleteGalleryItem(ctx context.Context, userID, name string) error
}

// NoticeKind classifies the terminal outcome of a mutation.
type NoticeKind string

const (
	NoticeRenamed    NoticeKind = "renamed"
	NoticeDeleted    NoticeKind = "deleted"
	NoticeRolledBack NoticeKind = "rolled_back"
)

// Notice reports the terminal outcome of a Rename or Delete.
type Notice struct {
	Kind    NoticeKind
	Name    string
	NewName string
	Err     error
}

type opKind int

const (
	opRename opKind = iota
	opDelete
)

type pendingOp struct {
	kind     opKind
	name     string
	newName  string
	index    int
	original Asset
}

// Cache is the optimistic local copy of the gallery.
type Cache struct {
	api    API
	users  transport.TokenSource
	exec   *retry.Executor
	assets *locator.Resolver
	logger *slog.Logger
	notify func(Notice)

	mu      sync.Mutex
	items   []Asset
	pending map[string]*pendingOp
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithResolver sets the resolver used for item locators.
func WithResolver(assets *locator.Resolver) Option {
	return func(c *Cache) {
		if assets != nil {
			c.assets = assets
		}
	}
}

// WithNotify registers a hook for terminal mutation outcomes. It runs on the
// executor goroutine.
func WithNotify(fn func(Notice)) Option {
	return func(c *Cache) {
		c.notify = fn
	}
}

// New constructs a Cache. users supplies the signed-in user ID; exec runs
// the mutations.
func New(api API, users transport.TokenSource, exec *retry.Executor, opts ...Option) *Cache {
	c := &Cache{
		api:     api,
		users:   users,
		exec:    exec,
		assets:  locator.New(""),
		logger:  logging.NewNop(),
		pending: make(map[string]*pendingOp),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "gallery")
	return c
}

// Items returns a copy of the cached gallery.
func (c *Cache) Items() []Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Wait blocks until outstanding mutations have finished.
func (c *Cache) Wait() {
	c.exec.Wait()
}

// Refresh reloads the gallery from the service. Mutations still in flight
// are re-applied so their items do not reappear.
func (c *Cache) Refresh(ctx context.Context) ([]Asset, error) {
	uid, err := c.userID("list")
	if err != nil {
		return nil, err
	}
	items, err := c.api.ListGallery(ctx, uid)
	if err != nil {
		return nil, services.Wrap(markerFor(err), stageName, "list", "Could not load gallery", err)
	}
	assets := make([]Asset, 0, len(items))
	for _, item := range items {
		assets = append(assets, fromItem(item, c.assets))
	}

	c.mu.Lock()
	for _, op := range c.pending {
		idx := indexOf(assets, op.name)
		if idx < 0 {
			continue
		}
		switch op.kind {
		case opDelete:
			assets = slices.Delete(assets, idx, idx+1)
		case opRename:
			assets[idx] = assets[idx].renamed(op.newName)
		}
	}
	c.items = assets
	out := slices.Clone(c.items)
	c.mu.Unlock()

	c.logger.Debug("gallery refreshed", logging.Int("items", len(out)))
	return out, nil
}

// Rename renames name to the sanitized form of requested, keeping the
// extension. The cache reflects the new name immediately; the returned
// ticket tracks the server update.
func (c *Cache) Rename(ctx context.Context, name, requested string) (string, error) {
	uid, err := c.userID("rename")
	if err != nil {
		return "", err
	}
	target := TargetName(name, requested)
	if target == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "rename", "Invalid new name", nil)
	}
	if target == name {
		return name, nil
	}

	c.mu.Lock()
	idx := indexOf(c.items, name)
	if idx < 0 {
		c.mu.Unlock()
		return "", services.Wrap(services.ErrNotFound, stageName, "rename", "File not found", nil)
	}
	if indexOf(c.items, target) >= 0 {
		c.mu.Unlock()
		return "", services.Wrap(services.ErrValidation, stageName, "rename", "Target name exists", nil)
	}
	if c.busyLocked(name) || c.busyLocked(target) {
		c.mu.Unlock()
		return "", services.Wrap(services.ErrBusy, stageName, "rename", "A change to this item is still in progress", nil)
	}
	op := &pendingOp{kind: opRename, name: name, newName: target, index: idx, original: c.items[idx]}
	c.items[idx] = op.original.renamed(target)
	c.pending[name] = op
	c.mu.Unlock()

	logger := logging.WithContext(ctx, c.logger)
	newBase := strings.TrimSuffix(target, path.Ext(target))
	var result videoapi.Renamed
	_, err = c.exec.Submit(mutationKey(name),
		func(ctx context.Context) error {
			renamed, err := c.api.RenameGalleryItem(ctx, uid, name, newBase)
			if err == nil {
				result = renamed
			}
			return err
		},
		func() {
			final := c.confirmRename(op, result.New)
			logger.Info("gallery item renamed",
				logging.String("name", name),
				logging.String("new_name", final),
				logging.String(logging.FieldEventType, "gallery_renamed"),
			)
			c.emit(Notice{Kind: NoticeRenamed, Name: name, NewName: final})
		},
		func(err error) {
			c.rollback(op)
			c.emit(Notice{Kind: NoticeRolledBack, Name: name, NewName: target, Err: err})
		},
	)
	if err != nil {
		c.rollback(op)
		return "", submitError("rename", err)
	}
	return target, nil
}

// Delete removes name. The cache drops it immediately; on terminal failure
// it is restored at its original position.
func (c *Cache) Delete(ctx context.Context, name string) error {
	uid, err := c.userID("delete")
	if err != nil {
		return err
	}

	c.mu.Lock()
	idx := indexOf(c.items, name)
	if idx < 0 {
		c.mu.Unlock()
		return services.Wrap(services.ErrNotFound, stageName, "delete", "File not found", nil)
	}
	if c.busyLocked(name) {
		c.mu.Unlock()
		return services.Wrap(services.ErrBusy, stageName, "delete", "A change to this item is still in progress", nil)
	}
	op := &pendingOp{kind: opDelete, name: name, index: idx, original: c.items[idx]}
	c.items = slices.Delete(c.items, idx, idx+1)
	c.pending[name] = op
	c.mu.Unlock()

	logger := logging.WithContext(ctx, c.logger)
	_, err = c.exec.Submit(mutationKey(name),
		func(ctx context.Context) error {
			return c.api.DeleteGalleryItem(ctx, uid, name)
		},
		func() {
			c.mu.Lock()
			delete(c.pending, name)
			c.mu.Unlock()
			logger.Info("gallery item deleted",
				logging.String("name", name),
				logging.String(logging.FieldEventType, "gallery_deleted"),
			)
			c.emit(Notice{Kind: NoticeDeleted, Name: name})
		},
		func(err error) {
			c.rollback(op)
			c.emit(Notice{Kind: NoticeRolledBack, Name: name, Err: err})
		},
	)
	if err != nil {
		c.rollback(op)
		return submitError("delete", err)
	}
	return nil
}

func (c *Cache) confirmRename(op *pendingOp, serverName string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, op.name)
	serverName = strings.TrimSpace(serverName)
	if serverName == "" || serverName == op.newName {
		return op.newName
	}
	if idx := indexOf(c.items, op.newName); idx >= 0 {
		c.items[idx] = c.items[idx].renamed(serverName)
	}
	return serverName
}

// rollback restores the pre-mutation item at its original index.
func (c *Cache) rollback(op *pendingOp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, op.name)
	if op.kind == opRename {
		if idx := indexOf(c.items, op.newName); idx >= 0 {
			c.items = slices.Delete(c.items, idx, idx+1)
		}
	}
	if indexOf(c.items, op.original.Name) >= 0 {
		return
	}
	at := min(op.index, len(c.items))
	c.items = slices.Insert(c.items, at, op.original)
}

func (c *Cache) busyLocked(name string) bool {
	for _, op := range c.pending {
		if op.name == name || op.newName == name {
			return true
		}
	}
	return false
}

func (c *Cache) emit(n Notice) {
	if c.notify != nil {
		c.notify(n)
	}
}

func (c *Cache) userID(op string) (string, error) {
	if c.users != nil {
		if creds, ok := c.users.Credentials(); ok && strings.TrimSpace(creds.UserID) != "" {
			return creds.UserID, nil
		}
	}
	return "", services.Wrap(services.ErrUnauthenticated, stageName, op, "Please sign in first", nil)
}

func indexOf(items []Asset, name string) int {
	return slices.IndexFunc(items, func(a Asset) bool { return a.Name == name })
}

func mutationKey(name string) string {
	return "gallery:" + name
}

func submitError(op string, err error) error {
	if errors.Is(err, retry.ErrDuplicateTicket) {
		return services.Wrap(services.ErrBusy, stageName, op, "A change to this item is still in progress", err)
	}
	return services.Wrap(services.ErrApplication, stageName, op, "Could not start the change", err)
}

func markerFor(err error) error {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return services.ErrUnauthenticated
	case errors.Is(err, services.ErrTransport):
		return services.ErrTransport
	default:
		return services.ErrApplication
	}
}
