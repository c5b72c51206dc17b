// Package locator translates between the server-relative asset paths the
// generation service returns and the absolute URLs a client fetches.
package locator

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"reelcraft/internal/logging"
)

// Resolver joins relative asset paths to a configured root. An empty root
// keeps locators same-origin relative ("/outputs/x.png").
type Resolver struct {
	root   string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	last int64
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithLogger routes root mismatch warnings to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the millisecond clock used for cache-busting tokens.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Resolver for root. Trailing slashes are ignored.
func New(root string, opts ...Option) *Resolver {
	r := &Resolver{
		root:   strings.TrimRight(strings.TrimSpace(root), "/"),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "locator")
	return r
}

// Root returns the configured asset root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve converts a server-relative path into a fetchable locator. Inputs
// that already carry a scheme are returned unchanged.
func (r *Resolver) Resolve(rel string) string {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return ""
	}
	if HasScheme(rel) {
		return rel
	}
	return r.root + "/" + strings.TrimLeft(rel, "/")
}

// ToRelative strips the asset root and leading slash. A locator outside the
// root is logged and returned unchanged.
func (r *Resolver) ToRelative(abs string) string {
	abs = strings.TrimSpace(abs)
	if abs == "" {
		return ""
	}
	prefix := r.root + "/"
	if !strings.HasPrefix(abs, prefix) {
		r.logger.Warn("locator outside asset root",
			logging.String("locator", abs),
			logging.String("root", r.root),
			logging.String(logging.FieldEventType, "locator_root_mismatch"),
		)
		return abs
	}
	return strings.TrimPrefix(abs, prefix)
}

// Busted resolves rel and appends a cache-busting token that strictly
// increases across calls on this Resolver.
func (r *Resolver) Busted(rel string) string {
	resolved := r.Resolve(rel)
	if resolved == "" {
		return ""
	}
	token := r.nextToken()
	sep := "?"
	if strings.Contains(resolved, "?") {
		sep = "&"
	}
	return resolved + sep + "t=" + strconv.FormatInt(token, 10)
}

func (r *Resolver) nextToken() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.now().UnixMilli()
	if n <= r.last {
		n = r.last + 1
	}
	r.last = n
	return n
}

// StripQuery returns the locator without its query string or fragment.
func StripQuery(locator string) string {
	if i := strings.IndexAny(locator, "?#"); i >= 0 {
		return locator[:i]
	}
	return locator
}

// HasScheme reports whether value is an absolute URL such as
// "https://cdn/x.png" or "blob:...".
func HasScheme(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	// Single-letter schemes are Windows drive letters, not URLs.
	return len(u.Scheme) > 1
}
