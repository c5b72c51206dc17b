package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"reelcraft/internal/logging"
	"reelcraft/internal/services"
	"reelcraft/internal/transport"
)

const stageName = "session"

// Doer is the subset of transport.Client the manager needs.
type Doer interface {
	Do(ctx context.Context, req transport.Request) (*transport.Envelope, error)
}

// Manager owns the session identity. Its zero value is not usable; build
// one with New.
type Manager struct {
	auth   Doer
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	identity Identity
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New restores any persisted identity from store. auth must be bound to
// the auth service base URL.
func New(auth Doer, store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		store = &MemoryStore{}
	}
	m := &Manager{
		auth:   auth,
		store:  store,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "session")

	id, ok, err := store.Load()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "restore", "Could not read the saved session", err)
	}
	if ok {
		m.identity = id
	}
	return m, nil
}

// Current returns the signed-in identity.
func (m *Manager) Current() (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity, m.identity.Valid()
}

// Credentials implements transport.TokenSource.
func (m *Manager) Credentials() (transport.Credentials, bool) {
	id, ok := m.Current()
	if !ok {
		return transport.Credentials{}, false
	}
	return transport.Credentials{Token: id.Token, UserID: id.UserID}, true
}

type credentialsBody struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// Login exchanges credentials for a token and persists the identity.
func (m *Manager) Login(ctx context.Context, email, password string) (Identity, error) {
	return m.exchange(ctx, "/login", "login", credentialsBody{Email: strings.TrimSpace(email), Password: password})
}

// Register creates an account and signs it in.
func (m *Manager) Register(ctx context.Context, email, password, displayName string) (Identity, error) {
	return m.exchange(ctx, "/register", "register", credentialsBody{
		Email:       strings.TrimSpace(email),
		Password:    password,
		DisplayName: strings.TrimSpace(displayName),
	})
}

func (m *Manager) exchange(ctx context.Context, path, op string, body credentialsBody) (Identity, error) {
	if body.Email == "" || body.Password == "" {
		return Identity{}, services.Wrap(services.ErrValidation, stageName, op, "Email and password are required", nil)
	}
	env, err := m.auth.Do(ctx, transport.Request{Method: http.MethodPost, Path: path, JSON: body})
	if err != nil {
		return Identity{}, services.Wrap(classify(err), stageName, op, strings.ToUpper(op[:1])+op[1:]+" failed", err)
	}
	var wire authWire
	if err := env.Decode(&wire); err != nil {
		return Identity{}, services.Wrap(services.ErrApplication, stageName, op, "Unexpected response from auth service", err)
	}
	id := wire.identity(m.now())
	if !id.Valid() {
		return Identity{}, services.Wrap(services.ErrApplication, stageName, op, "Auth service returned no token", nil)
	}
	if id.Email == "" {
		id.Email = body.Email
	}
	if err := m.persist(id); err != nil {
		return Identity{}, err
	}
	m.logger.Info("signed in",
		logging.String("user_id", id.UserID),
		logging.String("email", id.Email),
		logging.String(logging.FieldEventType, "session_"+op),
	)
	return id, nil
}

// Logout forgets the identity in memory and on disk.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.identity = Identity{}
	m.mu.Unlock()
	if err := m.store.Clear(); err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "logout", "Could not clear the saved session", err)
	}
	m.logger.Info("signed out", logging.String(logging.FieldEventType, "session_logout"))
	return nil
}

// Profile fetches the current user's profile.
func (m *Manager) Profile(ctx context.Context) (Profile, error) {
	env, err := m.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/me"})
	if err != nil {
		return Profile{}, services.Wrap(classify(err), stageName, "profile", "Could not load profile", err)
	}
	var wire authWire
	if err := env.Decode(&wire); err != nil {
		return Profile{}, services.Wrap(services.ErrApplication, stageName, "profile", "Unexpected response from auth service", err)
	}
	profile := wire.profile()

	m.mu.Lock()
	current := m.identity
	m.mu.Unlock()
	refreshed := current
	refreshed.DisplayName = firstNonEmpty(profile.DisplayName, current.DisplayName)
	refreshed.ThemePref = firstNonEmpty(profile.ThemePref, current.ThemePref)
	if refreshed != current && refreshed.Valid() {
		if err := m.persist(refreshed); err != nil {
			return Profile{}, err
		}
	}
	return profile, nil
}

type profileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	ThemePref   *string `json:"theme_pref,omitempty"`
}

// UpdateProfile changes the display name and theme preference. Empty
// arguments leave the field unchanged.
func (m *Manager) UpdateProfile(ctx context.Context, displayName, themePref string) (Identity, error) {
	var body profileUpdate
	if v := strings.TrimSpace(displayName); v != "" {
		body.DisplayName = &v
	}
	if v := strings.TrimSpace(themePref); v != "" {
		body.ThemePref = &v
	}
	if body.DisplayName == nil && body.ThemePref == nil {
		return Identity{}, services.Wrap(services.ErrValidation, stageName, "update profile", "Nothing to update", nil)
	}

	env, err := m.Do(ctx, transport.Request{Method: http.MethodPatch, Path: "/profile", JSON: body})
	if err != nil {
		return Identity{}, services.Wrap(classify(err), stageName, "update profile", "Could not update profile", err)
	}
	var returned Profile
	var wire authWire
	if err := env.Decode(&wire); err != nil {
		m.logger.Debug("profile update response not decoded", logging.Error(err))
	} else {
		returned = wire.profile()
	}

	m.mu.Lock()
	updated := m.identity
	m.mu.Unlock()
	updated.DisplayName = firstNonEmpty(returned.DisplayName, deref(body.DisplayName), updated.DisplayName)
	updated.ThemePref = firstNonEmpty(returned.ThemePref, deref(body.ThemePref), updated.ThemePref)
	if err := m.persist(updated); err != nil {
		return Identity{}, err
	}
	return updated, nil
}

// ChangePassword replaces the account password.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return services.Wrap(services.ErrValidation, stageName, "change password", "Both the current and new password are required", nil)
	}
	body := struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}{OldPassword: oldPassword, NewPassword: newPassword}
	if _, err := m.Do(ctx, transport.Request{Method: http.MethodPost, Path: "/change-password", JSON: body}); err != nil {
		return services.Wrap(classify(err), stageName, "change password", "Could not change password", err)
	}
	return nil
}

// Do issues an authenticated request against the auth service. It fails
// with services.ErrUnauthenticated before touching the network when no
// identity is present.
func (m *Manager) Do(ctx context.Context, req transport.Request) (*transport.Envelope, error) {
	id, ok := m.Current()
	if !ok {
		return nil, services.Wrap(services.ErrUnauthenticated, stageName, strings.TrimPrefix(req.Path, "/"), "Please sign in first", nil)
	}
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Authorization", "Bearer "+id.Token)
	req.Header = header
	return m.auth.Do(ctx, req)
}

func (m *Manager) persist(id Identity) error {
	if err := m.store.Save(id); err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "persist", "Could not save the session", err)
	}
	m.mu.Lock()
	m.identity = id
	m.mu.Unlock()
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return services.ErrUnauthenticated
	case errors.Is(err, services.ErrTransport):
		return services.ErrTransport
	default:
		return services.ErrApplication
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
