package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/paladium/internal/auth"
	"github.com/mmynk/paladium/internal/gateway"
	"github.com/mmynk/paladium/internal/models"
)

var (
	// ErrSessionExpired means the stored token can no longer be used.
	ErrSessionExpired = errors.New("session expired")
	// ErrWrongUserType means the session belongs to the other kind of user.
	ErrWrongUserType = errors.New("signed in as a different user type")
)

// Error is a sign-in failure with a message fit to show the user.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Remote is the part of the backend the Manager needs.
type Remote interface {
	Login(ctx context.Context, userType models.UserType, email, password string) (string, error)
	Register(ctx context.Context, userType models.UserType, email, password, name string) (string, error)
	Me(ctx context.Context, token string) (models.User, error)
}

var _ Remote = (*gateway.Client)(nil)

// Manager owns the current session and hands its token to the gateway.
type Manager struct {
	store  Store
	remote Remote
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	creds *Credentials
}

var _ gateway.TokenSource = (*Manager)(nil)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager with no active session.
func NewManager(store Store, remote Remote, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		remote: remote,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bind makes the client send this session's token and drops the session
// whenever the backend rejects it.
func (m *Manager) Bind(client *gateway.Client) {
	client.SetTokenSource(m)
	client.OnUnauthorized(func() {
		if err := m.Logout(context.Background()); err != nil {
			m.logger.Error("Failed to clear rejected session", "error", err)
		}
	})
}

// Token returns the active bearer token, or "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return ""
	}
	return m.creds.Token
}

// User returns the signed-in user.
func (m *Manager) User() (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return models.User{}, false
	}
	return m.creds.User, true
}

// Init restores the stored session and confirms it with the backend.
//
// A session the backend rejects is cleared. A valid session of the wrong
// type is kept and ErrWrongUserType is returned, so the caller can send the
// user to the right login without signing them out. An empty required type
// accepts either.
func (m *Manager) Init(ctx context.Context, required models.UserType) (models.User, error) {
	creds, err := m.store.Load(ctx)
	if err != nil {
		return models.User{}, err
	}

	claims, err := auth.ParseUnverified(creds.Token)
	if err != nil || claims.Expired(m.now()) {
		m.logger.Info("Stored session expired", "user_type", creds.Type)
		if err := m.Logout(ctx); err != nil {
			return models.User{}, err
		}
		return models.User{}, ErrSessionExpired
	}

	user, err := m.remote.Me(ctx, creds.Token)
	if err != nil {
		m.logger.Warn("Stored session rejected", "user_type", creds.Type, "error", err)
		if err := m.Logout(ctx); err != nil {
			return models.User{}, err
		}
		return models.User{}, fmt.Errorf("failed to restore session: %w", err)
	}

	creds.User = user
	creds.Type = user.Type
	m.set(&creds)

	if required != "" && user.Type != required {
		return user, ErrWrongUserType
	}
	return user, nil
}

// Login signs in and stores the session.
func (m *Manager) Login(ctx context.Context, userType models.UserType, email, password string) (models.User, error) {
	token, err := m.remote.Login(ctx, userType, email, password)
	if err != nil {
		return models.User{}, &Error{Message: gateway.Detail(err, "Login failed"), Err: err}
	}
	return m.start(ctx, token)
}

// Register creates an account and signs in with it.
func (m *Manager) Register(ctx context.Context, userType models.UserType, email, password, name string) (models.User, error) {
	token, err := m.remote.Register(ctx, userType, email, password, name)
	if err != nil {
		return models.User{}, &Error{Message: gateway.Detail(err, "Registration failed"), Err: err}
	}
	return m.start(ctx, token)
}

func (m *Manager) start(ctx context.Context, token string) (models.User, error) {
	user, err := m.remote.Me(ctx, token)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load profile: %w", err)
	}

	creds := Credentials{Token: token, Type: user.Type, User: user}
	if err := m.store.Save(ctx, creds); err != nil {
		return models.User{}, err
	}
	m.set(&creds)

	m.logger.Info("Signed in", "user_id", user.ID, "user_type", user.Type)
	return user, nil
}

// Logout forgets the session locally and in the store.
func (m *Manager) Logout(ctx context.Context) error {
	m.set(nil)
	return m.store.Clear(ctx)
}

func (m *Manager) set(creds *Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
}
