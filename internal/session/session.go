// Package session holds the authorization state shared by the remote and the
// local store: the token, the active user and the storage mode.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"moneymanager/internal/core"
)

// ErrEmptyToken is returned when login or register is attempted without a token.
var ErrEmptyToken = errors.New("session token is empty")

// Store persists the session outside the remote client.
type Store interface {
	LoadSession(ctx context.Context) (core.Session, bool, error)
	SaveSession(ctx context.Context, s core.Session) error
	ClearSession(ctx context.Context) error
	BackendMode(ctx context.Context) (core.Mode, error)
}

// Session is safe for concurrent use. Login and Register are the only writers
// of the token.
type Session struct {
	mu     sync.RWMutex
	state  core.Session
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, logger: logger}
}

// Restore loads the persisted session. Without one, a backendMode flag of
// "local" starts the session in local mode.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	persisted, ok, err := s.store.LoadSession(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ok && persisted.Authenticated() {
		if persisted.Mode == "" {
			persisted.Mode = core.ModeRemote
		}
		s.state = persisted
		s.logger.InfoContext(ctx, "Session restored", "mode", persisted.Mode, "user_id", userID(persisted))
		return nil
	}

	mode, err := s.store.BackendMode(ctx)
	if err != nil {
		return err
	}
	if mode == core.ModeLocal {
		s.state.Mode = core.ModeLocal
		s.logger.InfoContext(ctx, "No session found, starting in local mode")
	}
	return nil
}

func (s *Session) Login(ctx context.Context, user core.UserSummary, token string) error {
	return s.authenticate(ctx, "login", user, token)
}

func (s *Session) Register(ctx context.Context, user core.UserSummary, token string) error {
	return s.authenticate(ctx, "register", user, token)
}

func (s *Session) authenticate(ctx context.Context, op string, user core.UserSummary, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.state = core.Session{Token: token, User: &u, Mode: core.ModeRemote}
	s.persist(ctx)
	s.logger.InfoContext(ctx, "Session started", "operation", op, "user_id", u.ID)
	return nil
}

// Logout clears token, user and mode. The in-memory state is cleared before the
// persisted copy is removed.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.state.Authenticated()
	s.state = core.Session{}
	if s.store != nil {
		if err := s.store.ClearSession(ctx); err != nil {
			s.logger.WarnContext(ctx, "Failed to clear persisted session", "error", err)
		}
	}
	if had {
		s.logger.InfoContext(ctx, "Session cleared")
	}
}

// Current returns a copy of the session.
func (s *Session) Current() core.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	if out.Mode == "" {
		out.Mode = core.ModeRemote
	}
	return out
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Mode returns the routing mode; an empty session routes remotely.
func (s *Session) Mode() core.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Mode == "" {
		return core.ModeRemote
	}
	return s.state.Mode
}

// UserID returns the authenticated user's id, or "" when nobody is logged in.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return userID(s.state)
}

// FallBackToLocal switches to local mode. It reports whether this call made
// the transition; calls made while already local are no-ops.
func (s *Session) FallBackToLocal(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Mode == core.ModeLocal {
		return false
	}
	s.state.Mode = core.ModeLocal
	if s.state.Authenticated() {
		s.persist(ctx)
	}
	return true
}

// persist must be called with mu held.
func (s *Session) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveSession(ctx, s.state); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist session", "error", err)
	}
}

func userID(s core.Session) string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}
