package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"moneymanager/internal/core"
)

// LoadSession returns the persisted session, if any.
func (s *Store) LoadSession(ctx context.Context) (core.Session, bool, error) {
	raw, ok, err := s.kv.Get(ctx, keySession)
	if err != nil || !ok {
		return core.Session{}, false, err
	}
	var sess core.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return core.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	if !s.localTokenValid(sess) {
		s.logger.WarnContext(ctx, "Discarding persisted local session with an invalid token",
			"user_id", sess.User.ID)
		if err := s.ClearSession(ctx); err != nil {
			return core.Session{}, false, err
		}
		return core.Session{}, false, nil
	}
	return sess, true, nil
}

// localTokenValid checks sessions minted by RegisterUser or Authenticate
// against the issuer. Remote sessions are the server's concern.
func (s *Store) localTokenValid(sess core.Session) bool {
	if sess.User == nil || !strings.HasPrefix(sess.User.ID, LocalUserPrefix) {
		return true
	}
	parser, ok := s.tokens.(TokenParser)
	if !ok {
		return true
	}
	claims, err := parser.Parse(sess.Token)
	return err == nil && claims.ID == sess.User.ID
}

func (s *Store) SaveSession(ctx context.Context, sess core.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.kv.Put(ctx, keySession, raw)
}

func (s *Store) ClearSession(ctx context.Context) error {
	return s.kv.Delete(ctx, keySession)
}

// BackendMode returns the persisted backendMode flag ("" when unset).
func (s *Store) BackendMode(ctx context.Context) (core.Mode, error) {
	raw, ok, err := s.kv.Get(ctx, keyBackendMode)
	if err != nil || !ok {
		return "", err
	}
	var m core.Mode
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("decode backend mode: %w", err)
	}
	return m, nil
}

// SetBackendMode records whether the user has only ever authenticated offline.
func (s *Store) SetBackendMode(ctx context.Context, m core.Mode) error {
	raw, _ := json.Marshal(m)
	return s.kv.Put(ctx, keyBackendMode, raw)
}
