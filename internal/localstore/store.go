// Package localstore is the durable fallback store. Every collection is a JSON
// document kept under a "{resourceKind}_{userId}" key of a KV substrate.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// OfflineUserID namespaces local data when no authenticated identity is known.
const OfflineUserID = "offline"

const (
	KindIncomes    = "incomes"
	KindExpenses   = "expenses"
	KindCategories = "categories"

	keyUsers       = "users"
	keyBackendMode = "backendMode"
	keySession     = "session"
)

// KV is the durable key/value substrate. Update must run fn and store its
// result atomically with respect to other writers of the same key; fn must not
// call back into the KV.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn func(current []byte, ok bool) ([]byte, error)) error
}

type Store struct {
	kv       KV
	seeds    []SeedCategory
	tokens   TokenIssuer
	now      func() time.Time
	lastID   atomic.Int64
	hashCost int
	logger   *slog.Logger
}

type Option func(*Store)

// WithSeeds replaces the default categories written for a new user.
func WithSeeds(seeds []SeedCategory) Option {
	return func(s *Store) {
		if len(seeds) > 0 {
			s.seeds = seeds
		}
	}
}

// WithClock overrides the time source used for identifiers.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(kv KV, tokens TokenIssuer, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		seeds:    DefaultSeeds(),
		tokens:   tokens,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key builds the namespaced key of a collection.
func Key(kind, userID string) string {
	if strings.TrimSpace(userID) == "" {
		userID = OfflineUserID
	}
	return kind + "_" + userID
}

// NewID returns a type-prefixed, timestamp-based identifier that is strictly
// increasing within the process.
func (s *Store) NewID(prefix string) string {
	for {
		last := s.lastID.Load()
		next := s.now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if s.lastID.CompareAndSwap(last, next) {
			return fmt.Sprintf("%s_%d", prefix, next)
		}
	}
}

// ReadList decodes the collection stored under key; a missing key is empty.
func ReadList[T any](ctx context.Context, kv KV, key string) ([]T, bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, true, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, true, nil
}

// UpdateList applies fn to the collection under key inside one KV.Update.
func UpdateList[T any](ctx context.Context, kv KV, key string, fn func([]T) ([]T, error)) error {
	return kv.Update(ctx, key, func(cur []byte, ok bool) ([]byte, error) {
		var items []T
		if ok && len(cur) > 0 {
			if err := json.Unmarshal(cur, &items); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
		}
		next, err := fn(items)
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []T{}
		}
		return json.Marshal(next)
	})
}
