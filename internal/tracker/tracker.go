// Package tracker is the data access façade consumed by the rest of the
// application. Every operation validates its input, then lets the arbiter
// route it to the remote store or the local store.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"moneymanager/internal/arbiter"
	"moneymanager/internal/cache"
	"moneymanager/internal/core"
	"moneymanager/internal/localstore"
	applog "moneymanager/internal/log"
	"moneymanager/internal/remote"
	"moneymanager/internal/session"
)

const (
	DefaultRecentLimit       = 10
	DefaultCategoryCacheSize = 64
	DefaultCategoryCacheTTL  = 5 * time.Minute
)

// Notifier receives an event after every successful write.
type Notifier interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

type Tracker struct {
	session     *session.Session
	remote      *remote.Client
	local       *localstore.Store
	arbiter     *arbiter.Arbiter
	categories  *cache.LRUCache[[]core.Category]
	notifier    Notifier
	recentLimit int
	now         func() time.Time
	logger      *slog.Logger
	errs        *applog.StructuredLogger
}

type Option func(*Tracker)

func WithNotifier(n Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithRecentLimit bounds the merged recent transaction list of the dashboard.
func WithRecentLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.recentLimit = n
		}
	}
}

// WithCategoryCache replaces the category list cache.
func WithCategoryCache(c *cache.LRUCache[[]core.Category]) Option {
	return func(t *Tracker) {
		if c != nil {
			t.categories = c
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New wires the façade. The remote client's 401 hook is replaced with a
// session teardown owned by the tracker.
func New(sess *session.Session, rc *remote.Client, local *localstore.Store, opts ...Option) *Tracker {
	t := &Tracker{
		session:     sess,
		remote:      rc,
		local:       local,
		categories:  cache.NewLRUCache[[]core.Category](DefaultCategoryCacheSize, DefaultCategoryCacheTTL),
		recentLimit: DefaultRecentLimit,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.errs = applog.NewStructuredLogger(t.logger)
	t.arbiter = arbiter.New(sess, arbiter.OnFallback(t.onFallback), arbiter.WithLogger(t.logger))
	rc.SetUnauthorizedHook(t.onUnauthorized)
	return t
}

// Session returns a copy of the current session.
func (t *Tracker) Session() core.Session {
	return t.session.Current()
}

// CategoryCache exposes the category cache so it can be registered for
// periodic cleanup.
func (t *Tracker) CategoryCache() *cache.LRUCache[[]core.Category] {
	return t.categories
}

func (t *Tracker) onFallback(ctx context.Context, cause error) {
	t.categories.DeletePrefix(string(core.ModeRemote) + "|")
	t.notify(ctx, core.LedgerEvent{Type: core.EventModeLocal})
}

func (t *Tracker) onUnauthorized(ctx context.Context) {
	t.logger.WarnContext(ctx, "Remote store rejected the session token, logging out")
	t.session.Logout(ctx)
	t.categories.Purge()
}

func (t *Tracker) userID() string {
	return t.session.UserID()
}

func (t *Tracker) notify(ctx context.Context, ev core.LedgerEvent) {
	if t.notifier == nil {
		return
	}
	if ev.UserID == "" {
		ev.UserID = t.userID()
	}
	if ev.Mode == "" {
		ev.Mode = t.arbiter.Mode()
	}
	ev.OccurredAt = t.now().UTC()
	if err := t.notifier.PublishLedgerEvent(ctx, ev); err != nil {
		t.logger.WarnContext(ctx, "Failed to publish ledger event",
			applog.FieldEventType, ev.Type, applog.FieldError, err)
	}
}
