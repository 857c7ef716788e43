package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/localstore"
)

// DefaultJournalLimit bounds each user's journal.
const DefaultJournalLimit = 200

const journalKind = "journal"

// JournalEntry is one consumed ledger event as kept in the journal.
type JournalEntry struct {
	core.LedgerEvent
	PublishedAt time.Time `json:"published_at"`
	ReceivedAt  time.Time `json:"received_at"`
}

// LedgerWorker records consumed ledger events in a per-user journal
type LedgerWorker struct {
	kv      localstore.KV
	limit   int
	now     func() time.Time
	logger  *slog.Logger
	handled atomic.Int64
}

type Option func(*LedgerWorker)

func WithClock(now func() time.Time) Option {
	return func(w *LedgerWorker) { w.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *LedgerWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewLedgerWorker(kv localstore.KV, limit int, opts ...Option) *LedgerWorker {
	if limit <= 0 {
		limit = DefaultJournalLimit
	}
	w := &LedgerWorker{
		kv:     kv,
		limit:  limit,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func journalKey(userID string) string {
	return localstore.Key(journalKind, userID)
}

// Handle processes a single ledger message from AMQP. A returned error makes
// the consumer requeue the message.
func (w *LedgerWorker) Handle(ctx context.Context, msg *amqp.LedgerMessage) error {
	attrs := []any{
		"event_type", msg.Type,
		"user_id", msg.UserID,
		"mode", msg.Mode,
	}
	if msg.Resource != "" {
		attrs = append(attrs, "resource", msg.Resource, "resource_id", msg.ResourceID)
	}
	if msg.Amount != nil {
		attrs = append(attrs, "amount", msg.Amount.String())
	}

	if msg.Type == core.EventModeLocal {
		w.logger.WarnContext(ctx, "Client switched to the local store", attrs...)
	} else {
		w.logger.InfoContext(ctx, "Processing ledger event", attrs...)
	}

	entry := JournalEntry{
		LedgerEvent: msg.LedgerEvent,
		PublishedAt: msg.Timestamp,
		ReceivedAt:  w.now().UTC(),
	}
	err := localstore.UpdateList(ctx, w.kv, journalKey(msg.UserID), func(items []JournalEntry) ([]JournalEntry, error) {
		items = append(items, entry)
		if over := len(items) - w.limit; over > 0 {
			items = append([]JournalEntry(nil), items[over:]...)
		}
		return items, nil
	})
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}

	w.handled.Add(1)
	return nil
}

// Journal returns a user's recorded events, newest first.
func (w *LedgerWorker) Journal(ctx context.Context, userID string) ([]JournalEntry, error) {
	items, _, err := localstore.ReadList[JournalEntry](ctx, w.kv, journalKey(strings.TrimSpace(userID)))
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// Handled reports how many events were recorded since start.
func (w *LedgerWorker) Handled() int64 {
	return w.handled.Load()
}
