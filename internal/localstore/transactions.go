package localstore

import (
	"context"
	"fmt"

	"moneymanager/internal/core"
)

func transactionsKey(kind core.Kind, userID string) string {
	return Key(kind.Plural(), userID)
}

// ListTransactions returns the stored transactions of one kind, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID string, kind core.Kind) ([]core.Transaction, error) {
	items, _, err := ReadList[core.Transaction](ctx, s.kv, transactionsKey(kind, userID))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.Plural(), err)
	}
	core.SortByDateDesc(items)
	return items, nil
}

// AddTransaction assigns a local id to t and appends it.
func (s *Store) AddTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	if !t.Type.Valid() {
		return core.Transaction{}, core.Invalid("type", core.ErrInvalidKind)
	}
	key := transactionsKey(t.Type, userID)
	err := UpdateList(ctx, s.kv, key, func(items []core.Transaction) ([]core.Transaction, error) {
		t.ID = s.uniqueID(string(t.Type), items)
		return append(items, t), nil
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add %s: %w", t.Type, err)
	}
	s.logger.InfoContext(ctx, "Transaction stored locally",
		"id", t.ID, "type", t.Type, "amount", t.Amount.String(), "key", key)
	return t, nil
}

// UpdateTransaction applies a patch whose category, if any, is already a name.
func (s *Store) UpdateTransaction(ctx context.Context, userID string, kind core.Kind, id string, patch core.TransactionPatch) (core.Transaction, error) {
	var updated core.Transaction
	err := UpdateList(ctx, s.kv, transactionsKey(kind, userID), func(items []core.Transaction) ([]core.Transaction, error) {
		for i := range items {
			if items[i].ID == id {
				items[i] = patch.Apply(items[i])
				updated = items[i]
				return items, nil
			}
		}
		return nil, fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update %s: %w", kind, err)
	}
	return updated, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID string, kind core.Kind, id string) error {
	err := UpdateList(ctx, s.kv, transactionsKey(kind, userID), func(items []core.Transaction) ([]core.Transaction, error) {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	s.logger.InfoContext(ctx, "Transaction deleted locally", "id", id, "type", kind)
	return nil
}

// Filter evaluates f against both local collections.
func (s *Store) Filter(ctx context.Context, userID string, f core.Filter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, kind := range []core.Kind{core.Income, core.Expense} {
		if f.Type != "" && f.Type != kind {
			continue
		}
		items, err := s.ListTransactions(ctx, userID, kind)
		if err != nil {
			return nil, err
		}
		for _, t := range items {
			if f.Match(t) {
				out = append(out, t)
			}
		}
	}
	f.Sort(out)
	return out, nil
}

func (s *Store) uniqueID(prefix string, items []core.Transaction) string {
	taken := make(map[string]struct{}, len(items))
	for _, it := range items {
		taken[it.ID] = struct{}{}
	}
	for {
		id := s.NewID(prefix)
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}
