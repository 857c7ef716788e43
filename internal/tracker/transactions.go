package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"moneymanager/internal/arbiter"
	"moneymanager/internal/core"
	"moneymanager/internal/normalize"
	"moneymanager/internal/remote"
)

func (t *Tracker) ListIncomes(ctx context.Context) ([]core.Transaction, error) {
	return t.listTransactions(ctx, core.Income)
}

func (t *Tracker) ListExpenses(ctx context.Context) ([]core.Transaction, error) {
	return t.listTransactions(ctx, core.Expense)
}

func (t *Tracker) CreateIncome(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	return t.createTransaction(ctx, core.Income, in)
}

func (t *Tracker) CreateExpense(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	return t.createTransaction(ctx, core.Expense, in)
}

func (t *Tracker) UpdateIncome(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	return t.updateTransaction(ctx, core.Income, id, patch)
}

func (t *Tracker) UpdateExpense(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	return t.updateTransaction(ctx, core.Expense, id, patch)
}

func (t *Tracker) DeleteIncome(ctx context.Context, id string) error {
	return t.deleteTransaction(ctx, core.Income, id)
}

func (t *Tracker) DeleteExpense(ctx context.Context, id string) error {
	return t.deleteTransaction(ctx, core.Expense, id)
}

func resourcePath(kind core.Kind) string {
	if kind == core.Income {
		return remote.PathIncomes
	}
	return remote.PathExpenses
}

func (t *Tracker) listTransactions(ctx context.Context, kind core.Kind) ([]core.Transaction, error) {
	return arbiter.Run(ctx, t.arbiter, "list "+kind.Plural(),
		func(ctx context.Context) ([]core.Transaction, error) {
			raw, err := t.remote.Do(ctx, http.MethodGet, resourcePath(kind), nil)
			if err != nil {
				return nil, err
			}
			items, err := normalize.Transactions(kind, raw)
			if err != nil {
				return nil, err
			}
			return t.withCategoryNames(ctx, items)
		},
		func(ctx context.Context) ([]core.Transaction, error) {
			return t.local.ListTransactions(ctx, t.userID(), kind)
		})
}

// withCategoryNames resolves the remote category ids of a listing to names.
// The category list is fetched only when an item lacks a name.
func (t *Tracker) withCategoryNames(ctx context.Context, items []normalize.Transaction) ([]core.Transaction, error) {
	var cats []core.Category
	out := make([]core.Transaction, 0, len(items))
	for _, it := range items {
		tx := it.Transaction
		if it.CategoryID != "" {
			if cats == nil {
				var err error
				if cats, err = t.remoteCategories(ctx); err != nil {
					return nil, err
				}
			}
			if c := findID(cats, it.CategoryID); c != nil {
				tx.Category = c.Name
			}
		}
		if tx.Category == "" {
			tx.Category = it.CategoryID
		}
		out = append(out, tx)
	}
	core.SortByDateDesc(out)
	return out, nil
}

// nameAfterWrite resolves the category name of a record the remote store has
// already accepted. It never fails: a failure here would make the arbiter
// repeat the write locally.
func (t *Tracker) nameAfterWrite(ctx context.Context, it normalize.Transaction, hint string) core.Transaction {
	tx := it.Transaction
	if it.CategoryID != "" {
		cats, err := t.remoteCategories(ctx)
		if err != nil {
			t.logger.WarnContext(ctx, "Could not resolve category name", "category_id", it.CategoryID, "error", err)
		} else if c := findID(cats, it.CategoryID); c != nil {
			tx.Category = c.Name
		}
	}
	if tx.Category == "" {
		tx.Category = hint
	}
	if tx.Category == "" {
		tx.Category = it.CategoryID
	}
	return tx
}

// remoteCategoryID resolves a category reference to the remote id.
func (t *Tracker) remoteCategoryID(ctx context.Context, kind core.Kind, id, name string) (string, string, error) {
	if id = strings.TrimSpace(id); id != "" {
		return id, name, nil
	}
	cats, err := t.remoteCategories(ctx)
	if err != nil {
		return "", "", err
	}
	c := findName(cats, kind, name)
	if c == nil {
		return "", "", fmt.Errorf("%s category %q: %w", kind, name, core.ErrNotFound)
	}
	return c.ID, c.Name, nil
}

// localCategoryName resolves a reference against the local categories. An
// unknown id is kept as the name so the record is never lost.
func (t *Tracker) localCategoryName(ctx context.Context, id, name string) (string, error) {
	if id = strings.TrimSpace(id); id != "" {
		cats, err := t.localCategories(ctx)
		if err != nil {
			return "", err
		}
		if c := findID(cats, id); c != nil {
			return c.Name, nil
		}
		if strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name), nil
		}
		return id, nil
	}
	return strings.TrimSpace(name), nil
}

func (t *Tracker) createTransaction(ctx context.Context, kind core.Kind, in core.NewTransaction) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := arbiter.Run(ctx, t.arbiter, "create "+string(kind),
		func(ctx context.Context) (core.Transaction, error) {
			catID, catName, err := t.remoteCategoryID(ctx, kind, in.CategoryID, in.Category)
			if err != nil {
				return core.Transaction{}, err
			}
			body := map[string]any{
				"categoryId": normalize.NumericID(catID),
				"amount":     in.Amount,
				"date":       in.Date,
			}
			if in.Name != "" {
				body["name"] = in.Name
			}
			if in.Description != "" {
				body["description"] = in.Description
			}
			raw, err := t.remote.Do(ctx, http.MethodPost, resourcePath(kind), body)
			if err != nil {
				return core.Transaction{}, err
			}
			it, err := normalize.DecodeTransaction(kind, raw)
			if err != nil {
				return core.Transaction{}, err
			}
			if it.CategoryID == "" {
				it.CategoryID = catID
			}
			if it.Amount.Cents == 0 {
				it.Amount = in.Amount
			}
			if it.Date.IsZero() {
				it.Date = in.Date
			}
			if it.Name == "" {
				it.Name = in.Name
			}
			return t.nameAfterWrite(ctx, it, catName), nil
		},
		func(ctx context.Context) (core.Transaction, error) {
			name, err := t.localCategoryName(ctx, in.CategoryID, in.Category)
			if err != nil {
				return core.Transaction{}, err
			}
			return t.local.AddTransaction(ctx, t.userID(), core.Transaction{
				Type:        kind,
				Name:        in.Name,
				Category:    name,
				Amount:      in.Amount,
				Date:        in.Date,
				Description: in.Description,
			})
		})
	if err != nil {
		return core.Transaction{}, err
	}
	amount := created.Amount
	t.notify(ctx, core.LedgerEvent{Type: core.EventTransactionCreated, Resource: kind.Plural(), ResourceID: created.ID, Amount: &amount})
	return created, nil
}

func (t *Tracker) updateTransaction(ctx context.Context, kind core.Kind, id string, patch core.TransactionPatch) (core.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Transaction{}, core.Invalid("id", core.ErrMissingID)
	}
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}

	updated, err := arbiter.Run(ctx, t.arbiter, "update "+string(kind),
		func(ctx context.Context) (core.Transaction, error) {
			body := map[string]any{}
			var hint string
			if patch.CategoryID != nil || patch.Category != nil {
				var catID, catName string
				if patch.CategoryID != nil {
					catID = *patch.CategoryID
				}
				if patch.Category != nil {
					catName = *patch.Category
				}
				resolvedID, resolvedName, err := t.remoteCategoryID(ctx, kind, catID, catName)
				if err != nil {
					return core.Transaction{}, err
				}
				body["categoryId"] = normalize.NumericID(resolvedID)
				hint = resolvedName
			}
			if patch.Name != nil {
				body["name"] = *patch.Name
			}
			if patch.Amount != nil {
				body["amount"] = *patch.Amount
			}
			if patch.Date != nil {
				body["date"] = *patch.Date
			}
			if patch.Description != nil {
				body["description"] = *patch.Description
			}
			raw, err := t.remote.Do(ctx, http.MethodPut, resourcePath(kind)+"/"+url.PathEscape(id), body)
			if err != nil {
				return core.Transaction{}, err
			}
			it, err := normalize.DecodeTransaction(kind, raw)
			if err != nil {
				return core.Transaction{}, err
			}
			return t.nameAfterWrite(ctx, it, hint), nil
		},
		func(ctx context.Context) (core.Transaction, error) {
			local := patch
			if patch.CategoryID != nil || patch.Category != nil {
				var catID, catName string
				if patch.CategoryID != nil {
					catID = *patch.CategoryID
				}
				if patch.Category != nil {
					catName = *patch.Category
				}
				name, err := t.localCategoryName(ctx, catID, catName)
				if err != nil {
					return core.Transaction{}, err
				}
				local.Category = &name
				local.CategoryID = nil
			}
			return t.local.UpdateTransaction(ctx, t.userID(), kind, id, local)
		})
	if err != nil {
		return core.Transaction{}, err
	}
	amount := updated.Amount
	t.notify(ctx, core.LedgerEvent{Type: core.EventTransactionUpdated, Resource: kind.Plural(), ResourceID: id, Amount: &amount})
	return updated, nil
}

func (t *Tracker) deleteTransaction(ctx context.Context, kind core.Kind, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Invalid("id", core.ErrMissingID)
	}
	err := arbiter.Exec(ctx, t.arbiter, "delete "+string(kind),
		func(ctx context.Context) error {
			_, err := t.remote.Do(ctx, http.MethodDelete, resourcePath(kind)+"/"+url.PathEscape(id), nil)
			return err
		},
		func(ctx context.Context) error {
			return t.local.DeleteTransaction(ctx, t.userID(), kind, id)
		})
	if err != nil {
		return err
	}
	t.notify(ctx, core.LedgerEvent{Type: core.EventTransactionDeleted, Resource: kind.Plural(), ResourceID: id})
	return nil
}

// Filter returns the transactions matching f in the order it asks for,
// newest first by default.
func (t *Tracker) Filter(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return arbiter.Run(ctx, t.arbiter, "filter",
		func(ctx context.Context) ([]core.Transaction, error) {
			raw, err := t.remote.Do(ctx, http.MethodPost, remote.PathFilter, f)
			if err != nil {
				return nil, err
			}
			items, err := normalize.Transactions(f.Type, raw)
			if err != nil {
				return nil, err
			}
			named, err := t.withCategoryNames(ctx, items)
			if err != nil {
				return nil, err
			}
			f.Sort(named)
			return named, nil
		},
		func(ctx context.Context) ([]core.Transaction, error) {
			return t.local.Filter(ctx, t.userID(), f)
		})
}
