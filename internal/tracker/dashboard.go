package tracker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"moneymanager/internal/core"
)

// Dashboard loads incomes, expenses and categories concurrently. If any of the
// three fails the whole read fails; the other reads run to completion and are
// discarded.
func (t *Tracker) Dashboard(ctx context.Context) (core.Dashboard, error) {
	var (
		g          errgroup.Group
		incomes    []core.Transaction
		expenses   []core.Transaction
		categories []core.Category
	)
	g.Go(func() error {
		var err error
		if incomes, err = t.ListIncomes(ctx); err != nil {
			return fmt.Errorf("load incomes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if expenses, err = t.ListExpenses(ctx); err != nil {
			return fmt.Errorf("load expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if categories, err = t.ListCategories(ctx); err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Dashboard{}, err
	}
	return core.BuildDashboard(incomes, expenses, categories, t.recentLimit), nil
}
