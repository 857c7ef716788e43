package core

import (
	"sort"
	"strings"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// Dashboard is the read-only aggregate built from the income, expense and
// category listings of one user.
type Dashboard struct {
	TotalIncome        Money            `json:"totalIncome"`
	TotalExpense       Money            `json:"totalExpense"`
	TotalBalance       Money            `json:"totalBalance"`
	RecentTransactions []Transaction    `json:"recentTransactions"`
	LatestIncomes      []Transaction    `json:"latestFiveIncomes"`
	LatestExpenses     []Transaction    `json:"latestFiveExpenses"`
	ExpensesByCategory []CategoryAmount `json:"expensesByCategory"`
	Categories         []Category       `json:"categories"`
}

const latestPerKind = 5

// BuildDashboard composes the aggregate. recentLimit bounds the merged list.
func BuildDashboard(incomes, expenses []Transaction, categories []Category, recentLimit int) Dashboard {
	d := Dashboard{Categories: categories}
	for _, t := range incomes {
		d.TotalIncome = d.TotalIncome.Add(t.Amount)
	}
	byCategory := map[string]Money{}
	var order []string
	for _, t := range expenses {
		d.TotalExpense = d.TotalExpense.Add(t.Amount)
		if _, ok := byCategory[t.Category]; !ok {
			order = append(order, t.Category)
		}
		byCategory[t.Category] = byCategory[t.Category].Add(t.Amount)
	}
	d.TotalBalance = d.TotalIncome.Sub(d.TotalExpense)

	for _, name := range order {
		d.ExpensesByCategory = append(d.ExpensesByCategory, CategoryAmount{Name: name, Amount: byCategory[name]})
	}
	sort.SliceStable(d.ExpensesByCategory, func(i, j int) bool {
		return d.ExpensesByCategory[i].Amount.Cents > d.ExpensesByCategory[j].Amount.Cents
	})

	d.LatestIncomes = latest(incomes, latestPerKind)
	d.LatestExpenses = latest(expenses, latestPerKind)

	merged := make([]Transaction, 0, len(incomes)+len(expenses))
	merged = append(merged, incomes...)
	merged = append(merged, expenses...)
	d.RecentTransactions = latest(merged, recentLimit)
	return d
}

// SortByDateDesc orders newest first; ties fall back to id, descending.
func SortByDateDesc(ts []Transaction) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].Date.Equal(ts[j].Date.Time) {
			return ts[i].Date.After(ts[j].Date.Time)
		}
		return strings.Compare(ts[i].ID, ts[j].ID) > 0
	})
}

// Sort orders ts by the filter's sort field and order. Ties fall back to the
// id so the result is stable across stores.
func (f Filter) Sort(ts []Transaction) {
	asc := strings.EqualFold(f.SortOrder, SortAsc)
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		var c int
		switch strings.ToLower(f.SortField) {
		case SortByAmount:
			c = compareInt64(a.Amount.Cents, b.Amount.Cents)
		case SortByName:
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		default:
			c = a.Date.Compare(b.Date.Time)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if asc {
			return c < 0
		}
		return c > 0
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func latest(ts []Transaction, n int) []Transaction {
	out := append([]Transaction(nil), ts...)
	SortByDateDesc(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
