package localstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"moneymanager/internal/core"
	"moneymanager/internal/localstore/memory"
	"moneymanager/internal/storage"
)

var testIssuer = JWTIssuer{Secret: []byte("test-secret"), TTL: time.Hour}

func newTestStore(t *testing.T, opts ...Option) (*Store, *memory.Store) {
	t.Helper()
	kv := memory.New()
	opts = append([]Option{WithPasswordCost(bcrypt.MinCost)}, opts...)
	return New(kv, testIssuer, opts...), kv
}

func TestKeyFallsBackToOfflineUser(t *testing.T) {
	if got := Key(KindIncomes, "42"); got != "incomes_42" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := Key(KindExpenses, ""); got != "expenses_offline" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestAddTransactionAssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, kv := newTestStore(t, WithClock(func() time.Time { return frozen }))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddTransaction(ctx, "u1", core.Transaction{
				Type: core.Income, Category: "Salary", Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 1, 1),
			})
			if err != nil {
				t.Errorf("add: %v", err)
			}
		}()
	}
	wg.Wait()

	items, err := s.ListTransactions(ctx, "u1", core.Income)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 25 {
		t.Fatalf("expected 25 items, got %d", len(items))
	}
	seen := map[string]bool{}
	for _, it := range items {
		if seen[it.ID] {
			t.Fatalf("duplicate id %s", it.ID)
		}
		seen[it.ID] = true
	}

	keys := kv.Keys()
	sort.Strings(keys)
	if len(keys) != 1 || keys[0] != "incomes_u1" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	tx, _ := s.AddTransaction(ctx, "", core.Transaction{
		Type: core.Expense, Name: "Lunch", Category: "Food", Amount: core.Money{Cents: 1200}, Date: core.NewDate(2025, 2, 1),
	})

	amount := core.Money{Cents: 1500}
	updated, err := s.UpdateTransaction(ctx, "", core.Expense, tx.ID, core.TransactionPatch{Amount: &amount})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != 1500 || updated.Name != "Lunch" {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if err := s.DeleteTransaction(ctx, "", core.Expense, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "", core.Expense, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
	if _, err := s.UpdateTransaction(ctx, "", core.Expense, "nope", core.TransactionPatch{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCategoriesSeedAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithSeeds([]SeedCategory{
		{Name: "Salary", Type: core.Income},
		{Name: "Food", Type: core.Expense, Color: "#123456"},
	}))

	cats, err := s.ListCategories(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) != 2 || cats[0].Color != core.Palette[0] || cats[1].Color != "#123456" {
		t.Fatalf("unexpected seeded categories %+v", cats)
	}

	created, err := s.CreateCategory(ctx, "u1", core.Category{Name: "Rent", Type: core.Expense})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Color != core.FallbackColor(2) || created.ID == "" {
		t.Fatalf("unexpected created category %+v", created)
	}

	if _, err := s.CreateCategory(ctx, "u1", core.Category{Name: "rent", Type: core.Expense}); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := s.CreateCategory(ctx, "u1", core.Category{Name: "Rent", Type: core.Income}); err != nil {
		t.Fatalf("same name with other type must be allowed: %v", err)
	}

	name := "Food"
	if _, err := s.UpdateCategory(ctx, "u1", created.ID, core.CategoryPatch{Name: &name}); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("rename onto existing pair should fail, got %v", err)
	}
	if err := s.DeleteCategory(ctx, "u1", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Other users get their own seeded namespace.
	other, _ := s.ListCategories(ctx, "u2")
	if len(other) != 2 {
		t.Fatalf("expected fresh seeds for u2, got %+v", other)
	}
}

func TestFilterAcrossKinds(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, _ = s.AddTransaction(ctx, "u", core.Transaction{Type: core.Income, Name: "Salary", Category: "Salary", Amount: core.Money{Cents: 500000}, Date: core.NewDate(2025, 1, 1)})
	_, _ = s.AddTransaction(ctx, "u", core.Transaction{Type: core.Expense, Name: "Rent", Category: "Rent", Amount: core.Money{Cents: 90000}, Date: core.NewDate(2025, 1, 5)})
	_, _ = s.AddTransaction(ctx, "u", core.Transaction{Type: core.Expense, Name: "Coffee", Category: "Food", Amount: core.Money{Cents: 300}, Date: core.NewDate(2025, 1, 6)})

	min := core.Money{Cents: 1000}
	got, err := s.Filter(ctx, "u", core.Filter{MinAmount: &min})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Rent" || got[1].Name != "Salary" {
		t.Fatalf("unexpected filter result %+v", got)
	}

	got, _ = s.Filter(ctx, "u", core.Filter{Type: core.Expense, Category: "food"})
	if len(got) != 1 || got[0].Name != "Coffee" {
		t.Fatalf("unexpected filter result %+v", got)
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	user, token, err := s.RegisterUser(ctx, "alice", "Alice@Example.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if token == "" || user.Email != "alice@example.com" || user.ID == "" {
		t.Fatalf("unexpected registration %+v token=%q", user, token)
	}
	parsed, err := testIssuer.Parse(token)
	if err != nil || parsed.ID != user.ID {
		t.Fatalf("token does not carry the user: %+v err=%v", parsed, err)
	}

	if _, _, err := s.RegisterUser(ctx, "again", "alice@example.com", "pw"); !errors.Is(err, core.ErrAlreadyRegistered) {
		t.Fatalf("expected already registered, got %v", err)
	}

	got, token2, err := s.Authenticate(ctx, "alice@example.com", "pw")
	if err != nil || token2 == "" || got.ID != user.ID {
		t.Fatalf("authenticate: %+v err=%v", got, err)
	}
	if _, _, err := s.Authenticate(ctx, "alice@example.com", "wrong"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := s.RegisterUser(ctx, "x", "", ""); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSessionPersistence(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if _, ok, err := s.LoadSession(ctx); ok || err != nil {
		t.Fatalf("expected no session, ok=%v err=%v", ok, err)
	}
	sess := core.Session{Token: "t", User: &core.UserSummary{ID: "1", Email: "a@b.c"}, Mode: core.ModeLocal}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.LoadSession(ctx)
	if err != nil || !ok || got.Token != "t" || got.User.ID != "1" || got.Mode != core.ModeLocal {
		t.Fatalf("unexpected session %+v ok=%v err=%v", got, ok, err)
	}
	_ = s.ClearSession(ctx)
	if _, ok, _ := s.LoadSession(ctx); ok {
		t.Fatalf("session should be cleared")
	}

	if m, _ := s.BackendMode(ctx); m != "" {
		t.Fatalf("unexpected backend mode %q", m)
	}
	_ = s.SetBackendMode(ctx, core.ModeLocal)
	if m, _ := s.BackendMode(ctx); m != core.ModeLocal {
		t.Fatalf("unexpected backend mode %q", m)
	}
}

func TestStoreOnSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local.db")
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s := New(repo, testIssuer)
	tx, err := s.AddTransaction(ctx, "u", core.Transaction{Type: core.Income, Category: "Salary", Amount: core.Money{Cents: 500000}, Date: core.NewDate(2025, 1, 1)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = repo.Close()

	repo, err = storage.NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer repo.Close()
	items, err := New(repo, testIssuer).ListTransactions(ctx, "u", core.Income)
	if err != nil || len(items) != 1 || items[0].ID != tx.ID {
		t.Fatalf("transaction did not survive restart: %+v err=%v", items, err)
	}
}

func TestLoadSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.yaml")
	content := `categories:
  - name: Salary
    type: income
    color: "#10B981"
  - name: salary
    type: income
  - name: Food
    type: expense
  - name: Broken
    type: other
  - name: ""
    type: expense
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seeds: %v", err)
	}
	seeds, err := LoadSeeds(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(seeds) != 2 || seeds[0].Color != "#10B981" || seeds[1].Name != "Food" {
		t.Fatalf("unexpected seeds %+v", seeds)
	}

	if _, err := LoadSeeds(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadSessionChecksLocalTokens(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	user, token, err := s.RegisterUser(ctx, "alice", "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	other := JWTIssuer{Secret: []byte("other-secret")}
	forged, err := other.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name string
		sess core.Session
		want bool
	}{
		{"issued locally", core.Session{Token: token, User: &user, Mode: core.ModeLocal}, true},
		{"foreign signature", core.Session{Token: forged, User: &user, Mode: core.ModeLocal}, false},
		{"garbage token", core.Session{Token: "nope", User: &user, Mode: core.ModeLocal}, false},
		{"remote user", core.Session{Token: "server-token", User: &core.UserSummary{ID: "7"}, Mode: core.ModeRemote}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.SaveSession(ctx, tt.sess); err != nil {
				t.Fatalf("save: %v", err)
			}
			_, ok, err := s.LoadSession(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if ok != tt.want {
				t.Fatalf("LoadSession ok = %v, want %v", ok, tt.want)
			}
			if !tt.want {
				if _, again, _ := s.LoadSession(ctx); again {
					t.Fatalf("rejected session should be cleared")
				}
			}
		})
	}
}
