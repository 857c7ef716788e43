package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-01-01", true},
		{"2025-01-01T10:00:00Z", true},
		{"01/01/2025", false},
		{"", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok && (err != nil || d.String() != "2025-01-01") {
			t.Fatalf("%q: got %v err=%v", tc.in, d, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var tx Transaction
	if err := json.Unmarshal([]byte(`{"id":"1","type":"income","category":"Salary","amount":10,"date":"2025-03-04"}`), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.Date.String() != "2025-03-04" || tx.Amount.Cents != 1000 {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	b, _ := json.Marshal(tx)
	var back map[string]any
	_ = json.Unmarshal(b, &back)
	if back["date"] != "2025-03-04" {
		t.Fatalf("date not encoded as YYYY-MM-DD: %s", b)
	}
}

func TestNewTransactionValidate(t *testing.T) {
	good := NewTransaction{
		Name:       "Salary",
		CategoryID: "1",
		Amount:     Money{Cents: 500000},
		Date:       NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		mut   func(*NewTransaction)
		field string
	}{
		{"zero amount", func(n *NewTransaction) { n.Amount = Money{} }, "amount"},
		{"negative amount", func(n *NewTransaction) { n.Amount = Money{Cents: -5} }, "amount"},
		{"no category", func(n *NewTransaction) { n.CategoryID = "" }, "category"},
		{"no date", func(n *NewTransaction) { n.Date = Date{} }, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := good
			tc.mut(&n)
			err := n.Validate()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestCategorySameAs(t *testing.T) {
	a := Category{Name: "Food", Type: Expense}
	if !a.SameAs(Category{Name: " food ", Type: Expense}) {
		t.Fatalf("expected case-insensitive match")
	}
	if a.SameAs(Category{Name: "Food", Type: Income}) {
		t.Fatalf("different types must not collide")
	}
}

func TestFilterMatch(t *testing.T) {
	start, end := NewDate(2025, 1, 1), NewDate(2025, 1, 31)
	min := Money{Cents: 1000}
	f := Filter{Type: Expense, StartDate: &start, EndDate: &end, MinAmount: &min, Keyword: "rent"}

	in := Transaction{Type: Expense, Name: "Monthly Rent", Amount: Money{Cents: 90000}, Date: NewDate(2025, 1, 3)}
	if !f.Match(in) {
		t.Fatalf("expected match")
	}
	out := []Transaction{
		{Type: Income, Name: "Rent", Amount: Money{Cents: 90000}, Date: NewDate(2025, 1, 3)},
		{Type: Expense, Name: "Rent", Amount: Money{Cents: 90000}, Date: NewDate(2025, 2, 3)},
		{Type: Expense, Name: "Rent", Amount: Money{Cents: 10}, Date: NewDate(2025, 1, 3)},
		{Type: Expense, Name: "Food", Amount: Money{Cents: 90000}, Date: NewDate(2025, 1, 3)},
	}
	for i, tx := range out {
		if f.Match(tx) {
			t.Fatalf("case %d should not match", i)
		}
	}
}

func TestFilterSort(t *testing.T) {
	items := []Transaction{
		{ID: "a", Name: "rent", Amount: Money{Cents: 500}, Date: NewDate(2025, 1, 2)},
		{ID: "b", Name: "Coffee", Amount: Money{Cents: 300}, Date: NewDate(2025, 1, 5)},
		{ID: "c", Name: "bus", Amount: Money{Cents: 300}, Date: NewDate(2025, 1, 1)},
	}
	tests := []struct {
		name  string
		field string
		order string
		want  string
	}{
		{"default is newest first", "", "", "bac"},
		{"date ascending", "date", "asc", "cab"},
		{"amount descending breaks ties by id", "amount", "desc", "acb"},
		{"amount ascending", "AMOUNT", "asc", "bca"},
		{"name ignores case", "name", "asc", "cba"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := append([]Transaction(nil), items...)
			Filter{SortField: tt.field, SortOrder: tt.order}.Sort(got)
			var ids string
			for _, tx := range got {
				ids += tx.ID
			}
			if ids != tt.want {
				t.Fatalf("order = %q, want %q", ids, tt.want)
			}
		})
	}
}

func TestFilterValidateSort(t *testing.T) {
	for _, f := range []Filter{{SortField: "colour"}, {SortOrder: "sideways"}} {
		if err := f.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("Validate(%+v) = %v, want validation error", f, err)
		}
	}
	if err := (Filter{SortField: "name", SortOrder: "ASC"}).Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestRemoteErrorIs(t *testing.T) {
	err := error(&RemoteError{Kind: ErrRejected, Status: 400, Message: "bad"})
	if !errors.Is(err, ErrRejected) || errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("unexpected classification for %v", err)
	}
	if err.Error() != "request rejected by server (status 400): bad" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
