package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
)

const dateLayout = "2006-01-02"

type (
	// Kind tags a transaction or a category as income or expense.
	Kind string

	// Mode is the arbiter's routing decision for subsequent operations.
	Mode string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Session is the authorization state shared by both storage modes.
	Session struct {
		Token string       `json:"token,omitempty"`
		User  *UserSummary `json:"user,omitempty"`
		Mode  Mode         `json:"mode,omitempty"`
	}

	UserSummary struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	Category struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Type  Kind   `json:"type"`
		Color string `json:"color"`
	}

	// CategoryPatch carries the fields of a partial category update.
	CategoryPatch struct {
		Name  *string `json:"name,omitempty"`
		Type  *Kind   `json:"type,omitempty"`
		Color *string `json:"color,omitempty"`
	}

	Transaction struct {
		ID          string `json:"id"`
		Type        Kind   `json:"type"`
		Name        string `json:"name,omitempty"`
		Category    string `json:"category"` // category name
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		Description string `json:"description,omitempty"`
	}

	// NewTransaction is the input of a create operation. The category may be
	// referenced by remote id, by name, or both.
	NewTransaction struct {
		Name        string
		CategoryID  string
		Category    string
		Amount      Money
		Date        Date
		Description string
	}

	// TransactionPatch carries the fields of a partial transaction update.
	TransactionPatch struct {
		Name        *string
		CategoryID  *string
		Category    *string
		Amount      *Money
		Date        *Date
		Description *string
	}

	Filter struct {
		Type      Kind   `json:"type,omitempty"`
		Category  string `json:"category,omitempty"`
		StartDate *Date  `json:"startDate,omitempty"`
		EndDate   *Date  `json:"endDate,omitempty"`
		MinAmount *Money `json:"minAmount,omitempty"`
		MaxAmount *Money `json:"maxAmount,omitempty"`
		Keyword   string `json:"keyword,omitempty"`
		SortField string `json:"sortField,omitempty"`
		SortOrder string `json:"sortOrder,omitempty"`
	}
)

// Sort fields and orders accepted by Filter. Empty values mean date, desc.
const (
	SortByDate   = "date"
	SortByAmount = "amount"
	SortByName   = "name"

	SortAsc  = "asc"
	SortDesc = "desc"
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Plural returns the REST resource name for the kind ("incomes", "expenses").
func (k Kind) Plural() string {
	return string(k) + "s"
}

// Authenticated reports whether a token is held.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

func (m Mode) String() string {
	return string(m)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD and, for server timestamps, anything starting with it.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	if !c.Type.Valid() {
		return Invalid("type", ErrInvalidKind)
	}
	return nil
}

// SameAs reports whether two categories collide on the (name, type) pair.
func (c Category) SameAs(other Category) bool {
	return c.Type == other.Type &&
		strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(other.Name))
}

func (n NewTransaction) Validate() error {
	if err := n.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if strings.TrimSpace(n.CategoryID) == "" && strings.TrimSpace(n.Category) == "" {
		return Invalid("category", ErrMissingCategory)
	}
	if err := n.Date.Validate(); err != nil {
		return Invalid("date", ErrMissingDate)
	}
	if len(n.Description) > 200 {
		return Invalid("description", errors.New("description too long (max 200 characters)"))
	}
	return nil
}

func (p TransactionPatch) Validate() error {
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return Invalid("amount", err)
		}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return Invalid("date", ErrMissingDate)
		}
	}
	if p.CategoryID != nil && strings.TrimSpace(*p.CategoryID) == "" {
		return Invalid("categoryId", ErrMissingCategory)
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return Invalid("category", ErrMissingCategory)
	}
	return nil
}

// Apply returns t with the patch applied. Category ids are not resolved here.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	return t
}

func (p CategoryPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	if p.Type != nil && !p.Type.Valid() {
		return Invalid("type", ErrInvalidKind)
	}
	return nil
}

func (p CategoryPatch) Apply(c Category) Category {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	return c
}

func (f Filter) Validate() error {
	if f.Type != "" && !f.Type.Valid() {
		return Invalid("type", ErrInvalidKind)
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(f.StartDate.Time) {
		return Invalid("endDate", errors.New("end date must not be before start date"))
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MaxAmount.Cents < f.MinAmount.Cents {
		return Invalid("maxAmount", errors.New("max amount must not be below min amount"))
	}
	switch strings.ToLower(f.SortField) {
	case "", SortByDate, SortByAmount, SortByName:
	default:
		return Invalid("sortField", fmt.Errorf("unknown sort field %q", f.SortField))
	}
	switch strings.ToLower(f.SortOrder) {
	case "", SortAsc, SortDesc:
	default:
		return Invalid("sortOrder", fmt.Errorf("unknown sort order %q", f.SortOrder))
	}
	return nil
}

// Match reports whether t satisfies every criterion set on the filter.
func (f Filter) Match(t Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Category != "" && !strings.EqualFold(f.Category, t.Category) {
		return false
	}
	if f.StartDate != nil && t.Date.Before(f.StartDate.Time) {
		return false
	}
	if f.EndDate != nil && t.Date.After(f.EndDate.Time) {
		return false
	}
	if f.MinAmount != nil && t.Amount.Cents < f.MinAmount.Cents {
		return false
	}
	if f.MaxAmount != nil && t.Amount.Cents > f.MaxAmount.Cents {
		return false
	}
	if f.Keyword != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(f.Keyword)) {
		return false
	}
	return true
}
