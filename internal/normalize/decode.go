package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"moneymanager/internal/core"
)

// Transaction is a decoded remote transaction. CategoryID is the remote
// category reference; Category may still be empty when the server only sent
// the id.
type Transaction struct {
	core.Transaction
	CategoryID string
}

// flexID accepts ids encoded as JSON numbers or strings.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

// flexDate accepts "YYYY-MM-DD", timestamps starting with it, and [y, m, d].
type flexDate core.Date

func (d *flexDate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*d = flexDate{}
		return nil
	case b[0] == '[':
		var parts []int
		if err := json.Unmarshal(b, &parts); err != nil || len(parts) < 3 {
			return fmt.Errorf("invalid date array %s", b)
		}
		*d = flexDate(core.NewDate(parts[0], parts[1], parts[2]))
		return nil
	default:
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("date must be a string: %w", err)
		}
		if s == "" {
			*d = flexDate{}
			return nil
		}
		parsed, err := core.ParseDate(s)
		if err != nil {
			return err
		}
		*d = flexDate(parsed)
		return nil
	}
}

// categoryRef is the "category" field, which servers send as a name, an id or
// an embedded category object.
type categoryRef struct {
	ID   string
	Name string
}

func (c *categoryRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '"':
		return json.Unmarshal(b, &c.Name)
	case b[0] == '{':
		var obj struct {
			ID   flexID `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		c.ID, c.Name = string(obj.ID), obj.Name
		return nil
	default:
		var id flexID
		if err := id.UnmarshalJSON(b); err != nil {
			return err
		}
		c.ID = string(id)
		return nil
	}
}

type wireTransaction struct {
	ID           flexID      `json:"id"`
	Type         string      `json:"type"`
	Name         string      `json:"name"`
	CategoryID   flexID      `json:"categoryId"`
	CategoryName string      `json:"categoryName"`
	Category     categoryRef `json:"category"`
	Amount       core.Money  `json:"amount"`
	Date         flexDate    `json:"date"`
	Description  string      `json:"description"`
}

func (w wireTransaction) toTransaction(kind core.Kind) Transaction {
	t := Transaction{
		Transaction: core.Transaction{
			ID:          string(w.ID),
			Type:        kind,
			Name:        w.Name,
			Amount:      w.Amount,
			Date:        core.Date(w.Date),
			Description: w.Description,
		},
		CategoryID: string(w.CategoryID),
	}
	if k := core.Kind(strings.ToLower(w.Type)); k.Valid() {
		t.Type = k
	}
	if t.CategoryID == "" {
		t.CategoryID = w.Category.ID
	}
	switch {
	case w.CategoryName != "":
		t.Category = w.CategoryName
	case w.Category.Name != "":
		t.Category = w.Category.Name
	}
	return t
}

type wireCategory struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

func (w wireCategory) toCategory() core.Category {
	return core.Category{
		ID:    string(w.ID),
		Name:  w.Name,
		Type:  core.Kind(strings.ToLower(w.Type)),
		Color: w.Color,
	}
}

type wireUser struct {
	ID       flexID `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

func (w wireUser) summary(fallback core.UserSummary) core.UserSummary {
	u := core.UserSummary{ID: string(w.ID), Email: w.Email}
	for _, name := range []string{w.Username, w.FullName, w.Name} {
		if name != "" {
			u.Username = name
			break
		}
	}
	if u.Email == "" {
		u.Email = fallback.Email
	}
	if u.Username == "" {
		u.Username = fallback.Username
	}
	if u.ID == "" {
		u.ID = fallback.ID
	}
	return synthesizeUser(u)
}

// Transactions decodes a transaction listing. kind is both the envelope key
// and the type assigned to elements that do not carry one; an empty kind reads
// a mixed "transactions" listing whose untyped elements default to expenses.
func Transactions(kind core.Kind, raw json.RawMessage) ([]Transaction, error) {
	envelope, def := envelopeFor(kind)
	var items []wireTransaction
	if err := json.Unmarshal(Collection(envelope, raw), &items); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", envelope, err, core.ErrInvalidServerResponse)
	}
	out := make([]Transaction, 0, len(items))
	for _, w := range items {
		out = append(out, w.toTransaction(def))
	}
	return out, nil
}

// DecodeTransaction decodes a create or update response.
func DecodeTransaction(kind core.Kind, raw json.RawMessage) (Transaction, error) {
	envelope, def := envelopeFor(kind)
	obj, err := Object(envelope, raw)
	if err != nil {
		return Transaction{}, err
	}
	var w wireTransaction
	if err := json.Unmarshal(obj, &w); err != nil {
		return Transaction{}, fmt.Errorf("decode %s: %v: %w", Singular(envelope), err, core.ErrInvalidServerResponse)
	}
	if w.ID == "" {
		return Transaction{}, fmt.Errorf("%s without id: %w", Singular(envelope), core.ErrInvalidServerResponse)
	}
	return w.toTransaction(def), nil
}

// Categories decodes a category listing and fills missing colors by position.
func Categories(raw json.RawMessage) ([]core.Category, error) {
	var items []wireCategory
	if err := json.Unmarshal(Collection(KindCategories, raw), &items); err != nil {
		return nil, fmt.Errorf("decode categories: %v: %w", err, core.ErrInvalidServerResponse)
	}
	out := make([]core.Category, 0, len(items))
	for _, w := range items {
		out = append(out, w.toCategory())
	}
	return core.FillColors(out), nil
}

// DecodeCategory decodes a create or update response.
func DecodeCategory(raw json.RawMessage) (core.Category, error) {
	obj, err := Object(KindCategories, raw)
	if err != nil {
		return core.Category{}, err
	}
	var w wireCategory
	if err := json.Unmarshal(obj, &w); err != nil {
		return core.Category{}, fmt.Errorf("decode category: %v: %w", err, core.ErrInvalidServerResponse)
	}
	if w.ID == "" {
		return core.Category{}, fmt.Errorf("category without id: %w", core.ErrInvalidServerResponse)
	}
	return w.toCategory(), nil
}

// NumericID converts a remote id to the number the REST API expects in
// request bodies; non-numeric ids are sent as strings.
func NumericID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func envelopeFor(kind core.Kind) (string, core.Kind) {
	if kind.Valid() {
		return kind.Plural(), kind
	}
	return KindTransactions, core.Expense
}
