package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

type apiCategory struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color,omitempty"`
}

type apiTransaction struct {
	ID          int     `json:"id"`
	Type        string  `json:"type,omitempty"`
	Name        string  `json:"name,omitempty"`
	CategoryID  int     `json:"categoryId"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
}

// fakeAPI is an in-memory rendition of the REST surface. Each resource answers
// with a different envelope so the normalizer is exercised end to end.
type fakeAPI struct {
	mu           sync.Mutex
	nextID       int
	token        string
	loginBody    string
	categories   []apiCategory
	transactions map[string][]apiTransaction
	failures     map[string]int
	calls        map[string]int
	lastBody     map[string]map[string]any
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{
		token:        "good",
		transactions: map[string][]apiTransaction{"incomes": nil, "expenses": nil},
		failures:     map[string]int{},
		calls:        map[string]int{},
		lastBody:     map[string]map[string]any{},
	}
	srv := httptest.NewServer(api.routes())
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) fail(method, path string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[method+" "+path] = status
}

func (a *fakeAPI) callCount(method, path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[method+" "+path]
}

func (a *fakeAPI) body(method, path string) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastBody[method+" "+path]
}

func (a *fakeAPI) addCategory(name, kind, color string) apiCategory {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	c := apiCategory{ID: a.nextID, Name: name, Type: kind, Color: color}
	a.categories = append(a.categories, c)
	return c
}

func (a *fakeAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(a.record)
	r.Post("/login", a.login)
	r.Post("/register", a.login)
	r.Group(func(r chi.Router) {
		r.Use(a.requireToken)
		r.Get("/categories", a.listCategories)
		r.Post("/categories", a.createCategory)
		r.Put("/categories/{id}", a.updateCategory)
		r.Delete("/categories/{id}", a.deleteCategory)
		for _, kind := range []string{"incomes", "expenses"} {
			kind := kind
			r.Get("/"+kind, func(w http.ResponseWriter, r *http.Request) { a.listTransactions(w, kind) })
			r.Post("/"+kind, func(w http.ResponseWriter, r *http.Request) { a.createTransaction(w, r, kind) })
			r.Put("/"+kind+"/{id}", func(w http.ResponseWriter, r *http.Request) { a.updateTransaction(w, r, kind) })
			r.Delete("/"+kind+"/{id}", func(w http.ResponseWriter, r *http.Request) { a.deleteTransaction(w, r, kind) })
		}
		r.Post("/filter", a.filter)
	})
	return r
}

func (a *fakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		var body map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		a.mu.Lock()
		a.calls[key]++
		a.lastBody[key] = body
		status, failing := a.failures[key]
		a.mu.Unlock()

		if failing {
			writeJSON(w, status, map[string]string{"message": fmt.Sprintf("forced failure %d", status)})
			return
		}
		r.Body = http.NoBody
		if body != nil {
			raw, _ := json.Marshal(body)
			r.Body = io.NopCloser(bytes.NewReader(raw))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *fakeAPI) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		want := "Bearer " + a.token
		a.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	a.mu.Lock()
	body, token := a.loginBody, a.token
	a.mu.Unlock()
	if body != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
		return
	}
	if in.Password != "pw" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"data":    map[string]any{"user": map[string]any{"id": 1, "username": "ann", "email": in.Email}},
	})
}

func (a *fakeAPI) listCategories(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"categories": append([]apiCategory{}, a.categories...)})
}

func (a *fakeAPI) createCategory(w http.ResponseWriter, r *http.Request) {
	var c apiCategory
	_ = json.NewDecoder(r.Body).Decode(&c)
	a.mu.Lock()
	a.nextID++
	c.ID = a.nextID
	a.categories = append(a.categories, c)
	a.mu.Unlock()
	writeJSON(w, http.StatusCreated, c)
}

func (a *fakeAPI) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	var patch map[string]string
	_ = json.NewDecoder(r.Body).Decode(&patch)
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.categories {
		if a.categories[i].ID != id {
			continue
		}
		if v, ok := patch["name"]; ok {
			a.categories[i].Name = v
		}
		if v, ok := patch["type"]; ok {
			a.categories[i].Type = v
		}
		if v, ok := patch["color"]; ok {
			a.categories[i].Color = v
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": a.categories[i]})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "category not found"})
}

func (a *fakeAPI) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.categories {
		if a.categories[i].ID == id {
			a.categories = append(a.categories[:i], a.categories[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "category not found"})
}

func (a *fakeAPI) listTransactions(w http.ResponseWriter, kind string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	items := append([]apiTransaction{}, a.transactions[kind]...)
	if kind == "incomes" {
		writeJSON(w, http.StatusOK, map[string]any{"data": items})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *fakeAPI) createTransaction(w http.ResponseWriter, r *http.Request, kind string) {
	var tx apiTransaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	a.mu.Lock()
	a.nextID++
	tx.ID = a.nextID
	a.transactions[kind] = append(a.transactions[kind], tx)
	a.mu.Unlock()
	singular := kind[:len(kind)-1]
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{singular: tx}})
}

func (a *fakeAPI) updateTransaction(w http.ResponseWriter, r *http.Request, kind string) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	var patch apiTransaction
	_ = json.NewDecoder(r.Body).Decode(&patch)
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, tx := range a.transactions[kind] {
		if tx.ID != id {
			continue
		}
		if patch.Amount != 0 {
			tx.Amount = patch.Amount
		}
		if patch.CategoryID != 0 {
			tx.CategoryID = patch.CategoryID
		}
		if patch.Name != "" {
			tx.Name = patch.Name
		}
		a.transactions[kind][i] = tx
		writeJSON(w, http.StatusOK, tx)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
}

func (a *fakeAPI) deleteTransaction(w http.ResponseWriter, r *http.Request, kind string) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	a.mu.Lock()
	defer a.mu.Unlock()
	items := a.transactions[kind]
	for i := range items {
		if items[i].ID == id {
			a.transactions[kind] = append(items[:i], items[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
}

func (a *fakeAPI) filter(w http.ResponseWriter, r *http.Request) {
	var f struct {
		Type      string   `json:"type"`
		MinAmount *float64 `json:"minAmount"`
	}
	_ = json.NewDecoder(r.Body).Decode(&f)
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []apiTransaction
	for _, kind := range []string{"incomes", "expenses"} {
		typ := kind[:len(kind)-1]
		if f.Type != "" && f.Type != typ {
			continue
		}
		for _, tx := range a.transactions[kind] {
			if f.MinAmount != nil && tx.Amount < *f.MinAmount {
				continue
			}
			tx.Type = typ
			out = append(out, tx)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
