// Package normalize maps the envelopes returned by the remote store onto one
// canonical shape per resource. Each resource has an ordered list of matchers;
// the first structural match wins.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"moneymanager/internal/core"
)

// Resource kinds as they appear in envelopes.
const (
	KindIncomes      = "incomes"
	KindExpenses     = "expenses"
	KindCategories   = "categories"
	KindTransactions = "transactions"
)

type (
	collectionMatcher func(kind string, raw json.RawMessage) (json.RawMessage, bool)
	objectMatcher     func(kind string, raw json.RawMessage) (json.RawMessage, bool)
	authMatcher       func(raw json.RawMessage) (token string, user json.RawMessage, ok bool)
)

var collectionShapes = []collectionMatcher{
	// [...]
	func(_ string, raw json.RawMessage) (json.RawMessage, bool) {
		return raw, isArray(raw)
	},
	// {"<kind>": [...]}
	func(kind string, raw json.RawMessage) (json.RawMessage, bool) {
		v := field(raw, kind)
		return v, isArray(v)
	},
	// {"data": [...]}
	func(_ string, raw json.RawMessage) (json.RawMessage, bool) {
		v := field(raw, "data")
		return v, isArray(v)
	},
	// {"success": ..., "data": {"<kind>": [...]}}
	func(kind string, raw json.RawMessage) (json.RawMessage, bool) {
		if field(raw, "success") == nil {
			return nil, false
		}
		v := field(field(raw, "data"), kind)
		return v, isArray(v)
	},
}

var objectShapes = []objectMatcher{
	// {"id": ..., ...}
	func(_ string, raw json.RawMessage) (json.RawMessage, bool) {
		return raw, isObject(raw) && field(raw, "id") != nil
	},
	// {"<singular>": {...}}
	func(kind string, raw json.RawMessage) (json.RawMessage, bool) {
		v := field(raw, Singular(kind))
		return v, isObject(v)
	},
	// {"data": {"id": ..., ...}}
	func(_ string, raw json.RawMessage) (json.RawMessage, bool) {
		v := field(raw, "data")
		return v, isObject(v) && field(v, "id") != nil
	},
	// {"success": ..., "data": {"<singular>": {...}}}
	func(kind string, raw json.RawMessage) (json.RawMessage, bool) {
		if field(raw, "success") == nil {
			return nil, false
		}
		v := field(field(raw, "data"), Singular(kind))
		return v, isObject(v)
	},
}

var authShapes = []authMatcher{
	// {"token": ..., "user": {...}}
	func(raw json.RawMessage) (string, json.RawMessage, bool) {
		tok, user := stringField(raw, "token"), field(raw, "user")
		return tok, user, tok != "" && isObject(user)
	},
	// {"success": ..., "token": ..., "data": {"user": {...}}}
	func(raw json.RawMessage) (string, json.RawMessage, bool) {
		if field(raw, "success") == nil {
			return "", nil, false
		}
		tok := stringField(raw, "token")
		return tok, field(field(raw, "data"), "user"), tok != ""
	},
	// {"accessToken": ..., "user": {...}}
	func(raw json.RawMessage) (string, json.RawMessage, bool) {
		tok := stringField(raw, "accessToken")
		return tok, field(raw, "user"), tok != ""
	},
	// {"data": {"token": ..., "user": {...}}}
	func(raw json.RawMessage) (string, json.RawMessage, bool) {
		data := field(raw, "data")
		tok := stringField(data, "token")
		return tok, field(data, "user"), tok != ""
	},
}

// Collection returns the array carried by raw, or an empty array when no
// recognized shape matches.
func Collection(kind string, raw json.RawMessage) json.RawMessage {
	for _, match := range collectionShapes {
		if v, ok := match(kind, raw); ok {
			return v
		}
	}
	return json.RawMessage("[]")
}

// Object returns the single resource carried by raw. Unrecognized shapes fail
// with core.ErrInvalidServerResponse.
func Object(kind string, raw json.RawMessage) (json.RawMessage, error) {
	for _, match := range objectShapes {
		if v, ok := match(kind, raw); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%s response: %w", Singular(kind), core.ErrInvalidServerResponse)
}

// Auth extracts the token and user of a login or register response. When the
// response carries a token but no user, the user is built from fallback, the
// values the caller submitted.
func Auth(raw json.RawMessage, fallback core.UserSummary) (core.UserSummary, string, error) {
	bare := ""
	for _, match := range authShapes {
		tok, userRaw, ok := match(raw)
		if !ok {
			continue
		}
		if isObject(userRaw) {
			var u wireUser
			if err := json.Unmarshal(userRaw, &u); err == nil {
				return u.summary(fallback), tok, nil
			}
		}
		if bare == "" {
			bare = tok
		}
	}
	if bare == "" {
		bare = stringField(raw, "token")
	}
	if bare != "" {
		return synthesizeUser(fallback), bare, nil
	}
	return core.UserSummary{}, "", fmt.Errorf("auth response without token: %w", core.ErrInvalidServerResponse)
}

// Singular maps a collection kind onto the envelope key of one element.
func Singular(kind string) string {
	switch kind {
	case KindCategories:
		return "category"
	case KindTransactions:
		return "transaction"
	default:
		return strings.TrimSuffix(kind, "s")
	}
}

func synthesizeUser(in core.UserSummary) core.UserSummary {
	out := in
	if out.Username == "" {
		out.Username = usernameFromEmail(out.Email)
	}
	if out.ID == "" {
		out.ID = out.Email
	}
	return out
}

func usernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

func field(raw json.RawMessage, name string) json.RawMessage {
	if !isObject(raw) {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	v, ok := obj[name]
	if !ok || isNull(v) {
		return nil
	}
	return v
}

func stringField(raw json.RawMessage, name string) string {
	v := field(raw, name)
	if v == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func isArray(raw json.RawMessage) bool {
	return firstByte(raw) == '[' && json.Valid(raw)
}

func isObject(raw json.RawMessage) bool {
	return firstByte(raw) == '{'
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func firstByte(raw json.RawMessage) byte {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
