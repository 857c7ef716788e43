// Package trace stamps outgoing remote-store requests with a request ID and
// keeps call metrics.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// HeaderRequestID carries the request ID to the server.
	HeaderRequestID = "X-Request-ID"
)

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	FailedRequests      int64
	AverageResponseTime int64 // in microseconds
}

// Transport is an http.RoundTripper that sets HeaderRequestID from the request
// context, generating one when absent.
type Transport struct {
	next        http.RoundTripper
	total       atomic.Int64
	failed      atomic.Int64
	totalMicros atomic.Int64
}

// NewTransport wraps next; nil means http.DefaultTransport.
func NewTransport(next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := GetRequestID(req.Context())
	if id == "" {
		id = GenerateRequestID()
	}
	// RoundTrip must not modify the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set(HeaderRequestID, id)

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	t.total.Add(1)
	t.totalMicros.Add(time.Since(start).Microseconds())
	if err != nil || resp.StatusCode >= http.StatusInternalServerError {
		t.failed.Add(1)
	}
	return resp, err
}

// Metrics returns a snapshot of the counters.
func (t *Transport) Metrics() Metrics {
	total := t.total.Load()
	m := Metrics{TotalRequests: total, FailedRequests: t.failed.Load()}
	if total > 0 {
		m.AverageResponseTime = t.totalMicros.Load() / total
	}
	return m
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// WithRequestID returns ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// EnsureRequestID returns ctx unchanged when it already carries an ID, or a
// child context with a fresh one.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := GetRequestID(ctx); id != "" {
		return ctx, id
	}
	id := GenerateRequestID()
	return WithRequestID(ctx, id), id
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
