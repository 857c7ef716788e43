// Package remote is the HTTP client of the authoritative REST store. It
// classifies every failure and never falls back to local data.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
	"moneymanager/internal/trace"
)

const (
	PathLogin      = "/login"
	PathRegister   = "/register"
	PathIncomes    = "/incomes"
	PathExpenses   = "/expenses"
	PathCategories = "/categories"
	PathFilter     = "/filter"
)

const DefaultTimeout = 10 * time.Second

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	timeout        time.Duration
	onUnauthorized func(ctx context.Context)
	logger         *slog.Logger
	calls          *applog.StructuredLogger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Wrap its transport with
// trace.NewTransport to keep request IDs.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every request. An elapsed timeout is a network failure.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// OnUnauthorized registers the teardown hook run on every 401.
func OnUnauthorized(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: trace.NewTransport(nil)},
		tokens:     tokens,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.calls = applog.NewStructuredLogger(c.logger)
	return c
}

// Metrics reports the request counters of the default transport, or zero
// values when WithHTTPClient replaced it.
func (c *Client) Metrics() trace.Metrics {
	if tr, ok := c.httpClient.Transport.(*trace.Transport); ok {
		return tr.Metrics()
	}
	return trace.Metrics{}
}

// SetUnauthorizedHook replaces the 401 teardown hook after construction.
func (c *Client) SetUnauthorizedHook(fn func(ctx context.Context)) {
	c.onUnauthorized = fn
}

// Authenticated reports whether path carries the bearer token.
func Authenticated(path string) bool {
	p := strings.TrimRight(path, "/")
	return p != PathLogin && p != PathRegister
}

// Do sends body (if non-nil) as JSON and returns the raw response body.
// Failures are *core.RemoteError values, except a cancelled caller context,
// which is returned as is.
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	ctx, _ = trace.EnsureRequestID(ctx)
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if Authenticated(path) && c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		rerr := &core.RemoteError{Kind: core.ErrNetworkUnavailable, Err: err}
		c.calls.LogRemoteCall(ctx, method, path, 0, time.Since(start), rerr)
		return nil, rerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		rerr := &core.RemoteError{Kind: core.ErrNetworkUnavailable, Err: fmt.Errorf("read body: %w", err)}
		c.calls.LogRemoteCall(ctx, method, path, 0, time.Since(start), rerr)
		return nil, rerr
	}

	if resp.StatusCode >= http.StatusBadRequest {
		rerr := classify(resp.StatusCode, raw)
		c.calls.LogRemoteCall(ctx, method, path, resp.StatusCode, time.Since(start), rerr)
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return nil, rerr
	}

	c.calls.LogRemoteCall(ctx, method, path, resp.StatusCode, time.Since(start), nil)
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(raw), nil
}

func classify(status int, body []byte) *core.RemoteError {
	kind := core.ErrRejected
	if status == http.StatusUnauthorized {
		kind = core.ErrUnauthorized
	}
	msg := ServerMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &core.RemoteError{Kind: kind, Status: status, Message: msg}
}

// ServerMessage extracts the first non-empty of "message", "error" and "msg"
// from a JSON error body.
func ServerMessage(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, name := range []string{"message", "error", "msg"} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// IsUnauthorized reports whether err is a classified 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, core.ErrUnauthorized)
}
