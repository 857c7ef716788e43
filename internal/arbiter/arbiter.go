// Package arbiter routes each operation to the remote or the local store and
// owns the one-way REMOTE to LOCAL transition.
package arbiter

import (
	"context"
	"log/slog"

	"moneymanager/internal/core"
)

// ModeState is the mode holder; session.Session implements it.
type ModeState interface {
	Mode() core.Mode
	FallBackToLocal(ctx context.Context) bool
}

type Arbiter struct {
	state      ModeState
	onFallback func(ctx context.Context, cause error)
	logger     *slog.Logger
}

type Option func(*Arbiter)

// OnFallback registers a hook run once per actual REMOTE to LOCAL transition.
func OnFallback(fn func(ctx context.Context, cause error)) Option {
	return func(a *Arbiter) { a.onFallback = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Arbiter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func New(state ModeState, opts ...Option) *Arbiter {
	a := &Arbiter{state: state, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mode returns the current routing mode.
func (a *Arbiter) Mode() core.Mode {
	return a.state.Mode()
}

// Run executes op. In local mode only local runs. In remote mode remote runs;
// a network failure switches to local mode and runs local exactly once. Any
// other remote failure is returned unchanged.
func Run[T any](ctx context.Context, a *Arbiter, op string, remote, local func(context.Context) (T, error)) (T, error) {
	if a.state.Mode() == core.ModeLocal {
		return local(ctx)
	}

	out, err := remote(ctx)
	if err == nil || !core.IsNetworkUnavailable(err) {
		return out, err
	}

	if a.state.FallBackToLocal(ctx) {
		a.logger.WarnContext(ctx, "Remote store unreachable, switching to local mode",
			"operation", op, "error", err)
		if a.onFallback != nil {
			a.onFallback(ctx, err)
		}
	} else {
		a.logger.DebugContext(ctx, "Remote store unreachable, already in local mode", "operation", op)
	}
	return local(ctx)
}

// Exec is Run for operations without a result.
func Exec(ctx context.Context, a *Arbiter, op string, remote, local func(context.Context) error) error {
	_, err := Run(ctx, a, op,
		func(ctx context.Context) (struct{}, error) { return struct{}{}, remote(ctx) },
		func(ctx context.Context) (struct{}, error) { return struct{}{}, local(ctx) },
	)
	return err
}
