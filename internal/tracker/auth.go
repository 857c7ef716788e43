package tracker

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
	"moneymanager/internal/normalize"
	"moneymanager/internal/remote"
)

type authResult struct {
	user  core.UserSummary
	token string
}

// Login authenticates against the remote store. When it is unreachable the
// local credentials are checked instead and the session starts in local mode.
func (t *Tracker) Login(ctx context.Context, email, password string) (core.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return core.Session{}, core.Invalid("credentials", core.ErrMissingCredentials)
	}
	return t.authenticate(ctx, applog.OpLogin,
		func(ctx context.Context) (authResult, error) {
			raw, err := t.remote.Do(ctx, http.MethodPost, remote.PathLogin, map[string]string{
				"email":    email,
				"password": password,
			})
			if err != nil {
				return authResult{}, err
			}
			user, token, err := normalize.Auth(raw, core.UserSummary{Email: email})
			return authResult{user: user, token: token}, err
		},
		func(ctx context.Context) (authResult, error) {
			user, token, err := t.local.Authenticate(ctx, email, password)
			return authResult{user: user, token: token}, err
		})
}

// Register creates an account on the remote store, or a local account when the
// remote store is unreachable.
func (t *Tracker) Register(ctx context.Context, username, email, password string) (core.Session, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || password == "" {
		return core.Session{}, core.Invalid("credentials", core.ErrMissingCredentials)
	}
	return t.authenticate(ctx, applog.OpRegister,
		func(ctx context.Context) (authResult, error) {
			raw, err := t.remote.Do(ctx, http.MethodPost, remote.PathRegister, map[string]string{
				"username": username,
				"fullName": username,
				"email":    email,
				"password": password,
			})
			if err != nil {
				return authResult{}, err
			}
			user, token, err := normalize.Auth(raw, core.UserSummary{Username: username, Email: email})
			return authResult{user: user, token: token}, err
		},
		func(ctx context.Context) (authResult, error) {
			user, token, err := t.local.RegisterUser(ctx, username, email, password)
			return authResult{user: user, token: token}, err
		})
}

// authenticate always tries the remote store first: a fresh login is the only
// way back from local mode.
func (t *Tracker) authenticate(ctx context.Context, op string, remoteFn, localFn func(context.Context) (authResult, error)) (core.Session, error) {
	res, err := remoteFn(ctx)
	mode := core.ModeRemote
	if err != nil {
		if !core.IsNetworkUnavailable(err) {
			t.errs.LogError(ctx, "Authentication failed", err, op, applog.NewFields().WithMode(string(mode)))
			return core.Session{}, err
		}
		t.logger.WarnContext(ctx, "Remote store unreachable, authenticating locally",
			applog.FieldOperation, op, applog.FieldError, err)
		cause := err
		if res, err = localFn(ctx); err != nil {
			t.errs.LogError(ctx, "Local authentication failed", err, op, applog.NewFields().WithMode(string(core.ModeLocal)))
			return core.Session{}, err
		}
		mode = core.ModeLocal
		defer t.onFallback(ctx, cause)
	}

	if op == applog.OpRegister {
		err = t.session.Register(ctx, res.user, res.token)
	} else {
		err = t.session.Login(ctx, res.user, res.token)
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("%s: %w", op, core.ErrInvalidServerResponse)
	}
	if mode == core.ModeLocal {
		// A local token must never reach the remote store.
		t.session.FallBackToLocal(ctx)
	}
	if err := t.local.SetBackendMode(ctx, mode); err != nil {
		t.logger.WarnContext(ctx, "Failed to persist backend mode", applog.FieldError, err)
	}
	t.categories.Purge()

	t.logger.InfoContext(ctx, "Authenticated",
		applog.FieldOperation, op, applog.FieldMode, mode, applog.FieldUserID, res.user.ID)
	return t.session.Current(), nil
}

// Logout clears the session and every cached category list.
func (t *Tracker) Logout(ctx context.Context) {
	t.session.Logout(ctx)
	t.categories.Purge()
	t.logger.InfoContext(ctx, "Logged out")
}
