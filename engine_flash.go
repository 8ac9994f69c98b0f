package goGate

import (
	"context"
	"net/url"
	"strings"

	"github.com/MrEthical07/goGate/session"
)

// User-facing flash messages. Their text never depends on which check
// failed beyond these three classes.
const (
	FlashInvalidRequest     = "invalid request"
	FlashInvalidCredentials = "invalid credentials"
	FlashRateLimited        = "too many attempts, try again later"
)

// SetFlash stores a one-shot message for the next render. A missing
// session is silently ignored.
func (e *Engine) SetFlash(ctx context.Context, sessionID, message string) error {
	return e.setField(ctx, sessionID, session.FieldFlash, message, "set_flash")
}

// PopFlash returns the pending flash message and clears it.
func (e *Engine) PopFlash(ctx context.Context, sessionID string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if !validSessionID(sessionID) {
		return "", nil
	}
	msg, err := e.sessions.Pop(ctx, sessionID, session.FieldFlash)
	if err != nil {
		return "", e.sessionErr("pop_flash", err)
	}
	return msg, nil
}

// RememberNext records the path an anonymous caller was denied so a later
// login can return there. Non-local targets and the login and logout
// routes themselves are dropped.
func (e *Engine) RememberNext(ctx context.Context, sessionID, target string) error {
	if !isLocalPath(target) || isLoginRoute(target, e.config.Login) {
		return nil
	}
	return e.setField(ctx, sessionID, session.FieldNext, target, "remember_next")
}

func (e *Engine) setField(ctx context.Context, sessionID string, field session.Field, value, op string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !validSessionID(sessionID) {
		return nil
	}
	if _, err := e.sessions.Set(ctx, sessionID, field, value); err != nil {
		return e.sessionErr(op, err)
	}
	return nil
}

// isLocalPath accepts absolute paths on this host only. Scheme-relative
// ("//evil") and backslash tricks are rejected.
func isLocalPath(target string) bool {
	if target == "" || target[0] != '/' {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.ContainsAny(target, "\\\r\n") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

func isLoginRoute(target string, cfg LoginConfig) bool {
	path := target
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return path == cfg.Path || path == cfg.LogoutPath
}
