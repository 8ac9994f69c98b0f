package goGate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGate/internal"
	"github.com/MrEthical07/goGate/session"
)

// ErrSessionNotFound is returned by operations that need an existing
// session when the key has expired or never existed.
var ErrSessionNotFound = errors.New("session not found")

func validSessionID(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	_, err := internal.ParseSessionID(sessionID)
	return err == nil
}

func newSessionID() (string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

// EnsureSession returns sessionID if it names a live session, and otherwise
// creates a fresh anonymous one. Anonymous sessions hold only the forgery
// token, the flash message, and the return-to path.
//
//	Performance: 1 HGETALL (+1 EXPIRE), or 1 MULTI/EXEC on creation.
func (e *Engine) EnsureSession(ctx context.Context, sessionID string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	if validSessionID(sessionID) {
		_, err := e.sessions.Load(ctx, sessionID, e.config.Session.InactivityTimeout)
		switch {
		case err == nil:
			return sessionID, nil
		case errors.Is(err, session.ErrCorrupt):
			e.recordCorrupt(ctx)
		case !errors.Is(err, session.ErrNotFound):
			return "", e.sessionErr("ensure", err)
		}
	}

	sid, err := newSessionID()
	if err != nil {
		return "", err
	}
	if err := e.sessions.Create(ctx, sid, e.config.Session.InactivityTimeout); err != nil {
		return "", e.sessionErr("create", err)
	}
	return sid, nil
}

// Current returns the identity bound to sessionID. Unknown, expired, and
// undecodable sessions are anonymous rather than errors; only a backend
// failure returns an error.
//
//	Performance: 1 HGETALL + 1 EXPIRE when sliding.
func (e *Engine) Current(ctx context.Context, sessionID string) (SessionIdentity, error) {
	if !e.ready() {
		return Anonymous, ErrEngineNotReady
	}
	if !validSessionID(sessionID) {
		return Anonymous, nil
	}

	state, err := e.sessions.Load(ctx, sessionID, e.config.Session.InactivityTimeout)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			return Anonymous, nil
		case errors.Is(err, session.ErrCorrupt):
			e.recordCorrupt(ctx)
			return Anonymous, nil
		default:
			return Anonymous, e.sessionErr("current", err)
		}
	}
	return identityFromSession(state.Identity), nil
}

// Establish binds rec to a brand new session key and deletes priorSessionID
// in the same transaction. Roles are the record's primary role plus
// whatever the store's role source adds; details come from the store's
// details source. Nothing from the prior session is carried over.
//
//	Performance: role and detail lookups, then 1 MULTI/EXEC.
func (e *Engine) Establish(ctx context.Context, priorSessionID string, rec IdentityRecord, rememberMe bool) (string, SessionIdentity, error) {
	if !e.ready() {
		return "", Anonymous, ErrEngineNotReady
	}
	if rec.Identity == "" {
		return "", Anonymous, ErrIdentityNotFound
	}

	roles, err := e.resolveRoles(ctx, rec)
	if err != nil {
		return "", Anonymous, err
	}
	details, err := e.credentials.ResolveDetails(ctx, rec.Identity)
	if err != nil {
		return "", Anonymous, e.credentialErr(ctx, "details", rec.Identity, err)
	}

	ttl := e.config.Session.InactivityTimeout
	if rememberMe {
		ttl = e.config.Session.RememberMeDuration
	}

	sid, err := newSessionID()
	if err != nil {
		return "", Anonymous, err
	}

	id := &session.Identity{
		UserID:        rec.ID,
		Identity:      rec.Identity,
		Role:          rec.Role,
		Roles:         roles,
		Active:        rec.Active,
		Details:       details,
		RememberMe:    rememberMe,
		IdleTTL:       ttl,
		EstablishedAt: time.Now().Unix(),
	}

	prior := priorSessionID
	if !validSessionID(prior) {
		prior = ""
	}
	if err := e.sessions.Establish(ctx, prior, sid, id); err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			return "", Anonymous, e.sessionErr("establish", err)
		}
		return "", Anonymous, fmt.Errorf("establish session: %w", err)
	}

	e.metricInc(MetricSessionEstablished)
	return sid, identityFromSession(id), nil
}

// resolveRoles returns the primary role followed by any extra roles, with
// duplicates and blanks removed.
func (e *Engine) resolveRoles(ctx context.Context, rec IdentityRecord) ([]string, error) {
	extra, err := e.credentials.ResolveRoles(ctx, rec.Identity)
	if err != nil {
		return nil, e.credentialErr(ctx, "roles", rec.Identity, err)
	}

	roles := make([]string, 0, 1+len(extra))
	seen := make(map[string]struct{}, 1+len(extra))
	for _, r := range append([]string{rec.Role}, extra...) {
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	return roles, nil
}

// Destroy removes the session. It is idempotent: unknown or malformed keys
// succeed.
func (e *Engine) Destroy(ctx context.Context, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !validSessionID(sessionID) {
		return nil
	}

	identity, _ := e.Current(ctx, sessionID)
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return e.sessionErr("destroy", err)
	}

	e.metricInc(MetricSessionDestroyed)
	if !identity.IsAnonymous() {
		e.emitAudit(ctx, auditEventLogout, true, identity.UserID, identity.Identity, nil, nil)
	}
	return nil
}

// SessionTTL returns how long a cookie for identity should live.
func (e *Engine) SessionTTL(identity SessionIdentity) time.Duration {
	if identity.IdleTTL > 0 {
		return identity.IdleTTL
	}
	return e.config.Session.InactivityTimeout
}

func (e *Engine) recordCorrupt(ctx context.Context) {
	e.metricInc(MetricSessionCorrupt)
	e.logger.Warn().Msg("discarded undecodable session")
	e.emitAudit(ctx, auditEventSessionRecovered, false, 0, "", nil, nil)
}
