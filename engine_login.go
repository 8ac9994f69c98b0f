package goGate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/session"
)

// Login verifies req and, on success, establishes a new session that
// replaces req.SessionID.
//
// A missing identity, a wrong secret, and (with RequireActive) an inactive
// record all return ErrInvalidCredentials; the distinction only reaches
// audit events. A missing identity still pays for one hash verification.
// ErrStoreUnavailable and ErrSessionStoreUnavailable signal outages and are
// never retried here. The forgery token is checked by the caller before
// Login runs.
//
//	Performance: 1 rate check, 1 store lookup, 1 hash verification,
//	role/detail lookups and 1 MULTI/EXEC on success.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(start)) }()
	}

	ip := clientIPFromContext(ctx)

	if err := e.rateLimiter.CheckLogin(ctx, req.Identity, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.rateLimited(ctx, 0, req.Identity)
			return nil, ErrLoginRateLimited
		}
		return nil, e.sessionErr("rate_check", err)
	}

	rec, err := e.credentials.FindByIdentity(ctx, req.Identity)
	if err != nil {
		err = e.credentialErr(ctx, "find", req.Identity, err)
		if !errors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}
		e.verifier.Decoy(req.Secret)
		return nil, e.failLogin(ctx, 0, req.Identity, ErrIdentityNotFound)
	}

	if !e.verifier.Verify(req.Secret, rec.SecretHash) {
		return nil, e.failLogin(ctx, rec.ID, req.Identity, ErrVerificationFailed)
	}
	if e.config.Security.RequireActive && !rec.Active {
		return nil, e.failLogin(ctx, rec.ID, req.Identity, ErrIdentityInactive)
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradeHash(ctx, rec, req.Secret)
	}

	next := ""
	if validSessionID(req.SessionID) {
		next, err = e.sessions.Get(ctx, req.SessionID, session.FieldNext)
		if err != nil {
			return nil, e.sessionErr("read_next", err)
		}
	}

	sid, identity, err := e.Establish(ctx, req.SessionID, rec, req.RememberMe)
	if err != nil {
		return nil, err
	}

	if err := e.rateLimiter.ResetLogin(ctx, req.Identity); err != nil {
		e.logger.Warn().Err(err).Msg("login counter reset failed")
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.ID, rec.Identity, nil, func() map[string]string {
		return map[string]string{"remember_me": boolString(req.RememberMe)}
	})

	redirect := e.config.Login.DefaultLanding
	if isLocalPath(next) {
		redirect = next
	}
	return &LoginResult{
		SessionID: sid,
		Identity:  identity,
		Redirect:  redirect,
		TTL:       identity.IdleTTL,
	}, nil
}

// failLogin records the real reason and returns the uniform error. The
// attempt counts against the identity (and IP) budget.
func (e *Engine) failLogin(ctx context.Context, userID int64, identity string, reason error) error {
	if err := e.rateLimiter.IncrementLogin(ctx, identity, clientIPFromContext(ctx)); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.logger.Warn().Err(err).Msg("login counter increment failed")
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, identity, reason, nil)
	return ErrInvalidCredentials
}

func (e *Engine) rateLimited(ctx context.Context, userID int64, identity string) {
	e.metricInc(MetricLoginRateLimited)
	e.logger.Warn().Str("ip", clientIPFromContext(ctx)).Msg("login rate limited")
	e.emitAudit(ctx, auditEventLoginRateLimited, false, userID, identity, ErrLoginRateLimited, nil)
}

// upgradeHash rewrites an outdated hash. It is best-effort and never fails
// the login.
func (e *Engine) upgradeHash(ctx context.Context, rec IdentityRecord, secret string) {
	if !e.verifier.NeedsUpgrade(rec.SecretHash) {
		return
	}
	updater, ok := e.credentials.(HashUpdater)
	if !ok {
		return
	}
	upgraded, err := e.verifier.Hash(secret)
	if err != nil {
		e.logger.Warn().Err(err).Msg("password hash upgrade generation failed")
		return
	}
	if err := updater.UpdateSecretHash(ctx, rec.ID, upgraded); err != nil {
		e.logger.Warn().Err(err).Int64("user_id", rec.ID).Msg("password hash upgrade update failed")
		return
	}
	e.metricInc(MetricPasswordUpgraded)
	e.emitAudit(ctx, auditEventPasswordUpgraded, true, rec.ID, rec.Identity, nil, nil)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// RejectLoginForm records a submission whose fields failed validation
// before any lookup ran. It returns ErrInvalidLoginForm.
func (e *Engine) RejectLoginForm(ctx context.Context, identity string) error {
	if len(identity) > 255 {
		identity = strings.ToValidUTF8(identity[:255], "")
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFormRejected, false, 0, identity, ErrInvalidLoginForm, nil)
	return ErrInvalidLoginForm
}
