package goGate

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventLoginRateLimited  = "login_rate_limited"
	auditEventForgeryRejected   = "forgery_token_rejected"
	auditEventLogout            = "logout"
	auditEventAccessDenied      = "access_denied"
	auditEventStoreUnavailable  = "store_unavailable"
	auditEventPasswordUpgraded  = "password_hash_upgraded"
	auditEventSessionRecovered  = "session_corrupt_discarded"
	auditEventLoginFormRejected = "login_form_rejected"
)

// AuditErrorCode defines a public type used by goGate APIs.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrIdentityNotFound   AuditErrorCode = "identity_not_found"
	auditErrVerificationFailed AuditErrorCode = "verification_failed"
	auditErrIdentityInactive   AuditErrorCode = "identity_inactive"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrForgeryMismatch    AuditErrorCode = "forgery_token_mismatch"
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInvalidForm        AuditErrorCode = "invalid_form"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// emitAudit queues an event. The metadata builder only runs when audit is
// enabled so callers pay nothing otherwise.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	identity string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Identity:  identity,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Reason = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIdentityNotFound):
		return auditErrIdentityNotFound
	case errors.Is(err, ErrVerificationFailed):
		return auditErrVerificationFailed
	case errors.Is(err, ErrIdentityInactive):
		return auditErrIdentityInactive
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrForgeryTokenMismatch):
		return auditErrForgeryMismatch
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrSessionStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrInvalidLoginForm):
		return auditErrInvalidForm
	default:
		return auditErrInternal
	}
}
