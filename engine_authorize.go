package goGate

import (
	"context"

	"github.com/MrEthical07/goGate/permission"
)

// Authorize decides whether identity may reach resource. The decision is a
// pure function of the identity's roles and the frozen policy: anonymous
// callers on protected resources are sent to the login path, authenticated
// callers without a grant are denied, and unknown resources are denied.
func (e *Engine) Authorize(identity SessionIdentity, resource string) Decision {
	if e == nil || e.policy == nil {
		return Decision{Redirect: "/", Reason: permission.ReasonUnknownResource}
	}

	d := e.policy.Authorize(identity.subject(), resource)
	switch {
	case d.Allowed:
		e.metricInc(MetricAccessAllowed)
	case d.Reason == permission.ReasonUnauthenticated:
		e.metricInc(MetricAccessDeniedUnauthenticated)
	default:
		e.metricInc(MetricAccessDeniedUnauthorized)
	}
	return d
}

// IsGranted is Authorize reduced to a bool, for templates.
func (e *Engine) IsGranted(identity SessionIdentity, resource string) bool {
	return e.Authorize(identity, resource).Allowed
}

// AuthorizeErr returns nil, ErrUnauthenticated or ErrUnauthorized for a
// decision, and records an audit event for denials.
func (e *Engine) AuthorizeErr(ctx context.Context, identity SessionIdentity, resource string) (Decision, error) {
	d := e.Authorize(identity, resource)
	if d.Allowed {
		return d, nil
	}

	err := ErrUnauthorized
	if d.Reason == permission.ReasonUnauthenticated {
		err = ErrUnauthenticated
	}
	e.emitAudit(ctx, auditEventAccessDenied, false, identity.UserID, identity.Identity, err, func() map[string]string {
		return map[string]string{"resource": resource, "reason": d.Reason.String()}
	})
	return d, err
}
