package goGate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGate/credentials"
	internalaudit "github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/session"
	"github.com/rs/zerolog"
)

// Engine defines a public type used by goGate APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	logger      zerolog.Logger
	policy      Authorizer
	credentials CredentialStore
	verifier    *password.Verifier
	sessions    *session.Store
	rateLimiter *rate.Limiter
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Ping checks the session backend.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.sessions.Ping(ctx)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrSessionStoreUnavailable, err)
	}
	return d, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.sessions != nil && e.credentials != nil && e.verifier != nil && e.policy != nil
}

// credentialErr maps a store error onto the public sentinels. Anything that
// is not a clean miss is treated as an outage.
func (e *Engine) credentialErr(ctx context.Context, op, identity string, err error) error {
	if errors.Is(err, credentials.ErrNotFound) {
		return ErrIdentityNotFound
	}
	e.metricInc(MetricCredentialStoreError)
	e.logger.Error().Err(err).Str("op", op).Msg("credential store failure")
	e.emitAudit(ctx, auditEventStoreUnavailable, false, 0, identity, ErrStoreUnavailable, func() map[string]string {
		return map[string]string{"op": op}
	})
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) sessionErr(op string, err error) error {
	e.metricInc(MetricSessionStoreError)
	e.logger.Error().Err(err).Str("op", op).Msg("session store failure")
	return fmt.Errorf("%w: %v", ErrSessionStoreUnavailable, err)
}
