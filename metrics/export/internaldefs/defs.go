package internaldefs

import (
	goGate "github.com/MrEthical07/goGate"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goGate APIs.
type HistogramDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goGate.MetricLoginSuccess, Name: "gogate_login_success_total", Help: "Successful logins."},
	{ID: goGate.MetricLoginFailure, Name: "gogate_login_failure_total", Help: "Logins rejected as invalid credentials."},
	{ID: goGate.MetricLoginRateLimited, Name: "gogate_login_rate_limited_total", Help: "Logins refused by the attempt budget."},
	{ID: goGate.MetricForgeryRejected, Name: "gogate_forgery_rejected_total", Help: "Submissions with a missing, stale or wrong forgery token."},
	{ID: goGate.MetricSessionEstablished, Name: "gogate_session_established_total", Help: "Sessions bound to an identity."},
	{ID: goGate.MetricSessionDestroyed, Name: "gogate_session_destroyed_total", Help: "Sessions destroyed by logout."},
	{ID: goGate.MetricSessionCorrupt, Name: "gogate_session_corrupt_total", Help: "Undecodable sessions discarded."},
	{ID: goGate.MetricAccessAllowed, Name: "gogate_access_allowed_total", Help: "Authorization decisions that allowed access."},
	{ID: goGate.MetricAccessDeniedUnauthenticated, Name: "gogate_access_denied_unauthenticated_total", Help: "Anonymous requests for protected resources."},
	{ID: goGate.MetricAccessDeniedUnauthorized, Name: "gogate_access_denied_unauthorized_total", Help: "Authenticated requests without a grant."},
	{ID: goGate.MetricCredentialStoreError, Name: "gogate_credential_store_errors_total", Help: "Credential backend failures."},
	{ID: goGate.MetricSessionStoreError, Name: "gogate_session_store_errors_total", Help: "Session backend failures."},
	{ID: goGate.MetricPasswordUpgraded, Name: "gogate_password_upgraded_total", Help: "Password hashes rewritten on login."},
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: goGate.MetricLoginLatency, Name: "gogate_login_latency_seconds", Help: "Engine.Login latency."},
}

// HistogramBounds are the finite upper bounds in seconds; the eighth
// bucket is +Inf.
var HistogramBounds = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
