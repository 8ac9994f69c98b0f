// Package prometheus exports goGate engine metrics through
// prometheus/client_golang.
//
// [NewCollector] wraps anything with MetricsSnapshot and AuditDropped,
// usually a *goGate.Engine. Counters are named gogate_*_total and the
// login latency histogram is gogate_login_latency_seconds. [Handler]
// serves a private registry; callers that already run a registry can
// register the collector themselves.
package prometheus
