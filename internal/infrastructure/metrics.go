package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the service's Prometheus collectors around one registry.
type Metrics struct {
	Registry *prometheus.Registry

	// VerifyTotal counts verdicts by outcome: success, client_input, auth,
	// not_found, policy, infrastructure, malformed.
	VerifyTotal *prometheus.CounterVec

	// VerifyDuration observes end-to-end /verify handling time.
	VerifyDuration prometheus.Histogram

	// BindingConflicts counts lost optimistic-concurrency races.
	BindingConflicts prometheus.Counter

	// AuditLogFailures counts swallowed audit-log append errors.
	AuditLogFailures prometheus.Counter
}

// NewMetrics creates the registry and registers all service collectors plus
// the standard process and Go runtime collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		VerifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "licensegate",
			Name:      "verify_total",
			Help:      "Verification verdicts by outcome.",
		}, []string{"outcome"}),
		VerifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "licensegate",
			Name:      "verify_duration_seconds",
			Help:      "End-to-end /verify handling duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		BindingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "licensegate",
			Name:      "binding_conflicts_total",
			Help:      "Device-binding updates lost to a concurrent writer.",
		}),
		AuditLogFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "licensegate",
			Name:      "audit_log_failures_total",
			Help:      "Audit-log appends that failed and were swallowed.",
		}),
	}

	registry.MustRegister(
		m.VerifyTotal,
		m.VerifyDuration,
		m.BindingConflicts,
		m.AuditLogFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}
