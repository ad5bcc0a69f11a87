// Package metrics holds the Prometheus collectors for the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "abordagem"

type Metrics struct {
	registry *prometheus.Registry

	Logins              *prometheus.CounterVec
	AccessDenied        *prometheus.CounterVec
	RateLimited         *prometheus.CounterVec
	RateLimitDegraded   prometheus.Counter
	AuditEmitted        *prometheus.CounterVec
	AuditDropped        *prometheus.CounterVec
	BackupDuration      *prometheus.HistogramVec
	Snapshots           prometheus.Gauge
	MaintenanceRejected prometheus.Counter
	CORSRejected        prometheus.Counter
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		AccessDenied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Requests refused by the access gate, by reason",
		}, []string{"reason"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429, by policy",
		}, []string{"policy"}),
		RateLimitDegraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_fallback_total",
			Help:      "Rate limit checks served by the in-memory fallback",
		}),
		AuditEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_emitted_total",
			Help:      "Audit events persisted, by category",
		}, []string{"category"}),
		AuditDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_dropped_total",
			Help:      "Audit events dropped because the buffer was full, by category",
		}, []string{"category"}),
		BackupDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_duration_seconds",
			Help:      "Duration of backup and restore operations",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation", "outcome"}),
		Snapshots: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backup_snapshots",
			Help:      "Snapshots currently retained on disk",
		}),
		MaintenanceRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_rejected_writes_total",
			Help:      "Writes refused while a backup or restore held the store",
		}),
		CORSRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cors_rejected_total",
			Help:      "Requests from origins outside the allow-list",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) IncLogin(outcome string)         { m.Logins.WithLabelValues(outcome).Inc() }
func (m *Metrics) IncAccessDenied(reason string)   { m.AccessDenied.WithLabelValues(reason).Inc() }
func (m *Metrics) IncRateLimited(policy string)    { m.RateLimited.WithLabelValues(policy).Inc() }
func (m *Metrics) IncRateLimitFallback()           { m.RateLimitDegraded.Inc() }
func (m *Metrics) IncAuditEmitted(category string) { m.AuditEmitted.WithLabelValues(category).Inc() }
func (m *Metrics) IncAuditDropped(category string) { m.AuditDropped.WithLabelValues(category).Inc() }
func (m *Metrics) IncMaintenanceRejected()         { m.MaintenanceRejected.Inc() }
func (m *Metrics) IncCORSRejected()                { m.CORSRejected.Inc() }

func (m *Metrics) ObserveBackup(operation, outcome string, seconds float64) {
	m.BackupDuration.WithLabelValues(operation, outcome).Observe(seconds)
}

func (m *Metrics) SetSnapshots(n int) {
	m.Snapshots.Set(float64(n))
}
