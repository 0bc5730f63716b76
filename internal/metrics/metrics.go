// Package metrics exposes the key server's Prometheus metrics.
// Uses a custom registry — no global state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector holds all Prometheus metrics for the key server.
type Collector struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal        *prometheus.CounterVec
	RateLimitedTotal         prometheus.Counter
	BatchesActive            prometheus.Gauge
	BatchesCreatedTotal      prometheus.Counter
	ProvidersFulfilledTotal  prometheus.Counter
	SubmissionsRejectedTotal prometheus.Counter
}

// NewCollector creates a Collector with all metrics registered on a custom
// prometheus.Registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	m := &Collector{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keyserver",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests handled.",
		}, []string{"route", "status"}),

		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keyserver",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),

		BatchesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "keyserver",
			Subsystem: "batch",
			Name:      "active",
			Help:      "Key batches currently held in the store.",
		}),

		BatchesCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keyserver",
			Subsystem: "batch",
			Name:      "created_total",
			Help:      "Key batches created by the admin endpoint.",
		}),

		ProvidersFulfilledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keyserver",
			Subsystem: "batch",
			Name:      "providers_fulfilled_total",
			Help:      "Provider credential sets collected.",
		}),

		SubmissionsRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keyserver",
			Subsystem: "batch",
			Name:      "submissions_rejected_total",
			Help:      "Form submissions rejected by value validation.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.RateLimitedTotal,
		m.BatchesActive,
		m.BatchesCreatedTotal,
		m.ProvidersFulfilledTotal,
		m.SubmissionsRejectedTotal,
	)

	return m
}
