// Package metrics exposes Prometheus collectors for provider calls, campaign
// runs and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adforge"

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of generation provider calls",
		},
		[]string{"operation", "outcome"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Generation provider call duration in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"operation"},
	)

	CampaignRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "runs_total",
			Help:      "Total number of campaign generation attempts by outcome",
		},
		[]string{"outcome"},
	)

	CampaignRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "run_duration_seconds",
			Help:      "Duration of dispatched campaign batches in seconds",
			Buckets:   []float64{1, 5, 10, 20, 40, 60, 120, 300},
		},
	)

	RetouchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "retouch_total",
			Help:      "Total number of background edits by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)
)

// ObserveProviderCall records one provider call.
func ObserveProviderCall(operation, outcome string, started time.Time) {
	ProviderCallsTotal.WithLabelValues(operation, outcome).Inc()
	ProviderCallDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveCampaignRun records a settled campaign batch. Precondition failures
// pass a zero start time and only bump the counter.
func ObserveCampaignRun(outcome string, started time.Time) {
	CampaignRunsTotal.WithLabelValues(outcome).Inc()
	if !started.IsZero() {
		CampaignRunDuration.Observe(time.Since(started).Seconds())
	}
}

// ObserveRetouch records a settled background edit.
func ObserveRetouch(outcome string) {
	RetouchTotal.WithLabelValues(outcome).Inc()
}
