package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklit_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// Registrations counts new account registrations by result.
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklit_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"result"},
	)

	// VerificationEmails counts verification and reset emails dispatched by kind.
	VerificationEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklit_code_emails_total",
			Help: "Total number of one-time-code emails sent",
		},
		[]string{"kind"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasklit_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
