// Package metrics exposes Prometheus instrumentation for the play
// activity service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProgressReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "play_activity_progress_reports_total",
		Help: "Progress reports processed, labeled by outcome.",
	}, []string{"outcome"})

	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "play_activity_sessions_created_total",
		Help: "New watch sessions created.",
	})

	ConsumerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "play_activity_consumer_messages_total",
		Help: "NATS progress messages consumed, labeled by outcome.",
	}, []string{"outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "play_activity_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
