// Package observability provides Prometheus metrics and OpenTelemetry tracing for LeadPipe.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// CONVERSATION METRICS
// =============================================================================

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpipe_turns_total",
			Help: "Total number of processed user turns",
		},
		[]string{"channel", "outcome"}, // outcome: ok, error
	)

	turnDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadpipe_turn_duration_seconds",
			Help:    "Time spent producing a reply to one user turn",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"channel"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpipe_transitions_total",
			Help: "Total number of flow state transitions",
		},
		[]string{"from", "to"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadpipe_active_sessions",
			Help: "Number of live conversation sessions",
		},
	)
)

// =============================================================================
// LEAD AND VERIFICATION METRICS
// =============================================================================

var (
	leadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpipe_leads_total",
			Help: "Total number of lead submissions",
		},
		[]string{"channel", "outcome"}, // outcome: created, queued, failed
	)

	otpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpipe_otp_total",
			Help: "Total number of one-time-code operations",
		},
		[]string{"target", "action", "outcome"}, // target: email, phone; action: send, verify
	)
)

// =============================================================================
// DEPENDENCY METRICS
// =============================================================================

var (
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpipe_llm_requests_total",
			Help: "Total number of language model requests",
		},
		[]string{"method", "outcome"},
	)

	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpipe_backend_requests_total",
			Help: "Total number of signed backend requests",
		},
		[]string{"endpoint", "outcome"},
	)
)

// RecordTurn records one processed turn.
func RecordTurn(channel, outcome string, d time.Duration) {
	turnsTotal.WithLabelValues(channel, outcome).Inc()
	turnDurationSeconds.WithLabelValues(channel).Observe(d.Seconds())
}

// RecordTransition records a flow state change.
func RecordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

// SetActiveSessions sets the live session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordLead records the outcome of a lead submission.
func RecordLead(channel, outcome string) {
	leadsTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordOTP records a one-time-code send or verify.
func RecordOTP(target, action, outcome string) {
	otpTotal.WithLabelValues(target, action, outcome).Inc()
}

// RecordLLMRequest records a language model request.
func RecordLLMRequest(method, outcome string) {
	llmRequestsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordBackendRequest records a backend request.
func RecordBackendRequest(endpoint, outcome string) {
	backendRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
