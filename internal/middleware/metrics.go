package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Turn metrics
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_bot_messages_received_total",
		Help: "Total number of messages received",
	}, []string{"chat_type"})

	turnsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_bot_turns_processed_total",
		Help: "Total number of conversation turns processed",
	}, []string{"status"})

	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_bot_commands_executed_total",
		Help: "Total number of commands executed",
	}, []string{"command"})

	// Provider metrics
	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finance_bot_provider_request_duration_seconds",
		Help:    "Duration of AI provider requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_bot_provider_requests_total",
		Help: "Total number of AI provider requests",
	}, []string{"status"})

	// Resilience metrics
	rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finance_bot_rate_limit_exceeded_total",
		Help: "Total number of rate limit rejections",
	})

	circuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finance_bot_circuit_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	})

	// Dispatch metrics
	intentsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_bot_intents_dispatched_total",
		Help: "Total number of structured intents dispatched",
	}, []string{"operation", "status"})

	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finance_bot_active_sessions",
		Help: "Number of in-memory conversation sessions",
	})

	sessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finance_bot_sessions_swept_total",
		Help: "Total number of sessions removed by the sweep job",
	})

	// Scheduler metrics
	remindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_bot_reminders_sent_total",
		Help: "Total number of reminder messages sent",
	}, []string{"kind"})

	// Storage metrics
	storageUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finance_bot_storage_up",
		Help: "Whether the persistence backend answered the last health check",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMessageReceived records a received message
func (m *Metrics) RecordMessageReceived(chatType string) {
	messagesReceived.WithLabelValues(chatType).Inc()
}

// RecordTurnProcessed records a completed turn
func (m *Metrics) RecordTurnProcessed(status string) {
	turnsProcessed.WithLabelValues(status).Inc()
}

// RecordCommandExecuted records an executed command
func (m *Metrics) RecordCommandExecuted(command string) {
	commandsExecuted.WithLabelValues(command).Inc()
}

// RecordProviderRequest records an AI provider round-trip
func (m *Metrics) RecordProviderRequest(status string, duration time.Duration) {
	providerRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
	providerRequestsTotal.WithLabelValues(status).Inc()
}

// RecordRateLimitExceeded records a rate limit rejection
func (m *Metrics) RecordRateLimitExceeded() {
	rateLimitExceeded.Inc()
}

// SetCircuitState records the breaker state
func (m *Metrics) SetCircuitState(state BreakerState) {
	circuitState.Set(float64(state))
}

// RecordIntentDispatched records one dispatched intent
func (m *Metrics) RecordIntentDispatched(operation, status string) {
	intentsDispatched.WithLabelValues(operation, status).Inc()
}

// SetActiveSessions sets the session gauge
func (m *Metrics) SetActiveSessions(count float64) {
	activeSessions.Set(count)
}

// RecordSessionsSwept adds to the swept-session counter
func (m *Metrics) RecordSessionsSwept(count int) {
	sessionsSwept.Add(float64(count))
}

// RecordReminderSent records a delivered reminder ("bills" or "custom")
func (m *Metrics) RecordReminderSent(kind string) {
	remindersSent.WithLabelValues(kind).Inc()
}

// SetStorageUp records backend health
func (m *Metrics) SetStorageUp(up bool) {
	if up {
		storageUp.Set(1)
	} else {
		storageUp.Set(0)
	}
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
