package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionCounter reports the number of live call sessions.
type SessionCounter interface {
	Count() int
}

// Metrics holds all custom Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SessionsStarted prometheus.Counter
	SessionsEnded   *prometheus.CounterVec
	SessionErrors   prometheus.Counter

	KnowledgeLookups *prometheus.CounterVec

	Escalations       prometheus.Counter
	Resolutions       prometheus.Counter
	ResolutionLatency prometheus.Histogram
	StaleEscalations  prometheus.Gauge

	WebSocketConnections *prometheus.GaugeVec
}

// InitMetrics registers the metrics with reg. sessions backs the live session gauge.
func InitMetrics(reg prometheus.Registerer, sessions SessionCounter) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_sessions_started_total",
			Help: "Total number of call sessions started",
		}),

		// reason: caller left, disconnected, transport disconnected, caller did not join
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_sessions_ended_total",
			Help: "Total number of call sessions ended by reason",
		}, []string{"reason"}),

		SessionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_session_errors_total",
			Help: "Total number of sessions torn down by a transport error",
		}),

		KnowledgeLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_knowledge_lookups_total",
			Help: "Knowledge base lookups by result",
		}, []string{"result"}), // hit, miss, error

		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_escalations_total",
			Help: "Total number of questions escalated to a supervisor",
		}),

		Resolutions: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_resolutions_total",
			Help: "Total number of help requests resolved",
		}),

		ResolutionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "frontdesk_resolution_latency_seconds",
			Help:    "Time from escalation to supervisor resolution",
			Buckets: []float64{30, 60, 300, 900, 1800, 3600, 4 * 3600, 24 * 3600},
		}),

		StaleEscalations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "frontdesk_stale_escalations",
			Help: "Pending help requests older than the stale threshold at the last report",
		}),

		WebSocketConnections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "frontdesk_websocket_connections_active",
			Help: "Number of active WebSocket connections by endpoint",
		}, []string{"endpoint"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "frontdesk_sessions_active",
		Help: "Current number of live call sessions",
	}, func() float64 {
		if sessions != nil {
			return float64(sessions.Count())
		}
		return 0
	})

	return m
}

func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) RecordSessionEnded(reason string) {
	if m == nil {
		return
	}
	m.SessionsEnded.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordSessionError() {
	if m == nil {
		return
	}
	m.SessionErrors.Inc()
}

func (m *Metrics) RecordLookup(result string) {
	if m == nil {
		return
	}
	m.KnowledgeLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordEscalation() {
	if m == nil {
		return
	}
	m.Escalations.Inc()
}

// RecordResolution records a resolution and how long the caller waited for it
func (m *Metrics) RecordResolution(waitSeconds float64) {
	if m == nil {
		return
	}
	m.Resolutions.Inc()
	m.ResolutionLatency.Observe(waitSeconds)
}

func (m *Metrics) SetStaleEscalations(n int64) {
	if m == nil {
		return
	}
	m.StaleEscalations.Set(float64(n))
}

func (m *Metrics) RecordWebSocketConnect(endpoint string) {
	if m == nil {
		return
	}
	m.WebSocketConnections.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) RecordWebSocketDisconnect(endpoint string) {
	if m == nil {
		return
	}
	m.WebSocketConnections.WithLabelValues(endpoint).Dec()
}
