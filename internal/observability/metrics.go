// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	registry *prometheus.Registry

	// Scoring metrics
	CandidatesAssessed prometheus.Counter
	CandidatesAdmitted prometheus.Counter
	CandidatesRejected prometheus.Counter
	CandidatesInvalid  prometheus.Counter

	// Position metrics
	PositionsOpened prometheus.Counter
	PositionsClosed *prometheus.CounterVec // by close reason
	OpenPositions   prometheus.Gauge
	RealizedPnL     prometheus.Gauge

	// Execution metrics
	OrdersSubmitted  *prometheus.CounterVec // by side
	OrderFailures    *prometheus.CounterVec // by failure kind
	ChildFills       prometheus.Counter
	ProviderLatency  *prometheus.HistogramVec // by provider
	ProviderFailures *prometheus.CounterVec   // by provider
	BreakerState     *prometheus.GaugeVec     // by provider: 0 closed, 1 half-open, 2 open

	// Risk metrics
	Halted             prometheus.Gauge
	AdmissionsDenied   *prometheus.CounterVec // by deny reason
	ConsecutiveFailers prometheus.Gauge
}

// NewMetrics creates a Metrics instance backed by its own registry so
// tests can construct as many as they need.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_sniper"
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		CandidatesAssessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "candidates_assessed_total",
			Help:      "Total number of candidate snapshots assessed",
		}),
		CandidatesAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "candidates_admitted_total",
			Help:      "Total number of candidates that passed the viability threshold",
		}),
		CandidatesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "candidates_rejected_total",
			Help:      "Total number of candidates below the viability threshold",
		}),
		CandidatesInvalid: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "candidates_invalid_total",
			Help:      "Total number of malformed candidate snapshots dropped",
		}),

		PositionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened",
		}),
		PositionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed, by reason",
		}, []string{"reason"}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "open_positions",
			Help:      "Number of currently open positions",
		}),
		RealizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "realized_pnl",
			Help:      "Cumulative realized profit and loss in quote units",
		}),

		OrdersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "orders_submitted_total",
			Help:      "Total number of orders submitted, by side",
		}, []string{"side"}),
		OrderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "order_failures_total",
			Help:      "Total number of failed orders, by failure kind",
		}, []string{"kind"}),
		ChildFills: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "child_fills_total",
			Help:      "Total number of filled child orders",
		}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "provider_latency_seconds",
			Help:      "Submission latency per provider",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"provider"}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "provider_failures_total",
			Help:      "Total number of failed provider calls, by provider",
		}, []string{"provider"}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "breaker_state",
			Help:      "Circuit state per provider: 0 closed, 1 half-open, 2 open",
		}, []string{"provider"}),

		Halted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "halted",
			Help:      "1 while the risk governor halt flag is set",
		}),
		AdmissionsDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "admissions_denied_total",
			Help:      "Total number of denied admissions, by reason",
		}, []string{"reason"}),
		ConsecutiveFailers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "consecutive_pool_failures",
			Help:      "Current count of consecutive whole-pool execution failures",
		}),
	}
}

// Handler returns an HTTP handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetBreakerState records a provider's circuit state as a gauge value.
func (m *Metrics) SetBreakerState(provider string, state string) {
	v := 0.0
	switch state {
	case "HALF_OPEN":
		v = 1
	case "OPEN":
		v = 2
	}
	m.BreakerState.WithLabelValues(provider).Set(v)
}
