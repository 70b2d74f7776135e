// Package metrics provides Prometheus metrics for scoring and provider traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"powerscore/internal/score"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithScoreBuckets sets histogram buckets for final scores.
func WithScoreBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.scoreBuckets = buckets
		}
	}
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// Manager owns the application's collectors.
// A nil *Manager is valid and records nothing.
type Manager struct {
	namespace    string
	scoreBuckets []float64
	registry     *prometheus.Registry

	activitiesScored *prometheus.CounterVec
	scoringFailures  *prometheus.CounterVec
	finalScore       prometheus.Histogram
	scoringLatency   prometheus.Histogram

	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec
}

// NewManager creates a metrics manager on a private registry by default.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:    "powerscore",
		scoreBuckets: prometheus.LinearBuckets(10, 10, 9),
		registry:     prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.activitiesScored = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "activities_scored_total",
		Help:      "Activities scored, by rank and quality tier",
	}, []string{"rank", "tier"})

	m.scoringFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "scoring_failures_total",
		Help:      "Scoring attempts rejected, by error kind",
	}, []string{"kind"})

	m.finalScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "final_score",
		Help:      "Distribution of final scores",
		Buckets:   m.scoreBuckets,
	})

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "scoring_duration_seconds",
		Help:      "Time spent in the score engine",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	m.providerRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Activity provider requests, by endpoint and HTTP status (0 for transport errors)",
	}, []string{"endpoint", "status"})

	m.providerLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Activity provider request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "provider",
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})
}

// ObserveScore records a successful engine run.
func (m *Manager) ObserveScore(b score.Breakdown, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.activitiesScored.WithLabelValues(string(b.Rank), string(b.QualityTier)).Inc()
	m.finalScore.Observe(b.FinalScore)
	m.scoringLatency.Observe(elapsed.Seconds())
}

// ObserveFailure records a rejected engine run.
func (m *Manager) ObserveFailure(err error) {
	if m == nil {
		return
	}
	m.scoringFailures.WithLabelValues(score.ErrorKind(err)).Inc()
}

// ObserveRequest records one provider request.
func (m *Manager) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.providerLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveBreakerState records a circuit breaker transition.
func (m *Manager) ObserveBreakerState(name string, state gobreaker.State) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// Registry returns the registry backing this manager.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
