// Package metrics provides Prometheus metrics for the assignment engine
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Assignment outcomes
const (
	OutcomeAssigned    = "assigned"
	OutcomeNoWork      = "no_work"
	OutcomeNotEligible = "not_eligible"
	OutcomeError       = "error"
)

// Completion results
const (
	ResultRecorded  = "recorded"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

// EngineMetrics contains Prometheus metrics for assignment and reputation
// operations. A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	assignmentsTotal     *prometheus.CounterVec
	reservationConflicts *prometheus.CounterVec
	selectionDuration    *prometheus.HistogramVec
	completionsTotal     *prometheus.CounterVec
	expiredTotal         *prometheus.CounterVec
	requestsTotal        *prometheus.CounterVec
	ledgerDriftTotal     prometheus.Counter
	ledgerReconciled     prometheus.Counter
	balanceCacheTotal    *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewEngineMetrics creates and registers the engine metrics
func NewEngineMetrics(registry prometheus.Registerer) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.assignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_assignments_total",
			Help: "Assignment requests by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	m.reservationConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_reservation_conflicts_total",
			Help: "Reservations lost to a concurrent request",
		},
		[]string{"kind"},
	)

	m.selectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_assignment_duration_seconds",
			Help:    "Time to select and reserve an assignment",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"kind"},
	)

	m.completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_completions_total",
			Help: "Completion events by kind and result",
		},
		[]string{"kind", "result"},
	)

	m.expiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_assignments_expired_total",
			Help: "Pending assignments reclaimed after inactivity",
		},
		[]string{"kind"},
	)

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_assignment_requests_total",
			Help: "Assignment request queue transitions",
		},
		[]string{"status"},
	)

	m.ledgerDriftTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "review_ledger_drift_points_total",
		Help: "Absolute reputation points corrected by reconciliation",
	})

	m.ledgerReconciled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "review_ledger_reconciled_total",
		Help: "Reviewers whose cached balance was corrected",
	})

	m.balanceCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_balance_cache_lookups_total",
			Help: "Reputation balance cache lookups by result",
		},
		[]string{"result"},
	)

	m.collectors = []prometheus.Collector{
		m.assignmentsTotal,
		m.reservationConflicts,
		m.selectionDuration,
		m.completionsTotal,
		m.expiredTotal,
		m.requestsTotal,
		m.ledgerDriftTotal,
		m.ledgerReconciled,
		m.balanceCacheTotal,
	}
}

// Describe implements the Collector interface
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordAssignment records the outcome of an assignment request
func (m *EngineMetrics) RecordAssignment(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.assignmentsTotal.WithLabelValues(kind, outcome).Inc()
	m.selectionDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordReservationConflict records a lost reservation race
func (m *EngineMetrics) RecordReservationConflict(kind string) {
	if m == nil {
		return
	}
	m.reservationConflicts.WithLabelValues(kind).Inc()
}

// RecordCompletion records a completion event
func (m *EngineMetrics) RecordCompletion(kind, result string) {
	if m == nil {
		return
	}
	m.completionsTotal.WithLabelValues(kind, result).Inc()
}

// RecordExpired records reclaimed assignments
func (m *EngineMetrics) RecordExpired(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.expiredTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordRequest records an assignment request transition
func (m *EngineMetrics) RecordRequest(status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(status).Inc()
}

// RecordLedgerDrift records a corrected cached balance
func (m *EngineMetrics) RecordLedgerDrift(delta int) {
	if m == nil || delta == 0 {
		return
	}
	if delta < 0 {
		delta = -delta
	}
	m.ledgerDriftTotal.Add(float64(delta))
	m.ledgerReconciled.Inc()
}

// RecordBalanceLookup records a balance cache hit or miss
func (m *EngineMetrics) RecordBalanceLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.balanceCacheTotal.WithLabelValues(result).Inc()
}
