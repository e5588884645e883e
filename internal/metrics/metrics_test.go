package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *EngineMetrics {
	t.Helper()
	m, err := NewEngineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestRecordAssignment(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAssignment("review", OutcomeAssigned, 3*time.Millisecond)
	m.RecordAssignment("review", OutcomeAssigned, time.Millisecond)
	m.RecordAssignment("peer_review", OutcomeNoWork, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.assignmentsTotal.WithLabelValues("review", OutcomeAssigned)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.assignmentsTotal.WithLabelValues("peer_review", OutcomeNoWork)), 0)
}

func TestRecordLedgerDrift(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordLedgerDrift(-30)
	m.RecordLedgerDrift(15)
	m.RecordLedgerDrift(0)

	assert.InDelta(t, 45, testutil.ToFloat64(m.ledgerDriftTotal), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ledgerReconciled), 0)
}

func TestCountersByLabel(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordReservationConflict("review")
	m.RecordCompletion("review", ResultDuplicate)
	m.RecordExpired("peer_review", 3)
	m.RecordExpired("peer_review", 0)
	m.RecordRequest("declined")
	m.RecordBalanceLookup(true)
	m.RecordBalanceLookup(false)
	m.RecordBalanceLookup(false)

	assert.InDelta(t, 1, testutil.ToFloat64(m.reservationConflicts.WithLabelValues("review")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.completionsTotal.WithLabelValues("review", ResultDuplicate)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.expiredTotal.WithLabelValues("peer_review")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.requestsTotal.WithLabelValues("declined")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.balanceCacheTotal.WithLabelValues("miss")), 0)
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.RecordAssignment("review", OutcomeAssigned, time.Second)
		m.RecordReservationConflict("review")
		m.RecordCompletion("review", ResultRecorded)
		m.RecordExpired("review", 1)
		m.RecordRequest("created")
		m.RecordLedgerDrift(5)
		m.RecordBalanceLookup(true)
	})
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewEngineMetrics(reg)
	require.NoError(t, err)
	_, err = NewEngineMetrics(reg)
	assert.Error(t, err)
}
