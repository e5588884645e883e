package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"proposal-review/internal/config"
	"proposal-review/internal/events"
	"proposal-review/internal/memstore"
	"proposal-review/internal/metrics"
	"proposal-review/internal/models"
	"proposal-review/internal/testutil"
)

// testClock is a settable clock shared by the services under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store       *memstore.Store
	recorder    *events.Recorder
	registry    *prometheus.Registry
	clock       *testClock
	cfg         config.AssignmentConfig
	ledger      *ReputationService
	assignments *AssignmentService
	requests    *AssignmentRequestService
	reviewers   *ReviewerService
	proposals   *ProposalService
	notifier    *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.New()
	return newTestEnvWithStore(t, store, store)
}

// newTestEnvWithStore wires services over s; seed exposes the underlying
// memstore for fixtures when s wraps it
func newTestEnvWithStore(t *testing.T, s Store, seed *memstore.Store) *testEnv {
	t.Helper()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewEngineMetrics(registry)
	require.NoError(t, err)

	cfg := config.AssignmentConfig{
		ReviewTarget:     3,
		PeerReviewTarget: 2,
		RetryBudget:      3,
		ExpiryWindow:     14 * 24 * time.Hour,
		BalanceCacheTTL:  time.Minute,
		LeaderboardLimit: 20,
	}
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	recorder := &events.Recorder{}
	notifier := &recordingNotifier{}

	ledger := NewReputationService(s, s, recorder, m, &cfg)
	assignments := NewAssignmentService(s, ledger, recorder, m, &cfg)
	assignments.now = clock.Now
	requests := NewAssignmentRequestService(s, ledger, notifier, recorder, m)
	requests.now = clock.Now

	return &testEnv{
		store:       seed,
		recorder:    recorder,
		registry:    registry,
		clock:       clock,
		cfg:         cfg,
		ledger:      ledger,
		assignments: assignments,
		requests:    requests,
		reviewers:   NewReviewerService(s, ledger),
		proposals:   NewProposalService(s, &cfg),
		notifier:    notifier,
	}
}

// counter sums every series of the named counter
func (e *testEnv) counter(t *testing.T, name string) float64 {
	t.Helper()
	families, err := e.registry.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func (e *testEnv) reviewer(t *testing.T, opts ...testutil.ReviewerOption) *models.Reviewer {
	t.Helper()
	return testutil.CreateReviewer(t, e.store, opts...)
}

func (e *testEnv) admin(t *testing.T) *models.Reviewer {
	t.Helper()
	return testutil.CreateReviewer(t, e.store, testutil.AsAdmin())
}

// fill gives the proposal n pending assignments held by fresh reviewers
func (e *testEnv) fill(t *testing.T, p *models.Proposal, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		r := e.reviewer(t)
		require.NoError(t, e.store.Reserve(context.Background(), &models.Assignment{
			ReviewerID: r.ID,
			ItemID:     p.ID,
			Kind:       models.KindReview,
			AssignedAt: e.clock.Now(),
		}))
	}
}

// completeReview assigns the proposal to reviewer and completes it
func (e *testEnv) completeReview(t *testing.T, reviewer *models.Reviewer, p *models.Proposal) *CompletionResult {
	t.Helper()
	admin := e.admin(t)
	a, err := e.assignments.AssignDirect(context.Background(), admin.ID, reviewer.ID, p.ID, models.KindReview)
	require.NoError(t, err)
	res, err := e.assignments.CompleteAssignment(context.Background(), reviewer.ID, a.ID, 4)
	require.NoError(t, err)
	return res
}

type recordingNotifier struct {
	mu       sync.Mutex
	resolved []*models.AssignmentRequest
}

func (n *recordingNotifier) NotifyRequestResolved(_ context.Context, _ *models.Reviewer, req *models.AssignmentRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, req)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.resolved)
}
