package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposal-review/internal/events"
	"proposal-review/internal/memstore"
	"proposal-review/internal/models"
	fixtures "proposal-review/internal/testutil"
)

func TestLedgerAwardsFixedPoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.reviewer(t)
	r := env.reviewer(t)

	p1 := fixtures.CreateProposal(t, env.store, author, 3)
	p2 := fixtures.CreateProposal(t, env.store, author, 3)
	env.completeReview(t, r, p1)
	review := env.completeReview(t, env.reviewer(t), p2)

	a, err := env.assignments.RequestAssignment(ctx, r.ID, models.KindPeerReview)
	require.NoError(t, err)
	assert.Equal(t, review.RecordID, a.ItemID)
	_, err = env.assignments.CompleteAssignment(ctx, r.ID, a.ID, 3)
	require.NoError(t, err)

	summary, err := env.ledger.Summary(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompletionCounts{Reviews: 1, PeerReviews: 1}, summary.Counts)
	assert.Equal(t, models.ReviewPoints+models.PeerReviewPoints, summary.Balance)
	assert.True(t, summary.InSync)
	assert.Len(t, env.recorder.OfType(events.AssignmentCompleted), 3)
}

func TestLedgerRejectsInvalidKind(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.ledger.RecordCompletion(context.Background(), &models.Completion{
		AssignmentID: uuid.New(),
		ReviewerID:   uuid.New(),
		ItemID:       uuid.New(),
		Kind:         "essay",
	})
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestBalanceIsCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.reviewer(t)
	r := env.reviewer(t)
	p := fixtures.CreateProposal(t, env.store, author, 3)

	balance, err := env.ledger.Balance(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	// written behind the ledger's back: the cached value is served until it expires
	a := &models.Assignment{ReviewerID: r.ID, ItemID: p.ID, Kind: models.KindReview}
	require.NoError(t, env.store.Reserve(ctx, a))
	_, err = env.store.RecordCompletion(ctx, &models.Completion{
		AssignmentID: a.ID,
		ReviewerID:   r.ID,
		ItemID:       p.ID,
		Kind:         models.KindReview,
		Points:       models.ReviewPoints,
		CompletedAt:  env.clock.Now(),
	}, 2)
	require.NoError(t, err)

	balance, err = env.ledger.Balance(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
	assert.InDelta(t, 2, env.counter(t, "review_balance_cache_lookups_total"), 0)

	summary, err := env.ledger.Summary(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPoints, summary.Balance)
}

func TestRecordCompletionInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.reviewer(t)
	r := env.reviewer(t)
	p := fixtures.CreateProposal(t, env.store, author, 3)

	_, err := env.ledger.Balance(ctx, r.ID)
	require.NoError(t, err)

	env.completeReview(t, r, p)

	balance, err := env.ledger.Balance(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPoints, balance)
}

func TestReconcileCorrectsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.reviewer(t)
	r := env.reviewer(t)
	p := fixtures.CreateProposal(t, env.store, author, 3)
	env.completeReview(t, r, p)

	require.NoError(t, env.store.UpdateRepPoints(ctx, r.ID, 100))

	summary, err := env.ledger.Summary(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, summary.InSync)

	delta, err := env.ledger.Reconcile(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, -100, delta)

	reviewer, err := env.store.GetReviewer(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPoints, reviewer.RepPoints)
	assert.Len(t, env.recorder.OfType(events.LedgerReconciled), 1)

	// a second pass is a no-op
	delta, err = env.ledger.Reconcile(ctx, r.ID)
	require.NoError(t, err)
	assert.Zero(t, delta)
}

func TestReconcileAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	drifted := env.reviewer(t)
	env.reviewer(t)
	require.NoError(t, env.store.UpdateRepPoints(ctx, drifted.ID, 45))

	report, err := env.ledger.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Corrected)
	assert.Equal(t, 45, report.Drift)
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	author := env.reviewer(t)
	top := env.reviewer(t)
	p := fixtures.CreateProposal(t, env.store, author, 3)
	env.completeReview(t, top, p)

	entries, err := env.ledger.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, top.ID, entries[0].ReviewerID)
	assert.Equal(t, models.ReviewPoints, entries[0].RepPoints)
}

// countHookStore runs beforeCount ahead of every CountCompletions call,
// landing writes between the ledger's read of the cached balance and its
// count of the completion records
type countHookStore struct {
	*memstore.Store
	beforeCount func()
}

func (s *countHookStore) CountCompletions(ctx context.Context, reviewerID uuid.UUID) (models.CompletionCounts, error) {
	if s.beforeCount != nil {
		s.beforeCount()
	}
	return s.Store.CountCompletions(ctx, reviewerID)
}

func TestReconcileConcurrentCompletionCreditedOnce(t *testing.T) {
	seed := memstore.New()
	hooked := &countHookStore{Store: seed}
	env := newTestEnvWithStore(t, hooked, seed)
	ctx := context.Background()
	author := env.reviewer(t)
	r := env.reviewer(t)
	p := fixtures.CreateProposal(t, env.store, author, 3)

	a := &models.Assignment{ReviewerID: r.ID, ItemID: p.ID, Kind: models.KindReview, AssignedAt: env.clock.Now()}
	require.NoError(t, env.store.Reserve(ctx, a))

	var once sync.Once
	hooked.beforeCount = func() {
		once.Do(func() {
			_, err := env.store.RecordCompletion(ctx, &models.Completion{
				AssignmentID: a.ID,
				ReviewerID:   r.ID,
				ItemID:       p.ID,
				Kind:         models.KindReview,
				Points:       models.ReviewPoints,
				CompletedAt:  env.clock.Now(),
			}, env.cfg.PeerReviewTarget)
			require.NoError(t, err)
		})
	}

	delta, err := env.ledger.Reconcile(ctx, r.ID)
	require.NoError(t, err)
	assert.Zero(t, delta)

	reviewer, err := env.store.GetReviewer(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPoints, reviewer.RepPoints)
	assert.Empty(t, env.recorder.OfType(events.LedgerReconciled))
}

func TestReconcileGivesUpWhileBalanceKeepsMoving(t *testing.T) {
	seed := memstore.New()
	hooked := &countHookStore{Store: seed}
	env := newTestEnvWithStore(t, hooked, seed)
	ctx := context.Background()
	r := env.reviewer(t)
	require.NoError(t, seed.UpdateRepPoints(ctx, r.ID, 100))

	hooked.beforeCount = func() {
		require.NoError(t, seed.UpdateRepPoints(ctx, r.ID, 1))
	}

	_, err := env.ledger.Reconcile(ctx, r.ID)
	assert.ErrorIs(t, err, ErrReconcileContended)
}
