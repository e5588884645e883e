package memstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposal-review/internal/memstore"
	"proposal-review/internal/models"
	"proposal-review/internal/service"
	"proposal-review/internal/testutil"
)

var _ service.Store = (*memstore.Store)(nil)

func reserve(t *testing.T, s *memstore.Store, reviewer *models.Reviewer, itemID uuid.UUID, kind models.AssignmentKind) *models.Assignment {
	t.Helper()
	a := &models.Assignment{ReviewerID: reviewer.ID, ItemID: itemID, Kind: kind}
	require.NoError(t, s.Reserve(context.Background(), a))
	return a
}

func complete(s *memstore.Store, a *models.Assignment) (uuid.UUID, error) {
	return s.RecordCompletion(context.Background(), &models.Completion{
		AssignmentID: a.ID,
		ReviewerID:   a.ReviewerID,
		ItemID:       a.ItemID,
		Kind:         a.Kind,
		Points:       a.Kind.Points(),
		CompletedAt:  time.Now(),
	}, 2)
}

func TestReserveLastSlotUnderContention(t *testing.T) {
	s := memstore.New()
	author := testutil.CreateReviewer(t, s)
	p := testutil.CreateProposal(t, s, author, 1)

	const n = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		r := testutil.CreateReviewer(t, s)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Reserve(context.Background(), &models.Assignment{ReviewerID: r.ID, ItemID: p.ID, Kind: models.KindReview})
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, models.ErrReservationConflict)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	got, err := s.GetProposal(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AssignedCount)
}

func TestReserveSameReviewerTwice(t *testing.T) {
	s := memstore.New()
	author := testutil.CreateReviewer(t, s)
	reviewer := testutil.CreateReviewer(t, s)
	p := testutil.CreateProposal(t, s, author, 3)

	reserve(t, s, reviewer, p.ID, models.KindReview)
	err := s.Reserve(context.Background(), &models.Assignment{ReviewerID: reviewer.ID, ItemID: p.ID, Kind: models.KindReview})
	assert.ErrorIs(t, err, models.ErrReservationConflict)

	err = s.Reserve(context.Background(), &models.Assignment{ReviewerID: reviewer.ID, ItemID: p.ID, Kind: models.KindPeerReview})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRecordCompletionCreatesReview(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	author := testutil.CreateReviewer(t, s)
	reviewer := testutil.CreateReviewer(t, s)
	p := testutil.CreateProposal(t, s, author, 2, "defi")

	a := reserve(t, s, reviewer, p.ID, models.KindReview)
	reviewID, err := complete(s, a)
	require.NoError(t, err)

	review, err := s.GetReview(ctx, reviewID)
	require.NoError(t, err)
	assert.Equal(t, reviewer.ID, review.ReviewerID)
	assert.Equal(t, []string{"defi"}, []string(review.Tags))
	assert.Equal(t, 2, review.TargetPeerReviews)

	got, _ := s.GetProposal(ctx, p.ID)
	assert.Equal(t, 1, got.AssignedCount)
	assert.Equal(t, 1, got.CompletedReviews)

	r, _ := s.GetReviewer(ctx, reviewer.ID)
	assert.Equal(t, models.ReviewPoints, r.RepPoints)

	_, err = complete(s, a)
	assert.ErrorIs(t, err, models.ErrDuplicateCompletion)
	r, _ = s.GetReviewer(ctx, reviewer.ID)
	assert.Equal(t, models.ReviewPoints, r.RepPoints)

	counts, err := s.CountCompletions(ctx, reviewer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompletionCounts{Reviews: 1}, counts)

	// the review is now open for peer review, but not to its author
	open, err := s.ListPeerReviewableReviews(ctx, reviewer.ID)
	require.NoError(t, err)
	assert.Empty(t, open)
	open, err = s.ListPeerReviewableReviews(ctx, uuid.New())
	require.NoError(t, err)
	require.Len(t, open, 1)

	peer := testutil.CreateReviewer(t, s)
	pa := reserve(t, s, peer, reviewID, models.KindPeerReview)
	_, err = complete(s, pa)
	require.NoError(t, err)
	counts, _ = s.CountCompletions(ctx, peer.ID)
	assert.Equal(t, models.CompletionCounts{PeerReviews: 1}, counts)
	r, _ = s.GetReviewer(ctx, peer.ID)
	assert.Equal(t, models.PeerReviewPoints, r.RepPoints)
}

func TestExpireStaleReturnsSlot(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	author := testutil.CreateReviewer(t, s)
	p := testutil.CreateProposal(t, s, author, 1)
	idle := testutil.CreateReviewer(t, s)

	a := &models.Assignment{ReviewerID: idle.ID, ItemID: p.ID, Kind: models.KindReview, AssignedAt: time.Now().Add(-15 * 24 * time.Hour)}
	require.NoError(t, s.Reserve(ctx, a))

	open, _ := s.ListOpenProposals(ctx, uuid.Nil)
	assert.Empty(t, open)

	expired, err := s.ExpireStale(ctx, time.Now().Add(-14*24*time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, models.AssignmentExpired, expired[0].Status)

	open, _ = s.ListOpenProposals(ctx, uuid.Nil)
	assert.Len(t, open, 1)

	_, err = complete(s, a)
	assert.ErrorIs(t, err, models.ErrAssignmentNotPending)
	assert.ErrorIs(t, s.TouchAssignment(ctx, a.ID, time.Now()), models.ErrAssignmentNotPending)

	// expired claims do not block a fresh reservation
	held, _ := s.HeldItems(ctx, idle.ID, models.KindReview)
	assert.Empty(t, held)
	reserve(t, s, idle, p.ID, models.KindReview)
}

func TestTouchKeepsAssignmentAlive(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	author := testutil.CreateReviewer(t, s)
	p := testutil.CreateProposal(t, s, author, 1)
	r := testutil.CreateReviewer(t, s)

	a := &models.Assignment{ReviewerID: r.ID, ItemID: p.ID, Kind: models.KindReview, AssignedAt: time.Now().Add(-20 * 24 * time.Hour)}
	require.NoError(t, s.Reserve(ctx, a))
	require.NoError(t, s.TouchAssignment(ctx, a.ID, time.Now()))

	expired, err := s.ExpireStale(ctx, time.Now().Add(-14*24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestReviewerStats(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	author := testutil.CreateReviewer(t, s)
	r := testutil.CreateReviewer(t, s)
	p1 := testutil.CreateProposal(t, s, author, 1)
	p2 := testutil.CreateProposal(t, s, author, 1)

	a := reserve(t, s, r, p1.ID, models.KindReview)
	_, err := complete(s, a)
	require.NoError(t, err)
	reserve(t, s, r, p2.ID, models.KindReview)

	stats, err := s.ReviewerStats(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompletedReviews)
	assert.Equal(t, 1, stats.PendingReviews)
}

func TestRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := testutil.CreateReviewer(t, s)
	admin := testutil.CreateReviewer(t, s, testutil.AsAdmin())

	req := &models.AssignmentRequest{RequesterID: r.ID, RequestType: models.RequestBoth}
	require.NoError(t, s.CreateRequest(ctx, req))
	assert.ErrorIs(t, s.CreateRequest(ctx, &models.AssignmentRequest{RequesterID: r.ID, RequestType: models.RequestReviews}), models.ErrPendingRequestExists)

	reason := "no open proposals"
	resolved, err := s.ResolveRequest(ctx, req.ID, models.RequestResolution{
		Status:         models.RequestDeclined,
		DeclinedReason: &reason,
		ResolvedBy:     admin.ID,
		ResolvedAt:     time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestDeclined, resolved.Status)

	_, err = s.ResolveRequest(ctx, req.ID, models.RequestResolution{Status: models.RequestFulfilled, ResolvedBy: admin.ID, ResolvedAt: time.Now()})
	assert.ErrorIs(t, err, models.ErrRequestNotPending)

	// a declined request frees the reviewer to ask again
	require.NoError(t, s.CreateRequest(ctx, &models.AssignmentRequest{RequesterID: r.ID, RequestType: models.RequestReviews}))

	pending, err := s.ListRequests(ctx, models.RequestFilter{Status: models.RequestPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	all, err := s.ListRequests(ctx, models.RequestFilter{RequesterID: &r.ID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestReviewerDirectory(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	r := testutil.NewReviewer(testutil.WithStatus(models.ReviewerStatusOnboarding))
	require.NoError(t, s.CreateReviewer(ctx, r))
	assert.ErrorIs(t, s.CreateReviewer(ctx, testutil.NewReviewer(func(x *models.Reviewer) { x.Email = r.Email })), models.ErrEmailTaken)

	require.NoError(t, s.CompleteOnboarding(ctx, r.ID, "Ada", models.ExpertiseList{{Area: "defi", Level: models.ExpertiseExpert}}))
	got, err := s.GetReviewerByEmail(ctx, r.Email)
	require.NoError(t, err)
	assert.True(t, got.CanReceiveWork())
	assert.Equal(t, "Ada", got.DisplayName)

	require.NoError(t, s.UpdateRepPoints(ctx, r.ID, -100))
	got, _ = s.GetReviewer(ctx, r.ID)
	assert.Equal(t, 0, got.RepPoints)

	_, err = s.GetReviewer(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
