package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposal-review/internal/events"
	"proposal-review/internal/models"
	fixtures "proposal-review/internal/testutil"
)

func TestCreateRequestSnapshotsStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.reviewer(t)
	r := env.reviewer(t)
	p := fixtures.CreateProposal(t, env.store, author, 3)
	fixtures.CreateProposal(t, env.store, author, 3)
	env.completeReview(t, r, p)
	_, err := env.assignments.RequestAssignment(ctx, r.ID, models.KindReview)
	require.NoError(t, err)

	req, err := env.requests.CreateRequest(ctx, r.ID, models.RequestBoth, "  more please ")
	require.NoError(t, err)

	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, "more please", req.Message)
	assert.Equal(t, 1, req.Stats.CompletedReviews)
	assert.Equal(t, 1, req.Stats.PendingReviews)
	assert.Equal(t, models.ReviewPoints, req.Stats.RepPoints)
	assert.Len(t, env.recorder.OfType(events.RequestCreated), 1)
}

func TestCreateRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("invalid type", func(t *testing.T) {
		r := env.reviewer(t)
		_, err := env.requests.CreateRequest(ctx, r.ID, "everything", "")
		assert.ErrorIs(t, err, ErrInvalidRequestType)
	})

	t.Run("suspended reviewer", func(t *testing.T) {
		r := env.reviewer(t, fixtures.WithStatus(models.ReviewerStatusSuspended))
		_, err := env.requests.CreateRequest(ctx, r.ID, models.RequestReviews, "")
		var notEligible *ReviewerNotEligibleError
		assert.ErrorAs(t, err, &notEligible)
	})

	t.Run("one pending request", func(t *testing.T) {
		r := env.reviewer(t)
		_, err := env.requests.CreateRequest(ctx, r.ID, models.RequestReviews, "")
		require.NoError(t, err)
		_, err = env.requests.CreateRequest(ctx, r.ID, models.RequestPeerReviews, "")
		assert.ErrorIs(t, err, models.ErrPendingRequestExists)
	})
}

func TestRequestStateMachine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	r := env.reviewer(t)

	req, err := env.requests.CreateRequest(ctx, r.ID, models.RequestReviews, "")
	require.NoError(t, err)

	_, err = env.requests.Fulfill(ctx, r.ID, req.ID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	note := " assigned two by hand "
	fulfilled, err := env.requests.Fulfill(ctx, admin.ID, req.ID, &note)
	require.NoError(t, err)
	assert.Equal(t, models.RequestFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.AdminNote)
	assert.Equal(t, "assigned two by hand", *fulfilled.AdminNote)
	require.NotNil(t, fulfilled.ResolvedBy)
	assert.Equal(t, admin.ID, *fulfilled.ResolvedBy)

	// terminal states are never reopened
	_, err = env.requests.Decline(ctx, admin.ID, req.ID, "too late", nil)
	assert.ErrorIs(t, err, models.ErrRequestNotPending)
	_, err = env.requests.Fulfill(ctx, admin.ID, req.ID, nil)
	assert.ErrorIs(t, err, models.ErrRequestNotPending)

	// fulfilment does not create assignments
	list, err := env.assignments.ListAssignments(ctx, r.ID, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.Equal(t, 1, env.notifier.count())
	assert.Len(t, env.recorder.OfType(events.RequestResolved), 1)

	// a resolved request frees the reviewer to ask again
	_, err = env.requests.CreateRequest(ctx, r.ID, models.RequestReviews, "")
	assert.NoError(t, err)
}

func TestDeclineRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	r := env.reviewer(t)

	req, err := env.requests.CreateRequest(ctx, r.ID, models.RequestPeerReviews, "")
	require.NoError(t, err)

	_, err = env.requests.Decline(ctx, admin.ID, req.ID, "  ", nil)
	assert.ErrorIs(t, err, ErrDeclineReasonRequired)

	reason := "pool is empty"
	declined, err := env.requests.Patch(ctx, admin.ID, req.ID, RequestPatch{
		Status:         models.RequestDeclined,
		DeclinedReason: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestDeclined, declined.Status)
	require.NotNil(t, declined.DeclinedReason)
	assert.Equal(t, reason, *declined.DeclinedReason)
}

func TestPatchRejectsPending(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin(t)
	_, err := env.requests.Patch(context.Background(), admin.ID, uuid.New(), RequestPatch{Status: models.RequestPending})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestResolveUnknownRequest(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin(t)
	_, err := env.requests.Fulfill(context.Background(), admin.ID, uuid.New(), nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	a := env.reviewer(t)
	b := env.reviewer(t)

	reqA, err := env.requests.CreateRequest(ctx, a.ID, models.RequestReviews, "")
	require.NoError(t, err)
	_, err = env.requests.CreateRequest(ctx, b.ID, models.RequestReviews, "")
	require.NoError(t, err)
	_, err = env.requests.Decline(ctx, admin.ID, reqA.ID, "no capacity", nil)
	require.NoError(t, err)

	pending, err := env.requests.ListRequests(ctx, models.RequestFilter{Status: models.RequestPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].RequesterID)

	mine, err := env.requests.ListMine(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.RequestDeclined, mine[0].Status)

	_, err = env.requests.ListRequests(ctx, models.RequestFilter{Status: "open"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
