package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposal-review/internal/models"
	fixtures "proposal-review/internal/testutil"
)

func TestReviewerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)

	r, err := env.reviewers.Register(ctx, " New.Reviewer@Example.com ", "New Reviewer", "")
	require.NoError(t, err)
	assert.Equal(t, "new.reviewer@example.com", r.Email)
	assert.Equal(t, models.ReviewerStatusOnboarding, r.Status)
	assert.Equal(t, models.RoleReviewer, r.Role)

	_, err = env.reviewers.Register(ctx, "new.reviewer@example.com", "Again", "")
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	onboarded, err := env.reviewers.CompleteOnboarding(ctx, r.ID, "Nova", models.ExpertiseList{
		{Area: "Governance", Level: models.ExpertiseExpert},
		{Area: "governance ", Level: models.ExpertiseBeginner},
		{Area: " ", Level: models.ExpertiseBeginner},
		{Area: "DeFi", Level: models.ExpertiseIntermediate},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewerStatusActive, onboarded.Status)
	assert.True(t, onboarded.OnboardingCompleted)
	assert.Len(t, onboarded.Expertise, 2)
	assert.Equal(t, "Nova", onboarded.DisplayName)

	_, err = env.reviewers.CompleteOnboarding(ctx, r.ID, "Nova", nil)
	assert.ErrorIs(t, err, ErrAlreadyOnboarded)

	suspended, err := env.reviewers.Suspend(ctx, admin.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewerStatusSuspended, suspended.Status)

	_, err = env.assignments.RequestAssignment(ctx, r.ID, models.KindReview)
	var notEligible *ReviewerNotEligibleError
	assert.ErrorAs(t, err, &notEligible)

	reactivated, err := env.reviewers.Reactivate(ctx, admin.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewerStatusActive, reactivated.Status)
}

func TestReactivateUnonboardedReviewer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	r := env.reviewer(t, fixtures.WithStatus(models.ReviewerStatusOnboarding))

	_, err := env.reviewers.Suspend(ctx, admin.ID, r.ID)
	require.NoError(t, err)

	_, err = env.reviewers.CompleteOnboarding(ctx, r.ID, "x", nil)
	var notEligible *ReviewerNotEligibleError
	assert.ErrorAs(t, err, &notEligible)

	back, err := env.reviewers.Reactivate(ctx, admin.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewerStatusOnboarding, back.Status)
}

func TestSuspendRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.reviewer(t)
	other := env.reviewer(t)

	_, err := env.reviewers.Suspend(ctx, r.ID, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	admin := env.admin(t)
	_, err = env.reviewers.Suspend(ctx, admin.ID, admin.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t)
	author := env.reviewer(t)
	r := env.reviewer(t)
	p := fixtures.CreateProposal(t, env.store, author, 3)
	env.completeReview(t, r, p)

	profile, err := env.reviewers.GetProfile(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, profile.Reviewer.ID)
	assert.Equal(t, 1, profile.Stats.CompletedReviews)
	assert.Equal(t, models.ReviewPoints, profile.Balance)
}

func TestListReviewersByStatus(t *testing.T) {
	env := newTestEnv(t)
	env.reviewer(t)
	env.reviewer(t, fixtures.WithStatus(models.ReviewerStatusSuspended))

	suspended, err := env.reviewers.ListReviewers(context.Background(), models.ReviewerStatusSuspended)
	require.NoError(t, err)
	assert.Len(t, suspended, 1)

	_, err = env.reviewers.ListReviewers(context.Background(), "retired")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestPublishProposal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	author := env.reviewer(t)

	p, err := env.proposals.Publish(ctx, admin.ID, author.ID, " Grants v2 ", []string{"DeFi", "defi", " ", "zk"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "Grants v2", p.Title)
	assert.Equal(t, env.cfg.ReviewTarget, p.TargetReviews)
	assert.Equal(t, []string{"defi", "zk"}, []string(p.Tags))

	_, err = env.proposals.Publish(ctx, author.ID, author.ID, "x", nil, 1)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := env.proposals.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestAuditService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	audit := NewAuditService(env.store)
	admin := env.admin(t)

	audit.Log(ctx, &admin.ID, "assignment_request.resolve", "assignment_requests", `{"status":"fulfilled"}`, "10.0.0.1")
	audit.Log(ctx, nil, "assignments.reclaim", "assignments", "", "")

	logs, err := audit.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "assignments.reclaim", logs[0].Action)
}
