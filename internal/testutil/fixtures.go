package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"proposal-review/internal/models"
)

// Seeder is the subset of a store fixtures need
type Seeder interface {
	CreateReviewer(ctx context.Context, r *models.Reviewer) error
	CreateProposal(ctx context.Context, p *models.Proposal) error
}

// ReviewerOption customises a fixture reviewer
type ReviewerOption func(r *models.Reviewer)

// WithStatus sets the lifecycle status; onboarding also clears the
// onboarding flag
func WithStatus(status models.ReviewerStatus) ReviewerOption {
	return func(r *models.Reviewer) {
		r.Status = status
		if status == models.ReviewerStatusOnboarding {
			r.OnboardingCompleted = false
		}
	}
}

// WithExpertise declares expert-level areas
func WithExpertise(areas ...string) ReviewerOption {
	return func(r *models.Reviewer) {
		for _, a := range areas {
			r.Expertise = append(r.Expertise, models.Expertise{Area: a, Level: models.ExpertiseExpert})
		}
	}
}

// AsAdmin grants the admin role
func AsAdmin() ReviewerOption {
	return func(r *models.Reviewer) { r.Role = models.RoleAdmin }
}

// NewReviewer builds an active, onboarded reviewer
func NewReviewer(opts ...ReviewerOption) *models.Reviewer {
	id := uuid.New()
	r := &models.Reviewer{
		ID:                  id,
		Email:               fmt.Sprintf("%s@test.example", id.String()[:8]),
		DisplayName:         "Reviewer " + id.String()[:8],
		Role:                models.RoleReviewer,
		Status:              models.ReviewerStatusActive,
		OnboardingCompleted: true,
		Expertise:           models.ExpertiseList{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateReviewer persists a new fixture reviewer
func CreateReviewer(t *testing.T, s Seeder, opts ...ReviewerOption) *models.Reviewer {
	t.Helper()
	r := NewReviewer(opts...)
	if err := s.CreateReviewer(context.Background(), r); err != nil {
		t.Fatalf("Failed to create reviewer: %v", err)
	}
	return r
}

// CreateProposal persists a proposal by author with the given target,
// assigned count and tags. Each call is created one second after the last
// so ordering by age is deterministic.
func CreateProposal(t *testing.T, s Seeder, author *models.Reviewer, target int, tags ...string) *models.Proposal {
	t.Helper()
	if tags == nil {
		tags = []string{}
	}
	p := &models.Proposal{
		ID:            uuid.New(),
		Title:         "Proposal " + uuid.NewString()[:8],
		AuthorID:      author.ID,
		Tags:          tags,
		TargetReviews: target,
		CreatedAt:     nextFixtureTime(),
	}
	if err := s.CreateProposal(context.Background(), p); err != nil {
		t.Fatalf("Failed to create proposal: %v", err)
	}
	return p
}

var (
	fixtureMu    sync.Mutex
	fixtureClock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func nextFixtureTime() time.Time {
	fixtureMu.Lock()
	defer fixtureMu.Unlock()
	fixtureClock = fixtureClock.Add(time.Second)
	return fixtureClock
}
