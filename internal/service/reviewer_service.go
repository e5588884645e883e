package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"proposal-review/internal/assignment"
	"proposal-review/internal/models"
)

// ReviewerService manages the reviewer lifecycle: onboarding, active, suspended
type ReviewerService struct {
	reviewers   ReviewerDirectory
	assignments AssignmentStore
	ledger      *ReputationService
}

// ReviewerProfile is a reviewer with workload and ledger figures
type ReviewerProfile struct {
	Reviewer *models.Reviewer     `json:"reviewer"`
	Stats    models.ReviewerStats `json:"stats"`
	Balance  int                  `json:"balance"`
}

// NewReviewerService creates a new reviewer service
func NewReviewerService(store Store, ledger *ReputationService) *ReviewerService {
	return &ReviewerService{
		reviewers:   store,
		assignments: store,
		ledger:      ledger,
	}
}

// Register creates a reviewer in the onboarding state
func (s *ReviewerService) Register(ctx context.Context, email, displayName string, role models.Role) (*models.Reviewer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = models.RoleReviewer
	}
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	r := &models.Reviewer{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		Role:        role,
		Status:      models.ReviewerStatusOnboarding,
		Expertise:   models.ExpertiseList{},
	}
	if err := s.reviewers.CreateReviewer(ctx, r); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create reviewer: %w", err)
	}

	slog.Info("Reviewer registered", "reviewer_id", r.ID, "role", role)
	return r, nil
}

// GetProfile returns the reviewer with stats and balance
func (s *ReviewerService) GetProfile(ctx context.Context, id uuid.UUID) (*ReviewerProfile, error) {
	r, err := s.reviewers.GetReviewer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}
	stats, err := s.assignments.ReviewerStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviewer stats: %w", err)
	}
	balance, err := s.ledger.Balance(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ReviewerProfile{Reviewer: r, Stats: stats, Balance: balance}, nil
}

// CompleteOnboarding records declared expertise and activates the reviewer
func (s *ReviewerService) CompleteOnboarding(ctx context.Context, id uuid.UUID, displayName string, expertise models.ExpertiseList) (*models.Reviewer, error) {
	r, err := s.reviewers.GetReviewer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}
	if r.Status == models.ReviewerStatusSuspended {
		return nil, &ReviewerNotEligibleError{ReviewerID: id, Status: r.Status, Reason: assignment.ReasonInactive}
	}
	if r.OnboardingCompleted {
		return nil, ErrAlreadyOnboarded
	}

	cleaned := make(models.ExpertiseList, 0, len(expertise))
	seen := make(map[string]struct{}, len(expertise))
	for _, e := range expertise {
		area := strings.TrimSpace(e.Area)
		key := strings.ToLower(area)
		if area == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, models.Expertise{Area: area, Level: e.Level})
	}

	if err := s.reviewers.CompleteOnboarding(ctx, id, strings.TrimSpace(displayName), cleaned); err != nil {
		return nil, fmt.Errorf("failed to complete onboarding: %w", err)
	}

	slog.Info("Reviewer onboarded", "reviewer_id", id, "expertise_areas", len(cleaned))
	return s.reviewers.GetReviewer(ctx, id)
}

// Suspend stops the reviewer from receiving work. Pending assignments stay
// in place and are reclaimed by expiry if never completed.
func (s *ReviewerService) Suspend(ctx context.Context, adminID, id uuid.UUID) (*models.Reviewer, error) {
	return s.setStatus(ctx, adminID, id, models.ReviewerStatusSuspended)
}

// Reactivate lifts a suspension. Reviewers who never finished onboarding go
// back to onboarding rather than active.
func (s *ReviewerService) Reactivate(ctx context.Context, adminID, id uuid.UUID) (*models.Reviewer, error) {
	r, err := s.reviewers.GetReviewer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}
	status := models.ReviewerStatusActive
	if !r.OnboardingCompleted {
		status = models.ReviewerStatusOnboarding
	}
	return s.setStatus(ctx, adminID, id, status)
}

// ListReviewers lists reviewers, optionally by status
func (s *ReviewerService) ListReviewers(ctx context.Context, status models.ReviewerStatus) ([]models.Reviewer, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	list, err := s.reviewers.ListReviewers(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	return list, nil
}

func (s *ReviewerService) setStatus(ctx context.Context, adminID, id uuid.UUID, status models.ReviewerStatus) (*models.Reviewer, error) {
	if _, err := requireAdmin(ctx, s.reviewers, adminID); err != nil {
		return nil, err
	}
	if adminID == id && status == models.ReviewerStatusSuspended {
		return nil, ErrForbidden
	}
	if err := s.reviewers.UpdateReviewerStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to update reviewer status: %w", err)
	}
	slog.Info("Reviewer status changed", "reviewer_id", id, "admin_id", adminID, "status", status)
	return s.reviewers.GetReviewer(ctx, id)
}
