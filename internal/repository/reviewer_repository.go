package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"proposal-review/internal/models"
)

const reviewerColumns = `id, email, display_name, role, status, onboarding_completed,
	expertise, rep_points, created_at, updated_at`

// ReviewerRepository handles reviewer database operations
type ReviewerRepository struct {
	db *sqlx.DB
}

// NewReviewerRepository creates a new reviewer repository
func NewReviewerRepository(db *sqlx.DB) *ReviewerRepository {
	return &ReviewerRepository{db: db}
}

// CreateReviewer creates a new reviewer
func (r *ReviewerRepository) CreateReviewer(ctx context.Context, reviewer *models.Reviewer) error {
	if reviewer.ID == uuid.Nil {
		reviewer.ID = uuid.New()
	}
	if reviewer.Expertise == nil {
		reviewer.Expertise = models.ExpertiseList{}
	}
	now := time.Now().UTC()
	if reviewer.CreatedAt.IsZero() {
		reviewer.CreatedAt = now
	}
	reviewer.UpdatedAt = now

	query := `
		INSERT INTO reviewers (id, email, display_name, role, status, onboarding_completed,
		                       expertise, rep_points, created_at, updated_at)
		VALUES (:id, LOWER(:email), :display_name, :role, :status, :onboarding_completed,
		        :expertise, :rep_points, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, reviewer); err != nil {
		if isUniqueViolation(err, "reviewers_email_key") {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("failed to create reviewer: %w", err)
	}
	reviewer.Email = strings.ToLower(reviewer.Email)
	return nil
}

// GetReviewer retrieves a reviewer by ID
func (r *ReviewerRepository) GetReviewer(ctx context.Context, id uuid.UUID) (*models.Reviewer, error) {
	reviewer := &models.Reviewer{}
	err := r.db.GetContext(ctx, reviewer, `SELECT `+reviewerColumns+` FROM reviewers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}
	return reviewer, nil
}

// GetReviewerByEmail retrieves a reviewer by email, case-insensitively
func (r *ReviewerRepository) GetReviewerByEmail(ctx context.Context, email string) (*models.Reviewer, error) {
	reviewer := &models.Reviewer{}
	err := r.db.GetContext(ctx, reviewer, `SELECT `+reviewerColumns+` FROM reviewers WHERE email = LOWER($1)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}
	return reviewer, nil
}

// ListReviewers lists reviewers with the given status, or all when empty
func (r *ReviewerRepository) ListReviewers(ctx context.Context, status models.ReviewerStatus) ([]models.Reviewer, error) {
	query := `SELECT ` + reviewerColumns + ` FROM reviewers WHERE ($1 = '' OR status = $1) ORDER BY created_at`

	reviewers := []models.Reviewer{}
	if err := r.db.SelectContext(ctx, &reviewers, query, string(status)); err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	return reviewers, nil
}

// UpdateReviewerStatus sets the lifecycle status
func (r *ReviewerRepository) UpdateReviewerStatus(ctx context.Context, id uuid.UUID, status models.ReviewerStatus) error {
	return r.update(ctx, `UPDATE reviewers SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

// CompleteOnboarding records expertise and activates the reviewer
func (r *ReviewerRepository) CompleteOnboarding(ctx context.Context, id uuid.UUID, displayName string, expertise models.ExpertiseList) error {
	query := `
		UPDATE reviewers
		SET display_name = COALESCE(NULLIF($2, ''), display_name),
		    expertise = $3,
		    onboarding_completed = TRUE,
		    status = 'active',
		    updated_at = NOW()
		WHERE id = $1
	`
	if expertise == nil {
		expertise = models.ExpertiseList{}
	}
	return r.update(ctx, query, id, displayName, expertise)
}

// UpdateRepPoints adds delta to the cached balance, clamping at zero
func (r *ReviewerRepository) UpdateRepPoints(ctx context.Context, id uuid.UUID, delta int) error {
	return r.update(ctx, `UPDATE reviewers SET rep_points = GREATEST(0, rep_points + $2), updated_at = NOW() WHERE id = $1`, id, delta)
}

// SetRepPoints replaces the cached balance if it still holds expected
func (r *ReviewerRepository) SetRepPoints(ctx context.Context, id uuid.UUID, expected, value int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reviewers SET rep_points = $3, updated_at = NOW() WHERE id = $1 AND rep_points = $2`,
		id, expected, value)
	if err != nil {
		return false, fmt.Errorf("failed to set reputation points: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

// Leaderboard returns non-suspended reviewers by cached balance
func (r *ReviewerRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	query := `
		SELECT id, display_name, rep_points
		FROM reviewers
		WHERE status <> 'suspended'
		ORDER BY rep_points DESC, display_name
		LIMIT $1
	`
	entries := []models.LeaderboardEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return entries, nil
}

func (r *ReviewerRepository) update(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update reviewer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}
