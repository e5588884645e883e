package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"proposal-review/internal/models"
)

const reviewColumns = `id, proposal_id, reviewer_id, assignment_id, status, quality, tags,
	target_peer_reviews, peer_assigned_count, completed_peer_reviews, completed_at, created_at`

// ReviewRepository handles review database operations
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// GetReview retrieves a review by ID
func (r *ReviewRepository) GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	review := &models.Review{}
	err := r.db.GetContext(ctx, review, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

// ListPeerReviewableReviews returns completed reviews below their peer
// target that were not written by excludeReviewer
func (r *ReviewRepository) ListPeerReviewableReviews(ctx context.Context, excludeReviewer uuid.UUID) ([]models.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE status = 'completed'
		  AND peer_assigned_count < target_peer_reviews
		  AND reviewer_id <> $1
		ORDER BY completed_at, id
	`
	reviews := []models.Review{}
	if err := r.db.SelectContext(ctx, &reviews, query, excludeReviewer); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}
