package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"proposal-review/internal/database"
	"proposal-review/internal/models"
)

// CompletionRepository records finished work and credits the reviewer
type CompletionRepository struct {
	db *sqlx.DB
}

// NewCompletionRepository creates a new completion repository
func NewCompletionRepository(db *sqlx.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// RecordCompletion inserts the Review or PeerReview, completes the
// assignment and credits the cached balance in one transaction. The record
// insert runs first so a replay always surfaces as
// models.ErrDuplicateCompletion through the unique indexes.
func (r *CompletionRepository) RecordCompletion(ctx context.Context, c *models.Completion, peerReviewTarget int) (uuid.UUID, error) {
	recordID := uuid.New()

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var a models.Assignment
		err := tx.GetContext(ctx, &a, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1 FOR UPDATE`, c.AssignmentID)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock assignment: %w", err)
		}
		if a.ReviewerID != c.ReviewerID || a.ItemID != c.ItemID || a.Kind != c.Kind {
			return models.ErrNotFound
		}

		if err := insertRecord(ctx, tx, recordID, c, peerReviewTarget); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE assignments
			SET status = 'completed', completed_at = $2, last_activity_at = $2
			WHERE id = $1 AND status = 'pending'
		`, c.AssignmentID, c.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to complete assignment: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		} else if rows == 0 {
			return models.ErrAssignmentNotPending
		}

		result, err = tx.ExecContext(ctx,
			`UPDATE reviewers SET rep_points = rep_points + $2, updated_at = NOW() WHERE id = $1`,
			c.ReviewerID, c.Points)
		if err != nil {
			return fmt.Errorf("failed to credit reviewer: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		} else if rows == 0 {
			return models.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return recordID, nil
}

func insertRecord(ctx context.Context, tx *sqlx.Tx, recordID uuid.UUID, c *models.Completion, peerReviewTarget int) error {
	var insert, counter string
	var args []any

	switch c.Kind {
	case models.KindReview:
		insert = `
			INSERT INTO reviews (id, proposal_id, reviewer_id, assignment_id, quality, tags,
			                     target_peer_reviews, completed_at, created_at)
			SELECT $1, p.id, $2, $3, $4, p.tags, $5, $6, $6
			FROM proposals p WHERE p.id = $7
		`
		args = []any{recordID, c.ReviewerID, c.AssignmentID, c.Quality, peerReviewTarget, c.CompletedAt, c.ItemID}
		counter = `UPDATE proposals SET completed_reviews = completed_reviews + 1 WHERE id = $1`
	case models.KindPeerReview:
		insert = `
			INSERT INTO peer_reviews (id, review_id, reviewer_id, assignment_id, rating, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		args = []any{recordID, c.ItemID, c.ReviewerID, c.AssignmentID, c.Quality, c.CompletedAt}
		counter = `UPDATE reviews SET completed_peer_reviews = completed_peer_reviews + 1 WHERE id = $1`
	default:
		return fmt.Errorf("invalid assignment kind %q", c.Kind)
	}

	result, err := tx.ExecContext(ctx, insert, args...)
	if err != nil {
		if isUniqueViolation(err, "") {
			return models.ErrDuplicateCompletion
		}
		return fmt.Errorf("failed to insert %s: %w", c.Kind, err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	} else if rows == 0 {
		return models.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, counter, c.ItemID); err != nil {
		return fmt.Errorf("failed to update completion count: %w", err)
	}
	return nil
}

// CountCompletions counts the reviewer's finished Reviews and PeerReviews
func (r *CompletionRepository) CountCompletions(ctx context.Context, reviewerID uuid.UUID) (models.CompletionCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM reviews WHERE reviewer_id = $1 AND status = 'completed') AS reviews,
			(SELECT COUNT(*) FROM peer_reviews WHERE reviewer_id = $1) AS peer_reviews
	`
	var counts models.CompletionCounts
	if err := r.db.GetContext(ctx, &counts, query, reviewerID); err != nil {
		return counts, fmt.Errorf("failed to count completions: %w", err)
	}
	return counts, nil
}
