package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"proposal-review/internal/database"
	"proposal-review/internal/models"
)

const assignmentColumns = `id, reviewer_id, item_id, kind, status, assigned_by,
	assigned_at, last_activity_at, completed_at, expired_at`

// AssignmentRepository handles assignment database operations
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Reserve claims a slot with a conditional increment and inserts the
// assignment in the same transaction. Losing the race on the last slot, or
// already holding the item, yields models.ErrReservationConflict.
func (r *AssignmentRepository) Reserve(ctx context.Context, a *models.Assignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	a.LastActivityAt = a.AssignedAt
	a.Status = models.AssignmentPending

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		claimed, err := claimSlot(ctx, tx, a.Kind, a.ItemID, 1)
		if err != nil {
			return err
		}
		if !claimed {
			found, err := itemExists(ctx, tx, a.Kind, a.ItemID)
			if err != nil {
				return err
			}
			if !found {
				return models.ErrNotFound
			}
			return models.ErrReservationConflict
		}

		query := `
			INSERT INTO assignments (id, reviewer_id, item_id, kind, status, assigned_by, assigned_at, last_activity_at)
			VALUES (:id, :reviewer_id, :item_id, :kind, :status, :assigned_by, :assigned_at, :last_activity_at)
		`
		if _, err := tx.NamedExecContext(ctx, query, a); err != nil {
			if isUniqueViolation(err, "uq_assignments_live_claim") {
				return models.ErrReservationConflict
			}
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		return nil
	})
}

// GetAssignment retrieves an assignment by ID
func (r *AssignmentRepository) GetAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	a := &models.Assignment{}
	err := r.db.GetContext(ctx, a, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// ListAssignments returns a reviewer's assignments, newest first
func (r *AssignmentRepository) ListAssignments(ctx context.Context, reviewerID uuid.UUID, status models.AssignmentStatus) ([]models.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE reviewer_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY assigned_at DESC
	`
	list := []models.Assignment{}
	if err := r.db.SelectContext(ctx, &list, query, reviewerID, string(status)); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return list, nil
}

// HeldItems returns items the reviewer has a pending or completed claim on
func (r *AssignmentRepository) HeldItems(ctx context.Context, reviewerID uuid.UUID, kind models.AssignmentKind) ([]uuid.UUID, error) {
	query := `
		SELECT item_id FROM assignments
		WHERE reviewer_id = $1 AND kind = $2 AND status IN ('pending', 'completed')
	`
	ids := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &ids, query, reviewerID, kind); err != nil {
		return nil, fmt.Errorf("failed to load held items: %w", err)
	}
	return ids, nil
}

// TouchAssignment records activity on a pending assignment
func (r *AssignmentRepository) TouchAssignment(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE assignments SET last_activity_at = GREATEST(last_activity_at, $2) WHERE id = $1 AND status = 'pending'`,
		id, at)
	if err != nil {
		return fmt.Errorf("failed to touch assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		found, err := exists(ctx, r.db, `SELECT 1 FROM assignments WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to check assignment: %w", err)
		}
		if !found {
			return models.ErrNotFound
		}
		return models.ErrAssignmentNotPending
	}
	return nil
}

// ExpireStale expires pending assignments idle since before cutoff and
// releases their slots
func (r *AssignmentRepository) ExpireStale(ctx context.Context, cutoff, now time.Time) ([]models.Assignment, error) {
	var expired []models.Assignment

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE assignments
			SET status = 'expired', expired_at = $2
			WHERE id IN (
				SELECT id FROM assignments
				WHERE status = 'pending' AND last_activity_at < $1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING ` + assignmentColumns
		if err := tx.SelectContext(ctx, &expired, query, cutoff, now); err != nil {
			return fmt.Errorf("failed to expire assignments: %w", err)
		}

		for _, a := range expired {
			if _, err := claimSlot(ctx, tx, a.Kind, a.ItemID, -1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// ReviewerStats counts a reviewer's completed records and pending assignments
func (r *AssignmentRepository) ReviewerStats(ctx context.Context, reviewerID uuid.UUID) (models.ReviewerStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM reviews WHERE reviewer_id = $1 AND status = 'completed') AS completed_reviews,
			(SELECT COUNT(*) FROM peer_reviews WHERE reviewer_id = $1) AS completed_peer_reviews,
			COUNT(*) FILTER (WHERE kind = 'review' AND status = 'pending') AS pending_reviews,
			COUNT(*) FILTER (WHERE kind = 'peer_review' AND status = 'pending') AS pending_peer_reviews
		FROM assignments
		WHERE reviewer_id = $1
	`
	var row struct {
		CompletedReviews     int `db:"completed_reviews"`
		CompletedPeerReviews int `db:"completed_peer_reviews"`
		PendingReviews       int `db:"pending_reviews"`
		PendingPeerReviews   int `db:"pending_peer_reviews"`
	}
	if err := r.db.GetContext(ctx, &row, query, reviewerID); err != nil {
		return models.ReviewerStats{}, fmt.Errorf("failed to load reviewer stats: %w", err)
	}
	return models.ReviewerStats{
		ReviewerID:           reviewerID,
		CompletedReviews:     row.CompletedReviews,
		CompletedPeerReviews: row.CompletedPeerReviews,
		PendingReviews:       row.PendingReviews,
		PendingPeerReviews:   row.PendingPeerReviews,
	}, nil
}

// claimSlot moves an item's assigned counter by delta. An increment only
// applies while the item is below target; it reports whether a row changed.
func claimSlot(ctx context.Context, tx *sqlx.Tx, kind models.AssignmentKind, itemID uuid.UUID, delta int) (bool, error) {
	var query string
	switch {
	case kind == models.KindReview && delta > 0:
		query = `UPDATE proposals SET assigned_count = assigned_count + $2 WHERE id = $1 AND assigned_count < target_reviews`
	case kind == models.KindReview:
		query = `UPDATE proposals SET assigned_count = GREATEST(0, assigned_count + $2) WHERE id = $1`
	case kind == models.KindPeerReview && delta > 0:
		query = `UPDATE reviews SET peer_assigned_count = peer_assigned_count + $2
			WHERE id = $1 AND status = 'completed' AND peer_assigned_count < target_peer_reviews`
	case kind == models.KindPeerReview:
		query = `UPDATE reviews SET peer_assigned_count = GREATEST(0, peer_assigned_count + $2) WHERE id = $1`
	default:
		return false, fmt.Errorf("invalid assignment kind %q", kind)
	}

	result, err := tx.ExecContext(ctx, query, itemID, delta)
	if err != nil {
		return false, fmt.Errorf("failed to update slot count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func itemExists(ctx context.Context, tx *sqlx.Tx, kind models.AssignmentKind, itemID uuid.UUID) (bool, error) {
	table := "proposals"
	if kind == models.KindPeerReview {
		table = "reviews"
	}
	found, err := exists(ctx, tx, `SELECT 1 FROM `+table+` WHERE id = $1`, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to check item: %w", err)
	}
	return found, nil
}
