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

const requestColumns = `id, requester_id, request_type, status, stats, message, admin_note,
	declined_reason, resolved_by, resolved_at, created_at, updated_at`

// RequestRepository handles assignment request database operations
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new assignment request repository
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// CreateRequest stores a new pending request. A second pending request for
// the same reviewer is rejected by the partial unique index.
func (r *RequestRepository) CreateRequest(ctx context.Context, req *models.AssignmentRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.UpdatedAt = req.CreatedAt
	req.Status = models.RequestPending

	query := `
		INSERT INTO assignment_requests (id, requester_id, request_type, status, stats, message, created_at, updated_at)
		VALUES (:id, :requester_id, :request_type, :status, :stats, :message, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		if isUniqueViolation(err, "uq_assignment_requests_one_pending") {
			return models.ErrPendingRequestExists
		}
		return fmt.Errorf("failed to create assignment request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by ID
func (r *RequestRepository) GetRequest(ctx context.Context, id uuid.UUID) (*models.AssignmentRequest, error) {
	req := &models.AssignmentRequest{}
	err := r.db.GetContext(ctx, req, `SELECT `+requestColumns+` FROM assignment_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment request: %w", err)
	}
	return req, nil
}

// ListRequests returns requests matching filter, newest first
func (r *RequestRepository) ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.AssignmentRequest, error) {
	var conditions []string
	var args []any

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}

	query := `SELECT ` + requestColumns + ` FROM assignment_requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	requests := []models.AssignmentRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list assignment requests: %w", err)
	}
	return requests, nil
}

// ResolveRequest applies res only while the request is pending
func (r *RequestRepository) ResolveRequest(ctx context.Context, id uuid.UUID, res models.RequestResolution) (*models.AssignmentRequest, error) {
	query := `
		UPDATE assignment_requests
		SET status = $2, admin_note = $3, declined_reason = $4,
		    resolved_by = $5, resolved_at = $6, updated_at = $6
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestColumns

	req := &models.AssignmentRequest{}
	err := r.db.GetContext(ctx, req, query, id, res.Status, res.AdminNote, res.DeclinedReason, res.ResolvedBy, res.ResolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		found, existsErr := exists(ctx, r.db, `SELECT 1 FROM assignment_requests WHERE id = $1`, id)
		if existsErr != nil {
			return nil, fmt.Errorf("failed to check assignment request: %w", existsErr)
		}
		if !found {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrRequestNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignment request: %w", err)
	}
	return req, nil
}
