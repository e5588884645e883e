package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"proposal-review/internal/assignment"
	"proposal-review/internal/events"
	"proposal-review/internal/metrics"
	"proposal-review/internal/models"
)

// AssignmentRequestService runs the request queue: reviewers ask for more
// work, admins fulfil or decline. Requests move pending -> fulfilled or
// pending -> declined exactly once. Fulfilling does not create an
// assignment; it records that work was handed out separately.
type AssignmentRequestService struct {
	reviewers   ReviewerDirectory
	assignments AssignmentStore
	requests    AssignmentRequestStore
	ledger      *ReputationService
	notifier    Notifier
	publisher   events.Publisher
	metrics     *metrics.EngineMetrics
	now         func() time.Time
}

// RequestPatch is an admin update to a request
type RequestPatch struct {
	Status         models.RequestStatus
	AdminNote      *string
	DeclinedReason *string
}

// NewAssignmentRequestService creates a new request queue service.
// notifier may be nil.
func NewAssignmentRequestService(
	store Store,
	ledger *ReputationService,
	notifier Notifier,
	publisher events.Publisher,
	m *metrics.EngineMetrics,
) *AssignmentRequestService {
	return &AssignmentRequestService{
		reviewers:   store,
		assignments: store,
		requests:    store,
		ledger:      ledger,
		notifier:    notifier,
		publisher:   publisher,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest files a request for more work with a snapshot of the
// reviewer's current workload
func (s *AssignmentRequestService) CreateRequest(ctx context.Context, requesterID uuid.UUID, requestType models.RequestType, message string) (*models.AssignmentRequest, error) {
	if !requestType.Valid() {
		return nil, ErrInvalidRequestType
	}

	reviewer, err := s.reviewers.GetReviewer(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}
	if !reviewer.CanReceiveWork() {
		return nil, &ReviewerNotEligibleError{ReviewerID: reviewer.ID, Status: reviewer.Status, Reason: assignment.ReasonInactive}
	}

	stats, err := s.assignments.ReviewerStats(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviewer stats: %w", err)
	}
	balance, err := s.ledger.Balance(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	req := &models.AssignmentRequest{
		ID:          uuid.New(),
		RequesterID: requesterID,
		RequestType: requestType,
		Status:      models.RequestPending,
		Stats:       stats.Snapshot(balance),
		Message:     strings.TrimSpace(message),
		CreatedAt:   s.now(),
	}
	if err := s.requests.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, models.ErrPendingRequestExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create assignment request: %w", err)
	}

	s.metrics.RecordRequest(string(models.RequestPending))
	slog.Info("Assignment request created",
		"request_id", req.ID,
		"reviewer_id", requesterID,
		"request_type", requestType,
	)
	publish(ctx, s.publisher, events.New(events.RequestCreated, requesterID, req))
	return req, nil
}

// GetRequest returns a single request
func (s *AssignmentRequestService) GetRequest(ctx context.Context, id uuid.UUID) (*models.AssignmentRequest, error) {
	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment request: %w", err)
	}
	return req, nil
}

// ListMine returns the reviewer's own requests, newest first
func (s *AssignmentRequestService) ListMine(ctx context.Context, requesterID uuid.UUID) ([]models.AssignmentRequest, error) {
	return s.ListRequests(ctx, models.RequestFilter{RequesterID: &requesterID})
}

// ListRequests returns requests matching filter, newest first
func (s *AssignmentRequestService) ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.AssignmentRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	list, err := s.requests.ListRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignment requests: %w", err)
	}
	return list, nil
}

// Fulfill marks a pending request as fulfilled
func (s *AssignmentRequestService) Fulfill(ctx context.Context, adminID, id uuid.UUID, note *string) (*models.AssignmentRequest, error) {
	return s.resolve(ctx, adminID, id, models.RequestResolution{
		Status:    models.RequestFulfilled,
		AdminNote: trimmed(note),
	})
}

// Decline marks a pending request as declined; a reason is required
func (s *AssignmentRequestService) Decline(ctx context.Context, adminID, id uuid.UUID, reason string, note *string) (*models.AssignmentRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrDeclineReasonRequired
	}
	return s.resolve(ctx, adminID, id, models.RequestResolution{
		Status:         models.RequestDeclined,
		AdminNote:      trimmed(note),
		DeclinedReason: &reason,
	})
}

// Patch applies an admin status change
func (s *AssignmentRequestService) Patch(ctx context.Context, adminID, id uuid.UUID, patch RequestPatch) (*models.AssignmentRequest, error) {
	switch patch.Status {
	case models.RequestFulfilled:
		return s.Fulfill(ctx, adminID, id, patch.AdminNote)
	case models.RequestDeclined:
		reason := ""
		if patch.DeclinedReason != nil {
			reason = *patch.DeclinedReason
		}
		return s.Decline(ctx, adminID, id, reason, patch.AdminNote)
	}
	return nil, ErrInvalidStatus
}

func (s *AssignmentRequestService) resolve(ctx context.Context, adminID, id uuid.UUID, res models.RequestResolution) (*models.AssignmentRequest, error) {
	if _, err := requireAdmin(ctx, s.reviewers, adminID); err != nil {
		return nil, err
	}

	res.ResolvedBy = adminID
	res.ResolvedAt = s.now()

	req, err := s.requests.ResolveRequest(ctx, id, res)
	if err != nil {
		if errors.Is(err, models.ErrRequestNotPending) || errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve assignment request: %w", err)
	}

	s.metrics.RecordRequest(string(req.Status))
	slog.Info("Assignment request resolved",
		"request_id", req.ID,
		"reviewer_id", req.RequesterID,
		"admin_id", adminID,
		"status", req.Status,
	)
	publish(ctx, s.publisher, events.New(events.RequestResolved, req.RequesterID, req))
	s.notify(ctx, req)

	return req, nil
}

func (s *AssignmentRequestService) notify(ctx context.Context, req *models.AssignmentRequest) {
	if s.notifier == nil {
		return
	}
	requester, err := s.reviewers.GetReviewer(ctx, req.RequesterID)
	if err != nil {
		slog.Error("Failed to load requester for notification", "request_id", req.ID, "error", err)
		return
	}
	if err := s.notifier.NotifyRequestResolved(ctx, requester, req); err != nil {
		slog.Error("Failed to send request notification", "request_id", req.ID, "error", err)
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
