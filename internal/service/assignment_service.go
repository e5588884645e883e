package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"proposal-review/internal/assignment"
	"proposal-review/internal/config"
	"proposal-review/internal/events"
	"proposal-review/internal/metrics"
	"proposal-review/internal/models"
)

// AssignmentService orchestrates work distribution: it pulls the candidate
// pool, filters and ranks it, and reserves the best item atomically.
type AssignmentService struct {
	reviewers    ReviewerDirectory
	proposals    ProposalStore
	reviews      ReviewStore
	assignments  AssignmentStore
	ledger       *ReputationService
	publisher    events.Publisher
	metrics      *metrics.EngineMetrics
	retryBudget  int
	expiryWindow time.Duration
	now          func() time.Time
}

// CompletionResult is returned when an assignment is completed
type CompletionResult struct {
	AssignmentID uuid.UUID             `json:"assignment_id"`
	RecordID     uuid.UUID             `json:"record_id"`
	Kind         models.AssignmentKind `json:"kind"`
	Points       int                   `json:"points"`
}

// NewAssignmentService creates a new assignment orchestrator
func NewAssignmentService(
	store Store,
	ledger *ReputationService,
	publisher events.Publisher,
	m *metrics.EngineMetrics,
	cfg *config.AssignmentConfig,
) *AssignmentService {
	retry := cfg.RetryBudget
	if retry < 1 {
		retry = 3
	}
	return &AssignmentService{
		reviewers:    store,
		proposals:    store,
		reviews:      store,
		assignments:  store,
		ledger:       ledger,
		publisher:    publisher,
		metrics:      m,
		retryBudget:  retry,
		expiryWindow: cfg.ExpiryWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RequestAssignment hands the reviewer the best available item of kind.
// It returns ErrNoWorkAvailable when nothing can be reserved within the
// retry budget, and *ReviewerNotEligibleError for inactive reviewers.
func (s *AssignmentService) RequestAssignment(ctx context.Context, reviewerID uuid.UUID, kind models.AssignmentKind) (*models.Assignment, error) {
	start := time.Now()
	label := kindLabel(kind)
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	reviewer, err := s.reviewers.GetReviewer(ctx, reviewerID)
	if err != nil {
		s.metrics.RecordAssignment(label, metrics.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}
	if !reviewer.CanReceiveWork() {
		s.metrics.RecordAssignment(label, metrics.OutcomeNotEligible, time.Since(start))
		return nil, &ReviewerNotEligibleError{ReviewerID: reviewer.ID, Status: reviewer.Status, Reason: assignment.ReasonInactive}
	}

	pool, err := s.candidates(ctx, reviewer.ID, kind)
	if err != nil {
		s.metrics.RecordAssignment(label, metrics.OutcomeError, time.Since(start))
		return nil, err
	}
	held, err := s.heldPairings(ctx, reviewer.ID, kind)
	if err != nil {
		s.metrics.RecordAssignment(label, metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	ranked := assignment.Rank(reviewer, assignment.Filter(reviewer, pool, kind, held))
	attempts := min(len(ranked), s.retryBudget)

	for i := 0; i < attempts; i++ {
		c := ranked[i]
		a := &models.Assignment{
			ReviewerID: reviewer.ID,
			ItemID:     c.ItemID,
			Kind:       kind,
			AssignedAt: s.now(),
		}
		err := s.assignments.Reserve(ctx, a)
		if errors.Is(err, models.ErrReservationConflict) {
			s.metrics.RecordReservationConflict(label)
			slog.Debug("Reservation conflict, trying next candidate",
				"reviewer_id", reviewer.ID,
				"item_id", c.ItemID,
				"attempt", i+1,
			)
			continue
		}
		if err != nil {
			s.metrics.RecordAssignment(label, metrics.OutcomeError, time.Since(start))
			return nil, fmt.Errorf("failed to reserve assignment: %w", err)
		}

		s.metrics.RecordAssignment(label, metrics.OutcomeAssigned, time.Since(start))
		slog.Info("Assignment reserved",
			"assignment_id", a.ID,
			"reviewer_id", reviewer.ID,
			"item_id", a.ItemID,
			"kind", kind,
			"deficit", assignment.Deficit(c),
		)
		publish(ctx, s.publisher, events.New(events.AssignmentCreated, reviewer.ID, a))
		return a, nil
	}

	s.metrics.RecordAssignment(label, metrics.OutcomeNoWork, time.Since(start))
	slog.Info("No work available",
		"reviewer_id", reviewer.ID,
		"kind", kind,
		"eligible", len(ranked),
		"attempts", attempts,
	)
	return nil, ErrNoWorkAvailable
}

// AssignDirect lets an admin hand a specific item to a reviewer. Ranking is
// bypassed but eligibility still applies.
func (s *AssignmentService) AssignDirect(ctx context.Context, adminID, reviewerID, itemID uuid.UUID, kind models.AssignmentKind) (*models.Assignment, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if _, err := requireAdmin(ctx, s.reviewers, adminID); err != nil {
		return nil, err
	}

	reviewer, err := s.reviewers.GetReviewer(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}
	c, err := s.candidate(ctx, itemID, kind)
	if err != nil {
		return nil, err
	}
	held, err := s.heldPairings(ctx, reviewer.ID, kind)
	if err != nil {
		return nil, err
	}

	switch reason := assignment.CheckEligibility(reviewer, c, kind, held); reason {
	case assignment.Eligible:
	case assignment.ReasonFull:
		return nil, ErrItemFullyStaffed
	default:
		return nil, &ReviewerNotEligibleError{ReviewerID: reviewer.ID, Status: reviewer.Status, Reason: reason}
	}

	a := &models.Assignment{
		ReviewerID: reviewer.ID,
		ItemID:     itemID,
		Kind:       kind,
		AssignedBy: &adminID,
		AssignedAt: s.now(),
	}
	if err := s.assignments.Reserve(ctx, a); err != nil {
		if errors.Is(err, models.ErrReservationConflict) {
			return nil, ErrItemFullyStaffed
		}
		return nil, fmt.Errorf("failed to reserve assignment: %w", err)
	}

	slog.Info("Assignment created by admin",
		"assignment_id", a.ID,
		"admin_id", adminID,
		"reviewer_id", reviewer.ID,
		"item_id", itemID,
		"kind", kind,
	)
	publish(ctx, s.publisher, events.New(events.AssignmentCreated, reviewer.ID, a))
	return a, nil
}

// CompleteAssignment converts the reviewer's pending assignment into a
// finished Review or PeerReview and credits the ledger. The transition is final.
func (s *AssignmentService) CompleteAssignment(ctx context.Context, reviewerID, assignmentID uuid.UUID, quality int) (*CompletionResult, error) {
	a, err := s.ownedAssignment(ctx, reviewerID, assignmentID)
	if err != nil {
		return nil, err
	}

	c := &models.Completion{
		AssignmentID: a.ID,
		ReviewerID:   a.ReviewerID,
		ItemID:       a.ItemID,
		Kind:         a.Kind,
		Quality:      quality,
		CompletedAt:  s.now(),
	}
	recordID, err := s.ledger.RecordCompletion(ctx, c)
	if err != nil {
		return nil, err
	}

	return &CompletionResult{
		AssignmentID: a.ID,
		RecordID:     recordID,
		Kind:         a.Kind,
		Points:       c.Points,
	}, nil
}

// TouchAssignment records reviewer activity, pushing back expiry
func (s *AssignmentService) TouchAssignment(ctx context.Context, reviewerID, assignmentID uuid.UUID) error {
	if _, err := s.ownedAssignment(ctx, reviewerID, assignmentID); err != nil {
		return err
	}
	if err := s.assignments.TouchAssignment(ctx, assignmentID, s.now()); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ReclaimExpired expires pending assignments idle for longer than the expiry
// window, returning their slots to the pool
func (s *AssignmentService) ReclaimExpired(ctx context.Context) ([]models.Assignment, error) {
	now := s.now()
	cutoff := now.Add(-s.expiryWindow)

	expired, err := s.assignments.ExpireStale(ctx, cutoff, now)
	if err != nil {
		return expired, fmt.Errorf("failed to expire assignments: %w", err)
	}

	perKind := make(map[models.AssignmentKind]int)
	for i := range expired {
		a := &expired[i]
		perKind[a.Kind]++
		publish(ctx, s.publisher, events.New(events.AssignmentExpired, a.ReviewerID, a))
	}
	for kind, n := range perKind {
		s.metrics.RecordExpired(string(kind), n)
	}

	if len(expired) > 0 {
		slog.Info("Reclaimed expired assignments", "count", len(expired), "cutoff", cutoff)
	}
	return expired, nil
}

// ListAssignments returns the reviewer's assignments, optionally by status
func (s *AssignmentService) ListAssignments(ctx context.Context, reviewerID uuid.UUID, status models.AssignmentStatus) ([]models.Assignment, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	list, err := s.assignments.ListAssignments(ctx, reviewerID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return list, nil
}

func (s *AssignmentService) ownedAssignment(ctx context.Context, reviewerID, assignmentID uuid.UUID) (*models.Assignment, error) {
	a, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if a.ReviewerID != reviewerID {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *AssignmentService) candidates(ctx context.Context, reviewerID uuid.UUID, kind models.AssignmentKind) ([]assignment.Candidate, error) {
	switch kind {
	case models.KindReview:
		proposals, err := s.proposals.ListOpenProposals(ctx, reviewerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list open proposals: %w", err)
		}
		out := make([]assignment.Candidate, len(proposals))
		for i := range proposals {
			out[i] = assignment.ProposalCandidate(&proposals[i])
		}
		return out, nil
	case models.KindPeerReview:
		reviews, err := s.reviews.ListPeerReviewableReviews(ctx, reviewerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list reviews: %w", err)
		}
		out := make([]assignment.Candidate, len(reviews))
		for i := range reviews {
			out[i] = assignment.ReviewCandidate(&reviews[i])
		}
		return out, nil
	}
	return nil, ErrInvalidKind
}

func (s *AssignmentService) candidate(ctx context.Context, itemID uuid.UUID, kind models.AssignmentKind) (assignment.Candidate, error) {
	switch kind {
	case models.KindReview:
		p, err := s.proposals.GetProposal(ctx, itemID)
		if err != nil {
			return assignment.Candidate{}, fmt.Errorf("failed to get proposal: %w", err)
		}
		return assignment.ProposalCandidate(p), nil
	case models.KindPeerReview:
		r, err := s.reviews.GetReview(ctx, itemID)
		if err != nil {
			return assignment.Candidate{}, fmt.Errorf("failed to get review: %w", err)
		}
		return assignment.ReviewCandidate(r), nil
	}
	return assignment.Candidate{}, ErrInvalidKind
}

func (s *AssignmentService) heldPairings(ctx context.Context, reviewerID uuid.UUID, kind models.AssignmentKind) (assignment.Pairings, error) {
	ids, err := s.assignments.HeldItems(ctx, reviewerID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load held items: %w", err)
	}
	return assignment.NewPairings(ids...), nil
}
