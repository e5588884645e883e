package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"proposal-review/internal/models"
)

// ReviewerDirectory stores reviewer accounts and their cached reputation
type ReviewerDirectory interface {
	CreateReviewer(ctx context.Context, r *models.Reviewer) error
	GetReviewer(ctx context.Context, id uuid.UUID) (*models.Reviewer, error)
	GetReviewerByEmail(ctx context.Context, email string) (*models.Reviewer, error)
	ListReviewers(ctx context.Context, status models.ReviewerStatus) ([]models.Reviewer, error)
	UpdateReviewerStatus(ctx context.Context, id uuid.UUID, status models.ReviewerStatus) error
	CompleteOnboarding(ctx context.Context, id uuid.UUID, displayName string, expertise models.ExpertiseList) error
	// UpdateRepPoints adds delta to the cached balance, never going below zero
	UpdateRepPoints(ctx context.Context, id uuid.UUID, delta int) error
	// SetRepPoints writes value only while the cached balance still equals
	// expected and reports whether it did
	SetRepPoints(ctx context.Context, id uuid.UUID, expected, value int) (bool, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// ProposalStore stores proposals
type ProposalStore interface {
	CreateProposal(ctx context.Context, p *models.Proposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	// ListOpenProposals returns proposals below target not authored by excludeAuthor
	ListOpenProposals(ctx context.Context, excludeAuthor uuid.UUID) ([]models.Proposal, error)
}

// ReviewStore stores completed reviews
type ReviewStore interface {
	GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error)
	// ListPeerReviewableReviews returns completed reviews below their peer
	// target that were not written by excludeReviewer
	ListPeerReviewableReviews(ctx context.Context, excludeReviewer uuid.UUID) ([]models.Review, error)
}

// AssignmentStore stores reservations
type AssignmentStore interface {
	// Reserve claims one slot of the item and inserts the assignment in a
	// single atomic step. It fails with models.ErrReservationConflict when the
	// item is full or the reviewer already holds it.
	Reserve(ctx context.Context, a *models.Assignment) error
	GetAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	ListAssignments(ctx context.Context, reviewerID uuid.UUID, status models.AssignmentStatus) ([]models.Assignment, error)
	// HeldItems returns items the reviewer has a pending or completed claim on
	HeldItems(ctx context.Context, reviewerID uuid.UUID, kind models.AssignmentKind) ([]uuid.UUID, error)
	TouchAssignment(ctx context.Context, id uuid.UUID, at time.Time) error
	// ExpireStale expires pending assignments idle since before cutoff and
	// returns their slots to the pool
	ExpireStale(ctx context.Context, cutoff, now time.Time) ([]models.Assignment, error)
	ReviewerStats(ctx context.Context, reviewerID uuid.UUID) (models.ReviewerStats, error)
}

// CompletionLog is the append-once record of finished work
type CompletionLog interface {
	// RecordCompletion inserts the Review or PeerReview for c, completes the
	// assignment and credits c.Points to the reviewer's cached balance, all
	// or nothing. A second record for the same pairing fails with
	// models.ErrDuplicateCompletion.
	RecordCompletion(ctx context.Context, c *models.Completion, peerReviewTarget int) (uuid.UUID, error)
	CountCompletions(ctx context.Context, reviewerID uuid.UUID) (models.CompletionCounts, error)
}

// AssignmentRequestStore stores requests for more work
type AssignmentRequestStore interface {
	CreateRequest(ctx context.Context, r *models.AssignmentRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*models.AssignmentRequest, error)
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.AssignmentRequest, error)
	// ResolveRequest applies res only if the request is still pending,
	// otherwise models.ErrRequestNotPending
	ResolveRequest(ctx context.Context, id uuid.UUID, res models.RequestResolution) (*models.AssignmentRequest, error)
}

// AuditStore stores audit log entries
type AuditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListAuditLogs(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

// Store bundles every persistence interface the engine needs
type Store interface {
	ReviewerDirectory
	ProposalStore
	ReviewStore
	AssignmentStore
	CompletionLog
	AssignmentRequestStore
	AuditStore
}

// Notifier tells reviewers about decisions on their requests
type Notifier interface {
	NotifyRequestResolved(ctx context.Context, reviewer *models.Reviewer, req *models.AssignmentRequest) error
}
