package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Points awarded per completed unit of work
const (
	ReviewPoints     = 30
	PeerReviewPoints = 15
)

// ReviewerStatus is the lifecycle state of a reviewer
type ReviewerStatus string

const (
	ReviewerStatusOnboarding ReviewerStatus = "onboarding"
	ReviewerStatusActive     ReviewerStatus = "active"
	ReviewerStatusSuspended  ReviewerStatus = "suspended"
)

// Valid reports whether s is a known reviewer status
func (s ReviewerStatus) Valid() bool {
	switch s {
	case ReviewerStatusOnboarding, ReviewerStatusActive, ReviewerStatusSuspended:
		return true
	}
	return false
}

// Role is the authorization role of a reviewer account
type Role string

const (
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleReviewer || r == RoleAdmin
}

// ExpertiseLevel describes how deep a reviewer's knowledge of an area is
type ExpertiseLevel string

const (
	ExpertiseBeginner     ExpertiseLevel = "beginner"
	ExpertiseIntermediate ExpertiseLevel = "intermediate"
	ExpertiseExpert       ExpertiseLevel = "expert"
)

// Weight returns the ranking weight of the level
func (l ExpertiseLevel) Weight() int {
	switch l {
	case ExpertiseExpert:
		return 3
	case ExpertiseIntermediate:
		return 2
	case ExpertiseBeginner:
		return 1
	}
	return 0
}

// Expertise is a declared area of knowledge
type Expertise struct {
	Area  string         `json:"area" validate:"required,notblank,max=100"`
	Level ExpertiseLevel `json:"level" validate:"required,oneof=beginner intermediate expert"`
}

// ExpertiseList is stored as a JSONB column
type ExpertiseList []Expertise

// Value implements driver.Valuer
func (e ExpertiseList) Value() (driver.Value, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner
func (e *ExpertiseList) Scan(src any) error {
	return scanJSON(src, e)
}

// Reviewer is a platform participant who performs reviews and peer reviews.
// Reviewers are never deleted; they are suspended instead.
type Reviewer struct {
	ID                  uuid.UUID      `json:"id" db:"id"`
	Email               string         `json:"email" db:"email"`
	DisplayName         string         `json:"display_name" db:"display_name"`
	Role                Role           `json:"role" db:"role"`
	Status              ReviewerStatus `json:"status" db:"status"`
	OnboardingCompleted bool           `json:"onboarding_completed" db:"onboarding_completed"`
	Expertise           ExpertiseList  `json:"expertise" db:"expertise"`
	RepPoints           int            `json:"rep_points" db:"rep_points"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at" db:"updated_at"`
}

// CanReceiveWork reports whether the reviewer may be handed new assignments
func (r *Reviewer) CanReceiveWork() bool {
	return r != nil && r.Status == ReviewerStatusActive && r.OnboardingCompleted
}

// IsAdmin reports whether the reviewer holds the admin role
func (r *Reviewer) IsAdmin() bool {
	return r != nil && r.Role == RoleAdmin
}

// Proposal is a unit of work to be reviewed
type Proposal struct {
	ID               uuid.UUID      `json:"id" db:"id"`
	Title            string         `json:"title" db:"title"`
	AuthorID         uuid.UUID      `json:"author_id" db:"author_id"`
	Tags             pq.StringArray `json:"tags" db:"tags"`
	TargetReviews    int            `json:"target_reviews" db:"target_reviews"`
	AssignedCount    int            `json:"assigned_count" db:"assigned_count"`
	CompletedReviews int            `json:"completed_reviews" db:"completed_reviews"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// ReviewStatus is the state of a submitted review
type ReviewStatus string

const (
	ReviewStatusCompleted ReviewStatus = "completed"
	ReviewStatusWithdrawn ReviewStatus = "withdrawn"
)

// Review is a completed review of a proposal; it is itself the unit of
// work for peer review.
type Review struct {
	ID                   uuid.UUID      `json:"id" db:"id"`
	ProposalID           uuid.UUID      `json:"proposal_id" db:"proposal_id"`
	ReviewerID           uuid.UUID      `json:"reviewer_id" db:"reviewer_id"`
	AssignmentID         uuid.UUID      `json:"assignment_id" db:"assignment_id"`
	Status               ReviewStatus   `json:"status" db:"status"`
	Quality              int            `json:"quality" db:"quality"`
	Tags                 pq.StringArray `json:"tags" db:"tags"`
	TargetPeerReviews    int            `json:"target_peer_reviews" db:"target_peer_reviews"`
	PeerAssignedCount    int            `json:"peer_assigned_count" db:"peer_assigned_count"`
	CompletedPeerReviews int            `json:"completed_peer_reviews" db:"completed_peer_reviews"`
	CompletedAt          time.Time      `json:"completed_at" db:"completed_at"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
}

// PeerReview is a completed evaluation of someone else's review
type PeerReview struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ReviewID     uuid.UUID `json:"review_id" db:"review_id"`
	ReviewerID   uuid.UUID `json:"reviewer_id" db:"reviewer_id"`
	AssignmentID uuid.UUID `json:"assignment_id" db:"assignment_id"`
	Rating       int       `json:"rating" db:"rating"`
	CompletedAt  time.Time `json:"completed_at" db:"completed_at"`
}

// AssignmentKind distinguishes review work from peer-review work
type AssignmentKind string

const (
	KindReview     AssignmentKind = "review"
	KindPeerReview AssignmentKind = "peer_review"
)

// Valid reports whether k is a known kind
func (k AssignmentKind) Valid() bool {
	return k == KindReview || k == KindPeerReview
}

// Points returns the reputation points awarded for completing work of this kind
func (k AssignmentKind) Points() int {
	switch k {
	case KindReview:
		return ReviewPoints
	case KindPeerReview:
		return PeerReviewPoints
	}
	return 0
}

// ParseAssignmentKind parses a kind from user input
func ParseAssignmentKind(s string) (AssignmentKind, error) {
	k := AssignmentKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("invalid assignment kind %q", s)
	}
	return k, nil
}

// AssignmentStatus is the state of a reservation
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentExpired   AssignmentStatus = "expired"
)

// Valid reports whether s is a known assignment status
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentCompleted, AssignmentExpired:
		return true
	}
	return false
}

// Assignment is a reservation binding one reviewer to one work item
type Assignment struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	ReviewerID     uuid.UUID        `json:"reviewer_id" db:"reviewer_id"`
	ItemID         uuid.UUID        `json:"item_id" db:"item_id"`
	Kind           AssignmentKind   `json:"kind" db:"kind"`
	Status         AssignmentStatus `json:"status" db:"status"`
	AssignedBy     *uuid.UUID       `json:"assigned_by,omitempty" db:"assigned_by"`
	AssignedAt     time.Time        `json:"assigned_at" db:"assigned_at"`
	LastActivityAt time.Time        `json:"last_activity_at" db:"last_activity_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	ExpiredAt      *time.Time       `json:"expired_at,omitempty" db:"expired_at"`
}

// Completion is the event emitted when an assignment becomes a finished
// Review or PeerReview.
type Completion struct {
	AssignmentID uuid.UUID      `json:"assignment_id"`
	ReviewerID   uuid.UUID      `json:"reviewer_id"`
	ItemID       uuid.UUID      `json:"item_id"`
	Kind         AssignmentKind `json:"kind"`
	Quality      int            `json:"quality"`
	Points       int            `json:"points"`
	CompletedAt  time.Time      `json:"completed_at"`
}

// CompletionCounts is the number of finished units of work per kind
type CompletionCounts struct {
	Reviews     int `json:"reviews" db:"reviews"`
	PeerReviews int `json:"peer_reviews" db:"peer_reviews"`
}

// Points derives the reputation balance from the counts
func (c CompletionCounts) Points() int {
	return c.Reviews*ReviewPoints + c.PeerReviews*PeerReviewPoints
}

// RequestType is what a reviewer asks for when no work is available
type RequestType string

const (
	RequestReviews     RequestType = "reviews"
	RequestPeerReviews RequestType = "peer_reviews"
	RequestBoth        RequestType = "both"
)

// Valid reports whether t is a known request type
func (t RequestType) Valid() bool {
	switch t {
	case RequestReviews, RequestPeerReviews, RequestBoth:
		return true
	}
	return false
}

// RequestStatus is the state of an assignment request
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestDeclined  RequestStatus = "declined"
)

// Valid reports whether s is a known request status
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestFulfilled, RequestDeclined:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed
func (s RequestStatus) Terminal() bool {
	return s == RequestFulfilled || s == RequestDeclined
}

// StatsSnapshot captures a reviewer's workload at request time
type StatsSnapshot struct {
	CompletedReviews     int `json:"completed_reviews"`
	CompletedPeerReviews int `json:"completed_peer_reviews"`
	PendingReviews       int `json:"pending_reviews"`
	PendingPeerReviews   int `json:"pending_peer_reviews"`
	RepPoints            int `json:"rep_points"`
}

// Value implements driver.Valuer
func (s StatsSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *StatsSnapshot) Scan(src any) error {
	return scanJSON(src, s)
}

// AssignmentRequest is a reviewer's ask to an administrator for more work
type AssignmentRequest struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	RequesterID    uuid.UUID     `json:"requester_id" db:"requester_id"`
	RequestType    RequestType   `json:"request_type" db:"request_type"`
	Status         RequestStatus `json:"status" db:"status"`
	Stats          StatsSnapshot `json:"stats" db:"stats"`
	Message        string        `json:"message,omitempty" db:"message"`
	AdminNote      *string       `json:"admin_note,omitempty" db:"admin_note"`
	DeclinedReason *string       `json:"declined_reason,omitempty" db:"declined_reason"`
	ResolvedBy     *uuid.UUID    `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// RequestFilter narrows request listings
type RequestFilter struct {
	Status      RequestStatus
	RequesterID *uuid.UUID
	Limit       int
	Offset      int
}

// RequestResolution is the admin decision applied to a pending request
type RequestResolution struct {
	Status         RequestStatus
	AdminNote      *string
	DeclinedReason *string
	ResolvedBy     uuid.UUID
	ResolvedAt     time.Time
}

// ReviewerStats summarises a reviewer's workload
type ReviewerStats struct {
	ReviewerID           uuid.UUID `json:"reviewer_id"`
	CompletedReviews     int       `json:"completed_reviews"`
	CompletedPeerReviews int       `json:"completed_peer_reviews"`
	PendingReviews       int       `json:"pending_reviews"`
	PendingPeerReviews   int       `json:"pending_peer_reviews"`
}

// Snapshot converts the stats into a request snapshot with the given balance
func (s ReviewerStats) Snapshot(repPoints int) StatsSnapshot {
	return StatsSnapshot{
		CompletedReviews:     s.CompletedReviews,
		CompletedPeerReviews: s.CompletedPeerReviews,
		PendingReviews:       s.PendingReviews,
		PendingPeerReviews:   s.PendingPeerReviews,
		RepPoints:            repPoints,
	}
}

// LeaderboardEntry is one row of the reputation leaderboard
type LeaderboardEntry struct {
	ReviewerID  uuid.UUID `json:"reviewer_id" db:"id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	RepPoints   int       `json:"rep_points" db:"rep_points"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        int64      `json:"id" db:"id"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	Action    string     `json:"action" db:"action"`
	Resource  string     `json:"resource" db:"resource"`
	Details   string     `json:"details,omitempty" db:"details"`
	IPAddress string     `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported type %T for JSON column", src)
	}
}
