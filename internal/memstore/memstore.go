// Package memstore is an in-memory implementation of the engine's stores.
// Work items are serialized individually: every proposal and review carries
// its own mutex, so reservations on different items never contend.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"proposal-review/internal/models"
)

// item is one unit of work. Lock order is item.mu before Store.mu.
type item struct {
	mu       sync.Mutex
	kind     models.AssignmentKind
	proposal *models.Proposal // set for KindReview
	review   *models.Review   // set for KindPeerReview

	holders   map[uuid.UUID]uuid.UUID // reviewer -> live assignment
	completed map[uuid.UUID]uuid.UUID // reviewer -> Review or PeerReview ID
}

func newItem(kind models.AssignmentKind) *item {
	return &item{
		kind:      kind,
		holders:   make(map[uuid.UUID]uuid.UUID),
		completed: make(map[uuid.UUID]uuid.UUID),
	}
}

// slots returns assigned and target counts; caller holds it.mu
func (it *item) slots() (assigned, target int) {
	if it.kind == models.KindReview {
		return it.proposal.AssignedCount, it.proposal.TargetReviews
	}
	return it.review.PeerAssignedCount, it.review.TargetPeerReviews
}

// adjustAssigned changes the in-flight count; caller holds it.mu
func (it *item) adjustAssigned(delta int) {
	if it.kind == models.KindReview {
		it.proposal.AssignedCount += delta
		return
	}
	it.review.PeerAssignedCount += delta
}

// Store keeps all engine state in memory
type Store struct {
	items       *xsync.Map[uuid.UUID, *item]
	assignments *xsync.Map[uuid.UUID, models.Assignment]
	peerReviews *xsync.Map[uuid.UUID, models.PeerReview]

	mu        sync.RWMutex
	reviewers map[uuid.UUID]*models.Reviewer
	byEmail   map[string]uuid.UUID
	requests  map[uuid.UUID]*models.AssignmentRequest
	audit     []models.AuditLog
	auditSeq  int64

	now func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		items:       xsync.NewMap[uuid.UUID, *item](),
		assignments: xsync.NewMap[uuid.UUID, models.Assignment](),
		peerReviews: xsync.NewMap[uuid.UUID, models.PeerReview](),
		reviewers:   make(map[uuid.UUID]*models.Reviewer),
		byEmail:     make(map[string]uuid.UUID),
		requests:    make(map[uuid.UUID]*models.AssignmentRequest),
		now:         time.Now,
	}
}

// Close is a no-op
func (s *Store) Close() error { return nil }

// HealthCheck always succeeds
func (s *Store) HealthCheck() error { return nil }

// Reviewers

// CreateReviewer stores a new reviewer
func (s *Store) CreateReviewer(_ context.Context, r *models.Reviewer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(r.Email)
	if _, taken := s.byEmail[email]; taken {
		return models.ErrEmailTaken
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := s.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	cp := cloneReviewer(r)
	s.reviewers[r.ID] = cp
	s.byEmail[email] = r.ID
	return nil
}

// GetReviewer returns a copy of the reviewer
func (s *Store) GetReviewer(_ context.Context, id uuid.UUID) (*models.Reviewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviewers[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneReviewer(r), nil
}

// GetReviewerByEmail looks a reviewer up by case-insensitive email
func (s *Store) GetReviewerByEmail(ctx context.Context, email string) (*models.Reviewer, error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.GetReviewer(ctx, id)
}

// ListReviewers returns reviewers with the given status, or all when empty
func (s *Store) ListReviewers(_ context.Context, status models.ReviewerStatus) ([]models.Reviewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Reviewer, 0, len(s.reviewers))
	for _, r := range s.reviewers {
		if status == "" || r.Status == status {
			out = append(out, *cloneReviewer(r))
		}
	}
	slices.SortFunc(out, func(a, b models.Reviewer) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// UpdateReviewerStatus sets the lifecycle status
func (s *Store) UpdateReviewerStatus(_ context.Context, id uuid.UUID, status models.ReviewerStatus) error {
	return s.updateReviewer(id, func(r *models.Reviewer) {
		r.Status = status
	})
}

// CompleteOnboarding records expertise and activates the reviewer
func (s *Store) CompleteOnboarding(_ context.Context, id uuid.UUID, displayName string, expertise models.ExpertiseList) error {
	return s.updateReviewer(id, func(r *models.Reviewer) {
		if displayName != "" {
			r.DisplayName = displayName
		}
		r.Expertise = slices.Clone(expertise)
		r.OnboardingCompleted = true
		r.Status = models.ReviewerStatusActive
	})
}

// UpdateRepPoints adds delta to the cached balance, clamping at zero
func (s *Store) UpdateRepPoints(_ context.Context, id uuid.UUID, delta int) error {
	return s.updateReviewer(id, func(r *models.Reviewer) {
		r.RepPoints = max(0, r.RepPoints+delta)
	})
}

// SetRepPoints replaces the cached balance if it still holds expected
func (s *Store) SetRepPoints(_ context.Context, id uuid.UUID, expected, value int) (bool, error) {
	var swapped bool
	err := s.updateReviewer(id, func(r *models.Reviewer) {
		if r.RepPoints == expected {
			r.RepPoints = value
			swapped = true
		}
	})
	return swapped, err
}

// Leaderboard returns reviewers by cached balance, highest first
func (s *Store) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	s.mu.RLock()
	out := make([]models.LeaderboardEntry, 0, len(s.reviewers))
	for _, r := range s.reviewers {
		if r.Status == models.ReviewerStatusSuspended {
			continue
		}
		out = append(out, models.LeaderboardEntry{ReviewerID: r.ID, DisplayName: r.DisplayName, RepPoints: r.RepPoints})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.LeaderboardEntry) int {
		if a.RepPoints != b.RepPoints {
			return b.RepPoints - a.RepPoints
		}
		return strings.Compare(a.DisplayName, b.DisplayName)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) updateReviewer(id uuid.UUID, fn func(r *models.Reviewer)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviewers[id]
	if !ok {
		return models.ErrNotFound
	}
	fn(r)
	r.UpdatedAt = s.now()
	return nil
}

func cloneReviewer(r *models.Reviewer) *models.Reviewer {
	cp := *r
	cp.Expertise = slices.Clone(r.Expertise)
	return &cp
}
