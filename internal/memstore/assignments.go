package memstore

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"proposal-review/internal/models"
)

// Reserve claims a slot on the item and records the assignment atomically
// under the item's lock.
func (s *Store) Reserve(_ context.Context, a *models.Assignment) error {
	it, ok := s.items.Load(a.ItemID)
	if !ok || it.kind != a.Kind {
		return models.ErrNotFound
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	if _, held := it.holders[a.ReviewerID]; held {
		return models.ErrReservationConflict
	}
	if assigned, target := it.slots(); assigned >= target {
		return models.ErrReservationConflict
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := s.now()
	if a.AssignedAt.IsZero() {
		a.AssignedAt = now
	}
	a.LastActivityAt = a.AssignedAt
	a.Status = models.AssignmentPending

	it.adjustAssigned(1)
	it.holders[a.ReviewerID] = a.ID
	s.assignments.Store(a.ID, *a)
	return nil
}

// GetAssignment returns the assignment
func (s *Store) GetAssignment(_ context.Context, id uuid.UUID) (*models.Assignment, error) {
	a, ok := s.assignments.Load(id)
	if !ok {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

// ListAssignments returns a reviewer's assignments, newest first.
// An empty status lists all.
func (s *Store) ListAssignments(_ context.Context, reviewerID uuid.UUID, status models.AssignmentStatus) ([]models.Assignment, error) {
	var out []models.Assignment
	s.assignments.Range(func(_ uuid.UUID, a models.Assignment) bool {
		if a.ReviewerID == reviewerID && (status == "" || a.Status == status) {
			out = append(out, a)
		}
		return true
	})
	slices.SortFunc(out, func(a, b models.Assignment) int { return b.AssignedAt.Compare(a.AssignedAt) })
	return out, nil
}

// HeldItems returns items the reviewer holds a pending or completed claim on
func (s *Store) HeldItems(_ context.Context, reviewerID uuid.UUID, kind models.AssignmentKind) ([]uuid.UUID, error) {
	var out []uuid.UUID
	s.assignments.Range(func(_ uuid.UUID, a models.Assignment) bool {
		if a.ReviewerID == reviewerID && a.Kind == kind && a.Status != models.AssignmentExpired {
			out = append(out, a.ItemID)
		}
		return true
	})
	return out, nil
}

// TouchAssignment records activity on a pending assignment
func (s *Store) TouchAssignment(_ context.Context, id uuid.UUID, at time.Time) error {
	return s.mutateAssignment(id, func(_ *item, a *models.Assignment) error {
		if a.Status != models.AssignmentPending {
			return models.ErrAssignmentNotPending
		}
		a.LastActivityAt = at
		return nil
	})
}

// ExpireStale expires pending assignments idle since before cutoff
func (s *Store) ExpireStale(_ context.Context, cutoff, now time.Time) ([]models.Assignment, error) {
	var stale []uuid.UUID
	s.assignments.Range(func(id uuid.UUID, a models.Assignment) bool {
		if a.Status == models.AssignmentPending && a.LastActivityAt.Before(cutoff) {
			stale = append(stale, id)
		}
		return true
	})

	var expired []models.Assignment
	for _, id := range stale {
		err := s.mutateAssignment(id, func(it *item, a *models.Assignment) error {
			// re-check under the item lock; the reviewer may have completed or touched it
			if a.Status != models.AssignmentPending || !a.LastActivityAt.Before(cutoff) {
				return models.ErrAssignmentNotPending
			}
			a.Status = models.AssignmentExpired
			a.ExpiredAt = &now
			it.adjustAssigned(-1)
			delete(it.holders, a.ReviewerID)
			expired = append(expired, *a)
			return nil
		})
		if err != nil && !errors.Is(err, models.ErrAssignmentNotPending) {
			return expired, err
		}
	}
	return expired, nil
}

// ReviewerStats counts a reviewer's completed records and pending assignments
func (s *Store) ReviewerStats(ctx context.Context, reviewerID uuid.UUID) (models.ReviewerStats, error) {
	counts, err := s.CountCompletions(ctx, reviewerID)
	if err != nil {
		return models.ReviewerStats{}, err
	}
	stats := models.ReviewerStats{
		ReviewerID:           reviewerID,
		CompletedReviews:     counts.Reviews,
		CompletedPeerReviews: counts.PeerReviews,
	}
	s.assignments.Range(func(_ uuid.UUID, a models.Assignment) bool {
		if a.ReviewerID != reviewerID || a.Status != models.AssignmentPending {
			return true
		}
		if a.Kind == models.KindReview {
			stats.PendingReviews++
		} else {
			stats.PendingPeerReviews++
		}
		return true
	})
	return stats, nil
}

// mutateAssignment applies fn to the assignment under its item's lock
func (s *Store) mutateAssignment(id uuid.UUID, fn func(it *item, a *models.Assignment) error) error {
	a, ok := s.assignments.Load(id)
	if !ok {
		return models.ErrNotFound
	}
	it, ok := s.items.Load(a.ItemID)
	if !ok {
		return models.ErrNotFound
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	// reload: the value may have changed before we took the lock
	a, _ = s.assignments.Load(id)
	if err := fn(it, &a); err != nil {
		return err
	}
	s.assignments.Store(id, a)
	return nil
}
