package memstore

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"proposal-review/internal/models"
)

// RecordCompletion turns a pending assignment into a Review or PeerReview.
// The duplicate check runs first so a replayed completion is always reported
// as a duplicate, whatever state the assignment is in.
func (s *Store) RecordCompletion(_ context.Context, c *models.Completion, peerReviewTarget int) (uuid.UUID, error) {
	var recordID uuid.UUID

	err := s.mutateAssignment(c.AssignmentID, func(it *item, a *models.Assignment) error {
		if a.ReviewerID != c.ReviewerID || a.ItemID != c.ItemID || a.Kind != c.Kind {
			return models.ErrNotFound
		}
		if _, done := it.completed[c.ReviewerID]; done {
			return models.ErrDuplicateCompletion
		}
		if a.Status != models.AssignmentPending {
			return models.ErrAssignmentNotPending
		}

		// credit first: a missing reviewer must leave the item untouched
		if err := s.UpdateRepPoints(context.Background(), c.ReviewerID, c.Points); err != nil {
			return err
		}

		recordID = uuid.New()
		switch c.Kind {
		case models.KindReview:
			review := &models.Review{
				ID:                recordID,
				ProposalID:        it.proposal.ID,
				ReviewerID:        c.ReviewerID,
				AssignmentID:      a.ID,
				Status:            models.ReviewStatusCompleted,
				Quality:           c.Quality,
				Tags:              slices.Clone(it.proposal.Tags),
				TargetPeerReviews: peerReviewTarget,
				CompletedAt:       c.CompletedAt,
				CreatedAt:         c.CompletedAt,
			}
			it.proposal.CompletedReviews++
			peerItem := newItem(models.KindPeerReview)
			peerItem.review = review
			s.items.Store(review.ID, peerItem)
		case models.KindPeerReview:
			s.peerReviews.Store(recordID, models.PeerReview{
				ID:           recordID,
				ReviewID:     it.review.ID,
				ReviewerID:   c.ReviewerID,
				AssignmentID: a.ID,
				Rating:       c.Quality,
				CompletedAt:  c.CompletedAt,
			})
			it.review.CompletedPeerReviews++
		}

		it.completed[c.ReviewerID] = recordID
		completedAt := c.CompletedAt
		a.Status = models.AssignmentCompleted
		a.CompletedAt = &completedAt
		a.LastActivityAt = completedAt
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return recordID, nil
}

// CountCompletions counts the reviewer's finished Reviews and PeerReviews
func (s *Store) CountCompletions(_ context.Context, reviewerID uuid.UUID) (models.CompletionCounts, error) {
	var counts models.CompletionCounts
	s.items.Range(func(_ uuid.UUID, it *item) bool {
		if it.kind != models.KindReview {
			return true
		}
		it.mu.Lock()
		_, done := it.completed[reviewerID]
		it.mu.Unlock()
		if done {
			counts.Reviews++
		}
		return true
	})
	s.peerReviews.Range(func(_ uuid.UUID, pr models.PeerReview) bool {
		if pr.ReviewerID == reviewerID {
			counts.PeerReviews++
		}
		return true
	})
	return counts, nil
}
