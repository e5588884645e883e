package memstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"proposal-review/internal/models"
)

// CreateProposal publishes a proposal as a review work item
func (s *Store) CreateProposal(_ context.Context, p *models.Proposal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	it := newItem(models.KindReview)
	cp := *p
	cp.Tags = slices.Clone(p.Tags)
	it.proposal = &cp

	if _, loaded := s.items.LoadOrStore(p.ID, it); loaded {
		return fmt.Errorf("proposal %s already exists", p.ID)
	}
	return nil
}

// GetProposal returns a copy of the proposal
func (s *Store) GetProposal(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	it, ok := s.items.Load(id)
	if !ok || it.kind != models.KindReview {
		return nil, models.ErrNotFound
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	return cloneProposal(it.proposal), nil
}

// ListOpenProposals returns proposals below target, oldest first
func (s *Store) ListOpenProposals(_ context.Context, excludeAuthor uuid.UUID) ([]models.Proposal, error) {
	var out []models.Proposal
	s.items.Range(func(_ uuid.UUID, it *item) bool {
		if it.kind != models.KindReview {
			return true
		}
		it.mu.Lock()
		p := it.proposal
		if p.AuthorID != excludeAuthor && p.AssignedCount < p.TargetReviews {
			out = append(out, *cloneProposal(p))
		}
		it.mu.Unlock()
		return true
	})
	slices.SortFunc(out, func(a, b models.Proposal) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// GetReview returns a copy of a completed review
func (s *Store) GetReview(_ context.Context, id uuid.UUID) (*models.Review, error) {
	it, ok := s.items.Load(id)
	if !ok || it.kind != models.KindPeerReview {
		return nil, models.ErrNotFound
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	return cloneReview(it.review), nil
}

// ListPeerReviewableReviews returns completed reviews below their peer target
func (s *Store) ListPeerReviewableReviews(_ context.Context, excludeReviewer uuid.UUID) ([]models.Review, error) {
	var out []models.Review
	s.items.Range(func(_ uuid.UUID, it *item) bool {
		if it.kind != models.KindPeerReview {
			return true
		}
		it.mu.Lock()
		r := it.review
		if r.Status == models.ReviewStatusCompleted && r.ReviewerID != excludeReviewer &&
			r.PeerAssignedCount < r.TargetPeerReviews {
			out = append(out, *cloneReview(r))
		}
		it.mu.Unlock()
		return true
	})
	slices.SortFunc(out, func(a, b models.Review) int { return a.CompletedAt.Compare(b.CompletedAt) })
	return out, nil
}

func cloneProposal(p *models.Proposal) *models.Proposal {
	cp := *p
	cp.Tags = slices.Clone(p.Tags)
	return &cp
}

func cloneReview(r *models.Review) *models.Review {
	cp := *r
	cp.Tags = slices.Clone(r.Tags)
	return &cp
}
