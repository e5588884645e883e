package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"proposal-review/internal/config"
	"proposal-review/internal/models"
)

// ProposalService publishes proposals into the review pool
type ProposalService struct {
	reviewers    ReviewerDirectory
	proposals    ProposalStore
	reviewTarget int
}

// NewProposalService creates a new proposal service
func NewProposalService(store Store, cfg *config.AssignmentConfig) *ProposalService {
	return &ProposalService{
		reviewers:    store,
		proposals:    store,
		reviewTarget: cfg.ReviewTarget,
	}
}

// Publish adds a proposal to the pool. A zero target uses the configured default.
func (s *ProposalService) Publish(ctx context.Context, adminID, authorID uuid.UUID, title string, tags []string, target int) (*models.Proposal, error) {
	if _, err := requireAdmin(ctx, s.reviewers, adminID); err != nil {
		return nil, err
	}
	if _, err := s.reviewers.GetReviewer(ctx, authorID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("author: %w", err)
		}
		return nil, fmt.Errorf("failed to get author: %w", err)
	}
	if target <= 0 {
		target = s.reviewTarget
	}

	p := &models.Proposal{
		ID:            uuid.New(),
		Title:         strings.TrimSpace(title),
		AuthorID:      authorID,
		Tags:          normalizeTags(tags),
		TargetReviews: target,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.proposals.CreateProposal(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	slog.Info("Proposal published", "proposal_id", p.ID, "author_id", authorID, "target_reviews", target)
	return p, nil
}

// GetProposal returns a proposal
func (s *ProposalService) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, err := s.proposals.GetProposal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
