package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"proposal-review/internal/models"
)

const proposalColumns = `id, title, author_id, tags, target_reviews, assigned_count, completed_reviews, created_at`

// ProposalRepository handles proposal database operations
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository creates a new proposal repository
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// CreateProposal creates a new proposal
func (r *ProposalRepository) CreateProposal(ctx context.Context, p *models.Proposal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Tags == nil {
		p.Tags = pq.StringArray{}
	}

	query := `
		INSERT INTO proposals (id, title, author_id, tags, target_reviews, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Title, p.AuthorID, p.Tags, p.TargetReviews, p.CreatedAt); err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}
	return nil
}

// GetProposal retrieves a proposal by ID
func (r *ProposalRepository) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p := &models.Proposal{}
	err := r.db.GetContext(ctx, p, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

// ListOpenProposals returns proposals below target not authored by excludeAuthor
func (r *ProposalRepository) ListOpenProposals(ctx context.Context, excludeAuthor uuid.UUID) ([]models.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE assigned_count < target_reviews AND author_id <> $1
		ORDER BY created_at, id
	`
	proposals := []models.Proposal{}
	if err := r.db.SelectContext(ctx, &proposals, query, excludeAuthor); err != nil {
		return nil, fmt.Errorf("failed to list open proposals: %w", err)
	}
	return proposals, nil
}
