// Package repository implements the engine's persistence on PostgreSQL
package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"proposal-review/internal/database"
)

const uniqueViolation = "23505"

// Store bundles every repository behind the service.Store interface
type Store struct {
	*ReviewerRepository
	*ProposalRepository
	*ReviewRepository
	*AssignmentRepository
	*CompletionRepository
	*RequestRepository
	*AuditRepository

	db *database.Database
}

// NewStore creates repositories sharing one connection pool
func NewStore(db *database.Database) *Store {
	return &Store{
		ReviewerRepository:   NewReviewerRepository(db.DB),
		ProposalRepository:   NewProposalRepository(db.DB),
		ReviewRepository:     NewReviewRepository(db.DB),
		AssignmentRepository: NewAssignmentRepository(db.DB),
		CompletionRepository: NewCompletionRepository(db.DB),
		RequestRepository:    NewRequestRepository(db.DB),
		AuditRepository:      NewAuditRepository(db.DB),
		db:                   db,
	}
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database
func (s *Store) HealthCheck() error {
	return s.db.HealthCheck()
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// exists reports whether a row matching query exists
func exists(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (bool, error) {
	var found bool
	if err := sqlx.GetContext(ctx, q, &found, "SELECT EXISTS ("+query+")", args...); err != nil {
		return false, err
	}
	return found, nil
}
