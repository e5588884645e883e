package memstore

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"proposal-review/internal/models"
)

// CreateRequest stores a new pending request; a reviewer may hold only one
func (s *Store) CreateRequest(_ context.Context, r *models.AssignmentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if existing.RequesterID == r.RequesterID && existing.Status == models.RequestPending {
			return models.ErrPendingRequestExists
		}
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := s.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	r.Status = models.RequestPending

	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

// GetRequest returns a copy of the request
func (s *Store) GetRequest(_ context.Context, id uuid.UUID) (*models.AssignmentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ListRequests returns matching requests, newest first
func (s *Store) ListRequests(_ context.Context, filter models.RequestFilter) ([]models.AssignmentRequest, error) {
	s.mu.RLock()
	out := make([]models.AssignmentRequest, 0)
	for _, r := range s.requests {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.RequesterID != nil && r.RequesterID != *filter.RequesterID {
			continue
		}
		out = append(out, *r)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.AssignmentRequest) int { return b.CreatedAt.Compare(a.CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.AssignmentRequest{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ResolveRequest moves a pending request to its terminal state
func (s *Store) ResolveRequest(_ context.Context, id uuid.UUID, res models.RequestResolution) (*models.AssignmentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if r.Status != models.RequestPending {
		return nil, models.ErrRequestNotPending
	}

	resolvedBy := res.ResolvedBy
	resolvedAt := res.ResolvedAt
	r.Status = res.Status
	r.AdminNote = res.AdminNote
	r.DeclinedReason = res.DeclinedReason
	r.ResolvedBy = &resolvedBy
	r.ResolvedAt = &resolvedAt
	r.UpdatedAt = resolvedAt

	cp := *r
	return &cp, nil
}
