package memstore

import (
	"context"

	"proposal-review/internal/models"
)

// CreateAuditLog appends an audit entry
func (s *Store) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditSeq++
	log.ID = s.auditSeq
	if log.CreatedAt.IsZero() {
		log.CreatedAt = s.now()
	}
	s.audit = append(s.audit, *log)
	return nil
}

// ListAuditLogs returns audit entries, newest first
func (s *Store) ListAuditLogs(_ context.Context, limit, offset int) ([]models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AuditLog, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		out = append(out, s.audit[i])
	}
	if offset >= len(out) {
		return []models.AuditLog{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
