package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"proposal-review/internal/models"
)

// AuditService handles audit logging
type AuditService struct {
	audit AuditStore
}

// NewAuditService creates a new audit service
func NewAuditService(audit AuditStore) *AuditService {
	return &AuditService{audit: audit}
}

// Log creates an audit log entry, logging instead of returning errors so the
// audited operation never fails because of it
func (s *AuditService) Log(ctx context.Context, actorID *uuid.UUID, action, resource, details, ip string) {
	entry := &models.AuditLog{
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Details:   details,
		IPAddress: ip,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		slog.Error("Failed to write audit log", "action", action, "resource", resource, "error", err)
	}
}

// List returns audit entries, newest first
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	logs, err := s.audit.ListAuditLogs(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
