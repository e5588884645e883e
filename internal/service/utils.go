package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"proposal-review/internal/events"
	"proposal-review/internal/models"
)

// publish sends an event, logging instead of failing the caller
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		slog.Error("Failed to publish event", "type", e.Type, "event_id", e.ID, "error", err)
	}
}

// requireAdmin loads the actor and verifies the admin role
func requireAdmin(ctx context.Context, reviewers ReviewerDirectory, actorID uuid.UUID) (*models.Reviewer, error) {
	actor, err := reviewers.GetReviewer(ctx, actorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}
	if !actor.IsAdmin() || actor.Status == models.ReviewerStatusSuspended {
		return nil, ErrForbidden
	}
	return actor, nil
}

func kindLabel(k models.AssignmentKind) string {
	if k.Valid() {
		return string(k)
	}
	return "unknown"
}
