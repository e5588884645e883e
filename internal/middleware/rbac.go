package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"proposal-review/internal/models"
)

// ReviewerLookup loads the reviewer behind a token
type ReviewerLookup interface {
	GetReviewer(ctx context.Context, id uuid.UUID) (*models.Reviewer, error)
}

// RBACMiddleware handles role-based access control. Roles are read from
// the reviewer directory on each request, so a demotion or suspension
// applies before the token expires.
type RBACMiddleware struct {
	reviewers ReviewerLookup
}

// NewRBACMiddleware creates a new RBAC middleware
func NewRBACMiddleware(reviewers ReviewerLookup) *RBACMiddleware {
	return &RBACMiddleware{reviewers: reviewers}
}

// RequireRole checks if the user has the required role
func (m *RBACMiddleware) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return m.RequireAnyRole(role)
}

// RequireAnyRole checks if the user has any of the required roles
func (m *RBACMiddleware) RequireAnyRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "User not authenticated")
				return
			}

			reviewer, err := m.reviewers.GetReviewer(r.Context(), userID)
			if errors.Is(err, models.ErrNotFound) {
				respondWithError(w, http.StatusUnauthorized, "User not found")
				return
			}
			if err != nil {
				slog.Error("Failed to load reviewer for role check", "reviewer_id", userID, "error", err)
				respondWithError(w, http.StatusInternalServerError, "Failed to get user roles")
				return
			}

			if reviewer.Status == models.ReviewerStatusSuspended || !slices.Contains(roles, reviewer.Role) {
				respondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
