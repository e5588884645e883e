package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// AuditLogger records audit entries
type AuditLogger interface {
	Log(ctx context.Context, actorID *uuid.UUID, action, resource, details, ip string)
}

// AuditMiddleware logs admin actions that succeeded
type AuditMiddleware struct {
	audit AuditLogger
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(audit AuditLogger) *AuditMiddleware {
	return &AuditMiddleware{audit: audit}
}

// Log records action on resource once the wrapped handler returns a
// non-error status
func (m *AuditMiddleware) Log(action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if wrapped.statusCode >= http.StatusBadRequest {
				return
			}

			var actorID *uuid.UUID
			if id, ok := GetUserID(r); ok {
				actorID = &id
			}
			details := fmt.Sprintf("%s %s -> %d", r.Method, r.URL.Path, wrapped.statusCode)

			// detached from the request so a client disconnect cannot drop the entry
			m.audit.Log(context.WithoutCancel(r.Context()), actorID, action, resource, details, getIP(r))
		})
	}
}
