package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proposal-review/internal/handlers"
	"proposal-review/internal/middleware"
	"proposal-review/internal/models"
)

// routes builds the HTTP handler. The returned rate limiter must be
// stopped on shutdown.
func (a *app) routes() (http.Handler, *middleware.RateLimiter) {
	authMw := middleware.NewAuthMiddleware(a.jwt)
	rbacMw := middleware.NewRBACMiddleware(a.store)
	auditMw := middleware.NewAuditMiddleware(a.audit)
	corsMw := middleware.NewCORSMiddleware(&a.cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&a.cfg.RateLimit)

	assignmentHandler := handlers.NewAssignmentHandler(a.assignments)
	requestHandler := handlers.NewAssignmentRequestHandler(a.requests)
	reviewerHandler := handlers.NewReviewerHandler(a.reviewers)
	reputationHandler := handlers.NewReputationHandler(a.ledger)
	proposalHandler := handlers.NewProposalHandler(a.proposals)
	auditHandler := handlers.NewAuditHandler(a.audit)

	authenticated := func(h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(h)
	}
	requireAdmin := rbacMw.RequireRole(models.RoleAdmin)
	admin := func(h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(requireAdmin(h))
	}
	audited := func(action, resource string, h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(requireAdmin(auditMw.Log(action, resource)(h)))
	}

	mux := http.NewServeMux()

	// Reviewer routes
	mux.Handle("POST /api/v1/assignments/request", authenticated(assignmentHandler.RequestAssignment))
	mux.Handle("GET /api/v1/assignments", authenticated(assignmentHandler.ListAssignments))
	mux.Handle("POST /api/v1/assignments/{id}/complete", authenticated(assignmentHandler.CompleteAssignment))
	mux.Handle("POST /api/v1/assignments/{id}/activity", authenticated(assignmentHandler.TouchAssignment))
	mux.Handle("POST /api/v1/assignment-requests", authenticated(requestHandler.Create))
	mux.Handle("GET /api/v1/assignment-requests", authenticated(requestHandler.ListMine))
	mux.Handle("GET /api/v1/reviewers/me", authenticated(reviewerHandler.Me))
	mux.Handle("POST /api/v1/reviewers/me/onboarding", authenticated(reviewerHandler.CompleteOnboarding))
	mux.Handle("GET /api/v1/reputation/me", authenticated(reputationHandler.Me))
	mux.Handle("GET /api/v1/leaderboard", authenticated(reputationHandler.Leaderboard))

	// Admin routes
	mux.Handle("POST /api/v1/admin/assignments",
		audited(handlers.AuditActionAssignDirect, "assignment", assignmentHandler.AssignDirect))
	mux.Handle("POST /api/v1/admin/assignments/reclaim",
		audited(handlers.AuditActionReclaim, "assignment", assignmentHandler.ReclaimExpired))
	mux.Handle("GET /api/v1/admin/assignment-requests", admin(requestHandler.List))
	mux.Handle("PATCH /api/v1/admin/assignment-requests/{id}",
		audited(handlers.AuditActionRequestResolve, "assignment_request", requestHandler.Resolve))
	mux.Handle("GET /api/v1/admin/reviewers", admin(reviewerHandler.List))
	mux.Handle("POST /api/v1/admin/reviewers",
		audited(handlers.AuditActionReviewerRegister, "reviewer", reviewerHandler.Register))
	mux.Handle("POST /api/v1/admin/reviewers/{id}/suspend",
		audited(handlers.AuditActionReviewerSuspend, "reviewer", reviewerHandler.Suspend))
	mux.Handle("POST /api/v1/admin/reviewers/{id}/reactivate",
		audited(handlers.AuditActionReviewerActivate, "reviewer", reviewerHandler.Reactivate))
	mux.Handle("POST /api/v1/admin/proposals",
		audited(handlers.AuditActionProposalPublish, "proposal", proposalHandler.Publish))
	mux.Handle("GET /api/v1/admin/audit-logs", admin(auditHandler.ListAuditLogs))

	// Health check endpoint
	mux.HandleFunc("GET /health", a.health)

	if a.cfg.Metrics.Enabled {
		mux.Handle("GET "+a.cfg.Metrics.Path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	}

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)
	return handler, rateLimiter
}

func (a *app) health(w http.ResponseWriter, r *http.Request) {
	if err := a.store.HealthCheck(); err != nil {
		_ = handlers.JSONResponseWithStatus(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"store":  "error",
		})
		return
	}
	_ = handlers.JSONResponseWithStatus(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": a.cfg.App.Version,
	})
}
