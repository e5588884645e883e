package handlers

import (
	"net/http"

	"proposal-review/internal/service"
)

// AuditHandler handles audit log requests
type AuditHandler struct {
	audit *service.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// ListAuditLogs lists audit entries newest first (admin only)
// @Summary List audit logs
// @Description Get a paginated list of audit log entries, newest first (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Items per page" default(100)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{} "Paginated audit logs"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Router /admin/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 100, 500)

	logs, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list audit logs")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}
