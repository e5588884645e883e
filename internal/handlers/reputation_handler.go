package handlers

import (
	"net/http"
	"strconv"

	"proposal-review/internal/middleware"
	"proposal-review/internal/service"
)

// ReputationHandler exposes the reputation ledger
type ReputationHandler struct {
	ledger *service.ReputationService
}

// NewReputationHandler creates a new reputation handler
func NewReputationHandler(ledger *service.ReputationService) *ReputationHandler {
	return &ReputationHandler{ledger: ledger}
}

// Me returns the caller's ledger position
// @Summary Get my reputation
// @Tags Reputation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.ReputationSummary
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Reviewer not found"
// @Router /reputation/me [get]
func (h *ReputationHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	summary, err := h.ledger.Summary(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load reputation")
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// Leaderboard returns the top reviewers by balance
// @Summary Get the leaderboard
// @Tags Reputation
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries (1-100)" default(20)
// @Success 200 {array} models.LeaderboardEntry
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /leaderboard [get]
func (h *ReputationHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	entries, err := h.ledger.Leaderboard(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load leaderboard")
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}
