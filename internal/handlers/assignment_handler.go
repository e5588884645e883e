package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"proposal-review/internal/middleware"
	"proposal-review/internal/models"
	"proposal-review/internal/service"
)

// AssignmentHandler handles assignment HTTP requests
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

type requestAssignmentBody struct {
	Kind string `json:"kind" validate:"required,oneof=review peer_review"`
}

type completeAssignmentBody struct {
	Quality *int `json:"quality" validate:"omitempty,min=1,max=5"`
}

type assignDirectBody struct {
	ReviewerID uuid.UUID `json:"reviewer_id" validate:"required"`
	ItemID     uuid.UUID `json:"item_id" validate:"required"`
	Kind       string    `json:"kind" validate:"required,oneof=review peer_review"`
}

// RequestAssignment reserves the best available item for the caller
// @Summary Request an assignment
// @Description Reserve the highest-deficit eligible item of the given kind for the caller. A 404 means no work is available and points at the assignment request queue.
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body requestAssignmentBody true "Kind of work"
// @Success 201 {object} models.Assignment
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Reviewer not eligible"
// @Failure 404 {object} map[string]string "No work available"
// @Router /assignments/request [post]
func (h *AssignmentHandler) RequestAssignment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var body requestAssignmentBody
	if err := decodeJSON(r, &body, false); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.assignments.RequestAssignment(r.Context(), userID, models.AssignmentKind(body.Kind))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to request assignment")
		return
	}

	respondWithJSON(w, http.StatusCreated, a)
}

// ListAssignments lists the caller's assignments, optionally by status
// @Summary List my assignments
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status (pending, completed, expired)"
// @Success 200 {array} models.Assignment
// @Failure 400 {object} map[string]string "Invalid status"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /assignments [get]
func (h *AssignmentHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	status := models.AssignmentStatus(r.URL.Query().Get("status"))
	list, err := h.assignments.ListAssignments(r.Context(), userID, status)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list assignments")
		return
	}

	respondWithJSON(w, http.StatusOK, list)
}

// CompleteAssignment finishes one of the caller's pending assignments
// @Summary Complete an assignment
// @Description Record the Review or PeerReview and award its fixed reputation points
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param request body completeAssignmentBody false "Optional quality rating (1-5)"
// @Success 200 {object} service.CompletionResult
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Not your assignment"
// @Failure 404 {object} map[string]string "Assignment not found"
// @Failure 409 {object} map[string]string "Already completed or no longer pending"
// @Router /assignments/{id}/complete [post]
func (h *AssignmentHandler) CompleteAssignment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body completeAssignmentBody
	if err := decodeJSON(r, &body, true); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	quality := 0
	if body.Quality != nil {
		quality = *body.Quality
	}

	result, err := h.assignments.CompleteAssignment(r.Context(), userID, id, quality)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to complete assignment")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// TouchAssignment records activity on an assignment, deferring its expiry
// @Summary Record assignment activity
// @Tags Assignments
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 204 "Activity recorded"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Not your assignment"
// @Failure 404 {object} map[string]string "Assignment not found"
// @Failure 409 {object} map[string]string "Assignment is no longer pending"
// @Router /assignments/{id}/activity [post]
func (h *AssignmentHandler) TouchAssignment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.assignments.TouchAssignment(r.Context(), userID, id); err != nil {
		respondWithServiceError(w, r, err, "Failed to record activity")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AssignDirect lets an admin hand a specific item to a reviewer
// @Summary Assign an item directly (admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body assignDirectBody true "Reviewer, item and kind"
// @Success 201 {object} models.Assignment
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden or reviewer not eligible"
// @Failure 404 {object} map[string]string "Reviewer or item not found"
// @Failure 409 {object} map[string]string "Item fully staffed"
// @Router /admin/assignments [post]
func (h *AssignmentHandler) AssignDirect(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var body assignDirectBody
	if err := decodeJSON(r, &body, false); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.assignments.AssignDirect(r.Context(), adminID, body.ReviewerID, body.ItemID, models.AssignmentKind(body.Kind))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create assignment")
		return
	}

	respondWithJSON(w, http.StatusCreated, a)
}

// ReclaimExpired runs an expiry sweep immediately
// @Summary Reclaim expired assignments (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Reclaimed assignments"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Router /admin/assignments/reclaim [post]
func (h *AssignmentHandler) ReclaimExpired(w http.ResponseWriter, r *http.Request) {
	expired, err := h.assignments.ReclaimExpired(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to reclaim assignments")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"reclaimed":   len(expired),
		"assignments": expired,
	})
}
