package handlers

import (
	"net/http"

	"proposal-review/internal/middleware"
	"proposal-review/internal/models"
	"proposal-review/internal/service"
	"proposal-review/pkg/validator"
)

// AssignmentRequestHandler handles the assignment request queue
type AssignmentRequestHandler struct {
	requests *service.AssignmentRequestService
}

// NewAssignmentRequestHandler creates a new assignment request handler
func NewAssignmentRequestHandler(requests *service.AssignmentRequestService) *AssignmentRequestHandler {
	return &AssignmentRequestHandler{requests: requests}
}

type createRequestBody struct {
	RequestType string `json:"request_type" validate:"required,oneof=reviews peer_reviews both"`
	Message     string `json:"message" validate:"max=2000"`
}

type patchRequestBody struct {
	Status         string  `json:"status" validate:"required,oneof=fulfilled declined"`
	AdminNote      *string `json:"admin_note" validate:"omitempty,max=2000"`
	DeclinedReason *string `json:"declined_reason" validate:"omitempty,max=2000"`
}

// Create files an assignment request for the caller
// @Summary File an assignment request
// @Description Ask an administrator for more work when none is available
// @Tags Assignment Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createRequestBody true "Request type and message"
// @Success 201 {object} models.AssignmentRequest
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Reviewer not eligible"
// @Failure 409 {object} map[string]string "A pending request already exists"
// @Router /assignment-requests [post]
func (h *AssignmentRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var body createRequestBody
	if err := decodeJSON(r, &body, false); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := h.requests.CreateRequest(r.Context(), userID, models.RequestType(body.RequestType), validator.SanitizeString(body.Message))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create assignment request")
		return
	}

	respondWithJSON(w, http.StatusCreated, req)
}

// ListMine lists the caller's assignment requests
// @Summary List my assignment requests
// @Tags Assignment Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.AssignmentRequest
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /assignment-requests [get]
func (h *AssignmentRequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	list, err := h.requests.ListMine(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list assignment requests")
		return
	}

	respondWithJSON(w, http.StatusOK, list)
}

// List lists assignment requests for administrators
// @Summary List assignment requests (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status (pending, fulfilled, declined)"
// @Param limit query int false "Items per page" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.AssignmentRequest
// @Failure 400 {object} map[string]string "Invalid status"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Router /admin/assignment-requests [get]
func (h *AssignmentRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 200)
	filter := models.RequestFilter{
		Status: models.RequestStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}

	list, err := h.requests.ListRequests(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list assignment requests")
		return
	}

	respondWithJSON(w, http.StatusOK, list)
}

// Resolve fulfills or declines a pending request
// @Summary Resolve an assignment request (admin only)
// @Description Fulfill or decline a pending request. Resolved requests never change again.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment request ID"
// @Param request body patchRequestBody true "Resolution"
// @Success 200 {object} models.AssignmentRequest
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Failure 404 {object} map[string]string "Request not found"
// @Failure 409 {object} map[string]string "Request already resolved"
// @Router /admin/assignment-requests/{id} [patch]
func (h *AssignmentRequestHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body patchRequestBody
	if err := decodeJSON(r, &body, false); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := h.requests.Patch(r.Context(), adminID, id, service.RequestPatch{
		Status:         models.RequestStatus(body.Status),
		AdminNote:      body.AdminNote,
		DeclinedReason: body.DeclinedReason,
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update assignment request")
		return
	}

	respondWithJSON(w, http.StatusOK, req)
}
