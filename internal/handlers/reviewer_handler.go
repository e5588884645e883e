package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"proposal-review/internal/middleware"
	"proposal-review/internal/models"
	"proposal-review/internal/service"
	"proposal-review/pkg/validator"
)

// ReviewerHandler handles reviewer profile and lifecycle requests
type ReviewerHandler struct {
	reviewers *service.ReviewerService
}

// NewReviewerHandler creates a new reviewer handler
func NewReviewerHandler(reviewers *service.ReviewerService) *ReviewerHandler {
	return &ReviewerHandler{reviewers: reviewers}
}

type onboardingBody struct {
	DisplayName string             `json:"display_name" validate:"max=100"`
	Expertise   []models.Expertise `json:"expertise" validate:"required,min=1,max=20,dive"`
}

type registerBody struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Role        string `json:"role" validate:"omitempty,oneof=reviewer admin"`
}

// Me returns the caller's profile with workload and balance
// @Summary Get my profile
// @Tags Reviewers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.ReviewerProfile
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Reviewer not found"
// @Router /reviewers/me [get]
func (h *ReviewerHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	profile, err := h.reviewers.GetProfile(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load profile")
		return
	}

	respondWithJSON(w, http.StatusOK, profile)
}

// CompleteOnboarding declares expertise and activates the caller
// @Summary Complete onboarding
// @Description Declare expertise areas and become eligible for work
// @Tags Reviewers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body onboardingBody true "Display name and expertise"
// @Success 200 {object} models.Reviewer
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Reviewer suspended"
// @Failure 409 {object} map[string]string "Onboarding already completed"
// @Router /reviewers/me/onboarding [post]
func (h *ReviewerHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var body onboardingBody
	if err := decodeJSON(r, &body, false); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviewer, err := h.reviewers.CompleteOnboarding(r.Context(), userID, body.DisplayName, body.Expertise)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to complete onboarding")
		return
	}

	respondWithJSON(w, http.StatusOK, reviewer)
}

// List lists reviewers, optionally by status
// @Summary List reviewers (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status (onboarding, active, suspended)"
// @Success 200 {array} models.Reviewer
// @Failure 400 {object} map[string]string "Invalid status"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Router /admin/reviewers [get]
func (h *ReviewerHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.ReviewerStatus(r.URL.Query().Get("status"))

	list, err := h.reviewers.ListReviewers(r.Context(), status)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list reviewers")
		return
	}

	respondWithJSON(w, http.StatusOK, list)
}

// Register creates a reviewer account in the onboarding state
// @Summary Register a reviewer (admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body registerBody true "Reviewer account"
// @Success 201 {object} models.Reviewer
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Failure 409 {object} map[string]string "Email already registered"
// @Router /admin/reviewers [post]
func (h *ReviewerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := decodeJSON(r, &body, false); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviewer, err := h.reviewers.Register(r.Context(),
		validator.SanitizeEmail(body.Email),
		validator.SanitizeString(body.DisplayName),
		models.Role(body.Role))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to register reviewer")
		return
	}

	respondWithJSON(w, http.StatusCreated, reviewer)
}

// Suspend suspends a reviewer
// @Summary Suspend a reviewer (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reviewer ID"
// @Success 200 {object} models.Reviewer
// @Failure 400 {object} map[string]string "Invalid reviewer ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Reviewer not found"
// @Router /admin/reviewers/{id}/suspend [post]
func (h *ReviewerHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.reviewers.Suspend)
}

// Reactivate lifts a suspension
// @Summary Reactivate a reviewer (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reviewer ID"
// @Success 200 {object} models.Reviewer
// @Failure 400 {object} map[string]string "Invalid reviewer ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Failure 404 {object} map[string]string "Reviewer not found"
// @Router /admin/reviewers/{id}/reactivate [post]
func (h *ReviewerHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.reviewers.Reactivate)
}

type statusChange func(ctx context.Context, adminID, id uuid.UUID) (*models.Reviewer, error)

func (h *ReviewerHandler) changeStatus(w http.ResponseWriter, r *http.Request, change statusChange) {
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

	reviewer, err := change(r.Context(), adminID, id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update reviewer status")
		return
	}

	respondWithJSON(w, http.StatusOK, reviewer)
}
