package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"proposal-review/internal/middleware"
	"proposal-review/internal/service"
	"proposal-review/pkg/validator"
)

// ProposalHandler handles proposal publication
type ProposalHandler struct {
	proposals *service.ProposalService
}

// NewProposalHandler creates a new proposal handler
func NewProposalHandler(proposals *service.ProposalService) *ProposalHandler {
	return &ProposalHandler{proposals: proposals}
}

type publishProposalBody struct {
	AuthorID      uuid.UUID `json:"author_id" validate:"required"`
	Title         string    `json:"title" validate:"required,notblank,max=300"`
	Tags          []string  `json:"tags" validate:"max=20"`
	TargetReviews int       `json:"target_reviews" validate:"min=0,max=50"`
}

// Publish makes a proposal available for review
// @Summary Publish a proposal (admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body publishProposalBody true "Proposal"
// @Success 201 {object} models.Proposal
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Failure 404 {object} map[string]string "Author not found"
// @Router /admin/proposals [post]
func (h *ProposalHandler) Publish(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var body publishProposalBody
	if err := decodeJSON(r, &body, false); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.proposals.Publish(r.Context(), adminID, body.AuthorID, validator.SanitizeString(body.Title), body.Tags, body.TargetReviews)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to publish proposal")
		return
	}

	respondWithJSON(w, http.StatusCreated, p)
}
