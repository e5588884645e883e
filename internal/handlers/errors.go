package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"proposal-review/internal/models"
	"proposal-review/internal/service"
)

// respondWithServiceError maps engine errors to HTTP responses. Anything
// unrecognised is logged and reported as a 500 with fallback as message.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var notEligible *service.ReviewerNotEligibleError
	var duplicate *service.DuplicateCompletionError

	switch {
	case errors.Is(err, service.ErrNoWorkAvailable):
		respondWithJSON(w, http.StatusNotFound, map[string]string{
			"error":       ErrMsgNoWorkAvailable,
			"hint":        "No eligible work right now. File an assignment request and an administrator will follow up.",
			"request_url": AssignmentRequestsPath,
		})
	case errors.As(err, &notEligible):
		respondWithJSON(w, http.StatusForbidden, map[string]string{
			"error":  "Reviewer is not eligible",
			"reason": string(notEligible.Reason),
			"status": string(notEligible.Status),
		})
	case errors.As(err, &duplicate), errors.Is(err, models.ErrDuplicateCompletion):
		respondWithError(w, http.StatusConflict, "Work already completed for this item")
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, ErrMsgPermissionDenied)
	case errors.Is(err, models.ErrNotFound):
		respondWithError(w, http.StatusNotFound, ErrMsgNotFound)
	case errors.Is(err, service.ErrItemFullyStaffed), errors.Is(err, models.ErrReservationConflict):
		respondWithError(w, http.StatusConflict, "Item has no open slots")
	case errors.Is(err, models.ErrAssignmentNotPending):
		respondWithError(w, http.StatusConflict, "Assignment is no longer pending")
	case errors.Is(err, models.ErrRequestNotPending):
		respondWithError(w, http.StatusConflict, "Assignment request has already been resolved")
	case errors.Is(err, models.ErrPendingRequestExists):
		respondWithError(w, http.StatusConflict, "You already have a pending assignment request")
	case errors.Is(err, models.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, service.ErrAlreadyOnboarded):
		respondWithError(w, http.StatusConflict, "Onboarding already completed")
	case errors.Is(err, service.ErrInvalidKind),
		errors.Is(err, service.ErrInvalidRequestType),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrDeclineReasonRequired):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error(fallback, "method", r.Method, "path", r.URL.Path, "error", err)
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}
