package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"proposal-review/internal/assignment"
	"proposal-review/internal/models"
)

var (
	// ErrNoWorkAvailable is an outcome, not a failure: the reviewer should
	// fall back to the assignment request queue.
	ErrNoWorkAvailable = errors.New("no work available")

	ErrForbidden             = errors.New("forbidden")
	ErrInvalidKind           = errors.New("invalid assignment kind")
	ErrInvalidRequestType    = errors.New("invalid request type")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrDeclineReasonRequired = errors.New("a reason is required to decline a request")
	ErrAlreadyOnboarded      = errors.New("reviewer has already completed onboarding")
	ErrItemFullyStaffed      = errors.New("item has reached its target")

	// ErrReconcileContended means the cached balance kept moving during
	// every reconcile attempt
	ErrReconcileContended = errors.New("reputation balance changed during reconciliation")
)

// ReviewerNotEligibleError is returned when a reviewer cannot receive work
// because of their lifecycle state or the item's relationship to them.
type ReviewerNotEligibleError struct {
	ReviewerID uuid.UUID
	Status     models.ReviewerStatus
	Reason     assignment.Reason
}

func (e *ReviewerNotEligibleError) Error() string {
	return fmt.Sprintf("reviewer %s is not eligible (%s, status %s)", e.ReviewerID, e.Reason, e.Status)
}

// DuplicateCompletionError is returned when a completion has already been
// recorded for the (reviewer, item, kind) pairing.
type DuplicateCompletionError struct {
	ReviewerID uuid.UUID
	ItemID     uuid.UUID
	Kind       models.AssignmentKind
}

func (e *DuplicateCompletionError) Error() string {
	return fmt.Sprintf("completion already recorded for reviewer %s, %s %s", e.ReviewerID, e.Kind, e.ItemID)
}

func (e *DuplicateCompletionError) Unwrap() error {
	return models.ErrDuplicateCompletion
}
