package models

import "errors"

// Store-level errors shared by the Postgres and in-memory implementations.
var (
	ErrNotFound = errors.New("not found")

	// ErrReservationConflict means another reviewer took the last slot of
	// an item, or the reviewer already holds it. Callers retry elsewhere.
	ErrReservationConflict = errors.New("reservation conflict")

	// ErrDuplicateCompletion means a Review or PeerReview already exists
	// for the (reviewer, item) pair.
	ErrDuplicateCompletion = errors.New("duplicate completion")

	ErrAssignmentNotPending = errors.New("assignment is not pending")
	ErrRequestNotPending    = errors.New("assignment request is not pending")

	// ErrPendingRequestExists means the reviewer already has an open
	// assignment request.
	ErrPendingRequestExists = errors.New("a pending assignment request already exists")

	ErrEmailTaken = errors.New("email already registered")
)
