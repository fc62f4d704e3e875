package workflow

import "errors"

// Sentinel errors for the workflow operations. The calling layer maps
// these to its own status codes; none are retried here, because retrying
// a non-idempotent transition could double-post points.
var (
	// ErrNotFound: the chore, instance, claim, user, or reward does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition: the operation is not legal in the current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrForbidden: the actor lacks the required role or ownership.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict: a duplicate claim, or the race was lost to another writer.
	ErrConflict = errors.New("conflict")

	// ErrValidation: malformed pattern, missing required field, or
	// out-of-range value.
	ErrValidation = errors.New("validation failed")

	// ErrOutOfWindow: the claim falls outside the early/grace window.
	ErrOutOfWindow = errors.New("outside claim window")
)
