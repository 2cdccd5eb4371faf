package market

import "errors"

// Stable error kinds returned by the coordination core. The HTTP layer maps
// each kind to a status code and a machine-readable code string; the core never
// retries on any of them.
var (
	// ErrUnauthorized means the caller lacks the required role for the
	// operation (creator/payer/authority mismatch).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState means the attempted transition is not legal from the
	// request's current state. A second approve on an already-approved
	// request fails with this kind rather than no-opping, so callers can
	// distinguish "already done" from "succeeded".
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound means a referenced id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds means the payer's account cannot cover the
	// amount being locked.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientBalance means a withdrawal exceeds the accumulated
	// balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidSplit means a royalty split does not partition 100%.
	ErrInvalidSplit = errors.New("invalid split")

	// ErrInvalidAmount means a zero or negative amount was supplied.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAgentInactive means the referenced agent identity has been
	// deactivated and may not be hired.
	ErrAgentInactive = errors.New("agent inactive")

	// ErrPaused means the distribution emergency stop is engaged; funds do
	// not move while it is set.
	ErrPaused = errors.New("distribution paused")

	// ErrNotEligible means a rating was submitted without a qualifying
	// approved request, or the request's single rating entitlement was
	// already consumed.
	ErrNotEligible = errors.New("not eligible to rate")

	// ErrDuplicateRegistration means the creator already has an active
	// agent registered with the same metadata URI.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrAlreadyDistributed means a distribution referencing this request
	// was already recorded. The coordinator invokes distribution exactly
	// once per request; this is the distributor's defense-in-depth check.
	ErrAlreadyDistributed = errors.New("already distributed")

	// ErrInvalidRating means a star or sub-score value is outside 1..5.
	ErrInvalidRating = errors.New("rating out of range")
)
