package domain

import "errors"

var (
	// ErrSlotUnavailable means the slot was claimed by someone else or has
	// no remaining capacity. Callers should re-query, not retry blindly.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrAlreadyResolved means another actor (expert, learner or the sweep)
	// already moved the booking into a terminal state.
	ErrAlreadyResolved = errors.New("booking already resolved")

	// ErrValidation marks malformed input. Never retried silently.
	ErrValidation = errors.New("invalid request")

	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrProcessor wraps failures coming back from the payment processor.
	// Processor detail stays in logs, never in API responses.
	ErrProcessor = errors.New("payment could not be processed")
)
