package ledger

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrValidation: malformed stage definitions, rejected before any
	// state change.
	ErrValidation = errors.New("invalid input")

	// ErrInvalidTransition: state machine misuse, never silently coerced.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrStaleState: lost a concurrency race. The caller must re-fetch the
	// stage and retry the user action.
	ErrStaleState = errors.New("stage modified concurrently")
)
