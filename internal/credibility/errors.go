package credibility

import "errors"

var (
	// ErrRejectionNotFound is returned by UndoRejection when no rejection in the
	// history matches the task and reviewer.
	ErrRejectionNotFound = errors.New("no matching rejection to undo")

	// ErrInvariantViolation marks a state or tier table that breaks the engine's
	// invariants. It is never recovered from silently.
	ErrInvariantViolation = errors.New("credibility invariant violation")

	// ErrInvalidXP is returned when converting a negative XP amount.
	ErrInvalidXP = errors.New("xp amount must be non-negative")
)
