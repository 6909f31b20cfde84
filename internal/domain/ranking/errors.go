package ranking

import "errors"

// Sentinel kinds for ranked list errors.
var (
	// ErrInvariantViolation marks a programmer error such as a reorder that is
	// not a total permutation of the current ids. It is never recoverable by
	// the user and the list is left untouched.
	ErrInvariantViolation = errors.New("ranked list invariant violation")
	ErrLocked             = errors.New("ranked list is locked")
	ErrUnknownCandidate   = errors.New("candidate not in ranked list")
)
