package selection

import "errors"

// Sentinel kinds for selection errors.
var (
	// ErrSelectionFull is a user-visible warning: the selection already holds
	// the maximum number of candidates.
	ErrSelectionFull    = errors.New("selection is full")
	ErrUnknownCandidate = errors.New("candidate not in pool")
)
