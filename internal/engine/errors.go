package engine

import "errors"

// Sentinel kinds for engine errors.
var (
	ErrNotLoaded = errors.New("engine not loaded")
	ErrBusy      = errors.New("an operation is in progress")
)
