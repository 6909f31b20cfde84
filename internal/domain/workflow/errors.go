package workflow

import "errors"

// ErrInvalidTransition is returned when an event is not allowed from the
// current state. The state is left unchanged.
var ErrInvalidTransition = errors.New("invalid workflow transition")
