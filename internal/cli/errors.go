package cli

import "errors"

// Sentinel kinds for CLI errors.
var (
	ErrUsage       = errors.New("usage error")
	ErrNotSignedIn = errors.New("not signed in; run 'prefrank login <code>'")
	ErrInvalidPlan = errors.New("invalid plan")
	ErrSubmitted   = errors.New("ranking already submitted; run 'prefrank revert' to edit it")
)
