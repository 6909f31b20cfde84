package session

import "errors"

var (
	ErrNoBackend   = errors.New("session provider has no backend")
	ErrEmptyCode   = errors.New("authorization code is empty")
	ErrEmptyToken  = errors.New("session provider returned an empty token")
	ErrNoTokenSink = errors.New("session provider has no token store")
)
