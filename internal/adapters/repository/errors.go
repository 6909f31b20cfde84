package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrScopeLocked   = errors.New("scope is locked")
	ErrInvalidRecord = errors.New("invalid record")
)
