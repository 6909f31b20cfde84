package service

import "errors"

// Sentinel kinds for service errors. The HTTP layer maps each to a status.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrMentorOnly         = errors.New("mentor only")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrLocked             = errors.New("ranking is locked")
	ErrBadRequest         = errors.New("bad request")
	ErrAnnotationTooLong  = errors.New("annotation too long")
	ErrNotInPool          = errors.New("candidate not in pool")
	ErrNothingToLock      = errors.New("nothing to lock")
	ErrInvalidCredentials = errors.New("invalid authorization code")
)
