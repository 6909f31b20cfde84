package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/prefrank/internal/domain/submission"
)

// Sentinel kinds for remote store errors.
var (
	// ErrTransport covers network failures and 5xx answers.
	ErrTransport = errors.New("preference store unreachable")
	// ErrMalformedResponse is a 2xx answer whose body could not be decoded.
	ErrMalformedResponse = errors.New("malformed preference store response")
	// ErrRejected is a 4xx answer other than the ones below.
	ErrRejected = errors.New("request rejected by preference store")
	ErrNotFound = errors.New("not found in preference store")
	ErrLocked   = submission.ErrAlreadyLocked
	ErrNoToken  = errors.New("no session token")
)

// StatusError is a non-2xx answer. It unwraps to the sentinel matching its
// status, with 401 mapped to submission.ErrSessionExpired and 409 to
// submission.ErrAlreadyLocked.
type StatusError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Method     string `json:"-"`
	Path       string `json:"-"`
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return submission.ErrSessionExpired
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return ErrLocked
	case e.StatusCode >= 500:
		return ErrTransport
	default:
		return ErrRejected
	}
}

// retryable reports whether a status is worth resending unchanged.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
