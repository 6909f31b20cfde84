package submission

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for submission errors.
var (
	ErrIncompleteSubmission = errors.New("submission incomplete")
	ErrNothingToSubmit      = errors.New("nothing to submit")
	ErrCancelled            = errors.New("cancelled")
	ErrSessionExpired       = errors.New("session expired, please sign in again")
	ErrPartialFailure       = errors.New("operation partially applied")
	ErrNotEditable          = errors.New("ranking is not editable")
	ErrNotLocked            = errors.New("ranking is not locked")
	ErrMissingDependency    = errors.New("missing dependency")
	// ErrAlreadyLocked is returned by a Store whose scope was locked by
	// another session.
	ErrAlreadyLocked = errors.New("ranking already locked in the store")
)

// IncompleteSubmissionError names the items that still lack an annotation.
type IncompleteSubmissionError struct {
	CandidateIDs []string
}

func (e *IncompleteSubmissionError) Error() string {
	return fmt.Sprintf("%d item(s) missing a statement of purpose: %s",
		len(e.CandidateIDs), strings.Join(e.CandidateIDs, ", "))
}

func (e *IncompleteSubmissionError) Unwrap() error { return ErrIncompleteSubmission }

// Op names the remote step that failed.
type Op string

const (
	OpUpsert    Op = "upsert"
	OpDelete    Op = "delete"
	OpReconcile Op = "reconcile"
	OpLock      Op = "lock"
	OpUnlock    Op = "unlock"
)

// PartialFailureError reports where a multi-step remote operation stopped.
// Index is the 0-based item index for per-item steps and -1 otherwise.
// Succeeded lists the candidate ids whose step completed before the failure.
type PartialFailureError struct {
	Op          Op
	Index       int
	CandidateID string
	Succeeded   []string
	Err         error
}

func (e *PartialFailureError) Error() string {
	if e.CandidateID == "" {
		return fmt.Sprintf("%s failed after %d item(s) succeeded: %v", e.Op, len(e.Succeeded), e.Err)
	}
	return fmt.Sprintf("%s failed at item %d (%s) after %d succeeded: %v",
		e.Op, e.Index+1, e.CandidateID, len(e.Succeeded), e.Err)
}

// Unwrap exposes both ErrPartialFailure and the underlying cause.
func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPartialFailure, e.Err}
}
