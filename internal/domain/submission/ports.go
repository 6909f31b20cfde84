// Package submission coordinates persisting a ranked list to the remote
// preference store, locking it, and reverting it.
package submission

import (
	"context"
	"time"

	"github.com/okian/prefrank/internal/domain/types"
)

// Store is the remote preference store as seen by the coordinator. It is the
// source of truth for submitted rankings.
type Store interface {
	CandidatePool(ctx context.Context, scope types.Scope) ([]types.Candidate, error)
	ExistingSubmission(ctx context.Context, scope types.Scope) (types.Submission, error)
	// UpsertRank must be idempotent on (actor, target, candidate).
	UpsertRank(ctx context.Context, scope types.Scope, item types.RankedItem) error
	DeleteRank(ctx context.Context, scope types.Scope, candidateID string) error
	Lock(ctx context.Context, scope types.Scope) error
	Unlock(ctx context.Context, scope types.Scope) error
}

// SessionChecker reports the current session. Implementations return
// ErrSessionExpired, or an unauthenticated session, once the credential is
// no longer usable.
type SessionChecker interface {
	Session(ctx context.Context) (types.Session, error)
}

// Marker is the locally cached hint that a scope was submitted.
type Marker struct {
	Items       int       `json:"items"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// MarkerCache stores submitted markers. It is a fast-path hint only; the
// store is always re-read on load.
type MarkerCache interface {
	Get(ctx context.Context, scope types.Scope) (Marker, bool, error)
	Put(ctx context.Context, scope types.Scope, m Marker) error
	Clear(ctx context.Context, scope types.Scope) error
}

// Action is what a confirmation prompt is about.
type Action string

const (
	ActionSubmit Action = "submit"
	ActionRevert Action = "revert"
)

// Prompt is shown to the actor before a mutating operation.
type Prompt struct {
	Action  Action
	Scope   types.Scope
	Items   []types.RankedItem
	Message string
}

// Confirmer asks the actor to approve a prompt.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}
