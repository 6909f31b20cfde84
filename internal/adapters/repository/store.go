// Package repository holds the preference store's persistent state: users,
// the project catalogue, wishlists, ranked rows and scope locks.
package repository

import (
	"context"
	"time"

	"github.com/okian/prefrank/internal/domain/types"
)

// Project is a catalogue entry and the mentors who own it.
type Project struct {
	types.Candidate
	MentorIDs []string `json:"mentor_ids"`
}

// HasMentor reports whether userID owns or co-mentors p.
func (p Project) HasMentor(userID string) bool {
	for _, id := range p.MentorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// LockState is the submission flag of one scope.
type LockState struct {
	Locked   bool
	LockedAt time.Time
}

// Store provides read/write access to preference state. Rows are keyed by
// (scope, candidate), so writing the same row twice leaves one row.
type Store interface {
	PutUser(ctx context.Context, u types.Identity) error
	// User returns ErrNotFound for unknown ids.
	User(ctx context.Context, id string) (types.Identity, error)

	PutProject(ctx context.Context, p Project) error
	// Project returns ErrNotFound for unknown ids.
	Project(ctx context.Context, id string) (Project, error)
	// Projects returns the catalogue ordered by id.
	Projects(ctx context.Context) ([]Project, error)

	// ToggleWishlist flips membership and reports the new state.
	ToggleWishlist(ctx context.Context, userID, projectID string) (bool, error)
	// Wishlist returns project ids in the order they were added.
	Wishlist(ctx context.Context, userID string) ([]string, error)
	WishlistCount(ctx context.Context, projectID string) (int, error)

	// Rows returns the scope's rows ordered by rank, then candidate id.
	Rows(ctx context.Context, scope types.Scope) ([]types.SubmissionRecord, error)
	// Upsert returns ErrScopeLocked while the scope is locked.
	Upsert(ctx context.Context, scope types.Scope, rec types.SubmissionRecord) error
	// Delete reports whether a row was removed. It is allowed while locked.
	Delete(ctx context.Context, scope types.Scope, candidateID string) (bool, error)

	Lock(ctx context.Context, scope types.Scope, at time.Time) error
	Unlock(ctx context.Context, scope types.Scope) error
	LockState(ctx context.Context, scope types.Scope) (LockState, error)

	// Applicants returns the student rows naming projectID within program.
	// With lockedOnly set, rows of unlocked submissions are skipped.
	Applicants(ctx context.Context, program, projectID string, lockedOnly bool) ([]types.SubmissionRecord, error)

	// Count returns the number of ranked rows.
	Count(ctx context.Context) int
	Close() error
}
