// Package types contains common types used across the application
package types

import (
	"fmt"
	"time"
)

// Flow identifies which side of the matching is ranking.
type Flow string

// Supported flows.
const (
	// FlowStudent ranks projects from the student's wishlist.
	FlowStudent Flow = "student"
	// FlowMentor ranks the applicants who chose one of the mentor's projects.
	FlowMentor Flow = "mentor"
)

// Valid reports whether f is a known flow.
func (f Flow) Valid() bool {
	return f == FlowStudent || f == FlowMentor
}

// Kind is the kind of entity being ranked.
type Kind string

// Candidate kinds.
const (
	KindProject   Kind = "project"
	KindApplicant Kind = "applicant"
)

// Candidate is an item eligible for ranking: a project or an applicant.
type Candidate struct {
	ID    string            `json:"id"`
	Title string            `json:"title"`
	Kind  Kind              `json:"kind"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Well-known Candidate.Meta keys.
const (
	MetaDomain1     = "project_domain_1"
	MetaDomain2     = "project_domain_2"
	MetaDifficulty  = "difficulty"
	MetaProjectType = "project_type"
	MetaName        = "name"
	MetaEmail       = "email"
	MetaRollNo      = "roll_no"
	MetaSOP         = "sop"
)

// RankedItem binds a candidate to a dense 1-based position and its annotation.
type RankedItem struct {
	CandidateID string `json:"candidate_id"`
	Position    int    `json:"rank"`
	Annotation  string `json:"sop"`
}

// Scope names one (actor, target) pair that a ranking belongs to.
type Scope struct {
	Flow     Flow   `json:"flow"`
	ActorID  string `json:"actor_id"`
	TargetID string `json:"target_id"`
}

// Key returns a stable string form of the scope, used as a cache key.
func (s Scope) Key() string {
	return fmt.Sprintf("%s/%s/%s", s.Flow, s.ActorID, s.TargetID)
}

// String implements fmt.Stringer.
func (s Scope) String() string { return s.Key() }

// SubmissionRecord is one persisted row in the preference store.
type SubmissionRecord struct {
	ActorID     string    `json:"actor_id"`
	TargetID    string    `json:"target_id"`
	CandidateID string    `json:"candidate_id"`
	Rank        int       `json:"rank"`
	Annotation  string    `json:"sop"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Submission is the server's view of a scope: persisted rows in rank order
// plus the lock flag.
type Submission struct {
	Items    []RankedItem `json:"items"`
	Locked   bool         `json:"locked"`
	LockedAt time.Time    `json:"locked_at,omitempty"`
}

// Empty reports whether nothing is persisted for the scope.
func (s Submission) Empty() bool {
	return len(s.Items) == 0 && !s.Locked
}

// Identity is the authenticated actor.
type Identity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	RollNo   string `json:"roll_no,omitempty"`
	IsMentor bool   `json:"is_mentor"`
}

// Session is the Session Provider's answer to "who am I".
type Session struct {
	Authenticated bool     `json:"authenticated"`
	Identity      Identity `json:"user"`
}

// Grant is the answer to a successful authorization code exchange.
type Grant struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Identity  `json:"user"`
}

// WishlistStatus reports wishlist membership after a toggle.
type WishlistStatus struct {
	ProjectID    string `json:"project_id"`
	Wishlisted   bool   `json:"wishlisted"`
	WishlistSize int    `json:"wishlist_size"`
}

// MentorProject is one project in a mentor's listing.
type MentorProject struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	WishlistCount    int    `json:"wishlist_count"`
	PreferencesCount int    `json:"preferences_count"`
}
