package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/internal/domain/types"
)

var _ submission.Store = (*Client)(nil)

// routes maps the store contract onto one flow's URL space.
type routes struct {
	pool     string
	existing string
	item     func(candidateID string) string
	lock     string
}

func routesFor(scope types.Scope) (routes, error) {
	switch scope.Flow {
	case types.FlowStudent:
		return routes{
			pool:     "/api/project/wishlist",
			existing: "/api/project/preferences",
			item: func(id string) string {
				return "/api/project/" + url.PathEscape(id) + "/preference"
			},
			lock: "/api/project/preferences/lock",
		}, nil
	case types.FlowMentor:
		base := "/api/mentor/project/" + url.PathEscape(scope.TargetID)
		return routes{
			pool:     base + "/sops",
			existing: base + "/my_rankings",
			item: func(id string) string {
				return base + "/ranking/" + url.PathEscape(id)
			},
			lock: base + "/rankings/lock",
		}, nil
	}
	return routes{}, fmt.Errorf("remote: unknown flow %q", scope.Flow)
}

// PoolResponse is the body of the candidate pool endpoints. Students get
// "tiles", mentors get "sops".
type PoolResponse struct {
	Tiles []types.Candidate `json:"tiles,omitempty"`
	SOPs  []types.Candidate `json:"sops,omitempty"`
}

// Candidates returns whichever list the server filled.
func (p PoolResponse) Candidates() []types.Candidate {
	if len(p.Tiles) > 0 {
		return p.Tiles
	}
	return p.SOPs
}

// ExistingResponse is the body of the existing submission endpoints.
// Students get "tiles", mentors get "rankings".
type ExistingResponse struct {
	Tiles    []types.RankedItem `json:"tiles,omitempty"`
	Rankings []types.RankedItem `json:"rankings,omitempty"`
	Locked   bool               `json:"locked"`
	LockedAt *time.Time         `json:"locked_at,omitempty"`
}

// Submission converts the response to the domain view.
func (e ExistingResponse) Submission() types.Submission {
	items := e.Tiles
	if len(items) == 0 {
		items = e.Rankings
	}
	sub := types.Submission{Items: items, Locked: e.Locked}
	if e.LockedAt != nil {
		sub.LockedAt = *e.LockedAt
	}
	return sub
}

// RankRequest is the body of an upsert.
type RankRequest struct {
	Rank int    `json:"rank"`
	SOP  string `json:"sop"`
}

// CandidatePool implements submission.Store.
func (c *Client) CandidatePool(ctx context.Context, scope types.Scope) ([]types.Candidate, error) {
	r, err := routesFor(scope)
	if err != nil {
		return nil, err
	}
	var out PoolResponse
	if err := c.do(ctx, call{op: "pool", method: http.MethodGet, path: r.pool, auth: true}, &out); err != nil {
		return nil, err
	}
	return out.Candidates(), nil
}

// ExistingSubmission implements submission.Store.
func (c *Client) ExistingSubmission(ctx context.Context, scope types.Scope) (types.Submission, error) {
	r, err := routesFor(scope)
	if err != nil {
		return types.Submission{}, err
	}
	var out ExistingResponse
	if err := c.do(ctx, call{op: "existing", method: http.MethodGet, path: r.existing, auth: true}, &out); err != nil {
		return types.Submission{}, err
	}
	return out.Submission(), nil
}

// UpsertRank implements submission.Store.
func (c *Client) UpsertRank(ctx context.Context, scope types.Scope, item types.RankedItem) error {
	r, err := routesFor(scope)
	if err != nil {
		return err
	}
	body := RankRequest{Rank: item.Position, SOP: item.Annotation}
	return c.do(ctx, call{op: "upsert", method: http.MethodPut, path: r.item(item.CandidateID), body: body, auth: true}, nil)
}

// DeleteRank implements submission.Store. Deleting a row that does not
// exist succeeds.
func (c *Client) DeleteRank(ctx context.Context, scope types.Scope, candidateID string) error {
	r, err := routesFor(scope)
	if err != nil {
		return err
	}
	return c.do(ctx, call{op: "delete", method: http.MethodDelete, path: r.item(candidateID), auth: true}, nil)
}

// Lock implements submission.Store.
func (c *Client) Lock(ctx context.Context, scope types.Scope) error {
	r, err := routesFor(scope)
	if err != nil {
		return err
	}
	return c.do(ctx, call{op: "lock", method: http.MethodPost, path: r.lock, auth: true}, nil)
}

// Unlock implements submission.Store.
func (c *Client) Unlock(ctx context.Context, scope types.Scope) error {
	r, err := routesFor(scope)
	if err != nil {
		return err
	}
	return c.do(ctx, call{op: "unlock", method: http.MethodDelete, path: r.lock, auth: true}, nil)
}
