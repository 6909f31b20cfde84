package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/okian/prefrank/internal/domain/types"
)

// ExchangeRequest is the body of POST /auth/callback.
type ExchangeRequest struct {
	Code string `json:"code"`
}

// Exchange trades an authorization code for a session token.
func (c *Client) Exchange(ctx context.Context, code string) (types.Grant, error) {
	var out types.Grant
	err := c.do(ctx, call{op: "exchange", method: http.MethodPost, path: "/auth/callback", body: ExchangeRequest{Code: code}, once: true}, &out)
	return out, err
}

// Me asks the store who the current token belongs to.
func (c *Client) Me(ctx context.Context) (types.Session, error) {
	var out types.Session
	err := c.do(ctx, call{op: "me", method: http.MethodGet, path: "/api/me", auth: true}, &out)
	return out, err
}

// Catalog lists every project.
func (c *Client) Catalog(ctx context.Context) ([]types.Candidate, error) {
	var out PoolResponse
	if err := c.do(ctx, call{op: "catalog", method: http.MethodGet, path: "/api/project", auth: true}, &out); err != nil {
		return nil, err
	}
	return out.Candidates(), nil
}

// ToggleWishlist adds the project to the wishlist or removes it. It is never
// retried, since a resent toggle would undo the first one.
func (c *Client) ToggleWishlist(ctx context.Context, projectID string) (types.WishlistStatus, error) {
	var out types.WishlistStatus
	path := "/api/project/" + url.PathEscape(projectID) + "/wishlist"
	err := c.do(ctx, call{op: "wishlist", method: http.MethodPost, path: path, auth: true, once: true}, &out)
	return out, err
}

// MentorProjectsResponse is the body of GET /api/mentor/projects.
type MentorProjectsResponse struct {
	Projects []types.MentorProject `json:"projects"`
}

// MentorProjects lists the projects the caller mentors.
func (c *Client) MentorProjects(ctx context.Context) ([]types.MentorProject, error) {
	var out MentorProjectsResponse
	if err := c.do(ctx, call{op: "mentor_projects", method: http.MethodGet, path: "/api/mentor/projects", auth: true}, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}
