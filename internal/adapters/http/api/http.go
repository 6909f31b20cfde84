// Package api declares HTTP contracts and route registration helpers for the
// preference store.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	service "github.com/okian/prefrank/internal/app"
	"github.com/okian/prefrank/internal/domain/types"
)

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	Exchange(ctx context.Context, code string) (types.Grant, error)
	Authenticate(ctx context.Context, token string) (types.Identity, error)
	Me(ctx context.Context, user types.Identity) types.Session

	Catalog(ctx context.Context) ([]types.Candidate, error)
	ToggleWishlist(ctx context.Context, user types.Identity, projectID string) (types.WishlistStatus, error)
	MentorProjects(ctx context.Context, user types.Identity) ([]types.MentorProject, error)

	StudentScope(user types.Identity) types.Scope
	MentorScope(ctx context.Context, user types.Identity, projectID string) (types.Scope, error)

	Pool(ctx context.Context, scope types.Scope) ([]types.Candidate, error)
	Existing(ctx context.Context, scope types.Scope) (types.Submission, error)
	UpsertRank(ctx context.Context, scope types.Scope, item types.RankedItem, key string) error
	DeleteRank(ctx context.Context, scope types.Scope, candidateID string) error
	Lock(ctx context.Context, scope types.Scope) error
	Unlock(ctx context.Context, scope types.Scope) error
}

// IdempotencyHeader is read from mutating requests and passed to the store.
const IdempotencyHeader = "Idempotency-Key"

// Server wires HTTP routes for the business API.
type Server struct {
	deps          Dependencies
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		deps:          deps,
		healthHandler: NewHealthHandler(nil),
		statsHandler:  NewStatsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /auth/callback", MetricsMiddleware(s.handleExchange, "auth_callback"))
	mux.HandleFunc("GET /api/me", s.route("me", s.handleMe))

	mux.HandleFunc("GET /api/project", s.route("catalog", s.handleCatalog))
	mux.HandleFunc("POST /api/project/{id}/wishlist", s.route("wishlist_toggle", s.handleToggleWishlist))

	mux.HandleFunc("GET /api/project/wishlist", s.route("student_pool", s.student(s.handlePool)))
	mux.HandleFunc("GET /api/project/preferences", s.route("student_existing", s.student(s.handleExisting)))
	mux.HandleFunc("PUT /api/project/{candidate}/preference", s.route("student_upsert", s.student(s.handleUpsert)))
	mux.HandleFunc("DELETE /api/project/{candidate}/preference", s.route("student_delete", s.student(s.handleDelete)))
	mux.HandleFunc("POST /api/project/preferences/lock", s.route("student_lock", s.student(s.handleLock)))
	mux.HandleFunc("DELETE /api/project/preferences/lock", s.route("student_unlock", s.student(s.handleUnlock)))

	mux.HandleFunc("GET /api/mentor/projects", s.route("mentor_projects", s.handleMentorProjects))
	mux.HandleFunc("GET /api/mentor/project/{project}/sops", s.route("mentor_pool", s.mentor(s.handlePool)))
	mux.HandleFunc("GET /api/mentor/project/{project}/my_rankings", s.route("mentor_existing", s.mentor(s.handleExisting)))
	mux.HandleFunc("PUT /api/mentor/project/{project}/ranking/{candidate}", s.route("mentor_upsert", s.mentor(s.handleUpsert)))
	mux.HandleFunc("DELETE /api/mentor/project/{project}/ranking/{candidate}", s.route("mentor_delete", s.mentor(s.handleDelete)))
	mux.HandleFunc("POST /api/mentor/project/{project}/rankings/lock", s.route("mentor_lock", s.mentor(s.handleLock)))
	mux.HandleFunc("DELETE /api/mentor/project/{project}/rankings/lock", s.route("mentor_unlock", s.mentor(s.handleUnlock)))
}

// route adds metrics and bearer authentication to an endpoint.
func (s *Server) route(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return MetricsMiddleware(AuthMiddleware(s.deps, next), endpoint)
}

// scopedHandler serves a request whose ranking scope is already resolved.
type scopedHandler func(w http.ResponseWriter, r *http.Request, scope types.Scope)

func (s *Server) student(next scopedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		next(w, r, s.deps.StudentScope(user))
	}
}

func (s *Server) mentor(next scopedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		scope, err := s.deps.MentorScope(r.Context(), user, r.PathValue("project"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		next(w, r, scope)
	}
}

// exchangeRequest mirrors the OpenAPI schema for POST /auth/callback.
type exchangeRequest struct {
	Code string `json:"code"`
}

// rankRequest mirrors the OpenAPI schema for the preference upsert.
type rankRequest struct {
	Rank *int   `json:"rank"`
	SOP  string `json:"sop"`
}

// poolResponse carries "tiles" for students and "sops" for mentors.
type poolResponse struct {
	Tiles []types.Candidate `json:"tiles,omitempty"`
	SOPs  []types.Candidate `json:"sops,omitempty"`
}

// existingResponse carries "tiles" for students and "rankings" for mentors.
type existingResponse struct {
	Tiles    []types.RankedItem `json:"tiles,omitempty"`
	Rankings []types.RankedItem `json:"rankings,omitempty"`
	Locked   bool               `json:"locked"`
	LockedAt *time.Time         `json:"locked_at,omitempty"`
}

type catalogResponse struct {
	Tiles []types.Candidate `json:"tiles"`
}

type mentorProjectsResponse struct {
	Projects []types.MentorProject `json:"projects"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("missing code: %w", ErrBadRequest))
		return
	}
	grant, err := s.deps.Exchange(r.Context(), req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, s.deps.Me(r.Context(), user))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	projects, err := s.deps.Catalog(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if projects == nil {
		projects = []types.Candidate{}
	}
	writeJSON(w, http.StatusOK, catalogResponse{Tiles: projects})
}

func (s *Server) handleToggleWishlist(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	status, err := s.deps.ToggleWishlist(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleMentorProjects(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	projects, err := s.deps.MentorProjects(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if projects == nil {
		projects = []types.MentorProject{}
	}
	writeJSON(w, http.StatusOK, mentorProjectsResponse{Projects: projects})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request, scope types.Scope) {
	pool, err := s.deps.Pool(r.Context(), scope)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if pool == nil {
		pool = []types.Candidate{}
	}
	var resp poolResponse
	if scope.Flow == types.FlowMentor {
		resp.SOPs = pool
	} else {
		resp.Tiles = pool
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExisting(w http.ResponseWriter, r *http.Request, scope types.Scope) {
	sub, err := s.deps.Existing(r.Context(), scope)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := existingResponse{Locked: sub.Locked}
	if sub.Locked && !sub.LockedAt.IsZero() {
		at := sub.LockedAt.UTC()
		resp.LockedAt = &at
	}
	if scope.Flow == types.FlowMentor {
		resp.Rankings = sub.Items
	} else {
		resp.Tiles = sub.Items
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request, scope types.Scope) {
	var req rankRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Rank == nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("missing rank: %w", ErrBadRequest))
		return
	}
	item := types.RankedItem{
		CandidateID: r.PathValue("candidate"),
		Position:    *req.Rank,
		Annotation:  req.SOP,
	}
	if err := s.deps.UpsertRank(r.Context(), scope, item, r.Header.Get(IdempotencyHeader)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, scope types.Scope) {
	if err := s.deps.DeleteRank(r.Context(), scope, r.PathValue("candidate")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request, scope types.Scope) {
	if err := s.deps.Lock(r.Context(), scope); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request, scope types.Scope) {
	if err := s.deps.Unlock(r.Context(), scope); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// maxBodyBytes bounds request bodies; an annotation is the largest field.
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

// statusFor maps service sentinels onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrMentorOnly):
		return http.StatusForbidden, "mentor_only"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrLocked):
		return http.StatusConflict, "locked"
	case errors.Is(err, service.ErrAnnotationTooLong):
		return http.StatusRequestEntityTooLarge, "annotation_too_long"
	case errors.Is(err, service.ErrNotInPool):
		return http.StatusBadRequest, "not_in_pool"
	case errors.Is(err, service.ErrNothingToLock):
		return http.StatusBadRequest, "nothing_to_lock"
	case errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
