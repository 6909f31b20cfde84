package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/okian/prefrank/internal/adapters/repository"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
)

// Catalog lists every project.
func (s *Service) Catalog(ctx context.Context) ([]types.Candidate, error) {
	st, err := s.backend()
	if err != nil {
		return nil, err
	}
	ps, err := st.Projects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Candidate, len(ps))
	for i, p := range ps {
		out[i] = p.Candidate
	}
	return out, nil
}

// ToggleWishlist flips a project in the student's wishlist. The wishlist is
// frozen while the student's ranking is locked.
func (s *Service) ToggleWishlist(ctx context.Context, user types.Identity, projectID string) (types.WishlistStatus, error) {
	st, err := s.backend()
	if err != nil {
		return types.WishlistStatus{}, err
	}
	scope := s.StudentScope(user)
	lock, err := st.LockState(ctx, scope)
	if err != nil {
		return types.WishlistStatus{}, err
	}
	if lock.Locked {
		return types.WishlistStatus{}, fmt.Errorf("wishlist of %s: %w", user.ID, ErrLocked)
	}
	on, err := st.ToggleWishlist(ctx, user.ID, projectID)
	if err != nil {
		return types.WishlistStatus{}, translate(err)
	}
	list, err := st.Wishlist(ctx, user.ID)
	if err != nil {
		return types.WishlistStatus{}, err
	}
	return types.WishlistStatus{ProjectID: projectID, Wishlisted: on, WishlistSize: len(list)}, nil
}

// StudentScope returns the scope of a student's ranking.
func (s *Service) StudentScope(user types.Identity) types.Scope {
	return types.Scope{Flow: types.FlowStudent, ActorID: user.ID, TargetID: s.program}
}

// MentorScope returns the scope of a mentor's ranking for one project, after
// checking that user mentors it.
func (s *Service) MentorScope(ctx context.Context, user types.Identity, projectID string) (types.Scope, error) {
	st, err := s.backend()
	if err != nil {
		return types.Scope{}, err
	}
	if !user.IsMentor {
		return types.Scope{}, ErrMentorOnly
	}
	p, err := st.Project(ctx, projectID)
	if err != nil {
		return types.Scope{}, translate(err)
	}
	if !p.HasMentor(user.ID) {
		return types.Scope{}, fmt.Errorf("project %q: %w", projectID, ErrForbidden)
	}
	return types.Scope{Flow: types.FlowMentor, ActorID: user.ID, TargetID: projectID}, nil
}

// Pool returns the candidates scope may rank: the wishlist for a student,
// the applicants of the project for a mentor.
func (s *Service) Pool(ctx context.Context, scope types.Scope) ([]types.Candidate, error) {
	st, err := s.backend()
	if err != nil {
		return nil, err
	}
	switch scope.Flow {
	case types.FlowStudent:
		ids, err := st.Wishlist(ctx, scope.ActorID)
		if err != nil {
			return nil, err
		}
		out := make([]types.Candidate, 0, len(ids))
		for _, id := range ids {
			p, err := st.Project(ctx, id)
			if err != nil {
				return nil, translate(err)
			}
			out = append(out, p.Candidate)
		}
		return out, nil
	case types.FlowMentor:
		return s.applicants(ctx, st, scope.TargetID)
	}
	return nil, fmt.Errorf("flow %q: %w", scope.Flow, ErrBadRequest)
}

// applicants are the students whose locked ranking names projectID.
func (s *Service) applicants(ctx context.Context, st repository.Store, projectID string) ([]types.Candidate, error) {
	rows, err := st.Applicants(ctx, s.program, projectID, true)
	if err != nil {
		return nil, err
	}
	out := make([]types.Candidate, 0, len(rows))
	for _, r := range rows {
		u, err := st.User(ctx, r.ActorID)
		if err != nil {
			s.logger.Warn(ctx, "applicant without user record", logger.String("user_id", r.ActorID))
			u = types.Identity{ID: r.ActorID, Name: r.ActorID}
		}
		out = append(out, types.Candidate{
			ID:    u.ID,
			Title: u.Name,
			Kind:  types.KindApplicant,
			Meta: map[string]string{
				types.MetaName:   u.Name,
				types.MetaEmail:  u.Email,
				types.MetaRollNo: u.RollNo,
				types.MetaSOP:    r.Annotation,
			},
		})
	}
	return out, nil
}

// Existing returns the persisted ranking of scope.
func (s *Service) Existing(ctx context.Context, scope types.Scope) (types.Submission, error) {
	st, err := s.backend()
	if err != nil {
		return types.Submission{}, err
	}
	rows, err := st.Rows(ctx, scope)
	if err != nil {
		return types.Submission{}, err
	}
	lock, err := st.LockState(ctx, scope)
	if err != nil {
		return types.Submission{}, err
	}
	items := make([]types.RankedItem, len(rows))
	for i, r := range rows {
		items[i] = types.RankedItem{CandidateID: r.CandidateID, Position: r.Rank, Annotation: r.Annotation}
	}
	return types.Submission{Items: items, Locked: lock.Locked, LockedAt: lock.LockedAt}, nil
}

// UpsertRank writes one row. Replays of the same idempotency key are counted
// and applied again, which leaves the row unchanged.
func (s *Service) UpsertRank(ctx context.Context, scope types.Scope, item types.RankedItem, key string) error {
	st, err := s.backend()
	if err != nil {
		return err
	}
	if item.Position < MinRank || item.Position > MaxRank {
		metrics.RecordRankWrite("upsert", false)
		return fmt.Errorf("rank %d outside [%d, %d]: %w", item.Position, MinRank, MaxRank, ErrBadRequest)
	}
	if utf8.RuneCountInString(item.Annotation) > s.maxAnnotationLength {
		metrics.RecordRankWrite("upsert", false)
		return fmt.Errorf("annotation for %q: %w", item.CandidateID, ErrAnnotationTooLong)
	}
	if err := s.checkInPool(ctx, scope, item.CandidateID); err != nil {
		metrics.RecordRankWrite("upsert", false)
		return err
	}

	if key != "" && s.deduper.SeenAndRecord(ctx, scope.ActorID+":"+key) {
		metrics.RecordIdempotentReplay()
		s.logger.Debug(ctx, "idempotent replay",
			logger.String("scope", scope.Key()),
			logger.String("candidate_id", item.CandidateID),
		)
	}

	rec := types.SubmissionRecord{
		CandidateID: item.CandidateID,
		Rank:        item.Position,
		Annotation:  item.Annotation,
		UpdatedAt:   s.now().UTC(),
	}
	if err := st.Upsert(ctx, scope, rec); err != nil {
		metrics.RecordRankWrite("upsert", false)
		return translate(err)
	}
	metrics.RecordRankWrite("upsert", true)
	return nil
}

func (s *Service) checkInPool(ctx context.Context, scope types.Scope, candidateID string) error {
	pool, err := s.Pool(ctx, scope)
	if err != nil {
		return err
	}
	for _, c := range pool {
		if c.ID == candidateID {
			return nil
		}
	}
	return fmt.Errorf("%q in %s: %w", candidateID, scope, ErrNotInPool)
}

// DeleteRank removes one row. Missing rows are not an error, and deletes are
// accepted while locked so a revert can clear rows before unlocking.
func (s *Service) DeleteRank(ctx context.Context, scope types.Scope, candidateID string) error {
	st, err := s.backend()
	if err != nil {
		return err
	}
	if _, err := st.Delete(ctx, scope, candidateID); err != nil {
		metrics.RecordRankWrite("delete", false)
		return translate(err)
	}
	metrics.RecordRankWrite("delete", true)
	return nil
}

// Lock marks scope as submitted.
func (s *Service) Lock(ctx context.Context, scope types.Scope) error {
	st, err := s.backend()
	if err != nil {
		return err
	}
	rows, err := st.Rows(ctx, scope)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("lock %s: %w", scope, ErrNothingToLock)
	}
	if err := st.Lock(ctx, scope, s.now()); err != nil {
		return err
	}
	s.logger.Info(ctx, "ranking locked", logger.String("scope", scope.Key()), logger.Int("items", len(rows)))
	return nil
}

// Unlock reopens scope for editing.
func (s *Service) Unlock(ctx context.Context, scope types.Scope) error {
	st, err := s.backend()
	if err != nil {
		return err
	}
	if err := st.Unlock(ctx, scope); err != nil {
		return err
	}
	s.logger.Info(ctx, "ranking unlocked", logger.String("scope", scope.Key()))
	return nil
}
