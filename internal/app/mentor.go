package service

import (
	"context"

	"github.com/okian/prefrank/internal/domain/types"
)

// MentorProjects lists the projects user owns or co-mentors.
func (s *Service) MentorProjects(ctx context.Context, user types.Identity) ([]types.MentorProject, error) {
	st, err := s.backend()
	if err != nil {
		return nil, err
	}
	if !user.IsMentor {
		return nil, ErrMentorOnly
	}
	ps, err := st.Projects(ctx)
	if err != nil {
		return nil, err
	}
	out := []types.MentorProject{}
	for _, p := range ps {
		if !p.HasMentor(user.ID) {
			continue
		}
		wishes, err := st.WishlistCount(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		prefs, err := st.Applicants(ctx, s.program, p.ID, false)
		if err != nil {
			return nil, err
		}
		out = append(out, types.MentorProject{
			ID:               p.ID,
			Title:            p.Title,
			WishlistCount:    wishes,
			PreferencesCount: len(prefs),
		})
	}
	return out, nil
}
