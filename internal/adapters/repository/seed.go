package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/okian/prefrank/internal/domain/types"
)

// SeedUser is a user entry of a seed file. Code is the authorization code
// that signs the user in.
type SeedUser struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	RollNo   string `yaml:"roll_no"`
	IsMentor bool   `yaml:"is_mentor"`
	Code     string `yaml:"code"`
}

// SeedProject is a project entry of a seed file.
type SeedProject struct {
	ID      string            `yaml:"id"`
	Title   string            `yaml:"title"`
	Meta    map[string]string `yaml:"meta"`
	Mentors []string          `yaml:"mentors"`
}

// Seed is the initial content of a store.
type Seed struct {
	Users     []SeedUser          `yaml:"users"`
	Projects  []SeedProject       `yaml:"projects"`
	Wishlists map[string][]string `yaml:"wishlists"`
}

// ParseSeed decodes a YAML seed. Unknown keys are rejected.
func ParseSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return s, nil
}

// ReadSeedFile parses the seed at path.
func ReadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// Codes maps authorization codes to user ids.
func (s Seed) Codes() map[string]string {
	out := make(map[string]string, len(s.Users))
	for _, u := range s.Users {
		if u.Code != "" {
			out[u.Code] = u.ID
		}
	}
	return out
}

// Apply writes the seed into st. Wishlist entries already present are left
// alone, so applying twice is harmless.
func (s Seed) Apply(ctx context.Context, st Store) error {
	for _, u := range s.Users {
		id := types.Identity{ID: u.ID, Name: u.Name, Email: u.Email, RollNo: u.RollNo, IsMentor: u.IsMentor}
		if err := st.PutUser(ctx, id); err != nil {
			return fmt.Errorf("seed user %q: %w", u.ID, err)
		}
	}
	for _, p := range s.Projects {
		proj := Project{
			Candidate: types.Candidate{ID: p.ID, Title: p.Title, Kind: types.KindProject, Meta: p.Meta},
			MentorIDs: p.Mentors,
		}
		if err := st.PutProject(ctx, proj); err != nil {
			return fmt.Errorf("seed project %q: %w", p.ID, err)
		}
	}

	users := make([]string, 0, len(s.Wishlists))
	for id := range s.Wishlists {
		users = append(users, id)
	}
	slices.Sort(users)
	for _, userID := range users {
		have, err := st.Wishlist(ctx, userID)
		if err != nil {
			return fmt.Errorf("seed wishlist %q: %w", userID, err)
		}
		for _, projectID := range s.Wishlists[userID] {
			if slices.Contains(have, projectID) {
				continue
			}
			if _, err := st.ToggleWishlist(ctx, userID, projectID); err != nil {
				return fmt.Errorf("seed wishlist %q: %w", userID, err)
			}
			have = append(have, projectID)
		}
	}
	return nil
}
