package repository

import (
	"context"
	"strings"
	"testing"
)

const seedYAML = `
users:
  - id: u1
    name: Ada
    email: ada@example.org
    roll_no: R1
    code: ada-code
  - id: m1
    name: Grace
    email: grace@example.org
    is_mentor: true
    code: grace-code
projects:
  - id: p1
    title: Compilers
    meta: {difficulty: hard}
    mentors: [m1]
  - id: p2
    title: Databases
    mentors: [m1]
wishlists:
  u1: [p2, p1]
`

func TestSeed_Apply(t *testing.T) {
	seed, err := ParseSeed(strings.NewReader(seedYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	codes := seed.Codes()
	if codes["ada-code"] != "u1" || codes["grace-code"] != "m1" {
		t.Errorf("unexpected codes %v", codes)
	}

	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < 2; i++ {
			if err := seed.Apply(ctx, s); err != nil {
				t.Fatalf("apply #%d: %v", i+1, err)
			}
		}
		list, _ := s.Wishlist(ctx, "u1")
		if strings.Join(list, ",") != "p2,p1" {
			t.Errorf("expected p2,p1 got %v", list)
		}
		m, err := s.User(ctx, "m1")
		if err != nil || !m.IsMentor {
			t.Errorf("expected mentor m1, got %+v (%v)", m, err)
		}
		p, err := s.Project(ctx, "p1")
		if err != nil || p.Meta["difficulty"] != "hard" || !p.HasMentor("m1") {
			t.Errorf("unexpected project %+v (%v)", p, err)
		}
	})
}

func TestSeed_RejectsUnknownKeys(t *testing.T) {
	if _, err := ParseSeed(strings.NewReader("projetcs: []\n")); err == nil {
		t.Fatal("expected an error for a misspelled key")
	}
}

func TestSeed_Empty(t *testing.T) {
	seed, err := ParseSeed(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty seed: %v", err)
	}
	if len(seed.Users) != 0 {
		t.Errorf("expected no users")
	}
}
