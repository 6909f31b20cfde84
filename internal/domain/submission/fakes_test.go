package submission_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/internal/domain/types"
)

var errBoom = errors.New("503 service unavailable")

// fakeStore is an in-memory preference store that records every call and
// can fail a given call a number of times.
type fakeStore struct {
	mu     sync.Mutex
	rows   map[string]types.RankedItem
	locked bool
	calls  []string
	fail   map[string]int
	pool   []types.Candidate
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]types.RankedItem{}, fail: map[string]int{}}
}

func (f *fakeStore) failNext(call string, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[call] = times
}

func (f *fakeStore) record(call string) error {
	f.calls = append(f.calls, call)
	if n := f.fail[call]; n > 0 {
		f.fail[call] = n - 1
		return errBoom
	}
	return nil
}

func (f *fakeStore) mutatingCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c != "existing" && c != "pool" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeStore) CandidatePool(_ context.Context, _ types.Scope) ([]types.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("pool"); err != nil {
		return nil, err
	}
	return f.pool, nil
}

func (f *fakeStore) ExistingSubmission(_ context.Context, _ types.Scope) (types.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("existing"); err != nil {
		return types.Submission{}, err
	}
	items := make([]types.RankedItem, 0, len(f.rows))
	for _, r := range f.rows {
		items = append(items, r)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return types.Submission{Items: items, Locked: f.locked}, nil
}

func (f *fakeStore) UpsertRank(_ context.Context, _ types.Scope, it types.RankedItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("upsert:" + it.CandidateID); err != nil {
		return err
	}
	if f.locked {
		return fmt.Errorf("409: %w", submission.ErrAlreadyLocked)
	}
	f.rows[it.CandidateID] = it
	return nil
}

func (f *fakeStore) DeleteRank(_ context.Context, _ types.Scope, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete:" + id); err != nil {
		return err
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeStore) Lock(_ context.Context, _ types.Scope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("lock"); err != nil {
		return err
	}
	f.locked = true
	return nil
}

func (f *fakeStore) Unlock(_ context.Context, _ types.Scope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("unlock"); err != nil {
		return err
	}
	f.locked = false
	return nil
}

func (f *fakeStore) snapshot() (map[string]types.RankedItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]types.RankedItem, len(f.rows))
	for k, v := range f.rows {
		out[k] = v
	}
	return out, f.locked
}

type fakeMarkers struct {
	mu sync.Mutex
	m  map[string]submission.Marker
}

func newFakeMarkers() *fakeMarkers {
	return &fakeMarkers{m: map[string]submission.Marker{}}
}

func (f *fakeMarkers) Get(_ context.Context, s types.Scope) (submission.Marker, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.m[s.Key()]
	return m, ok, nil
}

func (f *fakeMarkers) Put(_ context.Context, s types.Scope, m submission.Marker) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[s.Key()] = m
	return nil
}

func (f *fakeMarkers) Clear(_ context.Context, s types.Scope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, s.Key())
	return nil
}

type fakeSession struct {
	authenticated bool
	err           error
}

func (f *fakeSession) Session(context.Context) (types.Session, error) {
	if f.err != nil {
		return types.Session{}, f.err
	}
	return types.Session{Authenticated: f.authenticated, Identity: types.Identity{ID: "u1"}}, nil
}

// confirmer answers with the queued replies, defaulting to yes.
type confirmer struct {
	mu      sync.Mutex
	replies []bool
	prompts []submission.Prompt
}

func (c *confirmer) Confirm(_ context.Context, p submission.Prompt) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, p)
	if len(c.replies) == 0 {
		return true, nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func cands(ids ...string) []types.Candidate {
	out := make([]types.Candidate, len(ids))
	for i, id := range ids {
		out[i] = types.Candidate{ID: id, Title: fmt.Sprintf("Project %s", id), Kind: types.KindProject}
	}
	return out
}
