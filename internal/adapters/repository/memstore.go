package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/metrics"
)

// rowKey addresses one ranked row.
type rowKey struct {
	scope       types.Scope
	candidateID string
}

type wish struct {
	projectID string
	addedAt   uint64
}

// MemStore is an in-memory Store. All state sits behind one RWMutex; the
// row count is mirrored in an atomic so metrics never contend with writers.
type MemStore struct {
	mu       sync.RWMutex
	users    map[string]types.Identity
	projects map[string]Project
	wishes   map[string][]wish // user id -> wishlist
	rows     map[rowKey]types.SubmissionRecord
	locks    map[types.Scope]time.Time
	seq      uint64

	rowCount              atomic.Int64
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemStore constructs an empty store and starts its metrics updater,
// which stops when ctx is done or Close is called.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	s := &MemStore{
		users:                 make(map[string]types.Identity),
		projects:              make(map[string]Project),
		wishes:                make(map[string][]wish),
		rows:                  make(map[rowKey]types.SubmissionRecord),
		locks:                 make(map[types.Scope]time.Time),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutine.
func (s *MemStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

func (s *MemStore) PutUser(_ context.Context, u types.Identity) error {
	if u.ID == "" {
		return fmt.Errorf("user: empty id: %w", ErrInvalidRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemStore) User(_ context.Context, id string) (types.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return types.Identity{}, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *MemStore) PutProject(_ context.Context, p Project) error {
	if p.ID == "" {
		return fmt.Errorf("project: empty id: %w", ErrInvalidRecord)
	}
	p.Kind = types.KindProject
	p.MentorIDs = slices.Clone(p.MentorIDs)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return nil
}

func (s *MemStore) Project(_ context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("project %q: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *MemStore) Projects(_ context.Context) ([]Project, error) {
	s.mu.RLock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ToggleWishlist(_ context.Context, userID, projectID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return false, fmt.Errorf("project %q: %w", projectID, ErrNotFound)
	}
	list := s.wishes[userID]
	for i, w := range list {
		if w.projectID == projectID {
			s.wishes[userID] = append(list[:i:i], list[i+1:]...)
			return false, nil
		}
	}
	s.seq++
	s.wishes[userID] = append(list, wish{projectID: projectID, addedAt: s.seq})
	return true, nil
}

func (s *MemStore) Wishlist(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.wishes[userID]
	out := make([]string, len(list))
	for i, w := range list {
		out[i] = w.projectID
	}
	return out, nil
}

func (s *MemStore) WishlistCount(_ context.Context, projectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.wishes {
		for _, w := range list {
			if w.projectID == projectID {
				n++
			}
		}
	}
	return n, nil
}

func (s *MemStore) Rows(_ context.Context, scope types.Scope) ([]types.SubmissionRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("rows", float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	var out []types.SubmissionRecord
	for k, r := range s.rows {
		if k.scope == scope {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sortRecords(out)
	return out, nil
}

func (s *MemStore) Upsert(_ context.Context, scope types.Scope, rec types.SubmissionRecord) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("upsert", float64(time.Since(start).Milliseconds()))
	}()
	if rec.CandidateID == "" {
		return fmt.Errorf("upsert: empty candidate: %w", ErrInvalidRecord)
	}
	rec.ActorID = scope.ActorID
	rec.TargetID = scope.TargetID
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, locked := s.locks[scope]; locked {
		return fmt.Errorf("upsert %q into %s: %w", rec.CandidateID, scope, ErrScopeLocked)
	}
	k := rowKey{scope: scope, candidateID: rec.CandidateID}
	if _, exists := s.rows[k]; !exists {
		s.rowCount.Add(1)
	}
	s.rows[k] = rec
	return nil
}

func (s *MemStore) Delete(_ context.Context, scope types.Scope, candidateID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rowKey{scope: scope, candidateID: candidateID}
	if _, ok := s.rows[k]; !ok {
		return false, nil
	}
	delete(s.rows, k)
	s.rowCount.Add(-1)
	return true, nil
}

func (s *MemStore) Lock(_ context.Context, scope types.Scope, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[scope]; !ok {
		s.locks[scope] = at.UTC()
	}
	return nil
}

func (s *MemStore) Unlock(_ context.Context, scope types.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, scope)
	return nil
}

func (s *MemStore) LockState(_ context.Context, scope types.Scope) (LockState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.locks[scope]
	return LockState{Locked: ok, LockedAt: at}, nil
}

func (s *MemStore) Applicants(_ context.Context, program, projectID string, lockedOnly bool) ([]types.SubmissionRecord, error) {
	s.mu.RLock()
	var out []types.SubmissionRecord
	for k, r := range s.rows {
		if k.scope.Flow != types.FlowStudent || k.scope.TargetID != program || k.candidateID != projectID {
			continue
		}
		if _, locked := s.locks[k.scope]; lockedOnly && !locked {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out, nil
}

func (s *MemStore) Count(_ context.Context) int {
	return int(s.rowCount.Load())
}

func (s *MemStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemStore) updateMetrics() {
	s.mu.RLock()
	locked := len(s.locks)
	s.mu.RUnlock()
	metrics.UpdateStoreRows(s.Count(context.Background()))
	metrics.UpdateLockedScopes(locked)
}

// sortRecords orders rows by rank, then candidate id.
func sortRecords(rs []types.SubmissionRecord) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Rank != rs[j].Rank {
			return rs[i].Rank < rs[j].Rank
		}
		return rs[i].CandidateID < rs[j].CandidateID
	})
}
