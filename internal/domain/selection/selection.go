// Package selection implements the bounded multi-select over a candidate pool.
package selection

import (
	"fmt"
	"sync"

	"github.com/okian/prefrank/internal/domain/types"
)

// Manager holds the set of chosen candidate ids for one pool.
// Every mutation is a single transition under mu, so the size bound holds
// even when toggles race.
type Manager struct {
	mu       sync.Mutex
	pool     []types.Candidate
	index    map[string]int // candidate id -> pool position
	selected map[string]struct{}
	max      int
	policy   Policy
}

// New builds a Manager for pool and applies the initial-selection policy.
func New(pool []types.Candidate, opts ...Option) *Manager {
	m := &Manager{
		max:    DefaultMax,
		policy: PolicyDefaultAll,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.pool = make([]types.Candidate, 0, len(pool))
	m.index = make(map[string]int, len(pool))
	for _, c := range pool {
		if _, dup := m.index[c.ID]; dup {
			continue
		}
		m.index[c.ID] = len(m.pool)
		m.pool = append(m.pool, c)
	}

	m.selected = make(map[string]struct{}, m.max)
	if m.policy == PolicyDefaultAll && len(m.pool) <= m.max {
		for _, c := range m.pool {
			m.selected[c.ID] = struct{}{}
		}
	}
	return m
}

// Toggle removes id if selected, otherwise adds it. Adding to a full
// selection returns ErrSelectionFull and leaves the set unchanged.
// The returned bool reports whether id is selected after the call.
func (m *Manager) Toggle(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[id]; !ok {
		return false, fmt.Errorf("toggle %q: %w", id, ErrUnknownCandidate)
	}
	if _, ok := m.selected[id]; ok {
		delete(m.selected, id)
		return false, nil
	}
	if len(m.selected) >= m.max {
		return false, fmt.Errorf("toggle %q: at most %d allowed: %w", id, m.max, ErrSelectionFull)
	}
	m.selected[id] = struct{}{}
	return true, nil
}

// Clear empties the selection.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = make(map[string]struct{}, m.max)
}

// Remove drops id from both the pool and the selection, e.g. when a
// wishlisted project is removed. Unknown ids are ignored.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.index[id]
	if !ok {
		return
	}
	delete(m.selected, id)
	m.pool = append(m.pool[:pos], m.pool[pos+1:]...)
	delete(m.index, id)
	for i := pos; i < len(m.pool); i++ {
		m.index[m.pool[i].ID] = i
	}
}

// Contains reports whether id is currently selected.
func (m *Manager) Contains(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.selected[id]
	return ok
}

// Len returns the current selection size.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.selected)
}

// Max returns the selection bound.
func (m *Manager) Max() int { return m.max }

// RequiresChoice reports whether the pool is larger than the bound, i.e. the
// actor has to pick explicitly.
func (m *Manager) RequiresChoice() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pool) > m.max
}

// Pool returns a copy of the candidate pool in its original order.
func (m *Manager) Pool() []types.Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Candidate, len(m.pool))
	copy(out, m.pool)
	return out
}

// Selected returns the chosen candidates in pool order.
func (m *Manager) Selected() []types.Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Candidate, 0, len(m.selected))
	for _, c := range m.pool {
		if _, ok := m.selected[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}
