// Package ranking holds the client-side ordered list of selected candidates
// and the annotation bound to each of them.
//
// Position is never stored: it is the 1-based index in the sequence, so every
// mutation that changes the sequence re-derives all positions at once and no
// caller can observe gaps or duplicates.
package ranking

import (
	"fmt"
	"sort"
	"sync"

	"github.com/okian/prefrank/internal/domain/types"
)

// entry is one slot of the sequence.
type entry struct {
	candidate  types.Candidate
	annotation string
}

// Entry is a read-only view of one ranked candidate.
type Entry struct {
	Candidate  types.Candidate
	Position   int
	Annotation string
}

// List is the Ranked List Controller. It is safe for concurrent use.
type List struct {
	mu      sync.RWMutex
	entries []entry
	locked  bool
}

// NewList returns an empty, unlocked list.
func NewList() *List {
	return &List{}
}

// Initialize replaces the list with items at positions 1..N in input order.
// Annotations are cleared. Duplicate ids are an invariant violation.
func (l *List) Initialize(items []types.Candidate) error {
	seen := make(map[string]struct{}, len(items))
	entries := make([]entry, 0, len(items))
	for _, c := range items {
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("initialize: duplicate id %q: %w", c.ID, ErrInvariantViolation)
		}
		seen[c.ID] = struct{}{}
		entries = append(entries, entry{candidate: c})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return fmt.Errorf("initialize: %w", ErrLocked)
	}
	l.entries = entries
	return nil
}

// Hydrate rebuilds the list from persisted rows, ordered by their stored
// rank. Candidates are looked up in catalog; rows for unknown candidates keep
// a bare Candidate carrying only the id.
func (l *List) Hydrate(rows []types.RankedItem, catalog []types.Candidate) {
	byID := make(map[string]types.Candidate, len(catalog))
	for _, c := range catalog {
		byID[c.ID] = c
	}
	sorted := make([]types.RankedItem, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	entries := make([]entry, 0, len(sorted))
	seen := make(map[string]struct{}, len(sorted))
	for _, r := range sorted {
		if _, dup := seen[r.CandidateID]; dup {
			continue
		}
		seen[r.CandidateID] = struct{}{}
		c, ok := byID[r.CandidateID]
		if !ok {
			c = types.Candidate{ID: r.CandidateID, Title: r.CandidateID}
		}
		entries = append(entries, entry{candidate: c, annotation: r.Annotation})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = entries
}

// Reorder replaces the sequence with newOrder. newOrder must be a total
// permutation of the current ids; anything else returns an
// ErrInvariantViolation and leaves the list unchanged.
func (l *List) Reorder(newOrder []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return fmt.Errorf("reorder: %w", ErrLocked)
	}
	return l.reorderLocked(newOrder)
}

func (l *List) reorderLocked(newOrder []string) error {
	if len(newOrder) != len(l.entries) {
		return fmt.Errorf("reorder: got %d ids for %d items: %w", len(newOrder), len(l.entries), ErrInvariantViolation)
	}

	byID := make(map[string]entry, len(l.entries))
	for _, e := range l.entries {
		byID[e.candidate.ID] = e
	}
	next := make([]entry, 0, len(newOrder))
	for _, id := range newOrder {
		e, ok := byID[id]
		if !ok {
			return fmt.Errorf("reorder: id %q missing or duplicated: %w", id, ErrInvariantViolation)
		}
		delete(byID, id)
		next = append(next, e)
	}
	l.entries = next
	return nil
}

// Move drops the item id at the 0-based index to, shifting the others.
// Indexes outside the list are clamped to the first or last slot.
func (l *List) Move(id string, to int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return fmt.Errorf("move %q: %w", id, ErrLocked)
	}
	order := make([]string, 0, len(l.entries))
	from := -1
	for i, e := range l.entries {
		if e.candidate.ID == id {
			from = i
			continue
		}
		order = append(order, e.candidate.ID)
	}
	if from < 0 {
		return fmt.Errorf("move %q: %w", id, ErrUnknownCandidate)
	}
	to = max(0, min(to, len(order)))
	order = append(order[:to], append([]string{id}, order[to:]...)...)
	return l.reorderLocked(order)
}

// RemoveItem deletes id; the remaining items close the gap.
func (l *List) RemoveItem(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return fmt.Errorf("remove %q: %w", id, ErrLocked)
	}
	for i, e := range l.entries {
		if e.candidate.ID == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove %q: %w", id, ErrUnknownCandidate)
}

// Reset empties the list and unlocks it.
func (l *List) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.locked = false
}

// Lock makes the list read-only.
func (l *List) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = true
}

// Unlock makes the list editable again.
func (l *List) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = false
}

// Locked reports whether the list is read-only.
func (l *List) Locked() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.locked
}

// Len returns the number of ranked items.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// IDs returns the candidate ids in rank order.
func (l *List) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.candidate.ID
	}
	return out
}

// Items returns the ranked items in ascending position.
func (l *List) Items() []types.RankedItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.RankedItem, len(l.entries))
	for i, e := range l.entries {
		out[i] = types.RankedItem{
			CandidateID: e.candidate.ID,
			Position:    i + 1,
			Annotation:  e.annotation,
		}
	}
	return out
}

// Entries returns the ranked candidates with their metadata.
func (l *List) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = Entry{Candidate: e.candidate, Position: i + 1, Annotation: e.annotation}
	}
	return out
}
