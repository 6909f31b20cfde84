// Package engine drives one actor's ranking session end to end: candidate
// pool, bounded selection, ranked list with annotations, submit and revert.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/prefrank/internal/domain/ranking"
	"github.com/okian/prefrank/internal/domain/selection"
	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/internal/domain/workflow"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
)

// Engine is safe for concurrent use. Mutations, submit and revert are
// serialized; Snapshot never blocks on a running submit.
type Engine struct {
	scope   types.Scope
	store   submission.Store
	list    *ranking.List
	coord   *submission.Coordinator
	session submission.SessionChecker
	markers submission.MarkerCache
	logger  logger.Logger

	maxSelection int
	policy       selection.Policy

	mu  sync.Mutex
	sel atomic.Pointer[selection.Manager]
}

// View is a point-in-time copy of the engine state.
type View struct {
	Scope          types.Scope
	State          workflow.State
	Pool           []types.Candidate
	Selected       []types.Candidate
	Max            int
	RequiresChoice bool
	Items          []ranking.Entry
	Incomplete     []string
	LastError      error
}

// New builds an Engine for scope. Call Load before anything else.
func New(scope types.Scope, store submission.Store, confirmer submission.Confirmer, opts ...Option) (*Engine, error) {
	if !scope.Flow.Valid() {
		return nil, fmt.Errorf("engine: unknown flow %q", scope.Flow)
	}
	e := &Engine{
		scope:        scope,
		store:        store,
		list:         ranking.NewList(),
		logger:       logger.Nop(),
		maxSelection: selection.DefaultMax,
		policy:       selection.PolicyDefaultAll,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.String("scope", scope.Key()))

	copts := []submission.Option{submission.WithLogger(e.logger.Named("submission"))}
	if e.session != nil {
		copts = append(copts, submission.WithSessionChecker(e.session))
	}
	if e.markers != nil {
		copts = append(copts, submission.WithMarkerCache(e.markers))
	}
	coord, err := submission.New(scope, store, e.list, confirmer, copts...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.coord = coord
	return e, nil
}

// Load fetches the candidate pool and re-syncs with the store, which always
// wins over the local marker. A locked submission comes back read-only; rows
// of an interrupted submission come back editable.
func (e *Engine) Load(ctx context.Context) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.store.CandidatePool(ctx, e.scope)
	if err != nil {
		return View{}, fmt.Errorf("load pool: %w", err)
	}
	sel := e.newSelection(pool)

	sub, err := e.coord.Sync(ctx, pool)
	if err != nil {
		return View{}, fmt.Errorf("load: %w", err)
	}
	if len(sub.Items) > 0 {
		sel.Clear()
		for _, it := range sub.Items {
			if _, err := sel.Toggle(it.CandidateID); err != nil {
				e.logger.Warn(ctx, "persisted rank outside current selection",
					logger.String("candidate", it.CandidateID),
					logger.Error(err),
				)
			}
		}
	}
	e.sel.Store(sel)

	e.logger.Info(ctx, "ranking loaded",
		logger.Int("pool", len(pool)),
		logger.Int("persisted", len(sub.Items)),
		logger.Bool("locked", sub.Locked),
	)
	return e.snapshot(), nil
}

func (e *Engine) newSelection(pool []types.Candidate) *selection.Manager {
	return selection.New(pool, selection.WithMax(e.maxSelection), selection.WithPolicy(e.policy))
}

// Toggle flips id in the selection. The returned bool reports whether id is
// selected afterwards.
func (e *Engine) Toggle(id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sel, err := e.editable()
	if err != nil {
		return false, err
	}
	on, err := sel.Toggle(id)
	switch {
	case errors.Is(err, selection.ErrSelectionFull):
		metrics.RecordSelectionRejected(metrics.ReasonSelectionFull)
	case errors.Is(err, selection.ErrUnknownCandidate):
		metrics.RecordSelectionRejected(metrics.ReasonUnknownCandidate)
	}
	return on, err
}

// ClearSelection empties the selection.
func (e *Engine) ClearSelection() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sel, err := e.editable()
	if err != nil {
		return err
	}
	sel.Clear()
	return nil
}

// ConfirmSelection turns the selection into the ranked list. Items already
// ranked keep their relative order and annotation; newly selected ones are
// appended in pool order; deselected ones are dropped.
func (e *Engine) ConfirmSelection() ([]ranking.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sel, err := e.editable()
	if err != nil {
		return nil, err
	}
	chosen := sel.Selected()
	byID := make(map[string]types.Candidate, len(chosen))
	for _, c := range chosen {
		byID[c.ID] = c
	}

	prev := e.list.Entries()
	next := make([]types.Candidate, 0, len(chosen))
	notes := make(map[string]string, len(prev))
	for _, p := range prev {
		if c, ok := byID[p.Candidate.ID]; ok {
			next = append(next, c)
			notes[c.ID] = p.Annotation
			delete(byID, c.ID)
		}
	}
	for _, c := range chosen {
		if _, ok := byID[c.ID]; ok {
			next = append(next, c)
		}
	}

	if err := e.list.Initialize(next); err != nil {
		return nil, err
	}
	for id, text := range notes {
		if err := e.list.SetAnnotation(id, text); err != nil {
			return nil, err
		}
	}
	return e.list.Entries(), nil
}

// Reorder replaces the ranked order.
func (e *Engine) Reorder(order []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.editable(); err != nil {
		return err
	}
	return e.list.Reorder(order)
}

// Move drops id at the 0-based index to.
func (e *Engine) Move(id string, to int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.editable(); err != nil {
		return err
	}
	return e.list.Move(id, to)
}

// Remove takes id out of the ranked list and the selection.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sel, err := e.editable()
	if err != nil {
		return err
	}
	if err := e.list.RemoveItem(id); err != nil {
		return err
	}
	if sel.Contains(id) {
		_, _ = sel.Toggle(id)
	}
	return nil
}

// SetAnnotation stores the statement of purpose for id.
func (e *Engine) SetAnnotation(id, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.editable(); err != nil {
		return err
	}
	return e.list.SetAnnotation(id, text)
}

// Submit persists and locks the ranked list.
func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sel.Load() == nil {
		return ErrNotLoaded
	}
	return e.coord.Submit(ctx)
}

// Revert deletes the submitted ranking and starts over from a fresh
// selection over the current pool.
func (e *Engine) Revert(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sel := e.sel.Load()
	if sel == nil {
		return ErrNotLoaded
	}
	if err := e.coord.Revert(ctx); err != nil {
		return err
	}
	e.sel.Store(e.newSelection(sel.Pool()))
	return nil
}

// State returns the workflow state.
func (e *Engine) State() workflow.State { return e.coord.State() }

// Scope returns the engine scope.
func (e *Engine) Scope() types.Scope { return e.scope }

// Hint returns the cached submitted marker, if any.
func (e *Engine) Hint(ctx context.Context) (submission.Marker, bool) {
	return e.coord.Hinted(ctx)
}

// Snapshot returns the current view.
func (e *Engine) Snapshot() View {
	return e.snapshot()
}

func (e *Engine) snapshot() View {
	v := View{
		Scope:      e.scope,
		State:      e.coord.State(),
		Max:        e.maxSelection,
		Items:      e.list.Entries(),
		Incomplete: e.list.Incomplete(),
		LastError:  e.coord.LastError(),
	}
	if sel := e.sel.Load(); sel != nil {
		v.Pool = sel.Pool()
		v.Selected = sel.Selected()
		v.RequiresChoice = sel.RequiresChoice()
	}
	return v
}

// editable returns the selection when local edits are allowed.
func (e *Engine) editable() (*selection.Manager, error) {
	sel := e.sel.Load()
	if sel == nil {
		return nil, ErrNotLoaded
	}
	switch s := e.coord.State(); {
	case s == workflow.StateLocked:
		return nil, ranking.ErrLocked
	case s.Busy():
		return nil, ErrBusy
	}
	return sel, nil
}
