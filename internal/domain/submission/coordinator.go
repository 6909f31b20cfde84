package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/prefrank/internal/domain/ranking"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/internal/domain/workflow"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
)

// Coordinator runs the submit and revert operations for one scope.
type Coordinator struct {
	scope     types.Scope
	store     Store
	list      *ranking.List
	confirmer Confirmer
	session   SessionChecker
	markers   MarkerCache
	machine   *workflow.Machine
	logger    logger.Logger
	now       func() time.Time

	// serializes Sync against submit and revert
	mu sync.Mutex
}

// New builds a Coordinator. store, list and confirmer are required.
func New(scope types.Scope, store Store, list *ranking.List, confirmer Confirmer, opts ...Option) (*Coordinator, error) {
	if store == nil || list == nil || confirmer == nil {
		return nil, fmt.Errorf("submission coordinator: %w", ErrMissingDependency)
	}
	c := &Coordinator{
		scope:     scope,
		store:     store,
		list:      list,
		confirmer: confirmer,
		machine:   workflow.New(),
		logger:    logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Scope returns the scope this coordinator serves.
func (c *Coordinator) Scope() types.Scope { return c.scope }

// State returns the current workflow state.
func (c *Coordinator) State() workflow.State { return c.machine.State() }

// LastError returns the error left by the last failed submit or revert.
func (c *Coordinator) LastError() error { return c.machine.LastError() }

// Submit validates the list, asks for confirmation and persists every item
// in ascending position before locking. Local state is only marked
// submitted once every remote step succeeded.
func (c *Coordinator) Submit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	flow := string(c.scope.Flow)
	items := c.list.Items()
	if len(items) == 0 {
		metrics.RecordSubmission(flow, metrics.OutcomeIncomplete)
		return fmt.Errorf("submit %s: %w", c.scope, ErrNothingToSubmit)
	}
	if missing := c.list.Incomplete(); len(missing) > 0 {
		metrics.RecordSubmission(flow, metrics.OutcomeIncomplete)
		return &IncompleteSubmissionError{CandidateIDs: missing}
	}

	if _, err := c.machine.Fire(workflow.EventSubmitRequested, nil); err != nil {
		metrics.RecordSubmission(flow, metrics.OutcomeInvalidState)
		return fmt.Errorf("submit %s: %w: %w", c.scope, ErrNotEditable, err)
	}

	ok, err := c.confirmer.Confirm(ctx, Prompt{
		Action:  ActionSubmit,
		Scope:   c.scope,
		Items:   items,
		Message: fmt.Sprintf("Submit %d ranked item(s)? The ranking is locked until you revert it.", len(items)),
	})
	if err != nil || !ok {
		_, _ = c.machine.Fire(workflow.EventCancelled, nil)
		metrics.RecordSubmission(flow, metrics.OutcomeCancelled)
		if err != nil {
			return fmt.Errorf("submit %s: confirm: %w", c.scope, err)
		}
		return fmt.Errorf("submit %s: %w", c.scope, ErrCancelled)
	}
	if _, err := c.machine.Fire(workflow.EventConfirmed, nil); err != nil {
		return fmt.Errorf("submit %s: %w", c.scope, err)
	}

	started := c.now()
	c.logger.Info(ctx, "submitting ranking",
		logger.String("scope", c.scope.Key()),
		logger.Int("items", len(items)),
	)

	if err := c.persist(ctx, items); err != nil {
		_, _ = c.machine.Fire(workflow.EventSubmitFailed, err)
		metrics.RecordSubmission(flow, outcomeOf(err))
		c.logger.Warn(ctx, "submission failed",
			logger.String("scope", c.scope.Key()),
			logger.Error(err),
		)
		if errors.Is(err, ErrAlreadyLocked) {
			c.adoptStoreState(ctx)
		}
		return err
	}

	if c.markers != nil {
		if err := c.markers.Put(ctx, c.scope, Marker{Items: len(items), SubmittedAt: c.now()}); err != nil {
			c.logger.Warn(ctx, "failed to cache submitted marker",
				logger.String("scope", c.scope.Key()),
				logger.Error(err),
			)
		}
	}
	c.list.Lock()
	_, _ = c.machine.Fire(workflow.EventSubmitSucceeded, nil)
	metrics.RecordSubmission(flow, metrics.OutcomeLocked)
	c.logger.Info(ctx, "ranking submitted",
		logger.String("scope", c.scope.Key()),
		logger.Int("items", len(items)),
		logger.Duration("took", c.now().Sub(started)),
	)
	return nil
}

// adoptStoreState resyncs after the store refused a write because the scope
// is already locked, so the locked ranking shows without a reload.
func (c *Coordinator) adoptStoreState(ctx context.Context) {
	catalog := make([]types.Candidate, 0, c.list.Len())
	for _, e := range c.list.Entries() {
		catalog = append(catalog, e.Candidate)
	}
	if _, err := c.sync(ctx, catalog); err != nil {
		c.logger.Warn(ctx, "resync after locked rejection failed",
			logger.String("scope", c.scope.Key()),
			logger.Error(err),
		)
	}
}

// persist issues the upserts in order, removes rows left behind by earlier
// attempts and sets the remote lock.
func (c *Coordinator) persist(ctx context.Context, items []types.RankedItem) error {
	if err := c.checkSession(ctx); err != nil {
		return err
	}

	done := make([]string, 0, len(items))
	for i, it := range items {
		err := c.store.UpsertRank(ctx, c.scope, it)
		metrics.RecordRankWrite(string(OpUpsert), err == nil)
		if err != nil {
			return &PartialFailureError{Op: OpUpsert, Index: i, CandidateID: it.CandidateID, Succeeded: done, Err: err}
		}
		c.logger.Debug(ctx, "rank upserted",
			logger.String("scope", c.scope.Key()),
			logger.String("candidate", it.CandidateID),
			logger.Int("rank", it.Position),
		)
		done = append(done, it.CandidateID)
	}

	if err := c.reconcile(ctx, items, done); err != nil {
		return err
	}

	if err := c.store.Lock(ctx, c.scope); err != nil {
		return &PartialFailureError{Op: OpLock, Index: -1, Succeeded: done, Err: err}
	}
	return nil
}

// reconcile deletes persisted rows whose candidate is no longer ranked.
func (c *Coordinator) reconcile(ctx context.Context, items []types.RankedItem, done []string) error {
	existing, err := c.store.ExistingSubmission(ctx, c.scope)
	if err != nil {
		return &PartialFailureError{Op: OpReconcile, Index: -1, Succeeded: done, Err: err}
	}
	keep := make(map[string]struct{}, len(items))
	for _, it := range items {
		keep[it.CandidateID] = struct{}{}
	}
	for _, row := range existing.Items {
		if _, ok := keep[row.CandidateID]; ok {
			continue
		}
		err := c.store.DeleteRank(ctx, c.scope, row.CandidateID)
		metrics.RecordRankWrite(string(OpDelete), err == nil)
		if err != nil {
			return &PartialFailureError{Op: OpReconcile, Index: -1, CandidateID: row.CandidateID, Succeeded: done, Err: err}
		}
		c.logger.Info(ctx, "removed orphan rank",
			logger.String("scope", c.scope.Key()),
			logger.String("candidate", row.CandidateID),
		)
	}
	return nil
}

func (c *Coordinator) checkSession(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	s, err := c.session.Session(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return err
		}
		return fmt.Errorf("session check: %w", err)
	}
	if !s.Authenticated {
		return ErrSessionExpired
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return metrics.OutcomeSessionExpired
	case errors.Is(err, ErrPartialFailure):
		return metrics.OutcomePartialFailure
	default:
		return metrics.OutcomeError
	}
}
