package submission

import (
	"context"
	"fmt"

	"github.com/okian/prefrank/internal/domain/workflow"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
)

// Revert deletes every persisted row of the scope, clears the remote lock
// and the local marker, and returns the list to an empty editable state.
// Any failure leaves the ranking locked.
func (c *Coordinator) Revert(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	flow := string(c.scope.Flow)
	if _, err := c.machine.Fire(workflow.EventRevertRequested, nil); err != nil {
		metrics.RecordRevert(flow, metrics.OutcomeInvalidState)
		return fmt.Errorf("revert %s: %w: %w", c.scope, ErrNotLocked, err)
	}

	items := c.list.Items()
	ok, err := c.confirmer.Confirm(ctx, Prompt{
		Action:  ActionRevert,
		Scope:   c.scope,
		Items:   items,
		Message: fmt.Sprintf("Revert %d submitted item(s)? Their statements of purpose are deleted.", len(items)),
	})
	if err != nil || !ok {
		_, _ = c.machine.Fire(workflow.EventCancelled, nil)
		metrics.RecordRevert(flow, metrics.OutcomeCancelled)
		if err != nil {
			return fmt.Errorf("revert %s: confirm: %w", c.scope, err)
		}
		return fmt.Errorf("revert %s: %w", c.scope, ErrCancelled)
	}

	if err := c.unpersist(ctx); err != nil {
		_, _ = c.machine.Fire(workflow.EventRevertFailed, err)
		metrics.RecordRevert(flow, outcomeOf(err))
		c.logger.Warn(ctx, "revert failed, ranking stays locked",
			logger.String("scope", c.scope.Key()),
			logger.Error(err),
		)
		return err
	}

	if c.markers != nil {
		if err := c.markers.Clear(ctx, c.scope); err != nil {
			c.logger.Warn(ctx, "failed to clear submitted marker",
				logger.String("scope", c.scope.Key()),
				logger.Error(err),
			)
		}
	}
	c.list.Reset()
	_, _ = c.machine.Fire(workflow.EventRevertSucceeded, nil)
	metrics.RecordRevert(flow, metrics.OutcomeUnlocked)
	c.logger.Info(ctx, "ranking reverted", logger.String("scope", c.scope.Key()))
	return nil
}

// unpersist deletes the rows of the local list first, in rank order, then any
// row the store still reports, then unlocks.
func (c *Coordinator) unpersist(ctx context.Context) error {
	if err := c.checkSession(ctx); err != nil {
		return err
	}

	ids := c.list.IDs()
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	existing, err := c.store.ExistingSubmission(ctx, c.scope)
	if err != nil {
		return &PartialFailureError{Op: OpDelete, Index: -1, Err: err}
	}
	for _, row := range existing.Items {
		if _, ok := seen[row.CandidateID]; !ok {
			seen[row.CandidateID] = struct{}{}
			ids = append(ids, row.CandidateID)
		}
	}

	done := make([]string, 0, len(ids))
	for i, id := range ids {
		err := c.store.DeleteRank(ctx, c.scope, id)
		metrics.RecordRankWrite(string(OpDelete), err == nil)
		if err != nil {
			return &PartialFailureError{Op: OpDelete, Index: i, CandidateID: id, Succeeded: done, Err: err}
		}
		done = append(done, id)
	}

	if err := c.store.Unlock(ctx, c.scope); err != nil {
		return &PartialFailureError{Op: OpUnlock, Index: -1, Succeeded: done, Err: err}
	}
	return nil
}
