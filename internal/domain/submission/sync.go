package submission

import (
	"context"
	"fmt"

	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/logger"
)

// Sync re-reads the scope from the store and makes local state match it.
// A locked submission hydrates the list read-only; unlocked rows left by an
// interrupted submission hydrate it editable. The cached marker is
// overwritten with what the store reports.
func (c *Coordinator) Sync(ctx context.Context, catalog []types.Candidate) (types.Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sync(ctx, catalog)
}

// sync is Sync with c.mu held.
func (c *Coordinator) sync(ctx context.Context, catalog []types.Candidate) (types.Submission, error) {
	sub, err := c.store.ExistingSubmission(ctx, c.scope)
	if err != nil {
		return types.Submission{}, fmt.Errorf("sync %s: %w", c.scope, err)
	}

	var cached Marker
	hinted := false
	if c.markers != nil {
		if m, ok, err := c.markers.Get(ctx, c.scope); err == nil {
			cached, hinted = m, ok
		}
	}
	if hinted != sub.Locked {
		c.logger.Info(ctx, "submitted marker disagrees with store, using store",
			logger.String("scope", c.scope.Key()),
			logger.Bool("marker", hinted),
			logger.Bool("locked", sub.Locked),
		)
	}

	if _, err := c.machine.Sync(sub.Locked); err != nil {
		return sub, fmt.Errorf("sync %s: %w", c.scope, err)
	}

	c.list.Reset()
	if len(sub.Items) > 0 {
		c.list.Hydrate(sub.Items, catalog)
	}
	if sub.Locked {
		c.list.Lock()
	}

	if c.markers != nil {
		var merr error
		if sub.Locked {
			at := sub.LockedAt
			if at.IsZero() {
				at = cached.SubmittedAt
			}
			if at.IsZero() {
				at = c.now()
			}
			merr = c.markers.Put(ctx, c.scope, Marker{Items: len(sub.Items), SubmittedAt: at})
		} else {
			merr = c.markers.Clear(ctx, c.scope)
		}
		if merr != nil {
			c.logger.Warn(ctx, "failed to refresh submitted marker",
				logger.String("scope", c.scope.Key()),
				logger.Error(merr),
			)
		}
	}
	return sub, nil
}

// Hinted reports the cached marker for the scope without contacting the
// store. Callers use it to render a fast first view before Sync returns.
func (c *Coordinator) Hinted(ctx context.Context) (Marker, bool) {
	if c.markers == nil {
		return Marker{}, false
	}
	m, ok, err := c.markers.Get(ctx, c.scope)
	if err != nil {
		return Marker{}, false
	}
	return m, ok
}
