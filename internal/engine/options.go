package engine

import (
	"github.com/okian/prefrank/internal/domain/selection"
	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger; the coordinator gets a named child.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSessionChecker enables session checks before mutating calls.
func WithSessionChecker(s submission.SessionChecker) Option {
	return func(e *Engine) {
		e.session = s
	}
}

// WithMarkerCache sets the local submitted-marker cache.
func WithMarkerCache(m submission.MarkerCache) Option {
	return func(e *Engine) {
		e.markers = m
	}
}

// WithMaxSelection sets the selection bound.
func WithMaxSelection(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSelection = n
		}
	}
}

// WithSelectionPolicy sets how a pool that fits the bound is preselected.
func WithSelectionPolicy(p selection.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}
