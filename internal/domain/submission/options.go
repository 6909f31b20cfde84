package submission

import (
	"time"

	"github.com/okian/prefrank/pkg/logger"
)

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSessionChecker enables the session check before each mutating step.
func WithSessionChecker(s SessionChecker) Option {
	return func(c *Coordinator) {
		c.session = s
	}
}

// WithMarkerCache sets where the submitted marker is cached.
func WithMarkerCache(m MarkerCache) Option {
	return func(c *Coordinator) {
		c.markers = m
	}
}

// WithClock overrides the time source used for markers.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}
