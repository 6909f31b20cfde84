package session

import (
	"time"

	"github.com/okian/prefrank/pkg/logger"
)

// Option applies a configuration option to the Provider.
type Option func(*Provider)

// WithBackend sets the service that exchanges codes and answers "who am I".
func WithBackend(b Backend) Option {
	return func(p *Provider) {
		p.backend = b
	}
}

// WithLogger sets the provider logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.tokens.now = now
		}
	}
}
