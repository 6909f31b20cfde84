package repository

import (
	"time"

	"github.com/okian/prefrank/pkg/logger"
)

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// SQLiteOption applies a configuration option to the SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithPoolSize sets the number of pooled connections.
func WithPoolSize(n int) SQLiteOption {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.poolSize = n
		}
	}
}

// WithSQLiteLogger sets the logger of the SQLite store.
func WithSQLiteLogger(l logger.Logger) SQLiteOption {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}
