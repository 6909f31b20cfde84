// Package service is the reference preference store: it enforces ranking
// rules on top of a repository.Store and implements the dependencies of the
// HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/prefrank/internal/adapters/repository"
	"github.com/okian/prefrank/internal/domain/dedupe"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
)

// Rank bounds accepted by the store.
const (
	MinRank = 1
	MaxRank = 32767
)

// Service implements the API dependencies for the preference store.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	codes   map[string]string // authorization code -> user id

	// Configuration
	storePath           string
	seed                *repository.Seed
	program             string
	jwtSecret           []byte
	sessionTTL          time.Duration
	maxAnnotationLength int
	dedupeSize          int
	now                 func() time.Time

	// State
	started bool
	owned   bool // store was opened by Start and is closed by Stop

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store. The caller keeps ownership.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithStorePath makes Start open a SQLite store at path. Empty means memory.
func WithStorePath(path string) Option {
	return func(s *Service) {
		s.storePath = path
	}
}

// WithSeed applies seed to the store on Start.
func WithSeed(seed repository.Seed) Option {
	return func(s *Service) {
		s.seed = &seed
	}
}

// WithProgram sets the programme id that scopes student rankings.
func WithProgram(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.program = id
		}
	}
}

// WithJWTSecret sets the HMAC key for session tokens.
func WithJWTSecret(secret string) Option {
	return func(s *Service) {
		if secret != "" {
			s.jwtSecret = []byte(secret)
		}
	}
}

// WithSessionTTL sets how long issued tokens stay valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithMaxAnnotationLength caps annotation length in characters.
func WithMaxAnnotationLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAnnotationLength = n
		}
	}
}

// WithDedupeSize sets the size of the idempotency ledger.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		program:             "default",
		jwtSecret:           []byte("change-me"),
		sessionTTL:          24 * time.Hour,
		maxAnnotationLength: 5000,
		dedupeSize:          50000,
		now:                 time.Now,
		codes:               map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store if none was given, applies the seed and builds the
// idempotency ledger.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting preference store service...")

	if s.store == nil {
		if s.storePath != "" {
			st, err := repository.OpenSQLite(ctx, s.storePath, repository.WithSQLiteLogger(s.logger.Named("sqlite")))
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			s.store = st
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.storePath))
		} else {
			s.store = repository.NewMemStore(ctx)
			s.logger.Info(ctx, "using in-memory store")
		}
		s.owned = true
	}

	if s.seed != nil {
		if err := s.seed.Apply(ctx, s.store); err != nil {
			s.closeOwned(ctx)
			return fmt.Errorf("start: %w", err)
		}
		for code, id := range s.seed.Codes() {
			s.codes[code] = id
		}
		s.logger.Info(ctx, "seed applied",
			logger.Int("users", len(s.seed.Users)),
			logger.Int("projects", len(s.seed.Projects)),
		)
	}

	s.deduper = dedupe.NewLedger(dedupe.WithMaxSize(s.dedupeSize))
	s.started = true
	s.logger.Info(ctx, "preference store service started",
		logger.String("program", s.program),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop closes the store if Start opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping preference store service...")
	s.closeOwned(ctx)
	s.started = false
	s.logger.Info(ctx, "preference store service stopped")
}

func (s *Service) closeOwned(ctx context.Context) {
	if !s.owned || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "failed to close store", logger.Error(err))
	}
	s.store = nil
	s.owned = false
}

// backend returns the store once the service is running.
func (s *Service) backend() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Program returns the programme id.
func (s *Service) Program() string { return s.program }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"program":    s.program,
		"dedupeSize": s.dedupeSize,
	}
	if s.started {
		ctx := context.Background()
		rows := s.store.Count(ctx)
		stats["rankedRows"] = rows
		stats["idempotencyKeys"] = s.deduper.Size()
		if ps, err := s.store.Projects(ctx); err == nil {
			stats["projects"] = len(ps)
		}
		metrics.UpdateStoreRows(rows)
	}
	return stats
}

// translate maps repository errors onto service sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrScopeLocked):
		return fmt.Errorf("%w: %w", ErrLocked, err)
	case errors.Is(err, repository.ErrInvalidRecord):
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return err
}
