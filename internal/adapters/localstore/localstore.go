// Package localstore keeps client-side state between runs: the submitted
// marker per scope and the session token. It plays the part browser storage
// plays for a web client, so nothing in it is authoritative.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/okian/prefrank/internal/adapters/session"
	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/sqlitedb"
)

const schema = `
CREATE TABLE IF NOT EXISTS markers (
	scope        TEXT PRIMARY KEY,
	items        INTEGER NOT NULL,
	submitted_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

const tokenKey = "session.token"

var (
	_ submission.MarkerCache = (*Store)(nil)
	_ session.TokenStore     = (*Store)(nil)
)

// Store is a small SQLite file owned by one client.
type Store struct {
	db     *sqlitedb.DB
	logger logger.Logger
}

// Open opens or creates the store at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	db, err := sqlitedb.Open(ctx, sqlitedb.Config{
		Path:     path,
		PoolSize: 2,
		Schema:   schema,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("localstore: %w", err)
	}
	s.db = db
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, opts *sqlitex.ExecOptions) error {
	conn, err := s.db.Take(ctx)
	if err != nil {
		return fmt.Errorf("localstore: %w", err)
	}
	defer s.db.Put(conn)
	if err := sqlitex.Execute(conn, query, opts); err != nil {
		return fmt.Errorf("localstore: %w", err)
	}
	return nil
}

// Get implements submission.MarkerCache.
func (s *Store) Get(ctx context.Context, scope types.Scope) (submission.Marker, bool, error) {
	var (
		m     submission.Marker
		found bool
	)
	err := s.exec(ctx, "SELECT items, submitted_at FROM markers WHERE scope = ?", &sqlitex.ExecOptions{
		Args: []any{scope.Key()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			m.Items = stmt.ColumnInt(0)
			m.SubmittedAt = time.Unix(0, stmt.ColumnInt64(1)).UTC()
			found = true
			return nil
		},
	})
	return m, found, err
}

// Put implements submission.MarkerCache.
func (s *Store) Put(ctx context.Context, scope types.Scope, m submission.Marker) error {
	return s.exec(ctx, `INSERT INTO markers (scope, items, submitted_at) VALUES (?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET items = excluded.items, submitted_at = excluded.submitted_at`,
		&sqlitex.ExecOptions{Args: []any{scope.Key(), m.Items, m.SubmittedAt.UnixNano()}})
}

// Clear implements submission.MarkerCache.
func (s *Store) Clear(ctx context.Context, scope types.Scope) error {
	return s.exec(ctx, "DELETE FROM markers WHERE scope = ?", &sqlitex.ExecOptions{Args: []any{scope.Key()}})
}

// LoadToken implements session.TokenStore.
func (s *Store) LoadToken(ctx context.Context) (session.Token, bool, error) {
	raw, ok, err := s.getValue(ctx, tokenKey)
	if err != nil || !ok {
		return session.Token{}, false, err
	}
	var t session.Token
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		s.logger.Warn(ctx, "discarding unreadable session token", logger.Error(err))
		return session.Token{}, false, fmt.Errorf("localstore: token: %w: %w", ErrCorrupt, err)
	}
	return t, true, nil
}

// SaveToken implements session.TokenStore.
func (s *Store) SaveToken(ctx context.Context, t session.Token) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("localstore: encode token: %w", err)
	}
	return s.setValue(ctx, tokenKey, string(raw))
}

// ClearToken implements session.TokenStore.
func (s *Store) ClearToken(ctx context.Context) error {
	return s.exec(ctx, "DELETE FROM kv WHERE key = ?", &sqlitex.ExecOptions{Args: []any{tokenKey}})
}

func (s *Store) getValue(ctx context.Context, key string) (string, bool, error) {
	var (
		val   string
		found bool
	)
	err := s.exec(ctx, "SELECT value FROM kv WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			val = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	return val, found, err
}

func (s *Store) setValue(ctx context.Context, key, value string) error {
	return s.exec(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{key, value, time.Now().UnixNano()}})
}
