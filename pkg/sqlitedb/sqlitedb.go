// Package sqlitedb opens pooled SQLite connections with a fixed set of
// pragmas and an optional schema applied to every connection.
package sqlitedb

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/okian/prefrank/pkg/logger"
)

// ErrNoPath is returned when Config.Path is empty.
var ErrNoPath = errors.New("sqlitedb: path is required")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
	"PRAGMA temp_store=MEMORY",
}

// Config holds the parameters for Open.
type Config struct {
	// Path of the database file. It is created if missing.
	Path string

	// PoolSize defaults to max(NumCPU, 4).
	PoolSize int

	// Schema is run on every new connection, so it must be idempotent
	// (CREATE ... IF NOT EXISTS).
	Schema string

	Logger logger.Logger
}

// DB is a pool of SQLite connections. Connections are not safe for
// concurrent use; Take one per goroutine and Put it back.
type DB struct {
	pool   *sqlitex.Pool
	path   string
	logger logger.Logger
}

// Open creates the pool. Connections are prepared lazily on first Take.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = max(runtime.NumCPU(), 4)
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: size,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepare(conn, cfg.Schema)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: open %s: %w", cfg.Path, err)
	}
	log.Info(ctx, "sqlite pool opened", logger.String("path", cfg.Path), logger.Int("pool_size", size))
	return &DB{pool: pool, path: cfg.Path, logger: log}, nil
}

// Take borrows a connection. Callers must Put it back.
func (d *DB) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: take: %w", err)
	}
	return conn, nil
}

// Put returns conn to the pool.
func (d *DB) Put(conn *sqlite.Conn) {
	d.pool.Put(conn)
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close waits for borrowed connections and closes the pool.
func (d *DB) Close() error {
	if err := d.pool.Close(); err != nil {
		return fmt.Errorf("sqlitedb: close %s: %w", d.path, err)
	}
	d.logger.Info(context.Background(), "sqlite pool closed", logger.String("path", d.path))
	return nil
}

func prepare(conn *sqlite.Conn, schema string) error {
	for _, p := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, p, nil); err != nil {
			return fmt.Errorf("sqlitedb: %s: %w", p, err)
		}
	}
	if schema == "" {
		return nil
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlitedb: schema: %w", err)
	}
	return nil
}
