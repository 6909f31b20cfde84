package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
	"github.com/okian/prefrank/pkg/sqlitedb"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	email     TEXT NOT NULL,
	roll_no   TEXT NOT NULL,
	is_mentor INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS projects (
	id      TEXT PRIMARY KEY,
	title   TEXT NOT NULL,
	meta    TEXT NOT NULL,
	mentors TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS wishlist (
	user_id    TEXT NOT NULL,
	project_id TEXT NOT NULL REFERENCES projects(id),
	seq        INTEGER NOT NULL,
	PRIMARY KEY (user_id, project_id)
);
CREATE TABLE IF NOT EXISTS rankings (
	flow         TEXT NOT NULL,
	actor_id     TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	rank         INTEGER NOT NULL,
	sop          TEXT NOT NULL,
	updated_at   INTEGER NOT NULL,
	PRIMARY KEY (flow, actor_id, target_id, candidate_id)
);
CREATE INDEX IF NOT EXISTS rankings_candidate ON rankings (flow, target_id, candidate_id);
CREATE TABLE IF NOT EXISTS locks (
	flow      TEXT NOT NULL,
	actor_id  TEXT NOT NULL,
	target_id TEXT NOT NULL,
	locked_at INTEGER NOT NULL,
	PRIMARY KEY (flow, actor_id, target_id)
);
`

// SQLiteStore is a Store in a SQLite file.
type SQLiteStore struct {
	db       *sqlitedb.DB
	poolSize int
	logger   logger.Logger
}

// OpenSQLite opens or creates the store at path.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	s := &SQLiteStore{poolSize: 4, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	db, err := sqlitedb.Open(ctx, sqlitedb.Config{
		Path:     path,
		PoolSize: s.poolSize,
		Schema:   sqliteSchema,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	s.db = db
	return s, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// with runs fn on a pooled connection and records its latency under op.
func (s *SQLiteStore) with(ctx context.Context, op string, fn func(conn *sqlite.Conn) error) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency(op, float64(time.Since(start).Milliseconds()))
	}()
	conn, err := s.db.Take(ctx)
	if err != nil {
		return fmt.Errorf("repository: %s: %w", op, err)
	}
	defer s.db.Put(conn)
	if err := fn(conn); err != nil {
		return fmt.Errorf("repository: %s: %w", op, err)
	}
	return nil
}

func (s *SQLiteStore) PutUser(ctx context.Context, u types.Identity) error {
	if u.ID == "" {
		return fmt.Errorf("user: empty id: %w", ErrInvalidRecord)
	}
	return s.with(ctx, "put_user", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `INSERT INTO users (id, name, email, roll_no, is_mentor) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email,
				roll_no = excluded.roll_no, is_mentor = excluded.is_mentor`,
			&sqlitex.ExecOptions{Args: []any{u.ID, u.Name, u.Email, u.RollNo, boolInt(u.IsMentor)}})
	})
}

func (s *SQLiteStore) User(ctx context.Context, id string) (types.Identity, error) {
	var (
		u     types.Identity
		found bool
	)
	err := s.with(ctx, "user", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT id, name, email, roll_no, is_mentor FROM users WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				u = types.Identity{
					ID:       stmt.ColumnText(0),
					Name:     stmt.ColumnText(1),
					Email:    stmt.ColumnText(2),
					RollNo:   stmt.ColumnText(3),
					IsMentor: stmt.ColumnInt(4) != 0,
				}
				found = true
				return nil
			},
		})
	})
	if err != nil {
		return types.Identity{}, err
	}
	if !found {
		return types.Identity{}, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *SQLiteStore) PutProject(ctx context.Context, p Project) error {
	if p.ID == "" {
		return fmt.Errorf("project: empty id: %w", ErrInvalidRecord)
	}
	meta, err := json.Marshal(p.Meta)
	if err != nil {
		return fmt.Errorf("project %q: encode meta: %w", p.ID, err)
	}
	mentors, err := json.Marshal(p.MentorIDs)
	if err != nil {
		return fmt.Errorf("project %q: encode mentors: %w", p.ID, err)
	}
	return s.with(ctx, "put_project", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `INSERT INTO projects (id, title, meta, mentors) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, meta = excluded.meta, mentors = excluded.mentors`,
			&sqlitex.ExecOptions{Args: []any{p.ID, p.Title, string(meta), string(mentors)}})
	})
}

func scanProject(stmt *sqlite.Stmt) (Project, error) {
	p := Project{Candidate: types.Candidate{
		ID:    stmt.ColumnText(0),
		Title: stmt.ColumnText(1),
		Kind:  types.KindProject,
	}}
	if err := json.Unmarshal([]byte(stmt.ColumnText(2)), &p.Meta); err != nil {
		return Project{}, fmt.Errorf("project %q: decode meta: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(stmt.ColumnText(3)), &p.MentorIDs); err != nil {
		return Project{}, fmt.Errorf("project %q: decode mentors: %w", p.ID, err)
	}
	return p, nil
}

func (s *SQLiteStore) Project(ctx context.Context, id string) (Project, error) {
	var (
		p     Project
		found bool
	)
	err := s.with(ctx, "project", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT id, title, meta, mentors FROM projects WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				p, err = scanProject(stmt)
				found = err == nil
				return err
			},
		})
	})
	if err != nil {
		return Project{}, err
	}
	if !found {
		return Project{}, fmt.Errorf("project %q: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *SQLiteStore) Projects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := s.with(ctx, "projects", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT id, title, meta, mentors FROM projects ORDER BY id", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				p, err := scanProject(stmt)
				if err != nil {
					return err
				}
				out = append(out, p)
				return nil
			},
		})
	})
	return out, err
}

func (s *SQLiteStore) ToggleWishlist(ctx context.Context, userID, projectID string) (on bool, err error) {
	if _, err := s.Project(ctx, projectID); err != nil {
		return false, err
	}
	err = s.with(ctx, "wishlist_toggle", func(conn *sqlite.Conn) (err error) {
		end, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return err
		}
		defer end(&err)

		if err := sqlitex.Execute(conn, "DELETE FROM wishlist WHERE user_id = ? AND project_id = ?",
			&sqlitex.ExecOptions{Args: []any{userID, projectID}}); err != nil {
			return err
		}
		if conn.Changes() > 0 {
			on = false
			return nil
		}
		on = true
		return sqlitex.Execute(conn, `INSERT INTO wishlist (user_id, project_id, seq)
			VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM wishlist))`,
			&sqlitex.ExecOptions{Args: []any{userID, projectID}})
	})
	return on, err
}

func (s *SQLiteStore) Wishlist(ctx context.Context, userID string) ([]string, error) {
	out := []string{}
	err := s.with(ctx, "wishlist", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT project_id FROM wishlist WHERE user_id = ? ORDER BY seq", &sqlitex.ExecOptions{
			Args: []any{userID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, stmt.ColumnText(0))
				return nil
			},
		})
	})
	return out, err
}

func (s *SQLiteStore) WishlistCount(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.with(ctx, "wishlist_count", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT COUNT(*) FROM wishlist WHERE project_id = ?", &sqlitex.ExecOptions{
			Args: []any{projectID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	return n, err
}

func scanRecord(stmt *sqlite.Stmt) types.SubmissionRecord {
	return types.SubmissionRecord{
		ActorID:     stmt.GetText("actor_id"),
		TargetID:    stmt.GetText("target_id"),
		CandidateID: stmt.GetText("candidate_id"),
		Rank:        int(stmt.GetInt64("rank")),
		Annotation:  stmt.GetText("sop"),
		UpdatedAt:   time.Unix(0, stmt.GetInt64("updated_at")).UTC(),
	}
}

func (s *SQLiteStore) Rows(ctx context.Context, scope types.Scope) ([]types.SubmissionRecord, error) {
	var out []types.SubmissionRecord
	err := s.with(ctx, "rows", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT actor_id, target_id, candidate_id, rank, sop, updated_at FROM rankings
			WHERE flow = ? AND actor_id = ? AND target_id = ? ORDER BY rank, candidate_id`, &sqlitex.ExecOptions{
			Args: []any{string(scope.Flow), scope.ActorID, scope.TargetID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, scanRecord(stmt))
				return nil
			},
		})
	})
	return out, err
}

func lockedTx(conn *sqlite.Conn, scope types.Scope) (bool, error) {
	locked := false
	err := sqlitex.Execute(conn, "SELECT 1 FROM locks WHERE flow = ? AND actor_id = ? AND target_id = ?", &sqlitex.ExecOptions{
		Args: []any{string(scope.Flow), scope.ActorID, scope.TargetID},
		ResultFunc: func(*sqlite.Stmt) error {
			locked = true
			return nil
		},
	})
	return locked, err
}

func (s *SQLiteStore) Upsert(ctx context.Context, scope types.Scope, rec types.SubmissionRecord) error {
	if rec.CandidateID == "" {
		return fmt.Errorf("upsert: empty candidate: %w", ErrInvalidRecord)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	return s.with(ctx, "upsert", func(conn *sqlite.Conn) (err error) {
		end, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return err
		}
		defer end(&err)

		locked, err := lockedTx(conn, scope)
		if err != nil {
			return err
		}
		if locked {
			return fmt.Errorf("upsert %q into %s: %w", rec.CandidateID, scope, ErrScopeLocked)
		}
		return sqlitex.Execute(conn, `INSERT INTO rankings (flow, actor_id, target_id, candidate_id, rank, sop, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(flow, actor_id, target_id, candidate_id)
			DO UPDATE SET rank = excluded.rank, sop = excluded.sop, updated_at = excluded.updated_at`,
			&sqlitex.ExecOptions{Args: []any{
				string(scope.Flow), scope.ActorID, scope.TargetID, rec.CandidateID,
				rec.Rank, rec.Annotation, rec.UpdatedAt.UnixNano(),
			}})
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, scope types.Scope, candidateID string) (bool, error) {
	removed := false
	err := s.with(ctx, "delete", func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `DELETE FROM rankings
			WHERE flow = ? AND actor_id = ? AND target_id = ? AND candidate_id = ?`,
			&sqlitex.ExecOptions{Args: []any{string(scope.Flow), scope.ActorID, scope.TargetID, candidateID}})
		removed = conn.Changes() > 0
		return err
	})
	return removed, err
}

func (s *SQLiteStore) Lock(ctx context.Context, scope types.Scope, at time.Time) error {
	return s.with(ctx, "lock", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `INSERT INTO locks (flow, actor_id, target_id, locked_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(flow, actor_id, target_id) DO NOTHING`,
			&sqlitex.ExecOptions{Args: []any{string(scope.Flow), scope.ActorID, scope.TargetID, at.UnixNano()}})
	})
}

func (s *SQLiteStore) Unlock(ctx context.Context, scope types.Scope) error {
	return s.with(ctx, "unlock", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "DELETE FROM locks WHERE flow = ? AND actor_id = ? AND target_id = ?",
			&sqlitex.ExecOptions{Args: []any{string(scope.Flow), scope.ActorID, scope.TargetID}})
	})
}

func (s *SQLiteStore) LockState(ctx context.Context, scope types.Scope) (LockState, error) {
	var st LockState
	err := s.with(ctx, "lock_state", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT locked_at FROM locks WHERE flow = ? AND actor_id = ? AND target_id = ?", &sqlitex.ExecOptions{
			Args: []any{string(scope.Flow), scope.ActorID, scope.TargetID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				st = LockState{Locked: true, LockedAt: time.Unix(0, stmt.ColumnInt64(0)).UTC()}
				return nil
			},
		})
	})
	return st, err
}

func (s *SQLiteStore) Applicants(ctx context.Context, program, projectID string, lockedOnly bool) ([]types.SubmissionRecord, error) {
	query := `SELECT r.actor_id, r.target_id, r.candidate_id, r.rank, r.sop, r.updated_at FROM rankings r
		WHERE r.flow = ? AND r.target_id = ? AND r.candidate_id = ?`
	if lockedOnly {
		query += ` AND EXISTS (SELECT 1 FROM locks l
			WHERE l.flow = r.flow AND l.actor_id = r.actor_id AND l.target_id = r.target_id)`
	}
	query += " ORDER BY r.actor_id"

	var out []types.SubmissionRecord
	err := s.with(ctx, "applicants", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: []any{string(types.FlowStudent), program, projectID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, scanRecord(stmt))
				return nil
			},
		})
	})
	return out, err
}

func (s *SQLiteStore) Count(ctx context.Context) int {
	n := 0
	err := s.with(ctx, "count", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT COUNT(*) FROM rankings", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	if err != nil {
		s.logger.Warn(ctx, "count rows failed", logger.Error(err))
		return 0
	}
	return n
}
