package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// sessionTuning trades flush durability for write throughput on every
// pooled session: commits ride the WAL without waiting for fsync, sorts and
// temp tables stay in memory. Acceptable for single-writer-per-connection
// ingestion; the WAL still bounds data loss to the last commit window.
var sessionTuning = []string{
	"SET synchronous_commit = off",
	"SET work_mem = '64MB'",
	"SET temp_buffers = '32MB'",
}

// ContentRepository owns a bounded pool of dedicated, session-tuned
// connections. Idle connections belong to the pool list; a leased connection
// belongs to exactly one caller until released.
type ContentRepository struct {
	db       *sql.DB
	poolSize int

	mu   sync.Mutex
	idle []*sql.Conn
}

// Open connects, bootstraps the schema and pre-warms the connection pool.
func Open(ctx context.Context, dsn string, poolSize int) (*ContentRepository, error) {
	if poolSize <= 0 {
		poolSize = 5
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	// The hand-held pool below is the only idle-connection layer.
	db.SetMaxIdleConns(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	r := &ContentRepository{db: db, poolSize: poolSize}
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := r.warmPool(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *ContentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS processed_content (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	file_type TEXT NOT NULL,
	content_type TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	summary TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (file_name, file_type)
);

CREATE INDEX IF NOT EXISTS idx_processed_content_created_at ON processed_content(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ContentRepository) warmPool(ctx context.Context) error {
	for i := 0; i < r.poolSize; i++ {
		conn, err := r.openConn(ctx)
		if err != nil {
			return fmt.Errorf("warm pool: %w", err)
		}
		r.mu.Lock()
		r.idle = append(r.idle, conn)
		r.mu.Unlock()
	}
	return nil
}

func (r *ContentRepository) openConn(ctx context.Context) (*sql.Conn, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	for _, stmt := range sessionTuning {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("tune session: %w", err)
		}
	}
	return conn, nil
}

// acquire pops an idle connection or opens an ephemeral one when the pool
// is drained. Pool exhaustion is not an error.
func (r *ContentRepository) acquire(ctx context.Context) (*sql.Conn, error) {
	r.mu.Lock()
	if n := len(r.idle); n > 0 {
		conn := r.idle[n-1]
		r.idle = r.idle[:n-1]
		r.mu.Unlock()
		return conn, nil
	}
	r.mu.Unlock()
	return r.openConn(ctx)
}

// release returns a connection to the pool, or closes it when the pool is
// already full. The pool never grows past poolSize.
func (r *ContentRepository) release(conn *sql.Conn) {
	r.mu.Lock()
	if len(r.idle) < r.poolSize {
		r.idle = append(r.idle, conn)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	_ = conn.Close()
}

// withConn is the scoped-acquisition primitive: the connection is returned
// to the pool on every exit path. The pool mutex is held only for the
// pop/push, never across fn.
func (r *ContentRepository) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer r.release(conn)
	return fn(conn)
}

// Close drains the pool, closing every idle connection, then closes the
// primary handle.
func (r *ContentRepository) Close() {
	r.mu.Lock()
	idle := r.idle
	r.idle = nil
	r.mu.Unlock()

	for _, conn := range idle {
		_ = conn.Close()
	}
	_ = r.db.Close()
}
