// Package store persists every dispatched task's Result to a queryable
// SQLite ledger, additive to the unfinished_tasks.txt retry contract: a
// completed run can be inspected after the fact ("SELECT * FROM results
// WHERE status != 'OK'") without grepping log files.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/zoobzio/dispatchz"
)

// Store is the narrow persistence contract the scheduler depends on, so
// it never imports database/sql or the sqlite driver directly.
type Store interface {
	Record(ctx context.Context, r dispatchz.Result) error
	Close() error
}

// SQLiteStore is the Store backed by modernc.org/sqlite, a pure-Go driver
// requiring no cgo — consistent with the driver choice already present in
// the example pack's storage layers.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates (or reuses) the results database at path and ensures its
// schema exists.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS results (
	task_id          INTEGER NOT NULL,
	slot             INTEGER NOT NULL,
	status           TEXT NOT NULL,
	raw_args         TEXT NOT NULL,
	exec_time_ms     INTEGER NOT NULL,
	user_time_ms     INTEGER NOT NULL,
	system_time_ms   INTEGER NOT NULL,
	max_rss_kb       INTEGER NOT NULL,
	worker_lifetime_ms INTEGER NOT NULL,
	recorded_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Record inserts one row per Result, called once per task completion
// from the scheduler's classify step.
func (s *SQLiteStore) Record(ctx context.Context, r dispatchz.Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results
			(task_id, slot, status, raw_args, exec_time_ms, user_time_ms, system_time_ms, max_rss_kb, worker_lifetime_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TaskID, r.Slot, r.Status.String(), r.RawArgs,
		r.ExecTime.Milliseconds(), r.Profile.UserTime.Milliseconds(), r.Profile.SystemTime.Milliseconds(),
		r.Profile.MaxRSSKB, r.WorkerLifetime.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("store: recording task %d: %w", r.TaskID, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CountFailed returns the number of rows with a non-OK status, used by
// `dispatch inspect` to summarize a completed run without re-reading
// unfinished_tasks.txt.
func (s *SQLiteStore) CountFailed(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE status != 'OK'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: counting failed tasks: %w", err)
	}
	return n, nil
}
