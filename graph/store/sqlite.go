package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store.
//
// Designed for development, single-process deployments, and prototyping
// before migrating to a distributed store. Uses WAL mode so checkpoint
// history can be read while a run is writing.
//
// Schema:
//   - checkpoints: one row per Checkpoint, values/versions/versions_seen
//     stored as JSON text columns.
//   - pending_writes: per-node channel writes recorded ahead of reduction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path
// and ensures the schema exists. Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows a single writer; keep one connection so WAL mode and
	// busy_timeout apply consistently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			values_json TEXT NOT NULL,
			versions TEXT NOT NULL DEFAULT '{}',
			versions_seen TEXT NOT NULL DEFAULT '{}',
			next_nodes TEXT NOT NULL DEFAULT '[]',
			UNIQUE(thread_id, checkpoint_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS pending_writes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			value TEXT NOT NULL,
			task_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_writes_cp ON pending_writes(thread_id, checkpoint_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put appends a checkpoint row.
func (s *SQLiteStore) Put(ctx context.Context, cp Checkpoint) error {
	values, err := json.Marshal(cp.Values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	versions, err := json.Marshal(cp.Versions)
	if err != nil {
		return fmt.Errorf("marshal versions: %w", err)
	}
	versionsSeen, err := json.Marshal(cp.VersionsSeen)
	if err != nil {
		return fmt.Errorf("marshal versions_seen: %w", err)
	}
	nextNodes, err := json.Marshal(cp.NextNodes)
	if err != nil {
		return fmt.Errorf("marshal next_nodes: %w", err)
	}
	metadata, err := json.Marshal(cp.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints
			(thread_id, checkpoint_id, parent_id, created_at, metadata, values_json, versions, versions_seen, next_nodes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.ThreadID, cp.CheckpointID, cp.ParentID, cp.CreatedAt, metadata, values, versions, versionsSeen, nextNodes)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Get retrieves a checkpoint by id, or the most recent one when checkpointID is "".
func (s *SQLiteStore) Get(ctx context.Context, threadID, checkpointID string) (Checkpoint, error) {
	var row *sql.Row
	if checkpointID == "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT thread_id, checkpoint_id, parent_id, created_at, metadata, values_json, versions, versions_seen, next_nodes
			FROM checkpoints WHERE thread_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, threadID)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT thread_id, checkpoint_id, parent_id, created_at, metadata, values_json, versions, versions_seen, next_nodes
			FROM checkpoints WHERE thread_id = ? AND checkpoint_id = ?`, threadID, checkpointID)
	}
	cp, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return Checkpoint{}, ErrNotFound
	}
	return cp, err
}

// List returns every checkpoint for a thread, newest first.
func (s *SQLiteStore) List(ctx context.Context, threadID string, limit int) ([]Checkpoint, error) {
	query := `
		SELECT thread_id, checkpoint_id, parent_id, created_at, metadata, values_json, versions, versions_seen, next_nodes
		FROM checkpoints WHERE thread_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{threadID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpointRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// PutWrites inserts pending per-node writes for a checkpoint.
func (s *SQLiteStore) PutWrites(ctx context.Context, threadID, checkpointID string, writes []PendingWrite) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, w := range writes {
		value, err := json.Marshal(w.Value)
		if err != nil {
			return fmt.Errorf("marshal write value: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pending_writes (thread_id, checkpoint_id, node_id, channel, value, task_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			threadID, checkpointID, w.NodeID, w.Channel, value, w.TaskID); err != nil {
			return fmt.Errorf("insert pending write: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteThread removes all checkpoints and pending writes for a thread.
func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_writes WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete pending writes: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scannable) (Checkpoint, error) {
	return scanCheckpointRow(row)
}

func scanCheckpointRow(row scannable) (Checkpoint, error) {
	var (
		cp                                                    Checkpoint
		createdAt                                             time.Time
		metadata, values, versions, versionsSeen, nextNodes   string
	)
	if err := row.Scan(&cp.ThreadID, &cp.CheckpointID, &cp.ParentID, &createdAt,
		&metadata, &values, &versions, &versionsSeen, &nextNodes); err != nil {
		return Checkpoint{}, err
	}
	cp.CreatedAt = createdAt

	if err := json.Unmarshal([]byte(metadata), &cp.Metadata); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(values), &cp.Values); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal values: %w", err)
	}
	if err := json.Unmarshal([]byte(versions), &cp.Versions); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal versions: %w", err)
	}
	if err := json.Unmarshal([]byte(versionsSeen), &cp.VersionsSeen); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal versions_seen: %w", err)
	}
	if err := json.Unmarshal([]byte(nextNodes), &cp.NextNodes); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal next_nodes: %w", err)
	}
	return cp, nil
}
