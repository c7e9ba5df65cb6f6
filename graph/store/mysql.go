package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed Store.
//
// Designed for production deployments with multiple workers sharing thread
// history. The DSN format matches the go-sql-driver/mysql convention:
//
//	user:password@tcp(127.0.0.1:3306)/dbname?parseTime=true
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool for dsn and ensures the schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	s := &MySQLStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			thread_id VARCHAR(255) NOT NULL,
			checkpoint_id VARCHAR(255) NOT NULL,
			parent_id VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME(6) NOT NULL,
			metadata JSON NOT NULL,
			values_json JSON NOT NULL,
			versions JSON NOT NULL,
			versions_seen JSON NOT NULL,
			next_nodes JSON NOT NULL,
			UNIQUE KEY uniq_thread_checkpoint (thread_id, checkpoint_id),
			KEY idx_thread_created (thread_id, created_at)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS pending_writes (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			thread_id VARCHAR(255) NOT NULL,
			checkpoint_id VARCHAR(255) NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			channel VARCHAR(255) NOT NULL,
			value JSON NOT NULL,
			task_id VARCHAR(255) NOT NULL DEFAULT '',
			KEY idx_pending_writes_cp (thread_id, checkpoint_id)
		) ENGINE=InnoDB`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Put inserts a checkpoint row.
func (s *MySQLStore) Put(ctx context.Context, cp Checkpoint) error {
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
func (s *MySQLStore) Get(ctx context.Context, threadID, checkpointID string) (Checkpoint, error) {
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
	cp, err := scanCheckpointRow(row)
	if err == sql.ErrNoRows {
		return Checkpoint{}, ErrNotFound
	}
	return cp, err
}

// List returns every checkpoint for a thread, newest first.
func (s *MySQLStore) List(ctx context.Context, threadID string, limit int) ([]Checkpoint, error) {
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
func (s *MySQLStore) PutWrites(ctx context.Context, threadID, checkpointID string, writes []PendingWrite) error {
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
func (s *MySQLStore) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_writes WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete pending writes: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	return nil
}
