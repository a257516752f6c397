// Package checkpointstore provides optional, durable persistence for
// state.Checkpoint values in a SQLite database. It is not part of the
// replay core: a replay.Engine never imports this package, since whether
// and how checkpoints are persisted is entirely the caller's choice (an
// in-memory slice, this store, or something else) — spec.md's durability
// is explicitly a caller concern, not an engine one.
package checkpointstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/brutalist-labs/dtre/state"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store is a single-writer SQLite-backed checkpoint archive, keyed by a
// caller-chosen run ID plus checkpoint index.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path, applying WAL-mode
// pragmas and the checkpoints schema. Idempotent — safe to call against
// an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("checkpointstore: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpointstore: ping %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put persists cp under runID, encoding it via codec into the spec's
// binary checkpoint layout (state.EncodeCheckpoint) before storing it as
// a BLOB.
func (s *Store) Put(ctx context.Context, runID string, cp state.Checkpoint, codec state.Codec) error {
	blob, err := state.EncodeCheckpoint(cp, codec)
	if err != nil {
		return fmt.Errorf("checkpointstore: encode checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, idx, state_hash, trace_prefix_hash, blob, created_at_unix)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO UPDATE SET
			state_hash = excluded.state_hash,
			trace_prefix_hash = excluded.trace_prefix_hash,
			blob = excluded.blob,
			created_at_unix = excluded.created_at_unix
	`, runID, cp.Index, cp.StateHash.String(), cp.TracePrefixHash.String(), blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("checkpointstore: insert checkpoint run=%s index=%d: %w", runID, cp.Index, err)
	}
	return nil
}

// Latest returns the highest-index checkpoint stored for runID, decoding
// it via codec. Returns sql.ErrNoRows if no checkpoint exists for runID.
func (s *Store) Latest(ctx context.Context, runID string, codec state.Codec) (state.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT blob FROM checkpoints
		WHERE run_id = ?
		ORDER BY idx DESC
		LIMIT 1
	`, runID)

	var blob []byte
	if err := row.Scan(&blob); err != nil {
		return state.Checkpoint{}, fmt.Errorf("checkpointstore: latest checkpoint for run %s: %w", runID, err)
	}

	cp, err := state.DecodeCheckpoint(blob, codec)
	if err != nil {
		return state.Checkpoint{}, fmt.Errorf("checkpointstore: decode checkpoint for run %s: %w", runID, err)
	}
	return cp, nil
}

// At returns the checkpoint stored for runID at exactly index, decoding
// it via codec.
func (s *Store) At(ctx context.Context, runID string, index int64, codec state.Codec) (state.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT blob FROM checkpoints
		WHERE run_id = ? AND idx = ?
	`, runID, index)

	var blob []byte
	if err := row.Scan(&blob); err != nil {
		return state.Checkpoint{}, fmt.Errorf("checkpointstore: checkpoint for run %s at index %d: %w", runID, index, err)
	}

	cp, err := state.DecodeCheckpoint(blob, codec)
	if err != nil {
		return state.Checkpoint{}, fmt.Errorf("checkpointstore: decode checkpoint for run %s at index %d: %w", runID, index, err)
	}
	return cp, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("checkpointstore: exec %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("checkpointstore: apply schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("checkpointstore: set user_version: %w", err)
	}
	return nil
}
