// Package history keeps a durable record of analysis runs in SQLite, so
// `fathom stats` can show what past runs produced and how long they took.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"fathom/internal/model"
)

const (
	dbFileName           = "fathom.db"
	currentSchemaVersion = 1
)

// Run modes.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// ErrNoRuns is returned by LastRun when nothing has been recorded yet.
var ErrNoRuns = errors.New("no runs recorded")

// Run is one recorded analysis run.
type Run struct {
	ID         string              `json:"id"`
	Mode       string              `json:"mode"`
	StartedAt  time.Time           `json:"startedAt"`
	DurationMs int64               `json:"durationMs"`
	RootHash   string              `json:"rootHash,omitempty"`
	Stats      model.AnalysisStats `json:"stats"`
}

// DB wraps the run-history database.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	path   string
}

// Open opens or creates the history database under dir, applying pragmas and
// migrating the schema to the current version.
func Open(dir string, logger *slog.Logger) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	path := filepath.Join(dir, dbFileName)

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	db := &DB{conn: conn, logger: logger, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file location.
func (db *DB) Path() string { return db.path }

// WithTx executes fn inside a transaction, rolling back on error or panic.
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Transaction rollback failed",
				"error", err.Error(), "rollbackError", rbErr.Error())
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (db *DB) migrate() error {
	version, err := db.schemaVersion()
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("history database schema v%d is newer than this build supports (v%d)",
			version, currentSchemaVersion)
	}

	return db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER NOT NULL
			)
		`); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				mode TEXT NOT NULL CHECK(mode IN ('full', 'incremental')),
				started_at TEXT NOT NULL,
				duration_ms INTEGER NOT NULL,
				root_hash TEXT NOT NULL,
				files_indexed INTEGER NOT NULL,
				nodes_extracted INTEGER NOT NULL,
				patterns_discovered INTEGER NOT NULL,
				relationships_identified INTEGER NOT NULL,
				concepts_extracted INTEGER NOT NULL,
				data_flows_discovered INTEGER NOT NULL,
				data_flow_paths_identified INTEGER NOT NULL,
				dependencies_discovered INTEGER NOT NULL,
				memory_usage_bytes INTEGER NOT NULL
			)
		`); err != nil {
			return err
		}
		if _, err := tx.Exec(
			"CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)",
		); err != nil {
			return err
		}

		if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
			return err
		}
		db.logger.Debug("History schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

func (db *DB) schemaVersion() (int, error) {
	var name string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// RecordRun inserts one run. A missing id is filled with a fresh uuid.
func (db *DB) RecordRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Mode != ModeFull && r.Mode != ModeIncremental {
		return fmt.Errorf("invalid run mode %q", r.Mode)
	}
	return db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (
				id, mode, started_at, duration_ms, root_hash,
				files_indexed, nodes_extracted, patterns_discovered,
				relationships_identified, concepts_extracted,
				data_flows_discovered, data_flow_paths_identified,
				dependencies_discovered, memory_usage_bytes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.ID, r.Mode, r.StartedAt.UTC().Format(time.RFC3339Nano), r.DurationMs, r.RootHash,
			r.Stats.FilesIndexed, r.Stats.NodesExtracted, r.Stats.PatternsDiscovered,
			r.Stats.RelationshipsIdentified, r.Stats.ConceptsExtracted,
			r.Stats.DataFlowsDiscovered, r.Stats.DataFlowPathsIdentified,
			r.Stats.DependenciesDiscovered, r.Stats.MemoryUsageBytes,
		)
		return err
	})
}

// LastRun returns the most recently started run.
func (db *DB) LastRun() (*Run, error) {
	runs, err := db.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return runs[0], nil
}

// ListRuns returns up to n runs, newest first. n <= 0 means all.
func (db *DB) ListRuns(n int) ([]*Run, error) {
	query := `
		SELECT id, mode, started_at, duration_ms, root_hash,
			files_indexed, nodes_extracted, patterns_discovered,
			relationships_identified, concepts_extracted,
			data_flows_discovered, data_flow_paths_identified,
			dependencies_discovered, memory_usage_bytes
		FROM runs
		ORDER BY started_at DESC, id
	`
	var rows *sql.Rows
	var err error
	if n > 0 {
		rows, err = db.conn.Query(query+" LIMIT ?", n)
	} else {
		rows, err = db.conn.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var startedAt string
		if err := rows.Scan(
			&r.ID, &r.Mode, &startedAt, &r.DurationMs, &r.RootHash,
			&r.Stats.FilesIndexed, &r.Stats.NodesExtracted, &r.Stats.PatternsDiscovered,
			&r.Stats.RelationshipsIdentified, &r.Stats.ConceptsExtracted,
			&r.Stats.DataFlowsDiscovered, &r.Stats.DataFlowPathsIdentified,
			&r.Stats.DependenciesDiscovered, &r.Stats.MemoryUsageBytes,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", startedAt, err)
		}
		r.Stats.TimeTakenMs = r.DurationMs
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// CountRuns returns how many runs are recorded.
func (db *DB) CountRuns() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
