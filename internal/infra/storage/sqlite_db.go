package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DBOptions tunes the connection pool.
type DBOptions struct {
	MaxOpen int
	MaxIdle int
}

// InitSQLite opens (creating if needed) the run database and its schema.
func InitSQLite(dbPath string, opts DBOptions) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, oops.Wrapf(err, "create database directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, oops.Wrapf(err, "open sqlite database %s", dbPath)
	}
	if opts.MaxOpen > 0 {
		db.SetMaxOpenConns(opts.MaxOpen)
	}
	if opts.MaxIdle > 0 {
		db.SetMaxIdleConns(opts.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, oops.Wrapf(err, "ping sqlite database %s", dbPath)
	}
	if err := createSchemas(db); err != nil {
		_ = db.Close()
		return nil, oops.Wrapf(err, "create schemas")
	}
	return db, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT,
			ticks INTEGER NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			sim_time TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			summary TEXT NOT NULL,
			payload TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_events_actor ON events(run_id, actor_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_tick ON events(run_id, tick);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			sim_time TEXT NOT NULL,
			label TEXT NOT NULL,
			duration_ns INTEGER NOT NULL,
			positions TEXT NOT NULL,
			PRIMARY KEY (run_id, tick),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			agent TEXT NOT NULL,
			busy INTEGER NOT NULL DEFAULT 0,
			decision TEXT,
			success INTEGER NOT NULL DEFAULT 0,
			message TEXT NOT NULL,
			locked INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, tick, agent),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);`,
		`CREATE TABLE IF NOT EXISTS object_snapshots (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			object_id TEXT NOT NULL,
			name TEXT NOT NULL,
			location_id TEXT NOT NULL,
			state TEXT NOT NULL,
			description TEXT NOT NULL,
			mechanics TEXT NOT NULL,
			internal_state TEXT NOT NULL,
			PRIMARY KEY (run_id, tick, object_id),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}
