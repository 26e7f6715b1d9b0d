// Package db persists observations, alerts and zone definitions to SQLite.
// The live pipeline never reads from here; the database feeds trail queries,
// playback and offline analysis.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. The inline schema keeps a fresh database usable without a
// migrations directory; versioned migrations layer on top for upgrades.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	// modernc sqlite is single-writer; serialise access instead of surfacing
	// SQLITE_BUSY to callers.
	sqldb.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	if _, err := sqldb.Exec(schema); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{sqldb}, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS observations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id   TEXT NOT NULL,
		kind        TEXT NOT NULL,
		lat         DOUBLE NOT NULL,
		lon         DOUBLE NOT NULL,
		speed_kmh   DOUBLE NOT NULL DEFAULT 0,
		heading_deg DOUBLE NOT NULL DEFAULT 0,
		activity    TEXT,
		battery     DOUBLE,
		timestamp   TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_observations_entity_time
		ON observations (entity_id, timestamp);

	CREATE TABLE IF NOT EXISTS alerts (
		id                TEXT PRIMARY KEY,
		title             TEXT,
		message           TEXT,
		severity          TEXT,
		status            TEXT NOT NULL,
		detected_at       TIMESTAMP NOT NULL,
		entity_id         TEXT,
		source            TEXT,
		status_changed_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS zones (
		id         TEXT PRIMARY KEY,
		definition TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
`
