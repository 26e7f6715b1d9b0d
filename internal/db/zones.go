package db

import (
	"encoding/json"
	"fmt"

	"github.com/kudu-data/corridor.watch/internal/zone"
)

// RecordZones replaces the stored zone layer with the given set. The layer is
// small and refreshed as a unit, so replace-all keeps deletions upstream from
// leaving ghosts behind.
func (db *DB) RecordZones(defs []zone.Definition) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning zone tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM zones`); err != nil {
		return fmt.Errorf("clearing zones: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO zones (id, definition) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing zone insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range defs {
		blob, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encoding zone %s: %w", d.ID, err)
		}
		if _, err := stmt.Exec(d.ID, string(blob)); err != nil {
			return fmt.Errorf("inserting zone %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// Zones loads the stored zone layer, for startup before the first upstream
// refresh succeeds.
func (db *DB) Zones() ([]zone.Definition, error) {
	rows, err := db.Query(`SELECT definition FROM zones ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	var out []zone.Definition
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scanning zone row: %w", err)
		}
		var d zone.Definition
		if err := json.Unmarshal([]byte(blob), &d); err != nil {
			return nil, fmt.Errorf("decoding stored zone: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
