package db

import (
	"fmt"
	"time"

	"github.com/kudu-data/corridor.watch/internal/alert"
)

// RecordAlerts upserts alerts by id. Last write wins; the in-memory
// reconciler has already applied the lifecycle rules by the time anything
// reaches here.
func (db *DB) RecordAlerts(alerts []alert.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning alert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO alerts
			(id, title, message, severity, status, detected_at, entity_id, source, status_changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			message = excluded.message,
			severity = excluded.severity,
			status = excluded.status,
			entity_id = excluded.entity_id,
			source = excluded.source,
			status_changed_at = excluded.status_changed_at`)
	if err != nil {
		return fmt.Errorf("preparing alert upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range alerts {
		if _, err := stmt.Exec(
			a.ID, a.Title, a.Message, string(a.Severity), string(a.Status),
			a.DetectedAt.UTC(), a.EntityID, string(a.Source), a.StatusChangedAt.UTC(),
		); err != nil {
			return fmt.Errorf("upserting alert %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// Alerts returns stored alerts, most recently detected first.
func (db *DB) Alerts() ([]alert.Alert, error) {
	rows, err := db.Query(`
		SELECT id, title, message, severity, status, detected_at, entity_id, source, status_changed_at
		FROM alerts ORDER BY detected_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		var a alert.Alert
		var severity, status, source string
		var detected, changed time.Time
		if err := rows.Scan(&a.ID, &a.Title, &a.Message, &severity, &status,
			&detected, &a.EntityID, &source, &changed); err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		a.Severity = alert.Severity(severity)
		a.Status = alert.Status(status)
		a.Source = alert.Origin(source)
		a.DetectedAt = detected
		a.StatusChangedAt = changed
		out = append(out, a)
	}
	return out, rows.Err()
}
