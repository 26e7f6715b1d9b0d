package db

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"

	"github.com/kudu-data/corridor.watch/internal/geo"
	"github.com/kudu-data/corridor.watch/internal/track"
)

// RecordObservations appends accepted position records in one transaction.
func (db *DB) RecordObservations(snaps []track.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning observation tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO observations
			(entity_id, kind, lat, lon, speed_kmh, heading_deg, activity, battery, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing observation insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range snaps {
		var battery sql.NullFloat64
		if s.Battery != nil {
			battery = sql.NullFloat64{Float64: *s.Battery, Valid: true}
		}
		if _, err := stmt.Exec(
			s.ID, string(s.Kind), s.Position.Lat, s.Position.Lon,
			s.SpeedKmh, s.HeadingDeg, s.Activity, battery, s.Timestamp.UTC(),
		); err != nil {
			return fmt.Errorf("inserting observation for %s: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

// Trail returns the recorded path for one entity over the trailing window,
// oldest point first. maxPoints <= 0 means no cap.
func (db *DB) Trail(entityID string, hours int, maxPoints int) (track.Trail, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	q := `
		SELECT lat, lon, timestamp FROM observations
		WHERE entity_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC`
	args := []any{entityID, since}
	if maxPoints > 0 {
		q += ` LIMIT ?`
		args = append(args, maxPoints)
	}

	rows, err := db.Query(q, args...)
	if err != nil {
		return track.Trail{}, fmt.Errorf("querying trail for %s: %w", entityID, err)
	}
	defer rows.Close()

	trail := track.Trail{EntityID: entityID}
	for rows.Next() {
		var p track.TrailPoint
		if err := rows.Scan(&p.Lat, &p.Lon, &p.Timestamp); err != nil {
			return track.Trail{}, fmt.Errorf("scanning trail point: %w", err)
		}
		trail.Points = append(trail.Points, p)
	}
	return trail, rows.Err()
}

// TrailStats summarises one entity's recorded movement: total distance along
// the path and speed percentiles over the window.
type TrailStats struct {
	EntityID    string  `json:"entity_id"`
	TotalPoints int     `json:"total_points"`
	DistanceKm  float64 `json:"distance_km"`
	SpeedP50    float64 `json:"speed_p50_kmh"`
	SpeedP85    float64 `json:"speed_p85_kmh"`
	SpeedP98    float64 `json:"speed_p98_kmh"`

	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Stats computes trail statistics for one entity over the trailing window.
func (db *DB) Stats(entityID string, hours int) (TrailStats, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	rows, err := db.Query(`
		SELECT lat, lon, speed_kmh, timestamp FROM observations
		WHERE entity_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC`, entityID, since)
	if err != nil {
		return TrailStats{}, fmt.Errorf("querying stats for %s: %w", entityID, err)
	}
	defer rows.Close()

	stats := TrailStats{EntityID: entityID}
	var path []orb.Point
	var speeds []float64
	for rows.Next() {
		var lat, lon, speed float64
		var ts time.Time
		if err := rows.Scan(&lat, &lon, &speed, &ts); err != nil {
			return TrailStats{}, fmt.Errorf("scanning stats row: %w", err)
		}
		path = append(path, orb.Point{lon, lat})
		speeds = append(speeds, speed)
		if stats.Start.IsZero() {
			stats.Start = ts
		}
		stats.End = ts
	}
	if err := rows.Err(); err != nil {
		return TrailStats{}, err
	}

	stats.TotalPoints = len(path)
	if len(path) == 0 {
		return stats, nil
	}

	stats.DistanceKm = geo.PathLengthKm(path)

	sort.Float64s(speeds)
	stats.SpeedP50 = stat.Quantile(0.50, stat.Empirical, speeds, nil)
	stats.SpeedP85 = stat.Quantile(0.85, stat.Empirical, speeds, nil)
	stats.SpeedP98 = stat.Quantile(0.98, stat.Empirical, speeds, nil)
	return stats, nil
}

// EntityIDs lists the entities with at least one recorded observation.
func (db *DB) EntityIDs() ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT entity_id FROM observations ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("querying entity ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
