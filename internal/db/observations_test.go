package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudu-data/corridor.watch/internal/track"
)

func obs(id string, lat, lon, speed float64, ts time.Time) track.Snapshot {
	return track.Snapshot{
		ID:        id,
		Kind:      track.KindAnimal,
		Position:  track.Position{Lat: lat, Lon: lon},
		SpeedKmh:  speed,
		Timestamp: ts,
	}
}

func TestRecordObservationsAndTrail(t *testing.T) {
	t.Parallel()

	database := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, database.RecordObservations([]track.Snapshot{
		obs("elephant-07", -2.65, 37.25, 3.0, now.Add(-2*time.Hour)),
		obs("elephant-07", -2.66, 37.26, 3.5, now.Add(-time.Hour)),
		obs("elephant-07", -2.67, 37.27, 4.0, now),
		obs("ranger-2", -2.60, 37.20, 5.0, now),
	}))

	trail, err := database.Trail("elephant-07", 24, 0)
	require.NoError(t, err)
	assert.Equal(t, "elephant-07", trail.EntityID)
	require.Len(t, trail.Points, 3)

	// Oldest first.
	assert.True(t, trail.Points[0].Timestamp.Before(trail.Points[2].Timestamp))
	assert.Equal(t, -2.65, trail.Points[0].Lat)
}

func TestTrail_WindowAndCap(t *testing.T) {
	t.Parallel()

	database := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, database.RecordObservations([]track.Snapshot{
		obs("e1", 1, 1, 0, now.Add(-48*time.Hour)), // outside the window
		obs("e1", 2, 2, 0, now.Add(-2*time.Hour)),
		obs("e1", 3, 3, 0, now.Add(-time.Hour)),
		obs("e1", 4, 4, 0, now),
	}))

	trail, err := database.Trail("e1", 24, 0)
	require.NoError(t, err)
	assert.Len(t, trail.Points, 3, "48h-old point excluded from a 24h window")

	capped, err := database.Trail("e1", 24, 2)
	require.NoError(t, err)
	assert.Len(t, capped.Points, 2)
}

func TestTrail_UnknownEntityIsEmpty(t *testing.T) {
	t.Parallel()

	database := setupTestDB(t)
	trail, err := database.Trail("nobody", 24, 0)
	require.NoError(t, err)
	assert.Empty(t, trail.Points)
}

func TestStats(t *testing.T) {
	t.Parallel()

	database := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	// Four points heading north, 0.01 deg (~1.11 km) apart.
	var snaps []track.Snapshot
	speeds := []float64{1, 2, 3, 4}
	for i, sp := range speeds {
		snaps = append(snaps, obs("elephant-07", -2.65+float64(i)*0.01, 37.25, sp,
			now.Add(time.Duration(i-3)*time.Hour)))
	}
	require.NoError(t, database.RecordObservations(snaps))

	stats, err := database.Stats("elephant-07", 24)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalPoints)
	assert.InDelta(t, 3.33, stats.DistanceKm, 0.05)
	assert.InDelta(t, 2.0, stats.SpeedP50, 1.0)
	assert.GreaterOrEqual(t, stats.SpeedP98, stats.SpeedP85)
	assert.GreaterOrEqual(t, stats.SpeedP85, stats.SpeedP50)
	assert.False(t, stats.Start.IsZero())
	assert.True(t, stats.End.After(stats.Start))
}

func TestStats_EmptyWindow(t *testing.T) {
	t.Parallel()

	database := setupTestDB(t)
	stats, err := database.Stats("nobody", 24)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPoints)
	assert.Zero(t, stats.DistanceKm)
}

func TestEntityIDs(t *testing.T) {
	t.Parallel()

	database := setupTestDB(t)
	now := time.Now().UTC()

	require.NoError(t, database.RecordObservations([]track.Snapshot{
		obs("b", 1, 1, 0, now),
		obs("a", 1, 1, 0, now),
		obs("b", 2, 2, 0, now),
	}))

	ids, err := database.EntityIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestRecordObservations_BatteryRoundTrip(t *testing.T) {
	t.Parallel()

	database := setupTestDB(t)
	now := time.Now().UTC()

	battery := 72.5
	s := obs("e1", 1, 1, 0, now)
	s.Battery = &battery
	require.NoError(t, database.RecordObservations([]track.Snapshot{s}))

	var got float64
	require.NoError(t, database.QueryRow(
		`SELECT battery FROM observations WHERE entity_id = 'e1'`).Scan(&got))
	assert.Equal(t, 72.5, got)
}
