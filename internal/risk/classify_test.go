package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudu-data/corridor.watch/internal/track"
	"github.com/kudu-data/corridor.watch/internal/zone"
)

func testIndex() *zone.Index {
	return zone.BuildIndex([]zone.Definition{
		{
			ID:     "amboseli",
			Name:   "Amboseli NP",
			Kind:   zone.KindSafe,
			Bounds: [][]float64{{-2.75, 37.15}, {-2.55, 37.35}},
		},
		{
			ID:        "hotspot-1",
			Name:      "Northern boundary hotspot",
			Kind:      zone.KindConflict,
			Category:  "poaching",
			RiskLevel: zone.RiskHigh,
			BufferKm:  5,
			Bounds:    [][]float64{{-2.40, 37.10}, {-2.30, 37.20}},
		},
		{
			ID:        "farmland-2",
			Name:      "Kimana farmland edge",
			Kind:      zone.KindConflict,
			Category:  "human-wildlife conflict",
			RiskLevel: zone.RiskModerate,
			BufferKm:  3,
			Bounds:    [][]float64{{-2.90, 37.50}, {-2.80, 37.60}},
		},
		{
			ID:          "kimana",
			Name:        "Kimana corridor",
			Kind:        zone.KindCorridor,
			ToleranceKm: 2,
			Path:        [][]float64{{-3.10, 37.40}, {-3.05, 37.50}, {-3.00, 37.60}},
		},
	})
}

func TestClassify_UnknownPosition(t *testing.T) {
	t.Parallel()

	got := New().Classify(track.Position{}, testIndex())
	assert.Equal(t, LevelUnknown, got.Level)
	assert.Empty(t, got.MatchedZone)
}

func TestClassify_InsideSafeZone(t *testing.T) {
	t.Parallel()

	got := New().Classify(track.Position{Lat: -2.65, Lon: 37.25}, testIndex())
	assert.Equal(t, LevelSafe, got.Level)
	assert.Equal(t, "Amboseli NP", got.MatchedZone)
}

func TestClassify_ConflictZoneBuffer(t *testing.T) {
	t.Parallel()

	t.Run("high risk level escalates to danger", func(t *testing.T) {
		t.Parallel()
		got := New().Classify(track.Position{Lat: -2.35, Lon: 37.15}, testIndex())
		assert.Equal(t, LevelDanger, got.Level)
		assert.Equal(t, "Northern boundary hotspot", got.MatchedZone)
		assert.Equal(t, "poaching", got.ThreatType)
	})

	t.Run("sub-high risk level softens to caution", func(t *testing.T) {
		t.Parallel()
		got := New().Classify(track.Position{Lat: -2.85, Lon: 37.55}, testIndex())
		assert.Equal(t, LevelCaution, got.Level)
		assert.Equal(t, "Kimana farmland edge", got.MatchedZone)
		assert.Equal(t, "human-wildlife conflict", got.ThreatType)
	})

	t.Run("ungraded conflict zone is treated as high", func(t *testing.T) {
		t.Parallel()
		ix := zone.BuildIndex([]zone.Definition{{
			ID:       "ungraded",
			Name:     "Ungraded zone",
			Kind:     zone.KindConflict,
			BufferKm: 5,
			Bounds:   [][]float64{{0.0, 0.0}, {0.1, 0.1}},
		}})
		got := New().Classify(track.Position{Lat: 0.05, Lon: 0.05}, ix)
		assert.Equal(t, LevelDanger, got.Level)
	})
}

func TestClassify_CorridorIsSafe(t *testing.T) {
	t.Parallel()

	got := New().Classify(track.Position{Lat: -3.05, Lon: 37.50}, testIndex())
	assert.Equal(t, LevelSafe, got.Level)
	assert.Equal(t, "Kimana corridor", got.MatchedZone)
}

func TestClassify_DefaultsToCaution(t *testing.T) {
	t.Parallel()

	got := New().Classify(track.Position{Lat: 10, Lon: 10}, testIndex())
	assert.Equal(t, LevelCaution, got.Level)
	assert.Empty(t, got.MatchedZone)
	assert.Equal(t, "near human settlement / unclassified area", got.Reason)
}

func TestClassify_EmptyIndexNeverSaysSafe(t *testing.T) {
	t.Parallel()

	got := New().Classify(track.Position{Lat: -2.65, Lon: 37.25}, zone.NewIndex(nil, nil))
	assert.Equal(t, LevelCaution, got.Level)

	got = New().Classify(track.Position{Lat: -2.65, Lon: 37.25}, nil)
	assert.Equal(t, LevelCaution, got.Level)
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	c := New()
	ix := testIndex()
	pos := track.Position{Lat: -2.35, Lon: 37.15}

	first := c.Classify(pos, ix)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, c.Classify(pos, ix))
	}
}
