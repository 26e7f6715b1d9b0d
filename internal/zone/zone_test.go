package zone

import (
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amboseli() Definition {
	return Definition{
		ID:     "amboseli",
		Name:   "Amboseli NP",
		Kind:   KindSafe,
		Bounds: [][]float64{{-2.75, 37.15}, {-2.55, 37.35}},
	}
}

func poachingHotspot() Definition {
	return Definition{
		ID:        "hotspot-1",
		Name:      "Northern boundary hotspot",
		Kind:      KindConflict,
		Category:  "poaching",
		RiskLevel: RiskHigh,
		BufferKm:  5,
		Bounds:    [][]float64{{-2.40, 37.10}, {-2.30, 37.20}},
	}
}

func kimanaCorridor() Definition {
	return Definition{
		ID:          "kimana",
		Name:        "Kimana corridor",
		Kind:        KindCorridor,
		ToleranceKm: 2,
		Path:        [][]float64{{-2.70, 37.40}, {-2.65, 37.50}, {-2.60, 37.60}},
	}
}

func testIndex(t *testing.T) *Index {
	t.Helper()
	ix := BuildIndex([]Definition{amboseli(), poachingHotspot(), kimanaCorridor()})
	require.Equal(t, 3, ix.Len())
	return ix
}

func TestZone_BoundsContainment(t *testing.T) {
	t.Parallel()

	ix := testIndex(t)

	// orb points are {lon, lat}.
	inside := orb.Point{37.25, -2.65}
	got := ix.FirstSafeContaining(inside)
	require.NotNil(t, got)
	assert.Equal(t, "Amboseli NP", got.Name)

	outside := orb.Point{36.0, -1.0}
	assert.Nil(t, ix.FirstSafeContaining(outside))
}

func TestZone_ConflictBufferDistance(t *testing.T) {
	t.Parallel()

	ix := testIndex(t)

	// Inside the hotspot: distance zero.
	z, d := ix.FirstConflictWithinBuffer(orb.Point{37.15, -2.35})
	require.NotNil(t, z)
	assert.Equal(t, 0.0, d)

	// Just south of the hotspot's southern edge (-2.40): about 3.3 km,
	// within the 5 km buffer.
	z, d = ix.FirstConflictWithinBuffer(orb.Point{37.15, -2.43})
	require.NotNil(t, z)
	assert.InDelta(t, 3.3, d, 0.2)

	// Far away: no match.
	z, _ = ix.FirstConflictWithinBuffer(orb.Point{38.5, -3.5})
	assert.Nil(t, z)
}

func TestZone_CorridorTolerance(t *testing.T) {
	t.Parallel()

	ix := testIndex(t)

	onPath := orb.Point{37.50, -2.65}
	require.NotNil(t, ix.FirstCorridorWithin(onPath, 2))

	// ~0.05 degrees of latitude off the path midpoint is ~5.5 km, beyond
	// the 2 km tolerance.
	offPath := orb.Point{37.50, -2.60}
	assert.Nil(t, ix.FirstCorridorWithin(offPath, 2))
}

func TestDefinition_BuildValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		def  Definition
	}{
		{"missing id", Definition{Kind: KindSafe, Bounds: [][]float64{{0, 0}, {1, 1}}}},
		{"unknown kind", Definition{ID: "x", Kind: "reserve"}},
		{"no geometry", Definition{ID: "x", Kind: KindSafe}},
		{"short corridor", Definition{ID: "x", Kind: KindCorridor, Path: [][]float64{{0, 0}}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.def.Build()
			assert.Error(t, err)
		})
	}
}

func TestBuildIndex_SkipsBadDefinitions(t *testing.T) {
	t.Parallel()

	ix := BuildIndex([]Definition{amboseli(), {ID: "broken", Kind: KindSafe}})
	assert.Equal(t, 1, ix.Len())
	assert.Len(t, ix.Definitions(), 1)
}

func TestHandle_SwapIsAtomicUnderReaders(t *testing.T) {
	t.Parallel()

	h := NewHandle(BuildIndex([]Definition{amboseli()}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Swap(BuildIndex([]Definition{amboseli(), poachingHotspot()}))
		}()
		go func() {
			defer wg.Done()
			ix := h.Load()
			// The view is either the old or the new set, never partial.
			n := ix.Len()
			if n != 1 && n != 2 {
				t.Errorf("unexpected zone count %d", n)
			}
		}()
	}
	wg.Wait()
}

func TestHandle_NilIndexBecomesEmpty(t *testing.T) {
	t.Parallel()

	h := NewHandle(nil)
	require.NotNil(t, h.Load())
	assert.Equal(t, 0, h.Load().Len())

	h.Swap(nil)
	assert.Equal(t, 0, h.Load().Len())
}
