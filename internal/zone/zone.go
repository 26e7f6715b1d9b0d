// Package zone holds the geofence reference data: named regions classified as
// safe areas, conflict zones, or wildlife corridors, with point tests used by
// risk classification. Zones are read-mostly; the index is immutable once
// built and refreshed by atomic swap.
package zone

import (
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/kudu-data/corridor.watch/internal/geo"
)

// Kind classifies a zone.
type Kind string

const (
	KindSafe     Kind = "safe"
	KindConflict Kind = "conflict"
	KindCorridor Kind = "corridor"
)

// RiskLevel grades a conflict zone. An empty level is treated as high:
// a conflict zone with no grading must not soften the verdict.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// AtLeastHigh reports whether the level warrants the strongest verdict.
func (r RiskLevel) AtLeastHigh() bool {
	return r == RiskHigh || r == RiskCritical || r == ""
}

// Zone is one named geofence. Safe and conflict zones carry a polygon
// boundary; corridors carry a path with a tolerance.
type Zone struct {
	ID       string
	Name     string
	Kind     Kind
	Category string

	// Conflict zones only.
	RiskLevel RiskLevel
	BufferKm  float64

	// Corridors only. Zero means "use the configured default".
	ToleranceKm float64

	Boundary orb.Polygon
	Path     orb.LineString
}

// Contains reports whether p falls inside the zone boundary.
func (z *Zone) Contains(p orb.Point) bool {
	if len(z.Boundary) == 0 {
		return false
	}
	return planar.PolygonContains(z.Boundary, p)
}

// DistanceKm returns the distance from p to the zone: zero when p is inside
// the boundary, otherwise the distance to the nearest boundary segment.
func (z *Zone) DistanceKm(p orb.Point) float64 {
	if z.Contains(p) {
		return 0
	}
	min := -1.0
	for _, ring := range z.Boundary {
		if d := geo.PointRingKm(p, ring); min < 0 || d < min {
			min = d
		}
	}
	if min < 0 {
		return geo.PointLineKm(p, z.Path)
	}
	return min
}

// Index is an immutable set of zones. Lookup order follows build order, which
// keeps classification deterministic when zones overlap by misconfiguration.
type Index struct {
	zones []Zone
	defs  []Definition
}

// NewIndex builds an index over the given zones.
func NewIndex(zones []Zone, defs []Definition) *Index {
	own := make([]Zone, len(zones))
	copy(own, zones)
	ownDefs := make([]Definition, len(defs))
	copy(ownDefs, defs)
	return &Index{zones: own, defs: ownDefs}
}

// Len returns the number of zones in the index.
func (ix *Index) Len() int {
	return len(ix.zones)
}

// Definitions returns the source definitions the index was built from.
func (ix *Index) Definitions() []Definition {
	out := make([]Definition, len(ix.defs))
	copy(out, ix.defs)
	return out
}

// FirstSafeContaining returns the first safe zone whose boundary contains p.
func (ix *Index) FirstSafeContaining(p orb.Point) *Zone {
	for i := range ix.zones {
		z := &ix.zones[i]
		if z.Kind == KindSafe && z.Contains(p) {
			return z
		}
	}
	return nil
}

// FirstConflictWithinBuffer returns the first conflict zone whose buffer
// reaches p, along with the measured distance.
func (ix *Index) FirstConflictWithinBuffer(p orb.Point) (*Zone, float64) {
	for i := range ix.zones {
		z := &ix.zones[i]
		if z.Kind != KindConflict {
			continue
		}
		if d := z.DistanceKm(p); d <= z.BufferKm {
			return z, d
		}
	}
	return nil, 0
}

// FirstCorridorWithin returns the first corridor whose path lies within the
// zone's tolerance of p. Corridors without their own tolerance use fallbackKm.
func (ix *Index) FirstCorridorWithin(p orb.Point, fallbackKm float64) *Zone {
	for i := range ix.zones {
		z := &ix.zones[i]
		if z.Kind != KindCorridor {
			continue
		}
		tol := z.ToleranceKm
		if tol <= 0 {
			tol = fallbackKm
		}
		if geo.PointLineKm(p, z.Path) <= tol {
			return z
		}
	}
	return nil
}

// Handle is an atomically swappable reference to the current index. Readers
// never observe a half-updated zone set.
type Handle struct {
	v atomic.Pointer[Index]
}

// NewHandle creates a handle pointing at the given index. A nil index is
// replaced with an empty one.
func NewHandle(ix *Index) *Handle {
	if ix == nil {
		ix = NewIndex(nil, nil)
	}
	h := &Handle{}
	h.v.Store(ix)
	return h
}

// Load returns the current index.
func (h *Handle) Load() *Index {
	return h.v.Load()
}

// Swap replaces the current index in one step.
func (h *Handle) Swap(ix *Index) {
	if ix == nil {
		ix = NewIndex(nil, nil)
	}
	h.v.Store(ix)
}
