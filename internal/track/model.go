// Package track holds the reconciled live view of tracked entities: the
// snapshot model, the merge algorithm, and a thread-safe store of the current
// entity set.
package track

import "time"

// Kind distinguishes the two classes of tracked subject.
type Kind string

const (
	KindAnimal Kind = "animal"
	KindRanger Kind = "ranger"
)

// IsValid reports whether k is a known entity kind.
func (k Kind) IsValid() bool {
	return k == KindAnimal || k == KindRanger
}

// Position is a WGS84 coordinate pair in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether the position is the unset/degenerate origin.
func (p Position) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

// Snapshot is one tracked subject at a point in time. ID is stable across
// updates and unique within a kind.
type Snapshot struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Position   Position  `json:"position"`
	SpeedKmh   float64   `json:"speed_kmh"`
	HeadingDeg float64   `json:"heading_deg,omitempty"`
	Activity   string    `json:"activity_state,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Battery    *float64  `json:"battery_level,omitempty"`

	// Predicted is the upstream-supplied predicted position, when the feed
	// provides one. Dead-reckoning fills the gap when it is nil or degenerate.
	Predicted *Position `json:"predicted_position,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Battery != nil {
		b := *s.Battery
		out.Battery = &b
	}
	if s.Predicted != nil {
		p := *s.Predicted
		out.Predicted = &p
	}
	return out
}

// TrailPoint is one historical position sample.
type TrailPoint struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

// Trail is an immutable historical movement path for one entity.
type Trail struct {
	EntityID string       `json:"entity_id"`
	Points   []TrailPoint `json:"points"`
}

// TotalPoints returns the number of samples in the trail.
func (t Trail) TotalPoints() int {
	return len(t.Points)
}

// TimeRange returns the first and last sample timestamps. Zero times are
// returned for an empty trail.
func (t Trail) TimeRange() (start, end time.Time) {
	if len(t.Points) == 0 {
		return time.Time{}, time.Time{}
	}
	return t.Points[0].Timestamp, t.Points[len(t.Points)-1].Timestamp
}
