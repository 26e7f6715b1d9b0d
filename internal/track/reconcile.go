package track

import "math"

// PositionEpsilonDeg is the default movement noise floor in degrees,
// roughly eleven metres. Updates that move less than this and change no
// other field are ignored so callers do not re-render on jitter.
const PositionEpsilonDeg = 1e-4

// Reconcile merges an incoming batch of snapshots into the previous entity
// set and reports whether anything observable changed.
//
// Rules:
//   - entities are keyed by ID; unseen IDs are appended in batch order
//   - an update older than the held record for the same ID is dropped
//   - an update within epsilon of the held position with no other field
//     change keeps the held record verbatim
//   - entities absent from the batch are retained as stale-but-last-known
//   - held entities keep their relative order (stable map update)
//
// The returned applied slice holds the records that were inserted or
// replaced, for callers that persist accepted observations.
func Reconcile(previous, incoming []Snapshot, epsilonDeg float64) (merged []Snapshot, changed bool, applied []Snapshot) {
	if epsilonDeg <= 0 {
		epsilonDeg = PositionEpsilonDeg
	}

	merged = make([]Snapshot, len(previous))
	copy(merged, previous)

	index := make(map[string]int, len(previous))
	for i, s := range previous {
		index[s.ID] = i
	}

	for _, in := range incoming {
		i, ok := index[in.ID]
		if !ok {
			index[in.ID] = len(merged)
			merged = append(merged, in)
			applied = append(applied, in)
			changed = true
			continue
		}

		held := merged[i]
		if in.Timestamp.Before(held.Timestamp) {
			// Out-of-order update: drop, never regress.
			continue
		}
		if positionDelta(held.Position, in.Position) <= epsilonDeg && sameAux(held, in) {
			// Movement below the noise floor and nothing else changed.
			continue
		}

		merged[i] = in
		applied = append(applied, in)
		changed = true
	}

	return merged, changed, applied
}

// positionDelta is the Euclidean distance between two positions in degrees.
func positionDelta(a, b Position) float64 {
	dLat := a.Lat - b.Lat
	dLon := a.Lon - b.Lon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// sameAux compares every field that is not the position or the sample
// timestamp. A change in any of these forces the update through even when
// the position moved less than epsilon.
func sameAux(a, b Snapshot) bool {
	if a.Kind != b.Kind || a.SpeedKmh != b.SpeedKmh || a.HeadingDeg != b.HeadingDeg || a.Activity != b.Activity {
		return false
	}
	if !samePtr(a.Battery, b.Battery) {
		return false
	}
	if (a.Predicted == nil) != (b.Predicted == nil) {
		return false
	}
	if a.Predicted != nil && *a.Predicted != *b.Predicted {
		return false
	}
	return true
}

func samePtr(a, b *float64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}
