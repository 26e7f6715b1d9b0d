package track

import "sync"

// Store owns the reconciled live entity set. All mutation goes through Apply,
// which runs the merge atomically; readers receive deep copies, never a
// reference into internal storage.
type Store struct {
	mu         sync.RWMutex
	entities   []Snapshot
	epsilonDeg float64
}

// NewStore creates an empty store with the given movement noise floor.
// Passing zero uses PositionEpsilonDeg.
func NewStore(epsilonDeg float64) *Store {
	if epsilonDeg <= 0 {
		epsilonDeg = PositionEpsilonDeg
	}
	return &Store{epsilonDeg: epsilonDeg}
}

// Apply merges a batch into the current set and reports whether the view
// changed, along with the records that were actually accepted.
func (s *Store) Apply(batch []Snapshot) (changed bool, applied []Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, changed, applied := Reconcile(s.entities, batch, s.epsilonDeg)
	if changed {
		s.entities = merged
	}
	return changed, applied
}

// Snapshot returns a deep copy of the current entity set.
func (s *Store) Snapshot() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, len(s.entities))
	for i, e := range s.entities {
		out[i] = e.Clone()
	}
	return out
}

// ByKind returns a deep copy of entities of the given kind, in view order.
func (s *Store) ByKind(k Kind) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Snapshot
	for _, e := range s.entities {
		if e.Kind == k {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Get returns a copy of the entity with the given id.
func (s *Store) Get(id string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entities {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return Snapshot{}, false
}

// Len returns the number of tracked entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}
