package alert

import (
	"fmt"
	"sync"
	"time"
)

// Reconciler exclusively owns the in-memory alert list. Poll and push batches
// funnel through Merge; status changes go through Transition. Readers get
// copies, never a reference into the internal slice.
//
// Ordering contract: most recent first. New alerts are prepended; merging
// never reorders existing entries.
type Reconciler struct {
	mu     sync.RWMutex
	alerts []Alert
	index  map[string]int
}

// NewReconciler creates an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{index: make(map[string]int)}
}

// Merge folds a batch from the given origin into the held list and reports
// whether anything changed. The dedup key is the id alone: an alert already
// held is never duplicated regardless of which transport delivered it again.
func (r *Reconciler) Merge(batch []Alert, origin Origin) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, in := range batch {
		if in.ID == "" {
			continue
		}
		in.Source = origin
		if in.Status == "" {
			in.Status = StatusActive
		}
		if in.StatusChangedAt.IsZero() {
			in.StatusChangedAt = in.DetectedAt
		}

		i, ok := r.index[in.ID]
		if !ok {
			r.prepend(in)
			changed = true
			continue
		}
		if r.mergeExisting(i, in) {
			changed = true
		}
	}
	return changed
}

// mergeExisting reconciles a re-delivered alert against the held copy.
// The server's status wins over local optimism only when it is not older
// than the local state; resolved never regresses through a merge.
func (r *Reconciler) mergeExisting(i int, in Alert) bool {
	held := r.alerts[i]
	changed := false

	if held.Title != in.Title || held.Message != in.Message || held.Severity != in.Severity {
		held.Title = in.Title
		held.Message = in.Message
		held.Severity = in.Severity
		changed = true
	}

	if in.Status != held.Status &&
		!in.StatusChangedAt.Before(held.StatusChangedAt) &&
		!(held.Status == StatusResolved) {
		held.Status = in.Status
		held.StatusChangedAt = in.StatusChangedAt
		changed = true
	}

	if changed {
		r.alerts[i] = held
	}
	return changed
}

// prepend inserts a new alert at the head (most-recent-first display order).
func (r *Reconciler) prepend(in Alert) {
	r.alerts = append([]Alert{in}, r.alerts...)
	for id := range r.index {
		r.index[id]++
	}
	r.index[in.ID] = 0
}

// Transition applies an explicit lifecycle move at the given time.
// Regressions fail with ErrInvalidTransition and leave the alert unchanged.
func (r *Reconciler) Transition(id string, next Status, at time.Time) (Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return Alert{}, fmt.Errorf("%w: %s", ErrUnknownAlert, id)
	}
	if !next.IsValid() {
		return Alert{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}

	held := r.alerts[i]
	if !held.Status.CanTransition(next) {
		return held, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, held.Status, next)
	}

	held.Status = next
	held.StatusChangedAt = at
	r.alerts[i] = held
	return held, nil
}

// Acknowledge moves an active alert to acknowledged.
func (r *Reconciler) Acknowledge(id string, at time.Time) (Alert, error) {
	return r.Transition(id, StatusAcknowledged, at)
}

// Get returns a copy of the alert with the given id.
func (r *Reconciler) Get(id string) (Alert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return Alert{}, false
	}
	return r.alerts[i], true
}

// Snapshot returns a copy of the alert list, most recent first. An optional
// status filters the result.
func (r *Reconciler) Snapshot(filter Status) []Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		if filter != "" && a.Status != filter {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Counts tallies lifecycle states in a single fresh pass over the held list,
// never incrementally, so the numbers always reflect one consistent snapshot.
func (r *Reconciler) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var c Counts
	for _, a := range r.alerts {
		switch a.Status {
		case StatusActive:
			c.Active++
		case StatusAcknowledged:
			c.Acknowledged++
		case StatusInvestigating:
			c.Investigating++
		case StatusResolved:
			c.Resolved++
		}
	}
	c.Total = len(r.alerts)
	return c
}
