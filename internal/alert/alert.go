// Package alert merges alerts arriving from periodic polls and the live push
// channel into one deduplicated, ordered list, and tracks each alert's
// lifecycle state.
package alert

import (
	"errors"
	"time"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Status is an alert's lifecycle state. Transitions only move forward;
// resolved is absorbing.
type Status string

const (
	StatusActive        Status = "active"
	StatusAcknowledged  Status = "acknowledged"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
)

// statusRank orders the lifecycle. Transitions to a lower or equal rank are
// regressions and rejected.
var statusRank = map[Status]int{
	StatusActive:        0,
	StatusAcknowledged:  1,
	StatusInvestigating: 2,
	StatusResolved:      3,
}

// IsValid reports whether s is a known lifecycle state.
func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether moving from s to next is a forward move.
func (s Status) CanTransition(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Origin records which transport delivered an alert.
type Origin string

const (
	OriginPoll Origin = "poll"
	OriginPush Origin = "push"
)

// ErrInvalidTransition is returned when a status change would regress the
// lifecycle. The alert is left unchanged.
var ErrInvalidTransition = errors.New("invalid alert status transition")

// ErrUnknownAlert is returned for operations on an id that is not held.
var ErrUnknownAlert = errors.New("unknown alert id")

// Alert is one operator-facing event. StatusChangedAt tracks when the status
// last moved, and is the tiebreaker when a poll response disagrees with a
// locally advanced status.
type Alert struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Severity        Severity  `json:"severity"`
	Status          Status    `json:"status"`
	DetectedAt      time.Time `json:"detected_at"`
	EntityID        string    `json:"entity_id,omitempty"`
	Source          Origin    `json:"source"`
	StatusChangedAt time.Time `json:"status_changed_at"`
}

// Counts is a consistent tally over one snapshot of the alert list.
type Counts struct {
	Active        int `json:"active"`
	Acknowledged  int `json:"acknowledged"`
	Investigating int `json:"investigating"`
	Resolved      int `json:"resolved"`
	Total         int `json:"total"`
}
