package alert

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkAlert(id string, status Status, detected time.Time) Alert {
	return Alert{
		ID:         id,
		Title:      "Possible poaching activity",
		Message:    "Gunshot-like acoustic signature detected",
		Severity:   SeverityCritical,
		Status:     status,
		DetectedAt: detected,
	}
}

func TestMerge_DedupAcrossOrigins(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("poll then push", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler()
		r.Merge([]Alert{mkAlert("ALT-1", StatusActive, now)}, OriginPoll)
		r.Merge([]Alert{mkAlert("ALT-1", StatusActive, now)}, OriginPush)
		assert.Len(t, r.Snapshot(""), 1)
	})

	t.Run("push then poll", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler()
		r.Merge([]Alert{mkAlert("ALT-1", StatusActive, now)}, OriginPush)
		r.Merge([]Alert{mkAlert("ALT-1", StatusActive, now)}, OriginPoll)
		assert.Len(t, r.Snapshot(""), 1)
	})
}

func TestMerge_PrependsMostRecentFirst(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := NewReconciler()
	r.Merge([]Alert{mkAlert("ALT-1", StatusActive, now)}, OriginPoll)
	r.Merge([]Alert{mkAlert("ALT-2", StatusActive, now.Add(time.Minute))}, OriginPush)
	r.Merge([]Alert{mkAlert("ALT-3", StatusActive, now.Add(2*time.Minute))}, OriginPoll)

	got := r.Snapshot("")
	require.Len(t, got, 3)
	assert.Equal(t, "ALT-3", got[0].ID)
	assert.Equal(t, "ALT-2", got[1].ID)
	assert.Equal(t, "ALT-1", got[2].ID)
}

func TestMerge_SkipsAlertsWithoutID(t *testing.T) {
	t.Parallel()

	r := NewReconciler()
	changed := r.Merge([]Alert{{Title: "no id"}}, OriginPush)
	assert.False(t, changed)
	assert.Empty(t, r.Snapshot(""))
}

func TestMerge_DefaultsStatusToActive(t *testing.T) {
	t.Parallel()

	r := NewReconciler()
	a := mkAlert("ALT-1", "", time.Now())
	r.Merge([]Alert{a}, OriginPush)

	got, ok := r.Get("ALT-1")
	require.True(t, ok)
	assert.Equal(t, StatusActive, got.Status)
}

func TestMerge_StalePollDoesNotResetLocalProgress(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := NewReconciler()
	r.Merge([]Alert{mkAlert("ALT-1", StatusActive, now)}, OriginPoll)

	_, err := r.Acknowledge("ALT-1", now.Add(time.Minute))
	require.NoError(t, err)

	// Re-fetch delivers the alert still "active" with the original
	// transition timestamp: the local acknowledgement must survive.
	stale := mkAlert("ALT-1", StatusActive, now)
	stale.StatusChangedAt = now
	r.Merge([]Alert{stale}, OriginPoll)

	got, _ := r.Get("ALT-1")
	assert.Equal(t, StatusAcknowledged, got.Status)
}

func TestMerge_NewerServerStatusWins(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := NewReconciler()
	r.Merge([]Alert{mkAlert("ALT-1", StatusActive, now)}, OriginPoll)
	_, err := r.Acknowledge("ALT-1", now.Add(time.Minute))
	require.NoError(t, err)

	server := mkAlert("ALT-1", StatusInvestigating, now)
	server.StatusChangedAt = now.Add(2 * time.Minute)
	r.Merge([]Alert{server}, OriginPoll)

	got, _ := r.Get("ALT-1")
	assert.Equal(t, StatusInvestigating, got.Status)
}

func TestMerge_ResolvedIsAbsorbing(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := NewReconciler()
	r.Merge([]Alert{mkAlert("ALT-1", StatusActive, now)}, OriginPoll)
	_, err := r.Transition("ALT-1", StatusResolved, now.Add(time.Minute))
	require.NoError(t, err)

	// Even a "newer" server status cannot reopen a resolved alert.
	reopen := mkAlert("ALT-1", StatusActive, now)
	reopen.StatusChangedAt = now.Add(time.Hour)
	r.Merge([]Alert{reopen}, OriginPoll)

	got, _ := r.Get("ALT-1")
	assert.Equal(t, StatusResolved, got.Status)
}

func TestTransition_ForwardMoves(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusActive, StatusAcknowledged, true},
		{StatusActive, StatusInvestigating, true},
		{StatusActive, StatusResolved, true},
		{StatusAcknowledged, StatusInvestigating, true},
		{StatusAcknowledged, StatusResolved, true},
		{StatusInvestigating, StatusResolved, true},
		{StatusAcknowledged, StatusActive, false},
		{StatusInvestigating, StatusAcknowledged, false},
		{StatusResolved, StatusActive, false},
		{StatusResolved, StatusAcknowledged, false},
		{StatusResolved, StatusInvestigating, false},
		{StatusActive, StatusActive, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			t.Parallel()
			r := NewReconciler()
			r.Merge([]Alert{mkAlert("ALT-1", tc.from, now)}, OriginPoll)

			_, err := r.Transition("ALT-1", tc.to, now.Add(time.Minute))
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				got, _ := r.Get("ALT-1")
				assert.Equal(t, tc.from, got.Status, "failed transition must not change state")
			}
		})
	}
}

func TestTransition_AcknowledgeAfterResolvedRejected(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := NewReconciler()
	r.Merge([]Alert{mkAlert("ALT-1", StatusActive, now)}, OriginPush)
	_, err := r.Transition("ALT-1", StatusResolved, now.Add(time.Second))
	require.NoError(t, err)

	_, err = r.Acknowledge("ALT-1", now.Add(2*time.Second))
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	got, _ := r.Get("ALT-1")
	assert.Equal(t, StatusResolved, got.Status)
}

func TestTransition_UnknownID(t *testing.T) {
	t.Parallel()

	r := NewReconciler()
	_, err := r.Transition("nope", StatusResolved, time.Now())
	assert.ErrorIs(t, err, ErrUnknownAlert)
}

func TestCounts_FreshPassOverSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := NewReconciler()
	r.Merge([]Alert{
		mkAlert("a", StatusActive, now),
		mkAlert("b", StatusActive, now),
		mkAlert("c", StatusAcknowledged, now),
		mkAlert("d", StatusResolved, now),
	}, OriginPoll)

	c := r.Counts()
	assert.Equal(t, Counts{Active: 2, Acknowledged: 1, Resolved: 1, Total: 4}, c)

	_, err := r.Transition("a", StatusInvestigating, now.Add(time.Second))
	require.NoError(t, err)

	c = r.Counts()
	assert.Equal(t, Counts{Active: 1, Acknowledged: 1, Investigating: 1, Resolved: 1, Total: 4}, c)
}

func TestSnapshot_FilterAndIsolation(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := NewReconciler()
	r.Merge([]Alert{mkAlert("a", StatusActive, now), mkAlert("b", StatusResolved, now)}, OriginPoll)

	active := r.Snapshot(StatusActive)
	require.Len(t, active, 1)

	active[0].Status = StatusResolved // mutate the copy
	got, _ := r.Get("a")
	assert.Equal(t, StatusActive, got.Status, "snapshot must be a copy")
}
