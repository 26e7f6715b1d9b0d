package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudu-data/corridor.watch/internal/track"
)

func TestHub_StateFrameOnConnectAndChange(t *testing.T) {
	t.Parallel()

	srv, tracker, _ := newTestServer(t)
	seedEntities(tracker)
	// Drain the notifications from seeding so the hub starts quiet.
	select {
	case <-tracker.Changes():
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.ServeMux())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Initial frame carries the current state.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type     string            `json:"type"`
		Entities []json.RawMessage `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(frame, &msg))
	assert.Equal(t, "state", msg.Type)
	assert.Len(t, msg.Entities, 2)

	// A position update triggers a fresh frame.
	tracker.ApplyPositions([]track.Snapshot{{
		ID: "elephant-07", Kind: track.KindAnimal,
		Position:  track.Position{Lat: -2.66, Lon: 37.26},
		SpeedKmh:  3,
		Timestamp: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(frame, &msg))
	assert.Equal(t, "state", msg.Type)
}

func TestHub_ClientCountTracksConnections(t *testing.T) {
	t.Parallel()

	srv, tracker, _ := newTestServer(t)
	seedEntities(tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.ServeMux())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return srv.Hub().ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return srv.Hub().ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastReplayPoint(t *testing.T) {
	t.Parallel()

	srv, tracker, _ := newTestServer(t)
	seedEntities(tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.ServeMux())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Skip the initial state frame.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	srv.Hub().BroadcastReplayPoint(track.TrailPoint{
		Lat: -2.65, Lon: 37.25,
		Timestamp: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type  string           `json:"type"`
		Point track.TrailPoint `json:"point"`
	}
	require.NoError(t, json.Unmarshal(frame, &msg))
	assert.Equal(t, "replay", msg.Type)
	assert.Equal(t, -2.65, msg.Point.Lat)
}
