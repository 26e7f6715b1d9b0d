package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kudu-data/corridor.watch/internal/alert"
	"github.com/kudu-data/corridor.watch/internal/monitoring"
	"github.com/kudu-data/corridor.watch/internal/timeutil"
	"github.com/kudu-data/corridor.watch/internal/track"
)

// envelope is the framing used on the live channel. Data stays raw until the
// type is known.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Bridge maintains a websocket subscription to the upstream live channel and
// feeds incoming frames to the sink. Connection loss triggers reconnection
// with exponential backoff; polling keeps the data fresh in the meantime, so
// the bridge never escalates a dead connection beyond a log line.
type Bridge struct {
	url        string
	sink       Sink
	clock      timeutil.Clock
	minBackoff time.Duration
	maxBackoff time.Duration

	dial func(ctx context.Context, url string) (wsConn, error)
}

// wsConn is the slice of *websocket.Conn the bridge uses, split out so tests
// can drive the read loop without a server.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// NewBridge creates a live-channel bridge. Backoff starts at min and doubles
// per failed attempt up to max, resetting after a successful connection.
func NewBridge(url string, sink Sink, clock timeutil.Clock, minBackoff, maxBackoff time.Duration) *Bridge {
	return &Bridge{
		url:        url,
		sink:       sink,
		clock:      clock,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		dial: func(ctx context.Context, url string) (wsConn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		},
	}
}

// Run connects and consumes frames until the context is cancelled,
// reconnecting after every failure.
func (b *Bridge) Run(ctx context.Context) {
	backoff := b.minBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := b.dial(ctx, b.url)
		if err != nil {
			monitoring.Logf("live: connect %s: %v (retry in %s)", b.url, err, backoff)
			if !b.wait(ctx, backoff) {
				return
			}
			backoff = b.nextBackoff(backoff)
			continue
		}

		monitoring.Logf("live: connected to %s", b.url)
		backoff = b.minBackoff
		b.consume(ctx, conn)
	}
}

// consume reads frames until the connection breaks or the context ends.
func (b *Bridge) consume(ctx context.Context, conn wsConn) {
	defer conn.Close()

	// Close unblocks ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				monitoring.Logf("live: connection lost: %v", err)
			}
			return
		}
		if err := b.handleMessage(data); err != nil {
			monitoring.Logf("live: %v", err)
		}
	}
}

// handleMessage decodes one frame and applies it. A malformed frame is an
// error for the log; it never tears down the connection.
func (b *Bridge) handleMessage(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch env.Type {
	case "positions":
		var payloads []positionPayload
		if err := json.Unmarshal(env.Data, &payloads); err != nil {
			return fmt.Errorf("%w: positions frame: %v", ErrMalformedPayload, err)
		}
		b.sink.ApplyPositions(normalizePositions(payloads))
	case "position":
		var payload positionPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("%w: position frame: %v", ErrMalformedPayload, err)
		}
		if s, ok := normalizePosition(payload); ok {
			b.sink.ApplyPositions([]track.Snapshot{s})
		}
	case "alert":
		var payload alertPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("%w: alert frame: %v", ErrMalformedPayload, err)
		}
		if a, ok := normalizeAlert(payload); ok {
			b.sink.ApplyAlerts([]alert.Alert{a}, alert.OriginPush)
		}
	default:
		return fmt.Errorf("%w: unknown frame type %q", ErrMalformedPayload, env.Type)
	}
	return nil
}

// wait sleeps on the clock, returning false if the context ended first.
func (b *Bridge) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-b.clock.After(d):
		return true
	}
}

func (b *Bridge) nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > b.maxBackoff {
		next = b.maxBackoff
	}
	return next
}
