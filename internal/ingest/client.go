package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/kudu-data/corridor.watch/internal/alert"
	"github.com/kudu-data/corridor.watch/internal/httputil"
	"github.com/kudu-data/corridor.watch/internal/track"
	"github.com/kudu-data/corridor.watch/internal/zone"
)

// maxResponseBytes caps upstream response bodies. A trail for a busy collar
// over a week stays well under this.
const maxResponseBytes = 16 * 1024 * 1024

// Client talks to the upstream tracking service's REST API.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient creates an upstream client. httpClient may be nil, in which case
// the default client is used.
func NewClient(baseURL string, httpClient httputil.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// FetchEntitySnapshots retrieves the current entity set. An empty kind fetches
// all entities; otherwise the server filters by kind.
func (c *Client) FetchEntitySnapshots(ctx context.Context, kind track.Kind) ([]track.Snapshot, error) {
	path := "/api/entities"
	if kind != "" {
		path += "?kind=" + url.QueryEscape(string(kind))
	}

	var payloads []positionPayload
	if err := c.getJSON(ctx, path, &payloads); err != nil {
		return nil, err
	}
	return normalizePositions(payloads), nil
}

// FetchAlerts retrieves the current alert list.
func (c *Client) FetchAlerts(ctx context.Context) ([]alert.Alert, error) {
	var payloads []alertPayload
	if err := c.getJSON(ctx, "/api/alerts", &payloads); err != nil {
		return nil, err
	}
	return normalizeAlerts(payloads), nil
}

// FetchZones retrieves the zone reference layer.
func (c *Client) FetchZones(ctx context.Context) ([]zone.Definition, error) {
	var defs []zone.Definition
	if err := c.getJSON(ctx, "/api/zones", &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// FetchMovementTrail retrieves the historical trail for one entity over the
// given window in hours.
func (c *Client) FetchMovementTrail(ctx context.Context, entityID string, hours int) (track.Trail, error) {
	path := fmt.Sprintf("/api/entities/%s/trail?hours=%d", url.PathEscape(entityID), hours)

	var points []track.TrailPoint
	if err := c.getJSON(ctx, path, &points); err != nil {
		return track.Trail{}, err
	}
	return track.Trail{EntityID: entityID, Points: points}, nil
}

// PostAlertTransition forwards a status change to the upstream. The caller
// applies the change locally only after this succeeds.
func (c *Client) PostAlertTransition(ctx context.Context, alertID string, next alert.Status) error {
	body, err := json.Marshal(map[string]string{"status": string(next)})
	if err != nil {
		return fmt.Errorf("encoding transition: %w", err)
	}

	u := c.baseURL + "/api/alerts/" + url.PathEscape(alertID) + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building transition request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer httputil.DrainBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert transition rejected upstream: status %d", resp.StatusCode)
	}
	return nil
}

// getJSON performs a GET against the base URL and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrNetworkUnavailable, path, err)
	}
	defer httputil.DrainBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s: status %d", ErrNetworkUnavailable, path, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrNetworkUnavailable, path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrMalformedPayload, path, err)
	}
	return nil
}
