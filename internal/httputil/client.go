// Package httputil provides HTTP client abstractions for testability.
package httputil

import (
	"io"
	"net/http"
	"sync"
)

// HTTPClient abstracts HTTP operations for testability.
// Use http.DefaultClient or http.Client for production; MockHTTPClient for testing.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement HTTPClient.
type StandardClient struct {
	*http.Client
}

// NewStandardClient creates a new StandardClient wrapping the given http.Client.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// Do sends an HTTP request.
func (c *StandardClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}

// MockHTTPClient provides a testable HTTP client implementation. Responses are
// served by DoFunc when set, otherwise DefaultError is returned.
type MockHTTPClient struct {
	mu       sync.Mutex
	DoFunc   func(req *http.Request) (*http.Response, error)
	Requests []*http.Request

	DefaultError error
}

// Do records the request and dispatches to DoFunc.
func (c *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.Requests = append(c.Requests, req)
	fn := c.DoFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return nil, c.DefaultError
}

// RequestCount returns the number of requests seen so far.
func (c *MockHTTPClient) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// DrainBody fully reads and closes a response body, ignoring errors.
// Keeps connections reusable without cluttering call sites.
func DrainBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
