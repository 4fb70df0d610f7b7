// Package httputil provides the authenticated HTTP plumbing shared by
// the camera, oracle, detector, and actuator clients.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Doer abstracts request execution so clients can run against
// http.Client in production and MockClient in tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthClient issues requests against one endpoint family, stamping each
// request with that endpoint's Authorization token.
type AuthClient struct {
	base  Doer
	token string
}

// NewAuthClient wraps base with the given token. An empty token leaves
// requests unauthenticated.
func NewAuthClient(base Doer, token string) *AuthClient {
	if base == nil {
		base = http.DefaultClient
	}
	return &AuthClient{base: base, token: token}
}

// Do stamps the Authorization header and executes the request.
func (c *AuthClient) Do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	return c.base.Do(req)
}

// GetBody issues a GET and returns the full response body. Non-2xx
// statuses are reported as errors.
func (c *AuthClient) GetBody(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// PostBody issues a POST with the given content type and returns the
// response body.
func (c *AuthClient) PostBody(ctx context.Context, url, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("POST %s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// PutJSON issues a PUT with v marshalled as the JSON body. The response
// body is discarded; non-2xx statuses are reported as errors.
func (c *AuthClient) PutJSON(ctx context.Context, url string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("PUT %s: unexpected status %s", url, resp.Status)
	}
	return nil
}

// MockClient is a Doer returning canned responses for tests. It records
// every request and its body in arrival order.
type MockClient struct {
	mu        sync.Mutex
	requests  []*http.Request
	bodies    []string
	responses []mockResponse
	idx       int
}

type mockResponse struct {
	status int
	body   string
	err    error
}

// NewMockClient creates an empty mock. With no queued responses it
// answers every request with 200 and an empty body.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Queue appends a canned response.
func (m *MockClient) Queue(status int, body string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{status: status, body: body})
	return m
}

// QueueError appends a transport-level error response.
func (m *MockClient) QueueError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{err: err})
	return m
}

// Do records the request and returns the next queued response.
func (m *MockClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		req.Body.Close()
		body = string(b)
	}
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)

	if m.idx >= len(m.responses) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}
	r := m.responses[m.idx]
	m.idx++
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Status:     fmt.Sprintf("%d %s", r.status, http.StatusText(r.status)),
		Body:       io.NopCloser(bytes.NewReader([]byte(r.body))),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Requests returns the recorded requests.
func (m *MockClient) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*http.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Bodies returns the recorded request bodies.
func (m *MockClient) Bodies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.bodies))
	copy(out, m.bodies)
	return out
}

// RequestCount returns how many requests the mock has served.
func (m *MockClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
