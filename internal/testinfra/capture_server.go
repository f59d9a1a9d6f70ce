// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

//go:build integration

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// CapturedRequest is one request seen by a CaptureServer.
type CapturedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// CaptureServer stands in for the ingest endpoint and records requests.
type CaptureServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	captures []CapturedRequest
	status   int
}

// NewCaptureServer starts a server that answers 202 until SetStatus changes
// it. The server is closed when t finishes.
func NewCaptureServer(t *testing.T) *CaptureServer {
	t.Helper()

	cs := &CaptureServer{status: http.StatusAccepted}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // best effort capture

		cs.mu.Lock()
		cs.captures = append(cs.captures, CapturedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header.Clone(),
			Body:    body,
		})
		status := cs.status
		cs.mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(cs.Server.Close)
	return cs
}

// URL returns the base URL.
func (c *CaptureServer) URL() string {
	return c.Server.URL
}

// SetStatus changes the status code returned for subsequent requests.
func (c *CaptureServer) SetStatus(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = code
}

// Captures returns a copy of the recorded requests.
func (c *CaptureServer) Captures() []CapturedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CapturedRequest, len(c.captures))
	copy(out, c.captures)
	return out
}

// WaitForCaptures polls until at least n requests arrived or timeout passes.
func (c *CaptureServer) WaitForCaptures(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(c.Captures()) >= n {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}
