// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// ingestStub answers with statuses in order, repeating the last one.
type ingestStub struct {
	statuses []int
	calls    atomic.Int32
	lastBody atomic.Value
}

func (s *ingestStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(s.calls.Add(1))
	body, _ := io.ReadAll(r.Body)
	s.lastBody.Store(body)
	idx := n - 1
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	w.WriteHeader(s.statuses[idx])
}

func newTestForwarder(t *testing.T, stub *ingestStub, attempts uint64) *Forwarder {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	f, err := NewForwarder(ForwarderConfig{
		URL:              srv.URL + "/api/sv",
		Timeout:          time.Second,
		MaxAttempts:      attempts,
		InitialInterval:  time.Millisecond,
		MaxInterval:      5 * time.Millisecond,
		BreakerThreshold: 2,
		BreakerTimeout:   time.Minute,
	})
	if err != nil {
		t.Fatalf("NewForwarder: %v", err)
	}
	return f
}

func testPayload() Payload {
	return Payload{SvID: "4000", TimestampMs: 1, Values: json.RawMessage(`{"voltage":1,"current":2,"power":3}`)}
}

func TestForwarder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		statuses  []int
		attempts  uint64
		wantCalls int32
		wantErr   bool
	}{
		{name: "accepted first try", statuses: []int{http.StatusAccepted}, attempts: 5, wantCalls: 1},
		{name: "retries server errors", statuses: []int{500, 503, 202}, attempts: 5, wantCalls: 3},
		{name: "retries 429", statuses: []int{429, 200}, attempts: 5, wantCalls: 2},
		{name: "gives up after max attempts", statuses: []int{500}, attempts: 3, wantCalls: 3, wantErr: true},
		{name: "bad request is not retried", statuses: []int{400}, attempts: 5, wantCalls: 1, wantErr: true},
		{name: "payload too large is not retried", statuses: []int{413}, attempts: 5, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stub := &ingestStub{statuses: tt.statuses}
			f := newTestForwarder(t, stub, tt.attempts)

			err := f.Forward(context.Background(), testPayload())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Forward() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := stub.calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantErr {
				var serr *StatusError
				if !errors.As(err, &serr) || serr.StatusCode != tt.statuses[len(tt.statuses)-1] {
					t.Errorf("error = %v, want StatusError", err)
				}
			}
		})
	}
}

func TestForwarder_SendsJSON(t *testing.T) {
	t.Parallel()

	var contentType atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType.Store(r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	f, _ := NewForwarder(ForwarderConfig{URL: srv.URL})
	if err := f.Forward(context.Background(), testPayload()); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if got := contentType.Load(); got != "application/json" {
		t.Errorf("Content-Type = %v", got)
	}
}

func TestForwarder_BreakerOpens(t *testing.T) {
	t.Parallel()

	stub := &ingestStub{statuses: []int{http.StatusBadGateway}}
	f := newTestForwarder(t, stub, 1)

	for i := 0; i < 2; i++ {
		if err := f.Forward(context.Background(), testPayload()); err == nil {
			t.Fatal("expected failure")
		}
	}
	if f.BreakerState() != "open" {
		t.Fatalf("breaker state = %s, want open", f.BreakerState())
	}

	before := stub.calls.Load()
	if err := f.Forward(context.Background(), testPayload()); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Forward() = %v, want ErrCircuitOpen", err)
	}
	if stub.calls.Load() != before {
		t.Error("open breaker must not reach the endpoint")
	}
}

func TestForwarder_RejectionsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	stub := &ingestStub{statuses: []int{http.StatusBadRequest}}
	f := newTestForwarder(t, stub, 1)
	for i := 0; i < 5; i++ {
		_ = f.Forward(context.Background(), testPayload())
	}
	if f.BreakerState() != "closed" {
		t.Errorf("breaker state = %s, want closed", f.BreakerState())
	}
}

func TestForwarder_ContextCancelStopsRetries(t *testing.T) {
	t.Parallel()

	stub := &ingestStub{statuses: []int{500}}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	f, _ := NewForwarder(ForwarderConfig{
		URL:             srv.URL,
		MaxAttempts:     100,
		InitialInterval: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	if err := f.Forward(ctx, testPayload()); err == nil {
		t.Fatal("expected error after cancellation")
	}
	if stub.calls.Load() >= 100 {
		t.Errorf("calls = %d, retries did not stop", stub.calls.Load())
	}
}

func TestNewForwarder_RequiresURL(t *testing.T) {
	t.Parallel()
	if _, err := NewForwarder(ForwarderConfig{}); err == nil {
		t.Error("expected error for empty URL")
	}
}
