// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestLatencyTracker_RingBuffer(t *testing.T) {
	t.Parallel()

	lt := NewLatencyTracker(3, 0)
	for _, ms := range []int{10, 20, 30, 40, 50} {
		lt.Record("GET /x", http.StatusOK, time.Duration(ms)*time.Millisecond)
	}

	snap := lt.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("len(Snapshot()) = %d, want 1", len(snap))
	}
	got := snap[0]
	if got.Requests != 5 {
		t.Errorf("Requests = %d, want 5", got.Requests)
	}
	// Only 30, 40, 50 remain in the window.
	if got.AvgMs != 40 || got.P50Ms != 40 || got.MaxMs != 50 {
		t.Errorf("window stats = %+v, want avg 40, p50 40, max 50", got)
	}
}

func TestLatencyTracker_Ordering(t *testing.T) {
	t.Parallel()

	lt := NewLatencyTracker(10, 0)
	lt.Record("GET /b", http.StatusOK, time.Millisecond)
	lt.Record("GET /a", http.StatusOK, time.Millisecond)
	lt.Record("POST /c", http.StatusServiceUnavailable, time.Millisecond)
	lt.Record("POST /c", http.StatusAccepted, time.Millisecond)

	snap := lt.Snapshot()
	want := []string{"POST /c", "GET /a", "GET /b"}
	if len(snap) != len(want) {
		t.Fatalf("len(Snapshot()) = %d, want %d", len(snap), len(want))
	}
	for i, w := range want {
		if snap[i].Route != w {
			t.Errorf("snap[%d].Route = %q, want %q", i, snap[i].Route, w)
		}
	}
	if snap[0].Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap[0].Errors)
	}
}

func TestLatencyTracker_Middleware(t *testing.T) {
	t.Parallel()

	lt := NewLatencyTracker(10, time.Nanosecond)
	r := chi.NewRouter()
	r.Use(lt.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))

	snap := lt.Snapshot()
	if len(snap) != 1 || snap[0].Route != "GET /items/{id}" {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if snap[0].Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap[0].Errors)
	}
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sorted []int64
		p      float64
		want   int64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []int64{7}, 0.99, 7},
		{"median of five", []int64{1, 2, 3, 4, 5}, 0.5, 3},
		{"p95 of five", []int64{1, 2, 3, 4, 5}, 0.95, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := percentile(tt.sorted, tt.p); got != tt.want {
				t.Errorf("percentile() = %d, want %d", got, tt.want)
			}
		})
	}
}
