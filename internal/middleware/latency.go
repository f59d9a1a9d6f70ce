// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomtom215/gridwatch/internal/logging"
)

// DefaultSlowRequestThreshold is the latency above which a request is logged.
const DefaultSlowRequestThreshold = time.Second

// RouteLatency summarizes recent requests for one "METHOD pattern" key.
type RouteLatency struct {
	Route    string  `json:"route"`
	Requests int64   `json:"requests"`
	Errors   int64   `json:"errors"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    int64   `json:"p50_ms"`
	P95Ms    int64   `json:"p95_ms"`
	P99Ms    int64   `json:"p99_ms"`
	MaxMs    int64   `json:"max_ms"`
}

type routeWindow struct {
	samples []int64 // ring buffer of durations in ms
	next    int
	full    bool
	total   int64
	errors  int64
}

func (w *routeWindow) add(ms int64, capacity int) {
	if len(w.samples) < capacity && !w.full {
		w.samples = append(w.samples, ms)
		if len(w.samples) == capacity {
			w.full = true
		}
		return
	}
	w.samples[w.next] = ms
	w.next = (w.next + 1) % capacity
}

// LatencyTracker keeps the last N request durations per route and reports
// percentiles over them. Totals count every request since start.
type LatencyTracker struct {
	mu       sync.Mutex
	perRoute int
	slow     time.Duration
	routes   map[string]*routeWindow
	now      func() time.Time
}

// NewLatencyTracker keeps up to perRoute samples per route. slow <= 0 uses
// DefaultSlowRequestThreshold.
func NewLatencyTracker(perRoute int, slow time.Duration) *LatencyTracker {
	if perRoute < 1 {
		perRoute = 1
	}
	if slow <= 0 {
		slow = DefaultSlowRequestThreshold
	}
	return &LatencyTracker{
		perRoute: perRoute,
		slow:     slow,
		routes:   make(map[string]*routeWindow),
		now:      time.Now,
	}
}

// Record adds one observation. Status >= 500 counts as an error.
func (t *LatencyTracker) Record(route string, status int, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.routes[route]
	if !ok {
		w = &routeWindow{}
		t.routes[route] = w
	}
	w.add(d.Milliseconds(), t.perRoute)
	w.total++
	if status >= http.StatusInternalServerError {
		w.errors++
	}
}

// Snapshot returns per-route summaries ordered by request count, then route.
func (t *LatencyTracker) Snapshot() []RouteLatency {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]RouteLatency, 0, len(t.routes))
	for route, w := range t.routes {
		if len(w.samples) == 0 {
			continue
		}
		sorted := make([]int64, len(w.samples))
		copy(sorted, w.samples)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, d := range sorted {
			sum += d
		}
		out = append(out, RouteLatency{
			Route:    route,
			Requests: w.total,
			Errors:   w.errors,
			AvgMs:    float64(sum) / float64(len(sorted)),
			P50Ms:    percentile(sorted, 0.50),
			P95Ms:    percentile(sorted, 0.95),
			P99Ms:    percentile(sorted, 0.99),
			MaxMs:    sorted[len(sorted)-1],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Requests != out[j].Requests {
			return out[i].Requests > out[j].Requests
		}
		return out[i].Route < out[j].Route
	})
	return out
}

// Middleware records each request under "METHOD pattern" and logs slow ones.
func (t *LatencyTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := t.now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := t.now().Sub(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.Method + " " + RoutePattern(r)
		t.Record(route, status, elapsed)

		if elapsed > t.slow {
			logging.Ctx(r.Context()).Warn().
				Str("route", route).
				Int64("duration_ms", elapsed.Milliseconds()).
				Int("status", status).
				Msg("Slow request detected")
		}
	})
}

// percentile picks the nearest-rank value from sorted.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
