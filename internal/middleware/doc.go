// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package middleware provides HTTP middleware for the API router.

  - RequestID: request and correlation IDs in headers, context and logs
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled by
    chi route pattern
  - LatencyTracker: recent per-route percentiles, reported by the health endpoint

All middleware has the func(http.Handler) http.Handler shape used by chi's
r.Use. CORS, rate limiting, panic recovery and compression come from chi and
its companion packages and are wired in internal/api.
*/
package middleware
