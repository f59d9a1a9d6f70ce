// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Package metrics defines the Prometheus collectors for GridWatch.
//
// Collectors are registered on the default registry through promauto and are
// exposed by the API router at /metrics. Every series is prefixed with
// gridwatch_ and grouped by pipeline stage: upstream, producer, nats,
// aggregation, db, websocket, api, bridge.
package metrics
