// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package api is the HTTP surface of the GridWatch server, routed with chi.

Routes:

	POST   /api/sv                            edge ingest, body published verbatim to power-data
	POST   /api/v1/power/ingest               same as /api/sv
	GET    /api/v1/weather/latest             latest record per station
	GET    /api/v1/weather/latest/{station}   latest record for one station
	GET    /api/v1/weather                    history: start, end, agg, station, limit
	GET    /api/v1/power                      history: start, end, agg, source, limit
	GET    /api/v1/thresholds                 all thresholds
	GET    /api/v1/thresholds/{parameter}     one threshold
	PUT    /api/v1/thresholds/{parameter}     {"min", "max"}, min <= max
	DELETE /api/v1/thresholds/{parameter}
	GET    /api/v1/health[/live|/ready]
	GET    /clima                             legacy bare array of recent weather rows
	GET    /ws                                live fanout (see internal/websocket)
	GET    /metrics                           Prometheus

Every JSON endpoint except /clima answers with the APIResponse envelope
{success, data, error, meta}. Ingest answers 202 on publish, 400 for a body
that is not JSON, 413 above the size limit and 503 when the broker rejects
the publish.

Middleware order: request ID, real IP, panic recovery, CORS, Prometheus,
latency tracking, then per-group rate limiting and gzip.
*/
package api
