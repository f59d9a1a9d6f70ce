// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package cache provides a bounded in-memory TTL cache and a read-through
decorator for the history store.

Dashboards re-request the same closed ranges (yesterday, last week) many
times. History answers those from memory for HISTORY_CACHE_TTL; queries
without an end, or ending in the future, always go to the database because
new rows keep arriving.

	hist := cache.NewHistory(store, 30*time.Second, 256)
	points, err := hist.PowerHistory(ctx, q)

Lookups are counted in gridwatch_history_cache_lookups_total by kind
(weather, power) and result (hit, miss, bypass).
*/
package cache
