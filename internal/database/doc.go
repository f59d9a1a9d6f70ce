// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package database persists weather and power readings and answers historical
queries over them.

Two backends implement Store:

  - DuckDBStore (driver "duckdb", default): an embedded analytical database
    file, no external service required
  - PostgresStore (driver "postgres"): a pgx connection pool for deployments
    that already run PostgreSQL

Both create the same two tables on open:

	weather_readings(station, "timestamp", temperatura, humedad, presion,
	                 v_viento, d_viento, indiceuv, metrics)
	power_readings(source_id, "timestamp", voltage, "current", power)

The six canonical weather metrics get their own columns so they can be
averaged in SQL; metrics holds the full record as JSON text, nulls included.
Timestamps are stored in UTC.

Historical queries bucket with date_trunc at minute, hour, or day resolution
and average each metric. NULL readings do not contribute to an average, and
a bucket where every reading is NULL yields null.
*/
package database
