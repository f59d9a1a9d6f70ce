// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package database

import "github.com/tomtom215/gridwatch/internal/models"

// "timestamp" and "current" are quoted everywhere: both are keywords in at
// least one of the two dialects.

var duckdbSchema = []string{
	`CREATE TABLE IF NOT EXISTS weather_readings (
		station VARCHAR NOT NULL,
		"timestamp" TIMESTAMP NOT NULL,
		temperatura DOUBLE,
		humedad DOUBLE,
		presion DOUBLE,
		v_viento DOUBLE,
		d_viento DOUBLE,
		indiceuv DOUBLE,
		metrics VARCHAR
	)`,
	`CREATE INDEX IF NOT EXISTS idx_weather_station_ts ON weather_readings (station, "timestamp")`,
	`CREATE TABLE IF NOT EXISTS power_readings (
		source_id VARCHAR NOT NULL,
		"timestamp" TIMESTAMP NOT NULL,
		voltage DOUBLE,
		"current" DOUBLE,
		power DOUBLE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_power_source_ts ON power_readings (source_id, "timestamp")`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS weather_readings (
		id BIGSERIAL PRIMARY KEY,
		station TEXT NOT NULL,
		"timestamp" TIMESTAMPTZ NOT NULL,
		temperatura DOUBLE PRECISION,
		humedad DOUBLE PRECISION,
		presion DOUBLE PRECISION,
		v_viento DOUBLE PRECISION,
		d_viento DOUBLE PRECISION,
		indiceuv DOUBLE PRECISION,
		metrics TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_weather_station_ts ON weather_readings (station, "timestamp")`,
	`CREATE TABLE IF NOT EXISTS power_readings (
		id BIGSERIAL PRIMARY KEY,
		source_id TEXT NOT NULL,
		"timestamp" TIMESTAMPTZ NOT NULL,
		voltage DOUBLE PRECISION,
		"current" DOUBLE PRECISION,
		power DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_power_source_ts ON power_readings (source_id, "timestamp")`,
}

// weatherColumns are the canonical metrics with their own column, in column
// order.
var weatherColumns = []string{
	models.MetricTemperature,
	models.MetricHumidity,
	models.MetricPressure,
	models.MetricWindSpeed,
	models.MetricWindDirection,
	models.MetricUVIndex,
}
