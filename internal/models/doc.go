// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package models defines the data structures shared across GridWatch.

Broker payloads:

  - WeatherRecord: one normalized station reading, published on weather-data
  - PowerSample: the canonical form of a power packet from power-data
  - PowerAverage: a per-source window average sent to live clients

Stored and queried data:

  - WeatherPoint, PowerPoint: rows returned by historical queries
  - HistoryQuery: time range and bucket size for those queries
  - Threshold: an alarm band persisted in the key-value store

Nullable measurements are *float64 throughout so that JSON null ("no data")
stays distinct from a real zero reading.
*/
package models
