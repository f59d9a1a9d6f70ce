// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package models

import "time"

// Aggregation levels for historical queries.
const (
	AggRaw    = "raw"
	AggMinute = "minute"
	AggHour   = "hour"
	AggDay    = "day"
)

// HistoryQuery selects a time range of stored readings.
// Series is a station for weather and a source id for power; empty means all.
type HistoryQuery struct {
	Start  time.Time
	End    time.Time
	Agg    string
	Series string
	Limit  int
}

// WeatherPoint is one stored or bucketed weather row.
type WeatherPoint struct {
	Station   string              `json:"station"`
	Timestamp time.Time           `json:"timestamp"`
	Metrics   map[string]*float64 `json:"metrics"`
}

// PowerPoint is one stored or bucketed power row.
type PowerPoint struct {
	SourceID  string    `json:"sourceId"`
	Timestamp time.Time `json:"timestamp"`
	Voltage   *float64  `json:"voltage"`
	Current   *float64  `json:"current"`
	Power     *float64  `json:"power"`
}
