// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package models

import "time"

// DefaultSourceID is used when a power payload carries no source identifier.
const DefaultSourceID = "__default__"

// PowerSample is the canonical power record. Any metric may be null.
// TimestampMs is nil when the payload carried no usable timestamp; consumers
// substitute arrival time.
type PowerSample struct {
	SourceID    string   `json:"sourceId"`
	TimestampMs *int64   `json:"timestampMs"`
	Voltage     *float64 `json:"voltage"`
	Current     *float64 `json:"current"`
	Power       *float64 `json:"power"`
}

// HasMetrics reports whether any of voltage, current, or power is set.
func (s *PowerSample) HasMetrics() bool {
	return s.Voltage != nil || s.Current != nil || s.Power != nil
}

// TimeOr returns the sample time, or fallback when TimestampMs is nil.
func (s *PowerSample) TimeOr(fallback time.Time) time.Time {
	if s.TimestampMs == nil {
		return fallback
	}
	return time.UnixMilli(*s.TimestampMs).UTC()
}

// MetricCounts holds how many samples contributed to each averaged metric.
type MetricCounts struct {
	Voltage int `json:"voltage"`
	Current int `json:"current"`
	Power   int `json:"power"`
}

// PowerAverage is one per-source window average, broadcast as power_update.
//
// TimestampMs is the rounded mean of the contributing sample timestamps, an
// approximation of the window's center of mass rather than a window boundary.
type PowerAverage struct {
	SourceID    string       `json:"sourceId"`
	TimestampMs int64        `json:"timestampMs"`
	Voltage     *float64     `json:"voltage"`
	Current     *float64     `json:"current"`
	Power       *float64     `json:"power"`
	Samples     int          `json:"samples"`
	Counts      MetricCounts `json:"counts"`
}
