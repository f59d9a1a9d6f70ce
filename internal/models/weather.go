// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package models

import "time"

// Canonical weather metrics that have their own column in weather_readings.
// Every other canonical key lives only in the metrics JSON column.
const (
	MetricTemperature   = "temperatura"
	MetricHumidity      = "humedad"
	MetricPressure      = "presion"
	MetricWindSpeed     = "v_viento"
	MetricWindDirection = "d_viento"
	MetricUVIndex       = "indiceuv"
)

// WeatherRecord is one normalized reading for one station.
//
// Metrics always contains every canonical key; a nil value means no reading has
// been seen for that metric yet (JSON null).
//
//	{"station":"quintay","timestamp":"2026-03-01T12:00:00Z",
//	 "metrics":{"temperatura":21.5,"humedad":60,"presion":null,...}}
type WeatherRecord struct {
	Station   string              `json:"station"`
	Timestamp string              `json:"timestamp"`
	Metrics   map[string]*float64 `json:"metrics"`
}

// Value returns the metric and whether it is non-null.
func (r *WeatherRecord) Value(metric string) (float64, bool) {
	v, ok := r.Metrics[metric]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// HasAll reports whether every metric in required is non-null. This is the
// publication gate for the weather producer.
func (r *WeatherRecord) HasAll(required []string) bool {
	for _, m := range required {
		if _, ok := r.Value(m); !ok {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one metric is non-null.
func (r *WeatherRecord) HasAny() bool {
	for _, v := range r.Metrics {
		if v != nil {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand records across goroutines.
func (r *WeatherRecord) Clone() WeatherRecord {
	metrics := make(map[string]*float64, len(r.Metrics))
	for k, v := range r.Metrics {
		if v != nil {
			val := *v
			metrics[k] = &val
		} else {
			metrics[k] = nil
		}
	}
	return WeatherRecord{Station: r.Station, Timestamp: r.Timestamp, Metrics: metrics}
}

// Flat returns the single-level shape older dashboards consume:
// metric keys next to "station" and "timestamp".
func (r *WeatherRecord) Flat() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Metrics)+2)
	for k, v := range r.Metrics {
		if v == nil {
			out[k] = nil
		} else {
			out[k] = *v
		}
	}
	out["station"] = r.Station
	out["timestamp"] = r.Timestamp
	return out
}

// Time parses Timestamp. Unparseable values fall back to fallback.
func (r *WeatherRecord) Time(fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, r.Timestamp); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
