// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package normalize

import (
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/models"
)

// Alias maps one upstream field name onto a canonical metric.
type Alias struct {
	Source    string
	Canonical string
}

// WeatherAliases is applied in order. When several source keys in one data
// item map to the same canonical metric, the first non-null one wins.
//
// Current station firmware fields come first, older Modbus-era names after.
var WeatherAliases = []Alias{
	{"temperatura_amb", models.MetricTemperature},
	{"temperatura_tablero", "temperatura_tablero"},
	{"humedad_amb", models.MetricHumidity},
	{"humedad_tablero", "humedad_tablero"},
	{"presion_absoluta_hpa", models.MetricPressure},
	{"presion_absoluta_mbar", models.MetricPressure},
	{"presion_nmm_hpa", "presion_nmm_hpa"},
	{"punto_rocio", "punto_rocio"},
	{"viento_vel_inst", models.MetricWindSpeed},
	{"viento_dir_grados", models.MetricWindDirection},
	{"lluvia_15m_mm", "lluvia_15m_mm"},
	{"lluvia_60m_mm", "lluvia_60m_mm"},
	{"lluvia_24h_mm", "lluvia_24h_mm"},
	{"lluvia_dia_mm", "lluvia"},
	{"rainfall_day_mm", "lluvia"},
	{"rainfall_last_60_min_mm", "lluvia_last_60_min"},
	{"lluvia_mes_mm", "lluvia_mes_mm"},
	{"lluvia_anio_mm", "lluvia_anio_mm"},
	{"lluvia_rate_max_mm_h", "lluvia_rate_max_mm_h"},
	{"lluvia_rate_mm_h", "lluvia_rate_mm_h"},
	{"rain_rate_last_mm", "rain_rate_last_mm"},
	{"bateria", "bateria"},
	{"wifi_rssi_dbm", "wifi_rssi_dbm"},
	{"4GSignalStrength", "4GSignalStrength"},
	{"PT100", "PT100_1_PT_100"},
	{"Piranometro5V", "Piranometro5V"},
	{"Piranometro", "Piranometro5V"},
	{"UFreeSpace", "UFreeSpace"},

	{"Modbus_1_temperatura", models.MetricTemperature},
	{"Modbus_1_humedad", models.MetricHumidity},
	{"Modbus_1_presion", models.MetricPressure},
	{"Modbus_1_w_speed", models.MetricWindSpeed},
	{"Modbus_1_w_direccion", models.MetricWindDirection},
	{"uv", models.MetricUVIndex},
	{"lluvia", "lluvia"},
	{"poa", "poa"},
	{"PT100_1_PT_100", "PT100_1_PT_100"},
	{"Polucion_MP1", "Polucion_MP1"},
	{"Polucion_MP2", "Polucion_MP2"},
	{"Polucion_MP3", "Polucion_MP3"},
	{"SysFreeSpace", "SysFreeSpace"},
}

var canonicalKeys = func() []string {
	seen := make(map[string]bool, len(WeatherAliases))
	keys := make([]string, 0, len(WeatherAliases))
	for _, a := range WeatherAliases {
		if !seen[a.Canonical] {
			seen[a.Canonical] = true
			keys = append(keys, a.Canonical)
		}
	}
	return keys
}()

// CanonicalKeys returns every canonical weather metric in alias-table order.
func CanonicalKeys() []string {
	out := make([]string, len(canonicalKeys))
	copy(out, canonicalKeys)
	return out
}

// WeatherPayload is the upstream station response body.
type WeatherPayload struct {
	Success bool                         `json:"success"`
	Bucket  string                       `json:"bucket,omitempty"`
	Data    []map[string]json.RawMessage `json:"data"`
}

// WeatherNormalizer turns upstream payloads into canonical records and keeps
// the per-station carry-forward state. It is safe for concurrent use.
type WeatherNormalizer struct {
	mu    sync.Mutex
	state map[string]map[string]float64
	now   func() time.Time
}

// NewWeatherNormalizer returns a normalizer with empty carry-forward state.
func NewWeatherNormalizer() *WeatherNormalizer {
	return &WeatherNormalizer{
		state: make(map[string]map[string]float64),
		now:   time.Now,
	}
}

// Normalize merges payload into the station's carried-forward values and
// returns the resulting record.
//
// Items are applied oldest to newest, so the newest non-null reading of each
// metric wins. Metrics never seen for the station are nil. The timestamp is
// the last item's _time, or the current UTC time when absent.
//
// An unsuccessful or empty payload returns ErrNoData and leaves state untouched.
func (n *WeatherNormalizer) Normalize(payload *WeatherPayload, station string) (*models.WeatherRecord, error) {
	if payload == nil || !payload.Success || len(payload.Data) == 0 {
		return nil, ErrNoData
	}
	station = resolveStation(payload, station)

	n.mu.Lock()
	defer n.mu.Unlock()

	carried, ok := n.state[station]
	if !ok {
		carried = make(map[string]float64)
		n.state[station] = carried
	}

	for _, item := range payload.Data {
		for canonical, v := range resolveItem(item) {
			carried[canonical] = v
		}
	}

	metrics := make(map[string]*float64, len(canonicalKeys))
	for _, key := range canonicalKeys {
		if v, ok := carried[key]; ok {
			val := v
			metrics[key] = &val
		} else {
			metrics[key] = nil
		}
	}

	return &models.WeatherRecord{
		Station:   station,
		Timestamp: n.timestamp(payload.Data[len(payload.Data)-1]),
		Metrics:   metrics,
	}, nil
}

// Forget drops the carried-forward state for station.
func (n *WeatherNormalizer) Forget(station string) {
	n.mu.Lock()
	delete(n.state, station)
	n.mu.Unlock()
}

// resolveItem applies the alias list to one data item. The first non-null
// source key claims its canonical metric.
func resolveItem(item map[string]json.RawMessage) map[string]float64 {
	out := make(map[string]float64)
	for _, a := range WeatherAliases {
		if _, claimed := out[a.Canonical]; claimed {
			continue
		}
		raw, ok := item[a.Source]
		if !ok {
			continue
		}
		if v, ok := parseNumber(raw); ok {
			out[a.Canonical] = v
		}
	}
	return out
}

func (n *WeatherNormalizer) timestamp(last map[string]json.RawMessage) string {
	if raw, ok := last["_time"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return n.now().UTC().Format(time.RFC3339)
}

func resolveStation(payload *WeatherPayload, station string) string {
	if station != "" {
		return station
	}
	if payload.Bucket != "" {
		return payload.Bucket
	}
	if raw, ok := payload.Data[0]["bucket"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return "unknown"
}
