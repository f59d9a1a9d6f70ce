// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/models"
)

func decodeWeather(t *testing.T, body string) *WeatherPayload {
	t.Helper()
	var p WeatherPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return &p
}

func metric(t *testing.T, rec *models.WeatherRecord, key string) float64 {
	t.Helper()
	v, ok := rec.Value(key)
	if !ok {
		t.Fatalf("metric %s is null, want a value", key)
	}
	return v
}

func TestWeatherNormalizer_CarryForward(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()

	first := decodeWeather(t, `{"success":true,"data":[{"temperatura_amb":18,"humedad_amb":60,"presion_absoluta_hpa":1012}]}`)
	if _, err := n.Normalize(first, "quintay"); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	second := decodeWeather(t, `{"success":true,"data":[{"temperatura_amb":21.5}]}`)
	rec, err := n.Normalize(second, "quintay")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if got := metric(t, rec, models.MetricTemperature); got != 21.5 {
		t.Errorf("temperatura = %v, want 21.5", got)
	}
	if got := metric(t, rec, models.MetricHumidity); got != 60 {
		t.Errorf("humedad = %v, want carried 60", got)
	}
	if got := metric(t, rec, models.MetricPressure); got != 1012 {
		t.Errorf("presion = %v, want carried 1012", got)
	}
}

func TestWeatherNormalizer_NullDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()
	n.Normalize(decodeWeather(t, `{"success":true,"data":[{"humedad_amb":55}]}`), "s") //nolint:errcheck

	rec, err := n.Normalize(decodeWeather(t, `{"success":true,"data":[{"humedad_amb":null}]}`), "s")
	if err != nil {
		t.Fatal(err)
	}
	if got := metric(t, rec, models.MetricHumidity); got != 55 {
		t.Errorf("humedad = %v, want 55", got)
	}
}

func TestWeatherNormalizer_StationIsolation(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()
	n.Normalize(decodeWeather(t, `{"success":true,"data":[{"humedad_amb":90}]}`), "a") //nolint:errcheck

	rec, err := n.Normalize(decodeWeather(t, `{"success":true,"data":[{"temperatura_amb":10}]}`), "b")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rec.Value(models.MetricHumidity); ok {
		t.Error("station b inherited humidity from station a")
	}
}

func TestWeatherNormalizer_FirstAliasWinsWithinItem(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()
	rec, err := n.Normalize(decodeWeather(t,
		`{"success":true,"data":[{"Modbus_1_temperatura":5,"temperatura_amb":20}]}`), "s")
	if err != nil {
		t.Fatal(err)
	}
	if got := metric(t, rec, models.MetricTemperature); got != 20 {
		t.Errorf("temperatura = %v, want 20 from the earlier alias", got)
	}

	// A null earlier alias yields to a later non-null one.
	rec, err = n.Normalize(decodeWeather(t,
		`{"success":true,"data":[{"presion_absoluta_hpa":null,"presion_absoluta_mbar":1009}]}`), "s")
	if err != nil {
		t.Fatal(err)
	}
	if got := metric(t, rec, models.MetricPressure); got != 1009 {
		t.Errorf("presion = %v, want 1009", got)
	}
}

func TestWeatherNormalizer_NewestItemWins(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()
	rec, err := n.Normalize(decodeWeather(t, `{"success":true,"data":[
		{"temperatura_amb":10,"humedad_amb":40,"_time":"2026-03-01T10:00:00Z"},
		{"temperatura_amb":12,"_time":"2026-03-01T10:01:00Z"}
	]}`), "s")
	if err != nil {
		t.Fatal(err)
	}
	if got := metric(t, rec, models.MetricTemperature); got != 12 {
		t.Errorf("temperatura = %v, want 12", got)
	}
	if got := metric(t, rec, models.MetricHumidity); got != 40 {
		t.Errorf("humedad = %v, want 40", got)
	}
	if rec.Timestamp != "2026-03-01T10:01:00Z" {
		t.Errorf("Timestamp = %q, want last item's _time", rec.Timestamp)
	}
}

func TestWeatherNormalizer_NumericStrings(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()
	rec, err := n.Normalize(decodeWeather(t,
		`{"success":true,"data":[{"temperatura_amb":"19.25","humedad_amb":"n/a","uv":true}]}`), "s")
	if err != nil {
		t.Fatal(err)
	}
	if got := metric(t, rec, models.MetricTemperature); got != 19.25 {
		t.Errorf("temperatura = %v, want 19.25", got)
	}
	if _, ok := rec.Value(models.MetricHumidity); ok {
		t.Error("non-numeric string should be ignored")
	}
	if _, ok := rec.Value(models.MetricUVIndex); ok {
		t.Error("boolean should be ignored")
	}
}

func TestWeatherNormalizer_AllKeysPresent(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()
	rec, err := n.Normalize(decodeWeather(t, `{"success":true,"data":[{"uv":3}]}`), "s")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range CanonicalKeys() {
		if _, ok := rec.Metrics[key]; !ok {
			t.Errorf("canonical key %q missing from metrics", key)
		}
	}
	if len(rec.Metrics) != len(CanonicalKeys()) {
		t.Errorf("metrics has %d keys, want %d", len(rec.Metrics), len(CanonicalKeys()))
	}
}

func TestWeatherNormalizer_TimestampFallback(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()
	n.now = func() time.Time { return time.Date(2026, 5, 4, 3, 2, 1, 0, time.FixedZone("x", 3600)) }

	rec, err := n.Normalize(decodeWeather(t, `{"success":true,"data":[{"uv":1}]}`), "s")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Timestamp != "2026-05-04T02:02:01Z" {
		t.Errorf("Timestamp = %q, want UTC now", rec.Timestamp)
	}
}

func TestWeatherNormalizer_NoData(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()
	for _, body := range []string{
		`{"success":false,"data":[{"uv":1}]}`,
		`{"success":true,"data":[]}`,
		`{"success":true}`,
	} {
		if _, err := n.Normalize(decodeWeather(t, body), "s"); !errors.Is(err, ErrNoData) {
			t.Errorf("Normalize(%s) error = %v, want ErrNoData", body, err)
		}
	}
	if _, err := n.Normalize(nil, "s"); !errors.Is(err, ErrNoData) {
		t.Errorf("Normalize(nil) error = %v, want ErrNoData", err)
	}
}

func TestWeatherNormalizer_StationFallback(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()
	rec, err := n.Normalize(decodeWeather(t, `{"success":true,"data":[{"bucket":"casona_davis","uv":1}]}`), "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Station != "casona_davis" {
		t.Errorf("Station = %q, want bucket name", rec.Station)
	}

	rec, err = n.Normalize(decodeWeather(t, `{"success":true,"data":[{"uv":1}]}`), "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Station != "unknown" {
		t.Errorf("Station = %q, want unknown", rec.Station)
	}
}

func TestWeatherNormalizer_Forget(t *testing.T) {
	t.Parallel()

	n := NewWeatherNormalizer()
	n.Normalize(decodeWeather(t, `{"success":true,"data":[{"humedad_amb":70}]}`), "s") //nolint:errcheck
	n.Forget("s")

	rec, err := n.Normalize(decodeWeather(t, `{"success":true,"data":[{"uv":1}]}`), "s")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rec.Value(models.MetricHumidity); ok {
		t.Error("Forget() did not clear carried values")
	}
}
