// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/gridwatch/internal/config"
	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/testinfra"
)

func TestPostgresStore(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, pg)

	store, err := Open(ctx, &config.DatabaseConfig{Driver: "postgres", DSN: pg.DSN, MaxConns: 4})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	for i, temp := range []*float64{fp(10), fp(20), nil} {
		if err := store.InsertWeather(ctx, weatherRecord("quintay", temp, nil), base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("InsertWeather() error = %v", err)
		}
	}
	hourly, err := store.WeatherHistory(ctx, models.HistoryQuery{Start: base, End: base.Add(time.Hour), Agg: models.AggHour})
	if err != nil {
		t.Fatalf("WeatherHistory() error = %v", err)
	}
	if len(hourly) != 1 {
		t.Fatalf("buckets = %d, want 1", len(hourly))
	}
	if v := hourly[0].Metrics[models.MetricTemperature]; v == nil || *v != 15 {
		t.Errorf("temperatura = %v, want 15", v)
	}
	if !hourly[0].Timestamp.Equal(base) {
		t.Errorf("bucket = %v, want %v", hourly[0].Timestamp, base)
	}

	raw, err := store.WeatherHistory(ctx, models.HistoryQuery{Start: base, End: base.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 3 || raw[0].Metrics["lluvia"] == nil {
		t.Errorf("raw rows = %d, lluvia = %v", len(raw), raw[0].Metrics["lluvia"])
	}

	if err := store.InsertPower(ctx, &models.PowerSample{SourceID: "inv-1", Voltage: fp(220)}, base); err != nil {
		t.Fatalf("InsertPower() error = %v", err)
	}
	power, err := store.PowerHistory(ctx, models.HistoryQuery{Start: base, End: base.Add(time.Minute), Series: "inv-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(power) != 1 || power[0].Current != nil || *power[0].Voltage != 220 {
		t.Errorf("power = %+v", power)
	}
}
