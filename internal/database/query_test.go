// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package database

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/gridwatch/internal/models"
)

func TestNormalizeQuery(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		q         models.HistoryQuery
		wantErr   bool
		wantLimit int
		wantStart time.Time
	}{
		{
			name:      "defaults start to 24h before end",
			q:         models.HistoryQuery{End: end},
			wantLimit: DefaultHistoryLimit,
			wantStart: end.Add(-24 * time.Hour),
		},
		{
			name:      "clamps limit",
			q:         models.HistoryQuery{Start: end.Add(-time.Hour), End: end, Limit: 1 << 20},
			wantLimit: MaxHistoryLimit,
			wantStart: end.Add(-time.Hour),
		},
		{
			name:    "start after end",
			q:       models.HistoryQuery{Start: end, End: end.Add(-time.Minute)},
			wantErr: true,
		},
		{
			name:    "empty range",
			q:       models.HistoryQuery{Start: end, End: end},
			wantErr: true,
		},
		{
			name:    "unknown aggregation",
			q:       models.HistoryQuery{End: end, Agg: "week"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeQuery(tt.q)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuery) {
					t.Fatalf("err = %v, want ErrInvalidQuery", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", got.Limit, tt.wantLimit)
			}
			if !got.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", got.Start, tt.wantStart)
			}
		})
	}
}

func TestHistorySQL_Placeholders(t *testing.T) {
	t.Parallel()

	q := models.HistoryQuery{
		Start:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Agg:    models.AggHour,
		Series: "quintay",
		Limit:  50,
	}

	pg, args := weatherHistorySQL(dialectPostgres, q)
	for _, want := range []string{"$1", "$2", "station = $3", "date_trunc('hour'", "AVG(temperatura)", "LIMIT 50"} {
		if !strings.Contains(pg, want) {
			t.Errorf("postgres SQL missing %q:\n%s", want, pg)
		}
	}
	if len(args) != 3 {
		t.Errorf("len(args) = %d, want 3", len(args))
	}

	duck, _ := weatherHistorySQL(dialectDuckDB, q)
	if strings.Contains(duck, "$1") || strings.Count(duck, "?") != 3 {
		t.Errorf("duckdb SQL should use ? placeholders:\n%s", duck)
	}

	raw, args := powerHistorySQL(dialectDuckDB, models.HistoryQuery{Start: q.Start, End: q.End, Limit: 10})
	if strings.Contains(raw, "date_trunc") || strings.Contains(raw, "source_id = ") {
		t.Errorf("raw query without series should not bucket or filter by source:\n%s", raw)
	}
	if len(args) != 2 {
		t.Errorf("len(args) = %d, want 2", len(args))
	}
}

func TestInsertWeatherSQL_ArgCount(t *testing.T) {
	t.Parallel()

	v := 21.5
	rec := &models.WeatherRecord{Station: "a", Metrics: map[string]*float64{models.MetricTemperature: &v}}
	args, err := weatherInsertArgs(rec, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	stmt := insertWeatherSQL(dialectPostgres)
	if n := strings.Count(stmt, "$"); n != len(args) {
		t.Errorf("statement has %d placeholders, args has %d", n, len(args))
	}
	if got := args[len(args)-1].(string); !strings.Contains(got, `"temperatura":21.5`) {
		t.Errorf("metrics JSON = %s", got)
	}
}
