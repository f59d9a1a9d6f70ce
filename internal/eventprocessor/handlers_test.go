// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/gridwatch/internal/models"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type addedSample struct {
	sample  models.PowerSample
	arrival time.Time
}

type fakeSink struct {
	mu    sync.Mutex
	added []addedSample
}

func (s *fakeSink) Add(sample models.PowerSample, arrival time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, addedSample{sample, arrival})
}

func (s *fakeSink) samples() []addedSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]addedSample(nil), s.added...)
}

type powerRow struct {
	sample models.PowerSample
	ts     time.Time
}

type weatherRow struct {
	rec models.WeatherRecord
	ts  time.Time
}

type fakeWriter struct {
	mu      sync.Mutex
	err     error
	power   []powerRow
	weather []weatherRow
}

func (w *fakeWriter) InsertPower(_ context.Context, s *models.PowerSample, ts time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.power = append(w.power, powerRow{*s, ts})
	return nil
}

func (w *fakeWriter) InsertWeather(_ context.Context, r *models.WeatherRecord, ts time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.weather = append(w.weather, weatherRow{r.Clone(), ts})
	return nil
}

func (w *fakeWriter) powerRows() []powerRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]powerRow(nil), w.power...)
}

func (w *fakeWriter) weatherRows() []weatherRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]weatherRow(nil), w.weather...)
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	recs []models.WeatherRecord
}

func (b *fakeBroadcaster) BroadcastWeather(rec *models.WeatherRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recs = append(b.recs, rec.Clone())
}

func (b *fakeBroadcaster) records() []models.WeatherRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.WeatherRecord(nil), b.recs...)
}

func newMsg(payload string) *message.Message {
	return message.NewMessage(watermill.NewUUID(), []byte(payload))
}

func TestPowerLiveHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		payload   string
		wantAdded bool
		wantTS    *int64
	}{
		{"canonical", `{"sourceId":"inv-1","timestampMs":1000,"voltage":220}`, true, ptrInt64(1000)},
		{"no timestamp", `{"sourceId":"inv-1","power":5}`, true, nil},
		{"no metrics still counts toward samples", `{"sourceId":"inv-1"}`, true, nil},
		{"not json", `hello`, false, nil},
		{"json array", `[1,2,3]`, false, nil},
		{"empty", ``, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &fakeSink{}
			h := NewPowerLiveHandler(sink)
			h.now = func() time.Time { return fixedNow }

			if err := h.Handle(newMsg(tt.payload)); err != nil {
				t.Fatalf("Handle() error = %v, want nil (message must be acked)", err)
			}

			added := sink.samples()
			if !tt.wantAdded {
				if len(added) != 0 {
					t.Fatalf("sink received %d samples, want 0", len(added))
				}
				if h.Stats().Malformed != 1 {
					t.Errorf("Malformed = %d, want 1", h.Stats().Malformed)
				}
				return
			}
			if len(added) != 1 {
				t.Fatalf("sink received %d samples, want 1", len(added))
			}
			if !added[0].arrival.Equal(fixedNow) {
				t.Errorf("arrival = %v, want %v", added[0].arrival, fixedNow)
			}
			got := added[0].sample.TimestampMs
			switch {
			case tt.wantTS == nil && got != nil:
				t.Errorf("TimestampMs = %d, want nil", *got)
			case tt.wantTS != nil && (got == nil || *got != *tt.wantTS):
				t.Errorf("TimestampMs = %v, want %d", got, *tt.wantTS)
			}
		})
	}
}

func TestPowerStoreHandler(t *testing.T) {
	t.Parallel()

	t.Run("uses payload timestamp", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{}
		h := NewPowerStoreHandler(w)
		h.now = func() time.Time { return fixedNow }

		if err := h.Handle(newMsg(`{"sourceId":"a","timestampMs":1700000000000,"voltage":230.5}`)); err != nil {
			t.Fatal(err)
		}
		rows := w.powerRows()
		if len(rows) != 1 {
			t.Fatalf("inserted %d rows, want 1", len(rows))
		}
		if want := time.UnixMilli(1700000000000).UTC(); !rows[0].ts.Equal(want) {
			t.Errorf("ts = %v, want %v", rows[0].ts, want)
		}
		if rows[0].sample.SourceID != "a" || *rows[0].sample.Voltage != 230.5 {
			t.Errorf("row = %+v", rows[0].sample)
		}
	})

	t.Run("falls back to now", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{}
		h := NewPowerStoreHandler(w)
		h.now = func() time.Time { return fixedNow }

		_ = h.Handle(newMsg(`{"power":12}`))
		rows := w.powerRows()
		if len(rows) != 1 || !rows[0].ts.Equal(fixedNow) {
			t.Fatalf("rows = %+v, want one row at %v", rows, fixedNow)
		}
		if rows[0].sample.SourceID != models.DefaultSourceID {
			t.Errorf("SourceID = %q, want %q", rows[0].sample.SourceID, models.DefaultSourceID)
		}
	})

	t.Run("skips payload without metrics", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{}
		h := NewPowerStoreHandler(w)

		if err := h.Handle(newMsg(`{"sourceId":"a","timestampMs":5}`)); err != nil {
			t.Fatal(err)
		}
		if len(w.powerRows()) != 0 {
			t.Error("a payload with no metrics must not be inserted")
		}
		if h.Stats().Skipped != 1 {
			t.Errorf("Skipped = %d, want 1", h.Stats().Skipped)
		}
	})

	t.Run("insert failure is acked", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{err: errors.New("disk full")}
		h := NewPowerStoreHandler(w)

		if err := h.Handle(newMsg(`{"voltage":1}`)); err != nil {
			t.Fatalf("Handle() error = %v, want nil", err)
		}
		if s := h.Stats(); s.Failed != 1 || s.Processed != 0 {
			t.Errorf("Stats = %+v, want Failed=1 Processed=0", s)
		}
	})

	t.Run("malformed is acked", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{}
		h := NewPowerStoreHandler(w)

		if err := h.Handle(newMsg(`{"voltage":`)); err != nil {
			t.Fatalf("Handle() error = %v, want nil", err)
		}
		if h.Stats().Malformed != 1 {
			t.Errorf("Malformed = %d, want 1", h.Stats().Malformed)
		}
	})
}

func TestWeatherHandler(t *testing.T) {
	t.Parallel()

	t.Run("inserts partial record then broadcasts", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{}
		b := &fakeBroadcaster{}
		h := NewWeatherHandler(w, b)
		h.now = func() time.Time { return fixedNow }

		payload := `{"station":"quintay","timestamp":"2026-03-01T10:00:00Z","metrics":{"temperatura":18.2,"humedad":null}}`
		if err := h.Handle(newMsg(payload)); err != nil {
			t.Fatal(err)
		}

		rows := w.weatherRows()
		if len(rows) != 1 {
			t.Fatalf("inserted %d rows, want 1", len(rows))
		}
		if want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC); !rows[0].ts.Equal(want) {
			t.Errorf("ts = %v, want %v", rows[0].ts, want)
		}
		if v, ok := rows[0].rec.Value(models.MetricTemperature); !ok || v != 18.2 {
			t.Errorf("temperatura = %v, %v", v, ok)
		}
		if _, ok := rows[0].rec.Value(models.MetricHumidity); ok {
			t.Error("humedad should be null")
		}

		if recs := b.records(); len(recs) != 1 || recs[0].Station != "quintay" {
			t.Errorf("broadcast = %+v, want one quintay record", recs)
		}
	})

	t.Run("bad timestamp uses now", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{}
		h := NewWeatherHandler(w, nil)
		h.now = func() time.Time { return fixedNow }

		_ = h.Handle(newMsg(`{"station":"a","timestamp":"yesterday","metrics":{}}`))
		rows := w.weatherRows()
		if len(rows) != 1 || !rows[0].ts.Equal(fixedNow) {
			t.Fatalf("rows = %+v, want one row at %v", rows, fixedNow)
		}
	})

	t.Run("insert failure still broadcasts", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{err: errors.New("connection refused")}
		b := &fakeBroadcaster{}
		h := NewWeatherHandler(w, b)

		if err := h.Handle(newMsg(`{"station":"a","metrics":{"presion":1013}}`)); err != nil {
			t.Fatalf("Handle() error = %v, want nil", err)
		}
		if len(b.records()) != 1 {
			t.Error("record should be broadcast even when the insert fails")
		}
		if h.Stats().Failed != 1 {
			t.Errorf("Failed = %d, want 1", h.Stats().Failed)
		}
	})

	t.Run("malformed payloads are dropped", func(t *testing.T) {
		t.Parallel()
		for _, payload := range []string{`nope`, `{"metrics":{"temperatura":1}}`, `[]`} {
			w := &fakeWriter{}
			b := &fakeBroadcaster{}
			h := NewWeatherHandler(w, b)

			if err := h.Handle(newMsg(payload)); err != nil {
				t.Fatalf("Handle(%q) error = %v, want nil", payload, err)
			}
			if len(w.weatherRows()) != 0 || len(b.records()) != 0 {
				t.Errorf("Handle(%q) should neither insert nor broadcast", payload)
			}
		}
	})
}

func ptrInt64(v int64) *int64 { return &v }
