// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/gridwatch/internal/metrics"
	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/normalize"
)

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

var epoch = time.UnixMilli(1_700_000_000_000)

func TestFlush_AverageSkipsNulls(t *testing.T) {
	a := New()
	a.Add(models.PowerSample{SourceID: "sv1", TimestampMs: ip(1000), Voltage: fp(100)}, epoch)
	a.Add(models.PowerSample{SourceID: "sv1", TimestampMs: ip(2000), Voltage: fp(200)}, epoch)
	a.Add(models.PowerSample{SourceID: "sv1", TimestampMs: ip(3000), Voltage: nil, Current: fp(1)}, epoch)

	got := a.Flush()
	if len(got) != 1 {
		t.Fatalf("Flush() returned %d averages, want 1", len(got))
	}
	avg := got[0]
	if avg.Voltage == nil || *avg.Voltage != 150 {
		t.Errorf("voltage = %v, want 150", avg.Voltage)
	}
	if avg.Counts.Voltage != 2 {
		t.Errorf("voltage count = %d, want 2", avg.Counts.Voltage)
	}
	if avg.Samples != 3 {
		t.Errorf("samples = %d, want 3", avg.Samples)
	}
	if avg.TimestampMs != 2000 {
		t.Errorf("timestampMs = %d, want 2000", avg.TimestampMs)
	}
	if avg.Power != nil {
		t.Errorf("power = %v, want nil for zero contributions", *avg.Power)
	}
	if avg.Current == nil || *avg.Current != 1 || avg.Counts.Current != 1 {
		t.Errorf("current = %v (count %d), want 1 (count 1)", avg.Current, avg.Counts.Current)
	}
}

func TestFlush_Rounding(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"thirds", []float64{1, 1, 2}, 1.333},
		{"round half up", []float64{0.0005}, 0.001},
		{"exact", []float64{230.125, 230.125}, 230.125},
		{"negative", []float64{-1, -2}, -1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			for _, v := range tt.values {
				a.Add(models.PowerSample{SourceID: "s", TimestampMs: ip(1), Power: fp(v)}, epoch)
			}
			got := a.Flush()[0].Power
			if got == nil || *got != tt.want {
				t.Errorf("power = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlush_TimestampMeanRounded(t *testing.T) {
	a := New()
	a.Add(models.PowerSample{SourceID: "s", TimestampMs: ip(1000)}, epoch)
	a.Add(models.PowerSample{SourceID: "s", TimestampMs: ip(1001)}, epoch)

	if got := a.Flush()[0].TimestampMs; got != 1001 {
		t.Errorf("timestampMs = %d, want 1001 (1000.5 rounded)", got)
	}
}

func TestAdd_MissingTimestampUsesArrival(t *testing.T) {
	a := New()
	a.Add(models.PowerSample{SourceID: "s", Voltage: fp(1)}, epoch)

	if got := a.Flush()[0].TimestampMs; got != epoch.UnixMilli() {
		t.Errorf("timestampMs = %d, want arrival %d", got, epoch.UnixMilli())
	}
}

func TestFlush_SourcesIsolated(t *testing.T) {
	a := New()
	a.Add(models.PowerSample{SourceID: "b", TimestampMs: ip(10), Voltage: fp(10)}, epoch)
	a.Add(models.PowerSample{SourceID: "a", TimestampMs: ip(20), Voltage: fp(1000)}, epoch)
	a.Add(models.PowerSample{SourceID: "b", TimestampMs: ip(30), Voltage: fp(20)}, epoch)
	a.Add(models.PowerSample{TimestampMs: ip(40), Voltage: fp(5)}, epoch)

	got := a.Flush()
	if len(got) != 3 {
		t.Fatalf("Flush() returned %d averages, want 3", len(got))
	}
	wantOrder := []string{models.DefaultSourceID, "a", "b"}
	for i, id := range wantOrder {
		if got[i].SourceID != id {
			t.Errorf("averages[%d].SourceID = %q, want %q", i, got[i].SourceID, id)
		}
	}
	if *got[1].Voltage != 1000 {
		t.Errorf("a voltage = %v, want 1000", *got[1].Voltage)
	}
	if *got[2].Voltage != 15 || got[2].Samples != 2 {
		t.Errorf("b voltage = %v samples %d, want 15 and 2", *got[2].Voltage, got[2].Samples)
	}
}

func TestFlush_ClearsBuckets(t *testing.T) {
	a := New()
	a.Add(models.PowerSample{SourceID: "s", TimestampMs: ip(1), Voltage: fp(100)}, epoch)
	a.Flush()

	if got := a.Flush(); got != nil {
		t.Errorf("second Flush() = %v, want nil", got)
	}
	a.Add(models.PowerSample{SourceID: "s", TimestampMs: ip(2), Voltage: fp(300)}, epoch)
	got := a.Flush()
	if *got[0].Voltage != 300 || got[0].Samples != 1 {
		t.Errorf("new window leaked previous samples: %+v", got[0])
	}
}

func TestFlush_EmptyWindowNotCounted(t *testing.T) {
	a := New()
	before := testutil.ToFloat64(metrics.AggregationFlushes)
	if got := a.Flush(); got != nil {
		t.Errorf("Flush() = %v, want nil", got)
	}
	if after := testutil.ToFloat64(metrics.AggregationFlushes); after != before {
		t.Errorf("empty flush counted: %v -> %v", before, after)
	}
}

func TestAddRaw(t *testing.T) {
	a := New()
	if err := a.AddRaw([]byte(`{"svID":"4000","timestamp_ms":5,"values":[230,4,920]}`), epoch); err != nil {
		t.Fatalf("AddRaw() error = %v", err)
	}
	if err := a.AddRaw([]byte(`not json`), epoch); !errors.Is(err, normalize.ErrMalformed) {
		t.Errorf("AddRaw(invalid) error = %v, want ErrMalformed", err)
	}

	got := a.Flush()
	if len(got) != 1 || got[0].SourceID != "4000" || *got[0].Power != 920 {
		t.Errorf("Flush() = %+v", got)
	}
}

func TestConcurrentAddFlush(t *testing.T) {
	a := New()
	const writers, perWriter = 8, 500

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	done := make(chan struct{})
	flusherDone := make(chan struct{})
	go func() {
		defer close(flusherDone)
		for {
			select {
			case <-done:
				return
			default:
			}
			for _, avg := range a.Flush() {
				mu.Lock()
				total += avg.Samples
				mu.Unlock()
			}
		}
	}()

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				a.Add(models.PowerSample{SourceID: "s", TimestampMs: ip(int64(i)), Voltage: fp(1)}, epoch)
			}
		}()
	}
	wg.Wait()
	close(done)
	<-flusherDone

	for _, avg := range a.Flush() {
		total += avg.Samples
	}
	if total != writers*perWriter {
		t.Errorf("samples across flushes = %d, want %d", total, writers*perWriter)
	}
}

func TestRun(t *testing.T) {
	a := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitted := make(chan []models.PowerAverage, 4)
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx, 20*time.Millisecond, func(avgs []models.PowerAverage) { emitted <- avgs }) }()

	a.Add(models.PowerSample{SourceID: "s", TimestampMs: ip(1), Voltage: fp(42)}, epoch)

	select {
	case avgs := <-emitted:
		if len(avgs) != 1 || *avgs[0].Voltage != 42 {
			t.Errorf("emitted %+v", avgs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no window emitted")
	}

	// Empty windows emit nothing.
	select {
	case avgs := <-emitted:
		t.Errorf("empty window emitted %+v", avgs)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
