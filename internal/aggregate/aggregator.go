// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package aggregate

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/metrics"
	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/normalize"
)

// EmitFunc receives the averages of one non-empty window, ordered by source.
type EmitFunc func(averages []models.PowerAverage)

// sum is a running total and the number of values that contributed to it.
type sum struct {
	total float64
	count int
}

func (s *sum) add(v *float64) {
	if v == nil {
		return
	}
	s.total += *v
	s.count++
}

func (s *sum) mean() *float64 {
	if s.count == 0 {
		return nil
	}
	m := round3(s.total / float64(s.count))
	return &m
}

type bucket struct {
	tsSum   int64
	samples int
	voltage sum
	current sum
	power   sum
}

// Aggregator downsamples power samples into per-source window averages.
//
// Add and Flush are the only mutators and are safe to call from different
// goroutines: message handling adds while the window ticker flushes.
type Aggregator struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{buckets: make(map[string]*bucket)}
}

// Add folds sample into its source's bucket. arrival is used when the sample
// has no timestamp.
func (a *Aggregator) Add(sample models.PowerSample, arrival time.Time) {
	ts := arrival.UnixMilli()
	if sample.TimestampMs != nil {
		ts = *sample.TimestampMs
	}
	source := sample.SourceID
	if source == "" {
		source = models.DefaultSourceID
	}

	a.mu.Lock()
	b, ok := a.buckets[source]
	if !ok {
		b = &bucket{}
		a.buckets[source] = b
	}
	b.tsSum += ts
	b.samples++
	b.voltage.add(sample.Voltage)
	b.current.add(sample.Current)
	b.power.add(sample.Power)
	a.mu.Unlock()

	metrics.AggregationSamples.Inc()
}

// AddRaw normalizes a raw power payload and adds it.
func (a *Aggregator) AddRaw(raw []byte, arrival time.Time) error {
	sample, err := normalize.Power(raw)
	if err != nil {
		return err
	}
	a.Add(sample, arrival)
	return nil
}

// Pending returns the number of sources with samples in the current window.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}

// Flush computes one average per source and clears every bucket. Metrics with
// no contributions are nil. An empty window returns nil.
func (a *Aggregator) Flush() []models.PowerAverage {
	a.mu.Lock()
	buckets := a.buckets
	a.buckets = make(map[string]*bucket, len(buckets))
	a.mu.Unlock()

	if len(buckets) == 0 {
		return nil
	}

	out := make([]models.PowerAverage, 0, len(buckets))
	for source, b := range buckets {
		out = append(out, models.PowerAverage{
			SourceID:    source,
			TimestampMs: int64(math.Round(float64(b.tsSum) / float64(b.samples))),
			Voltage:     b.voltage.mean(),
			Current:     b.current.mean(),
			Power:       b.power.mean(),
			Samples:     b.samples,
			Counts: models.MetricCounts{
				Voltage: b.voltage.count,
				Current: b.current.count,
				Power:   b.power.count,
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })

	metrics.RecordFlush(len(out))
	return out
}

// Run flushes every window until ctx is cancelled, passing non-empty results
// to emit. Samples still buffered at cancellation are discarded.
func (a *Aggregator) Run(ctx context.Context, window time.Duration, emit EmitFunc) error {
	if window <= 0 {
		window = time.Second
	}
	ticker := time.NewTicker(window)
	defer ticker.Stop()

	logging.Debug().Dur("window", window).Msg("Power aggregation started")

	for {
		select {
		case <-ctx.Done():
			logging.Debug().Msg("Power aggregation stopped")
			return ctx.Err()
		case <-ticker.C:
			if averages := a.Flush(); len(averages) > 0 && emit != nil {
				emit(averages)
			}
		}
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
