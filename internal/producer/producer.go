// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package producer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/metrics"
	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/upstream"
)

// Publisher sends an already-encoded payload to a broker topic.
// *eventprocessor.Publisher satisfies it.
type Publisher interface {
	PublishBytes(ctx context.Context, topic string, payload []byte) error
}

// Poller runs one polling round. *upstream.Client satisfies it.
type Poller interface {
	PollAll(ctx context.Context) []upstream.PollResult
}

// Config configures a Producer.
type Config struct {
	// Interval between rounds. Rounds are not serialized: a slow round keeps
	// running while the next tick starts another.
	Interval time.Duration

	// Topic receives every record that passes the gate.
	Topic string

	// RequiredMetrics must all be non-null before a record is published.
	RequiredMetrics []string
}

// Producer polls the upstream API on a fixed interval, keeps the latest record
// per station, and publishes records that pass the required-metric gate.
type Producer struct {
	cfg       Config
	poller    Poller
	publisher Publisher

	snapMu   sync.RWMutex
	snapshot map[string]models.WeatherRecord

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	loopWG   sync.WaitGroup
	roundWG  sync.WaitGroup
}

// New creates a Producer. It does not start polling.
func New(cfg Config, poller Poller, publisher Publisher) *Producer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Producer{
		cfg:       cfg,
		poller:    poller,
		publisher: publisher,
		snapshot:  make(map[string]models.WeatherRecord),
	}
}

// Start begins the ticker loop and returns immediately.
func (p *Producer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("producer is already running")
	}
	p.running = true
	p.stopChan = make(chan struct{})

	logging.Info().
		Dur("interval", p.cfg.Interval).
		Str("topic", p.cfg.Topic).
		Strs("required_metrics", p.cfg.RequiredMetrics).
		Msg("Starting weather producer")

	p.loopWG.Add(1)
	go p.loop(ctx, p.stopChan)
	return nil
}

// Stop ends the ticker loop and waits for in-flight rounds.
func (p *Producer) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return errors.New("producer is not running")
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.loopWG.Wait()
	p.roundWG.Wait()
	logging.Info().Msg("Weather producer stopped")
	return nil
}

// IsRunning reports whether the ticker loop is active.
func (p *Producer) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Producer) loop(ctx context.Context, stop <-chan struct{}) {
	defer p.loopWG.Done()

	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			p.roundWG.Add(1)
			go func() {
				defer p.roundWG.Done()
				p.RunRound(roundCtx)
			}()
		}
	}
}

// RunRound polls every station once, refreshes the snapshot, and publishes
// eligible records. It returns the number of records published.
func (p *Producer) RunRound(ctx context.Context) int {
	metrics.ProducerRounds.Inc()

	published := 0
	for _, r := range p.poller.PollAll(ctx) {
		if r.Err != nil || r.Record == nil {
			continue
		}
		rec := r.Record.Clone()

		p.snapMu.Lock()
		p.snapshot[rec.Station] = rec
		p.snapMu.Unlock()

		if !rec.HasAll(p.cfg.RequiredMetrics) {
			metrics.ProducerGated.WithLabelValues(rec.Station).Inc()
			continue
		}
		if p.publish(ctx, &rec) {
			published++
		}
	}
	return published
}

func (p *Producer) publish(ctx context.Context, rec *models.WeatherRecord) bool {
	payload, err := json.Marshal(rec)
	if err != nil {
		metrics.ProducerPublishErrors.Inc()
		logging.Error().Err(err).Str("station", rec.Station).Msg("Failed to encode weather record")
		return false
	}
	if err := p.publisher.PublishBytes(ctx, p.cfg.Topic, payload); err != nil {
		metrics.ProducerPublishErrors.Inc()
		logging.Error().Err(err).Str("station", rec.Station).Str("topic", p.cfg.Topic).Msg("Failed to publish weather record")
		return false
	}
	metrics.ProducerPublished.WithLabelValues(rec.Station).Inc()
	return true
}

// Snapshot returns a copy of the latest record per station, including records
// that did not pass the publication gate.
func (p *Producer) Snapshot() map[string]models.WeatherRecord {
	p.snapMu.RLock()
	defer p.snapMu.RUnlock()

	out := make(map[string]models.WeatherRecord, len(p.snapshot))
	for k, v := range p.snapshot {
		out[k] = v.Clone()
	}
	return out
}

// Latest returns the latest record for station.
func (p *Producer) Latest(station string) (models.WeatherRecord, bool) {
	p.snapMu.RLock()
	defer p.snapMu.RUnlock()

	rec, ok := p.snapshot[station]
	if !ok {
		return models.WeatherRecord{}, false
	}
	return rec.Clone(), true
}
