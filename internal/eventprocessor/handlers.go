// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/metrics"
	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/normalize"
)

// Handler names, also used as metric labels.
const (
	HandlerPowerLive  = "power-live"
	HandlerPowerStore = "power-store"
	HandlerWeather    = "weather-store"
)

// maxLoggedPayload bounds how much of a bad payload is logged.
const maxLoggedPayload = 256

// PowerSink receives normalized power samples. *aggregate.Aggregator
// satisfies it.
type PowerSink interface {
	Add(sample models.PowerSample, arrival time.Time)
}

// PowerWriter persists one power row.
type PowerWriter interface {
	InsertPower(ctx context.Context, sample *models.PowerSample, ts time.Time) error
}

// WeatherWriter persists one weather row.
type WeatherWriter interface {
	InsertWeather(ctx context.Context, rec *models.WeatherRecord, ts time.Time) error
}

// WeatherBroadcaster pushes a weather record to live clients.
type WeatherBroadcaster interface {
	BroadcastWeather(rec *models.WeatherRecord)
}

// HandlerStats are per-handler counters exposed through health checks.
type HandlerStats struct {
	Received  int64 `json:"received"`
	Processed int64 `json:"processed"`
	Malformed int64 `json:"malformed"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

type handlerCounters struct {
	received  atomic.Int64
	processed atomic.Int64
	malformed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

func (c *handlerCounters) stats() HandlerStats {
	return HandlerStats{
		Received:  c.received.Load(),
		Processed: c.processed.Load(),
		Malformed: c.malformed.Load(),
		Skipped:   c.skipped.Load(),
		Failed:    c.failed.Load(),
	}
}

func truncatePayload(p []byte) string {
	if len(p) <= maxLoggedPayload {
		return string(p)
	}
	return string(p[:maxLoggedPayload]) + "..."
}

// PowerLiveHandler feeds the windowed aggregation from power-data.
type PowerLiveHandler struct {
	sink     PowerSink
	now      func() time.Time
	counters handlerCounters
}

// NewPowerLiveHandler creates the live power handler.
func NewPowerLiveHandler(sink PowerSink) *PowerLiveHandler {
	return &PowerLiveHandler{sink: sink, now: time.Now}
}

// Handle normalizes one message and adds it to its source's bucket.
// Malformed payloads are logged and acked.
func (h *PowerLiveHandler) Handle(msg *message.Message) error {
	start := time.Now()
	h.counters.received.Add(1)

	sample, err := normalize.Power(msg.Payload)
	if err != nil {
		h.counters.malformed.Add(1)
		metrics.RecordNATSMalformed(HandlerPowerLive)
		logging.Warn().Err(err).
			Str("message_uuid", msg.UUID).
			Str("payload", truncatePayload(msg.Payload)).
			Msg("Dropping malformed power message")
		return nil
	}

	h.sink.Add(sample, h.now())
	h.counters.processed.Add(1)
	metrics.RecordNATSConsume(HandlerPowerLive, time.Since(start))
	return nil
}

// Stats returns handler counters.
func (h *PowerLiveHandler) Stats() HandlerStats { return h.counters.stats() }

// PowerStoreHandler persists raw power samples.
type PowerStoreHandler struct {
	store    PowerWriter
	now      func() time.Time
	counters handlerCounters
}

// NewPowerStoreHandler creates the power persistence handler.
func NewPowerStoreHandler(store PowerWriter) *PowerStoreHandler {
	return &PowerStoreHandler{store: store, now: time.Now}
}

// Handle inserts one row per message. Payloads without any metric are skipped.
// Insert failures are logged with the payload and the message is still acked.
func (h *PowerStoreHandler) Handle(msg *message.Message) error {
	start := time.Now()
	h.counters.received.Add(1)

	sample, err := normalize.Power(msg.Payload)
	if err != nil {
		h.counters.malformed.Add(1)
		metrics.RecordNATSMalformed(HandlerPowerStore)
		logging.Warn().Err(err).
			Str("message_uuid", msg.UUID).
			Str("payload", truncatePayload(msg.Payload)).
			Msg("Dropping malformed power message")
		return nil
	}
	if !sample.HasMetrics() {
		h.counters.skipped.Add(1)
		logging.Debug().
			Str("source_id", sample.SourceID).
			Str("message_uuid", msg.UUID).
			Msg("Power message has no metric values, skipping")
		return nil
	}

	ts := sample.TimeOr(h.now().UTC())
	if err := h.store.InsertPower(msg.Context(), &sample, ts); err != nil {
		h.counters.failed.Add(1)
		logging.Error().Err(err).
			Str("source_id", sample.SourceID).
			Time("timestamp", ts).
			Str("payload", truncatePayload(msg.Payload)).
			Msg("Failed to insert power reading")
		return nil
	}

	h.counters.processed.Add(1)
	metrics.RecordNATSConsume(HandlerPowerStore, time.Since(start))
	return nil
}

// Stats returns handler counters.
func (h *PowerStoreHandler) Stats() HandlerStats { return h.counters.stats() }

// WeatherHandler persists weather records and then broadcasts them.
type WeatherHandler struct {
	store       WeatherWriter
	broadcaster WeatherBroadcaster
	now         func() time.Time
	counters    handlerCounters
}

// NewWeatherHandler creates the weather handler. broadcaster may be nil.
func NewWeatherHandler(store WeatherWriter, broadcaster WeatherBroadcaster) *WeatherHandler {
	return &WeatherHandler{store: store, broadcaster: broadcaster, now: time.Now}
}

// Handle inserts the record, including partial ones, then broadcasts it.
// A failed insert is logged and the record is still broadcast.
func (h *WeatherHandler) Handle(msg *message.Message) error {
	start := time.Now()
	h.counters.received.Add(1)

	var rec models.WeatherRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil || rec.Station == "" {
		h.counters.malformed.Add(1)
		metrics.RecordNATSMalformed(HandlerWeather)
		logging.Warn().Err(err).
			Str("message_uuid", msg.UUID).
			Str("payload", truncatePayload(msg.Payload)).
			Msg("Dropping malformed weather message")
		return nil
	}
	if rec.Metrics == nil {
		rec.Metrics = map[string]*float64{}
	}

	ts := rec.Time(h.now().UTC())
	if err := h.store.InsertWeather(msg.Context(), &rec, ts); err != nil {
		h.counters.failed.Add(1)
		logging.Error().Err(err).
			Str("station", rec.Station).
			Time("timestamp", ts).
			Str("payload", truncatePayload(msg.Payload)).
			Msg("Failed to insert weather reading")
	} else {
		h.counters.processed.Add(1)
	}

	if h.broadcaster != nil {
		h.broadcaster.BroadcastWeather(&rec)
	}
	metrics.RecordNATSConsume(HandlerWeather, time.Since(start))
	return nil
}

// Stats returns handler counters.
func (h *WeatherHandler) Stats() HandlerStats { return h.counters.stats() }
