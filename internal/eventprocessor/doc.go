// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package eventprocessor is the GridWatch message broker layer, built on
Watermill over NATS JetStream.

# Topology

One JetStream stream (default TELEMETRY) carries two subjects:

  - weather-data: WeatherRecord JSON from the weather producer
  - power-data: raw power JSON accepted by the ingest endpoints

Three durable consumer groups read from it, each with its own position:

	<prefix>-power-live  power-data    deliver all   PowerLiveHandler   -> aggregation window
	<prefix>-power-db    power-data    deliver new   PowerStoreHandler  -> power_readings
	<prefix>-weather-db  weather-data  deliver new   WeatherHandler     -> weather_readings, fanout

Each group runs one subscriber goroutine, so messages within a group are
handled in publish order.

# Error Handling

Handlers never fail a message because of its content. Malformed payloads and
failed inserts are logged and acked. Only panics and broker errors reach the
router middleware:

	PoisonQueue -> Retry -> Recoverer -> Throttle -> handler

# Usage

	settings, err := eventprocessor.SettingsFromConfig(&cfg.NATS)
	pipeline, err := eventprocessor.NewPipeline(ctx, settings, eventprocessor.Consumers{
		PowerSink:    aggregator,
		PowerStore:   store,
		WeatherStore: store,
		Broadcaster:  hub,
	})
	defer pipeline.Close(context.Background())

	if err := pipeline.Start(ctx); err != nil { ... }
	err = pipeline.Publisher().PublishBytes(ctx, settings.PowerTopic, body)

The embedded server (Settings.Embedded) runs nats-server in-process with
JetStream file storage, so a single binary needs no external broker.
*/
package eventprocessor
