// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/gridwatch/internal/config"
	"github.com/tomtom215/gridwatch/internal/eventprocessor"
	"github.com/tomtom215/gridwatch/internal/logging"
)

// initPipeline connects the broker and ensures the stream. Consumers start
// later, when the supervisor runs the pipeline service.
func initPipeline(ctx context.Context, cfg *config.NATSConfig, consumers eventprocessor.Consumers) (*eventprocessor.Pipeline, error) {
	settings, err := eventprocessor.SettingsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid broker settings: %w", err)
	}

	pipeline, err := eventprocessor.NewPipeline(ctx, settings, consumers)
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("url", logging.SanitizeURL(pipeline.URL())).
		Str("stream", settings.Stream.Name).
		Str("weather_topic", settings.WeatherTopic).
		Str("power_topic", settings.PowerTopic).
		Str("durable_prefix", settings.DurablePrefix).
		Msg("Broker pipeline initialized")
	return pipeline, nil
}
