// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package main

import (
	"fmt"

	"github.com/tomtom215/gridwatch/internal/config"
	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/normalize"
	"github.com/tomtom215/gridwatch/internal/producer"
	"github.com/tomtom215/gridwatch/internal/upstream"
)

// initProducer builds the upstream client and the weather producer. Both are
// nil when PRODUCER_ENABLED=false.
func initProducer(cfg *config.Config, publisher producer.Publisher) (*upstream.Client, *producer.Producer, error) {
	if !cfg.Producer.Enabled {
		logging.Info().Msg("Weather producer disabled (PRODUCER_ENABLED=false)")
		return nil, nil, nil
	}

	stations, err := upstream.ParseStations(cfg.Upstream.DataURLs)
	if err != nil {
		return nil, nil, fmt.Errorf("API_DATA_URLS: %w", err)
	}

	client, err := upstream.NewClient(upstream.Config{
		AuthURL:            cfg.Upstream.AuthURL,
		Username:           cfg.Upstream.Username,
		Password:           cfg.Upstream.Password,
		Stations:           stations,
		Timeout:            cfg.Upstream.Timeout,
		MaxConcurrentPolls: cfg.Upstream.MaxConcurrentPolls,
		RequestsPerSecond:  cfg.Upstream.RequestsPerSecond,
	}, normalize.NewWeatherNormalizer())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	p := producer.New(producer.Config{
		Interval:        cfg.Producer.Interval,
		Topic:           cfg.NATS.WeatherTopic,
		RequiredMetrics: cfg.Upstream.RequiredMetrics,
	}, client, publisher)

	logging.Info().
		Strs("stations", client.Stations()).
		Dur("interval", cfg.Producer.Interval).
		Str("auth_url", logging.SanitizeURL(cfg.Upstream.AuthURL)).
		Msg("Weather producer initialized")
	return client, p, nil
}
