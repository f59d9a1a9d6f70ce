// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the sections shared by both binaries.
func (c *Config) Validate() error {
	if err := c.validateBridge(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateServer checks everything cmd/server needs on top of Validate.
func (c *Config) ValidateServer() error {
	validators := []func() error{
		c.validateUpstream,
		c.validateProducer,
		c.validateNATS,
		c.validateDatabase,
		c.validateServer,
		c.Validate,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateUpstream() error {
	if !c.Producer.Enabled {
		return nil
	}
	if c.Upstream.AuthURL == "" {
		return invalidf("API_AUTH_URL is required when the weather producer is enabled")
	}
	if err := validateHTTPURL(c.Upstream.AuthURL); err != nil {
		return invalidf("API_AUTH_URL is invalid: %v", err)
	}
	if c.Upstream.Timeout <= 0 {
		return invalidf("API_TIMEOUT must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Upstream.MaxConcurrentPolls < 1 {
		return invalidf("API_MAX_CONCURRENT_POLLS must be at least 1, got %d", c.Upstream.MaxConcurrentPolls)
	}
	if c.Upstream.RequestsPerSecond < 0 {
		return invalidf("API_REQUESTS_PER_SECOND must not be negative")
	}
	if len(c.Upstream.RequiredMetrics) == 0 {
		return invalidf("REQUIRED_METRICS must name at least one metric")
	}
	return nil
}

func (c *Config) validateProducer() error {
	if c.Producer.Enabled && c.Producer.Interval <= 0 {
		return invalidf("POLL_INTERVAL must be positive, got %s", c.Producer.Interval)
	}
	if c.Aggregation.Window <= 0 {
		return invalidf("AGGREGATION_WINDOW must be positive, got %s", c.Aggregation.Window)
	}
	if c.WebSocket.HeartbeatInterval <= 0 {
		return invalidf("WS_HEARTBEAT_INTERVAL must be positive, got %s", c.WebSocket.HeartbeatInterval)
	}
	return nil
}

func (c *Config) validateNATS() error {
	n := &c.NATS
	if !n.EmbeddedServer && n.URL == "" {
		return invalidf("NATS_URL is required when the embedded server is disabled")
	}
	if n.EmbeddedServer && n.StoreDir == "" {
		return invalidf("NATS_STORE_DIR is required for the embedded server")
	}
	if n.StreamName == "" {
		return invalidf("NATS_STREAM_NAME must not be empty")
	}
	if n.DurablePrefix == "" {
		return invalidf("NATS_DURABLE_PREFIX must not be empty")
	}
	if n.WeatherTopic == "" || n.PowerTopic == "" {
		return invalidf("weather and power topics must not be empty")
	}
	if n.WeatherTopic == n.PowerTopic {
		return invalidf("weather and power topics must differ, both are %q", n.WeatherTopic)
	}
	if n.RouterPoisonQueueEnabled && n.RouterPoisonQueueTopic == "" {
		return invalidf("NATS_ROUTER_POISON_TOPIC is required when the poison queue is enabled")
	}
	if n.RouterRetryCount < 0 {
		return invalidf("NATS_ROUTER_RETRY_COUNT must not be negative")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	d := &c.Database
	switch strings.ToLower(d.Driver) {
	case "duckdb":
		if d.Path == "" {
			return invalidf("DUCKDB_PATH is required for the duckdb driver")
		}
	case "postgres", "postgresql":
		if d.DSN == "" && (d.Host == "" || d.Name == "") {
			return invalidf("DATABASE_URL or DB_HOST and DB_NAME are required for the postgres driver")
		}
	default:
		return invalidf("DB_DRIVER must be duckdb or postgres, got %q", d.Driver)
	}
	if c.Thresholds.Path == "" {
		return invalidf("THRESHOLDS_PATH must not be empty")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalidf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxIngestBytes <= 0 {
		return invalidf("MAX_INGEST_BYTES must be positive")
	}
	if c.Server.HistoryCacheTTL < 0 {
		return invalidf("HISTORY_CACHE_TTL must not be negative")
	}
	if !c.Server.RateLimitDisabled && (c.Server.RateLimitRequests <= 0 || c.Server.RateLimitWindow <= 0) {
		return invalidf("rate limit requests and window must be positive unless DISABLE_RATE_LIMIT=true")
	}
	return nil
}

func (c *Config) validateBridge() error {
	b := &c.Bridge
	if b.UDPPort < 1 || b.UDPPort > 65535 {
		return invalidf("SV_UDP_PORT must be between 1 and 65535, got %d", b.UDPPort)
	}
	if b.BufferSize <= 0 {
		return invalidf("BUFFER_SIZE must be positive, got %d", b.BufferSize)
	}
	if err := validateHTTPURL(b.BackendURL); err != nil {
		return invalidf("BACKEND_URL is invalid: %v", err)
	}
	if b.RequestTimeout <= 0 {
		return invalidf("BRIDGE_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true,
	"error": true, "fatal": true, "panic": true, "disabled": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return invalidf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalidf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
