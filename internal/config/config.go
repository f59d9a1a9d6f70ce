// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the GridWatch server and the UDP bridge.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: explicit env name -> koanf path map
//
// Both binaries share this struct. cmd/server validates with ValidateServer,
// cmd/svbridge only needs the Bridge and Logging sections.
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Upstream    UpstreamConfig    `koanf:"upstream"`
	Producer    ProducerConfig    `koanf:"producer"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	NATS        NATSConfig        `koanf:"nats"`
	Database    DatabaseConfig    `koanf:"database"`
	Thresholds  ThresholdsConfig  `koanf:"thresholds"`
	WebSocket   WebSocketConfig   `koanf:"websocket"`
	Server      ServerConfig      `koanf:"server"`
	Bridge      BridgeConfig      `koanf:"bridge"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// UpstreamConfig describes the session-cookie weather API.
//
// Environment Variables:
//   - API_AUTH_URL: login endpoint, receives {"username","password"}
//   - API_USER / API_PASSWORD: credentials
//   - API_DATA_URLS: JSON object, key=url list, or bare URL list
//   - API_TIMEOUT: per-request timeout (default: 10s)
//   - API_MAX_CONCURRENT_POLLS: station fan-out limit (default: 8)
//   - API_REQUESTS_PER_SECOND: outbound pacing, 0 disables (default: 0)
//   - REQUIRED_METRICS: publication gate (default: temperatura,humedad,presion)
type UpstreamConfig struct {
	AuthURL            string        `koanf:"auth_url"`
	Username           string        `koanf:"username"`
	Password           string        `koanf:"password"`
	DataURLs           string        `koanf:"data_urls"`
	Timeout            time.Duration `koanf:"timeout"`
	MaxConcurrentPolls int           `koanf:"max_concurrent_polls"`
	RequestsPerSecond  float64       `koanf:"requests_per_second"`
	RequiredMetrics    []string      `koanf:"required_metrics"`
}

// ProducerConfig controls the weather polling loop.
type ProducerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// AggregationConfig controls the power downsampling window.
type AggregationConfig struct {
	Window time.Duration `koanf:"window"`
}

// NATSConfig holds NATS JetStream and Watermill router settings.
//
// With EmbeddedServer the process starts its own nats-server and connects to
// it in-process; otherwise URL points at an external cluster.
type NATSConfig struct {
	EmbeddedServer      bool   `koanf:"embedded_server"`
	URL                 string `koanf:"url"`
	StoreDir            string `koanf:"store_dir"`
	MaxMemory           int64  `koanf:"max_memory"`
	MaxStore            int64  `koanf:"max_store"`
	StreamName          string `koanf:"stream_name"`
	StreamRetentionDays int    `koanf:"stream_retention_days"`

	WeatherTopic  string `koanf:"weather_topic"`
	PowerTopic    string `koanf:"power_topic"`
	DurablePrefix string `koanf:"durable_prefix"`

	// Watermill router middleware
	RouterRetryCount           int           `koanf:"router_retry_count"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`
	RouterThrottlePerSecond    int           `koanf:"router_throttle_per_second"`
	RouterPoisonQueueEnabled   bool          `koanf:"router_poison_queue_enabled"`
	RouterPoisonQueueTopic     string        `koanf:"router_poison_queue_topic"`
	RouterCloseTimeout         time.Duration `koanf:"router_close_timeout"`
}

// DatabaseConfig selects and configures the relational store.
//
// Driver "duckdb" uses Path/MaxMemory/Threads. Driver "postgres" uses DSN when
// set (DATABASE_URL), otherwise Host/Port/User/Password/Name/SSLMode which map to
// the DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME env names.
type DatabaseConfig struct {
	Driver    string `koanf:"driver"`
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`

	DSN      string `koanf:"dsn"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"ssl_mode"`
	MaxConns int32  `koanf:"max_conns"`
}

// PostgresDSN builds a libpq-style connection string. DSN wins when set.
func (d *DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// ThresholdsConfig points at the Badger directory for alarm thresholds.
type ThresholdsConfig struct {
	Path string `koanf:"path"`
}

// WebSocketConfig controls the live fanout gateway.
type WebSocketConfig struct {
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	LegacyEvents      bool          `koanf:"legacy_events"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Timeout           time.Duration `koanf:"timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	MaxIngestBytes    int64         `koanf:"max_ingest_bytes"`

	// HistoryCacheTTL keeps closed-range history answers in memory. Zero
	// disables the cache.
	HistoryCacheTTL time.Duration `koanf:"history_cache_ttl"`
}

// Addr returns host:port for http.Server.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BridgeConfig holds settings for cmd/svbridge.
//
// Environment Variables:
//   - SV_UDP_HOST / SV_UDP_PORT: listen address (default: 0.0.0.0:5000)
//   - BACKEND_URL: ingest endpoint (default: http://localhost:4000/api/sv)
//   - BUFFER_SIZE: UDP read buffer (default: 65536)
type BridgeConfig struct {
	UDPHost             string        `koanf:"udp_host"`
	UDPPort             int           `koanf:"udp_port"`
	BackendURL          string        `koanf:"backend_url"`
	BufferSize          int           `koanf:"buffer_size"`
	MaxRetries          uint64        `koanf:"max_retries"`
	RequestTimeout      time.Duration `koanf:"request_timeout"`
	MaxPacketsPerSecond float64       `koanf:"max_packets_per_second"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
