// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gridwatch/config.yaml",
	"/etc/gridwatch/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvFile is loaded into the process environment when present.
const DotEnvFile = ".env"

func defaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			Timeout:            10 * time.Second,
			MaxConcurrentPolls: 8,
			RequestsPerSecond:  0,
			RequiredMetrics:    []string{"temperatura", "humedad", "presion"},
		},
		Producer: ProducerConfig{
			Enabled:  true,
			Interval: time.Second,
		},
		Aggregation: AggregationConfig{
			Window: time.Second,
		},
		NATS: NATSConfig{
			EmbeddedServer:      true,
			URL:                 "nats://127.0.0.1:4222",
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           256 << 20, // 256MB
			MaxStore:            4 << 30,   // 4GB
			StreamName:          "TELEMETRY",
			StreamRetentionDays: 7,
			WeatherTopic:        "weather-data",
			PowerTopic:          "power-data",
			DurablePrefix:       "gridwatch",

			RouterRetryCount:           3,
			RouterRetryInitialInterval: 100 * time.Millisecond,
			RouterThrottlePerSecond:    0,
			RouterPoisonQueueEnabled:   true,
			RouterPoisonQueueTopic:     "telemetry.poison",
			RouterCloseTimeout:         30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:    "duckdb",
			Path:      "/data/gridwatch.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
			Host:      "localhost",
			Port:      5432,
			User:      "postgres",
			Name:      "gridwatch",
			SSLMode:   "disable",
			MaxConns:  10,
		},
		Thresholds: ThresholdsConfig{
			Path: "/data/thresholds",
		},
		WebSocket: WebSocketConfig{
			HeartbeatInterval: 15 * time.Second,
			LegacyEvents:      true,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              4000,
			Timeout:           30 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
			MaxIngestBytes:    1 << 20,
			HistoryCacheTTL:   30 * time.Second,
		},
		Bridge: BridgeConfig{
			UDPHost:             "0.0.0.0",
			UDPPort:             5000,
			BackendURL:          "http://localhost:4000/api/sv",
			BufferSize:          65536,
			MaxRetries:          5,
			RequestTimeout:      5 * time.Second,
			MaxPacketsPerSecond: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration without running any validation. Callers pick the
// validator that matches their binary.
//
// Order: .env (if present) -> defaults -> YAML file -> environment.
func Load() (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// LoadServer loads and validates the configuration for cmd/server.
func LoadServer() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadBridge loads and validates the configuration for cmd/svbridge.
func LoadBridge() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"upstream.required_metrics",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Names used by the existing deployment (API_USER, DB_HOST, SV_UDP_PORT, ...)
// are kept as-is.
var envMappings = map[string]string{
	// Upstream
	"api_auth_url":             "upstream.auth_url",
	"api_user":                 "upstream.username",
	"api_password":             "upstream.password",
	"api_data_urls":            "upstream.data_urls",
	"api_timeout":              "upstream.timeout",
	"api_max_concurrent_polls": "upstream.max_concurrent_polls",
	"api_requests_per_second":  "upstream.requests_per_second",
	"required_metrics":         "upstream.required_metrics",

	// Producer / aggregation
	"producer_enabled":   "producer.enabled",
	"poll_interval":      "producer.interval",
	"aggregation_window": "aggregation.window",

	// NATS
	"nats_url":                   "nats.url",
	"nats_embedded":              "nats.embedded_server",
	"nats_store_dir":             "nats.store_dir",
	"nats_max_memory":            "nats.max_memory",
	"nats_max_store":             "nats.max_store",
	"nats_stream_name":           "nats.stream_name",
	"nats_retention_days":        "nats.stream_retention_days",
	"nats_weather_topic":         "nats.weather_topic",
	"nats_power_topic":           "nats.power_topic",
	"nats_durable_prefix":        "nats.durable_prefix",
	"nats_router_retry_count":    "nats.router_retry_count",
	"nats_router_retry_interval": "nats.router_retry_initial_interval",
	"nats_router_throttle":       "nats.router_throttle_per_second",
	"nats_router_poison_enabled": "nats.router_poison_queue_enabled",
	"nats_router_poison_topic":   "nats.router_poison_queue_topic",
	"nats_router_close_timeout":  "nats.router_close_timeout",

	// Database
	"db_driver":         "database.driver",
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",
	"database_url":      "database.dsn",
	"db_host":           "database.host",
	"db_port":           "database.port",
	"db_user":           "database.user",
	"db_password":       "database.password",
	"db_name":           "database.name",
	"db_sslmode":        "database.ssl_mode",
	"db_max_conns":      "database.max_conns",

	// Thresholds
	"thresholds_path": "thresholds.path",

	// WebSocket
	"ws_heartbeat_interval": "websocket.heartbeat_interval",
	"ws_legacy_events":      "websocket.legacy_events",

	// Server
	"port":                "server.port",
	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",
	"max_ingest_bytes":    "server.max_ingest_bytes",
	"history_cache_ttl":   "server.history_cache_ttl",

	// Bridge
	"sv_udp_host":            "bridge.udp_host",
	"sv_udp_port":            "bridge.udp_port",
	"backend_url":            "bridge.backend_url",
	"buffer_size":            "bridge.buffer_size",
	"bridge_max_retries":     "bridge.max_retries",
	"bridge_request_timeout": "bridge.request_timeout",
	"bridge_max_pps":         "bridge.max_packets_per_second",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc returns "" for unmapped names so unrelated environment
// variables never leak into the config.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
