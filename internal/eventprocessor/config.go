// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/tomtom215/gridwatch/internal/config"
)

// Durable consumer group suffixes. Each is prefixed with NATSConfig.DurablePrefix.
const (
	GroupPowerLive  = "power-live"
	GroupPowerStore = "power-db"
	GroupWeather    = "weather-db"
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int // -1 picks a random port
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
	ReadyTimeout      time.Duration
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool // nolint:revive // ID is correct per Go conventions
}

// DefaultPublisherConfig returns production defaults for publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig holds subscriber configuration for one consumer group.
type SubscriberConfig struct {
	URL string

	// DurableName identifies the consumer group. JetStream keeps its position
	// across restarts.
	DurableName string

	// DeliverAll replays the stream from the beginning when the durable
	// consumer is first created. Otherwise only new messages are delivered.
	DeliverAll bool

	// StreamName binds the subscriber to an existing stream instead of
	// provisioning one per topic.
	StreamName string

	AckWaitTimeout time.Duration
	MaxDeliver     int
	MaxAckPending  int
	CloseTimeout   time.Duration
	MaxReconnects  int
	ReconnectWait  time.Duration
}

// DefaultSubscriberConfig returns production defaults for subscriber.
func DefaultSubscriberConfig(url, durable string) SubscriberConfig {
	return SubscriberConfig{
		URL:            url,
		DurableName:    durable,
		AckWaitTimeout: 30 * time.Second,
		MaxDeliver:     5,
		MaxAckPending:  1000,
		CloseTimeout:   30 * time.Second,
		MaxReconnects:  -1,
		ReconnectWait:  2 * time.Second,
	}
}

// StreamConfig defines the telemetry stream.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// ThrottlePerSecond caps handled messages per second, 0 disables.
	ThrottlePerSecond int64

	// PoisonQueueTopic receives messages that still fail after retries.
	// Empty disables the poison queue.
	PoisonQueueTopic string
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Settings is every broker setting derived from the application config.
type Settings struct {
	Embedded bool
	Server   ServerConfig
	URL      string

	Stream StreamConfig
	Router RouterConfig

	WeatherTopic string
	PowerTopic   string

	DurablePrefix string
}

// SettingsFromConfig maps the NATS section of the application config.
func SettingsFromConfig(cfg *config.NATSConfig) (Settings, error) {
	if cfg.WeatherTopic == "" || cfg.PowerTopic == "" {
		return Settings{}, fmt.Errorf("%w: topics must not be empty", ErrInvalidConfig)
	}
	if cfg.StreamName == "" || cfg.DurablePrefix == "" {
		return Settings{}, fmt.Errorf("%w: stream name and durable prefix are required", ErrInvalidConfig)
	}

	subjects := []string{cfg.WeatherTopic, cfg.PowerTopic}
	poisonTopic := ""
	if cfg.RouterPoisonQueueEnabled {
		poisonTopic = cfg.RouterPoisonQueueTopic
		subjects = append(subjects, poisonTopic)
	}

	retention := cfg.StreamRetentionDays
	if retention <= 0 {
		retention = 7
	}

	return Settings{
		Embedded: cfg.EmbeddedServer,
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              4222,
			StoreDir:          cfg.StoreDir,
			JetStreamMaxMem:   cfg.MaxMemory,
			JetStreamMaxStore: cfg.MaxStore,
			ReadyTimeout:      defaultReadyTimeout,
		},
		URL: cfg.URL,
		Stream: StreamConfig{
			Name:            cfg.StreamName,
			Subjects:        subjects,
			MaxAge:          time.Duration(retention) * 24 * time.Hour,
			MaxBytes:        cfg.MaxStore,
			MaxMsgs:         -1,
			DuplicateWindow: 2 * time.Minute,
			Replicas:        1,
		},
		Router: RouterConfig{
			CloseTimeout:         cfg.RouterCloseTimeout,
			RetryMaxRetries:      cfg.RouterRetryCount,
			RetryInitialInterval: cfg.RouterRetryInitialInterval,
			RetryMaxInterval:     10 * time.Second,
			RetryMultiplier:      2.0,
			ThrottlePerSecond:    int64(cfg.RouterThrottlePerSecond),
			PoisonQueueTopic:     poisonTopic,
		},
		WeatherTopic:  cfg.WeatherTopic,
		PowerTopic:    cfg.PowerTopic,
		DurablePrefix: cfg.DurablePrefix,
	}, nil
}

// Durable returns the durable consumer name for a group suffix.
func (s *Settings) Durable(group string) string {
	return s.DurablePrefix + "-" + group
}
