// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = errors.New("ingest circuit breaker is open")

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	URL     string
	Timeout time.Duration

	// MaxAttempts is the total number of POSTs per payload, first try included.
	MaxAttempts uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Consecutive failed payloads that open the breaker, and how long it
	// stays open.
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// DefaultForwarderConfig returns the production settings for url.
func DefaultForwarderConfig(url string) ForwarderConfig {
	return ForwarderConfig{
		URL:              url,
		Timeout:          5 * time.Second,
		MaxAttempts:      5,
		InitialInterval:  time.Second,
		MaxInterval:      16 * time.Second,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// StatusError is a non-2xx answer from the ingest endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ingest returned status %d", e.StatusCode)
}

// permanent reports a 4xx other than 429. The ingest endpoint answers those
// for malformed or oversized bodies, so resending the same bytes cannot help.
func (e *StatusError) permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// Forwarder POSTs payloads to the ingest endpoint with exponential backoff.
// A payload that exhausts its attempts counts as one breaker failure.
type Forwarder struct {
	cfg     ForwarderConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewForwarder creates a Forwarder. Zero fields take their defaults.
func NewForwarder(cfg ForwarderConfig) (*Forwarder, error) {
	if cfg.URL == "" {
		return nil, errors.New("backend URL is required")
	}
	def := DefaultForwarderConfig(cfg.URL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}

	threshold := cfg.BreakerThreshold
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "bridge-ingest",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Rejected payloads say nothing about the endpoint's availability.
		IsSuccessful: func(err error) bool {
			var serr *StatusError
			if errors.As(err, &serr) {
				return serr.permanent()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), int(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Forwarder{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}, nil
}

// Forward encodes p and delivers it.
func (f *Forwarder) Forward(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	_, err = f.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, f.postWithRetry(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// BreakerState reports the breaker state for logging and health.
func (f *Forwarder) BreakerState() string {
	return f.breaker.State().String()
}

func (f *Forwarder) postWithRetry(ctx context.Context, body []byte) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.cfg.InitialInterval
	eb.MaxInterval = f.cfg.MaxInterval
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, f.cfg.MaxAttempts-1), ctx)

	attempt := 0
	op := func() error {
		attempt++
		return f.post(ctx, body)
	}
	notify := func(err error, wait time.Duration) {
		logging.Ctx(ctx).Debug().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("Ingest POST failed, retrying")
	}
	return backoff.RetryNotify(op, policy, notify)
}

func (f *Forwarder) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("ingest request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // drain for keep-alive

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	serr := &StatusError{StatusCode: resp.StatusCode}
	if serr.permanent() {
		return backoff.Permanent(serr)
	}
	return serr
}
