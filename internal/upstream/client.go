// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/metrics"
	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/normalize"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// Config configures a Client.
type Config struct {
	AuthURL  string
	Username string
	Password string

	// Stations maps station key to data URL.
	Stations map[string]string

	Timeout            time.Duration
	MaxConcurrentPolls int

	// RequestsPerSecond paces outbound requests. Zero disables pacing.
	RequestsPerSecond float64
}

// PollResult is the outcome of polling one station.
type PollResult struct {
	Station string
	Record  *models.WeatherRecord
	Err     error
}

// Client polls the session-cookie weather API.
//
// The session cookie lives in a cookie jar shared by all requests. A bearer
// token is also sent when the login response carries one.
type Client struct {
	cfg        Config
	httpClient *http.Client
	normalizer *normalize.WeatherNormalizer
	limiter    *rate.Limiter

	authGroup     singleflight.Group
	authenticated atomic.Bool

	tokenMu sync.RWMutex
	token   string

	stations []string
}

// NewClient creates a Client. normalizer holds the per-station carry-forward
// state and may be shared with other readers.
func NewClient(cfg Config, normalizer *normalize.WeatherNormalizer) (*Client, error) {
	if cfg.AuthURL == "" {
		return nil, fmt.Errorf("auth URL is required")
	}
	if normalizer == nil {
		normalizer = normalize.NewWeatherNormalizer()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConcurrentPolls < 1 {
		cfg.MaxConcurrentPolls = 1
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.MaxConcurrentPolls)
	}

	stations := make([]string, 0, len(cfg.Stations))
	for k := range cfg.Stations {
		stations = append(stations, k)
	}
	sort.Strings(stations)

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		normalizer: normalizer,
		limiter:    limiter,
		stations:   stations,
	}, nil
}

// Stations returns the configured station keys in sorted order.
func (c *Client) Stations() []string {
	out := make([]string, len(c.stations))
	copy(out, c.stations)
	return out
}

// Authenticated reports whether the last login attempt succeeded.
func (c *Client) Authenticated() bool {
	return c.authenticated.Load()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
}

// Authenticate logs in and stores the session. It reports success and never
// returns an error; failures are logged. Concurrent calls share one login
// request.
func (c *Client) Authenticate(ctx context.Context) bool {
	v, _, _ := c.authGroup.Do("auth", func() (interface{}, error) {
		return c.login(ctx), nil
	})
	ok, _ := v.(bool)
	return ok
}

func (c *Client) login(ctx context.Context) bool {
	ok, err := c.doLogin(ctx)
	c.authenticated.Store(ok)
	metrics.RecordUpstreamAuth(ok)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("auth_url", logging.SanitizeURL(c.cfg.AuthURL)).
			Str("username", logging.SanitizeUsername(c.cfg.Username)).
			Msg("Upstream login failed")
		return false
	}
	logging.Ctx(ctx).Info().Str("auth_url", logging.SanitizeURL(c.cfg.AuthURL)).Msg("Upstream login succeeded")
	return ok
}

func (c *Client) doLogin(ctx context.Context) (bool, error) {
	body, err := json.Marshal(loginRequest{Username: c.cfg.Username, Password: c.cfg.Password})
	if err != nil {
		return false, fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	var lr loginResponse
	// A body that is not JSON counts as success=false.
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&lr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !lr.Success {
		return false, fmt.Errorf("login rejected: status %d success=%t", resp.StatusCode, lr.Success)
	}

	c.tokenMu.Lock()
	c.token = lr.Token
	c.tokenMu.Unlock()
	return true, nil
}

// Poll fetches and normalizes one station.
//
// A 401 triggers one re-authentication and exactly one retry. If the retry
// fails for any reason, including a second 401, the station is abandoned for
// this cycle without another login.
func (c *Client) Poll(ctx context.Context, station string) (*models.WeatherRecord, error) {
	dataURL, ok := c.cfg.Stations[station]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStation, station)
	}

	start := time.Now()
	rec, err := c.poll(ctx, station, dataURL)
	metrics.RecordUpstreamPoll(station, pollOutcome(err), time.Since(start))
	return rec, err
}

func (c *Client) poll(ctx context.Context, station, dataURL string) (*models.WeatherRecord, error) {
	status, body, err := c.get(ctx, dataURL)
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", station, err)
	}

	if status == http.StatusUnauthorized {
		logging.Ctx(ctx).Warn().Str("station", station).Msg("Upstream returned 401, re-authenticating")
		if !c.Authenticate(ctx) {
			return nil, fmt.Errorf("station %s: %w", station, ErrUnauthorized)
		}
		status, body, err = c.get(ctx, dataURL)
		if err != nil {
			return nil, fmt.Errorf("station %s retry: %w", station, err)
		}
	}

	if status < 200 || status > 299 {
		return nil, &StatusError{Station: station, StatusCode: status}
	}

	var payload normalize.WeatherPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("station %s: invalid JSON: %w", station, err)
	}
	return c.normalizer.Normalize(&payload, station)
}

func (c *Client) get(ctx context.Context, dataURL string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dataURL, http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.tokenMu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.tokenMu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// PollAll polls every configured station concurrently, at most
// MaxConcurrentPolls at a time. When the client holds no session it logs in
// first and skips the round if that fails. One station's failure never affects
// the others; results come back in station-key order.
func (c *Client) PollAll(ctx context.Context) []PollResult {
	if len(c.stations) == 0 {
		return nil
	}
	if !c.Authenticated() && !c.Authenticate(ctx) {
		logging.Ctx(ctx).Warn().Msg("Skipping poll round, not authenticated")
		return nil
	}

	results := make([]PollResult, len(c.stations))
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.MaxConcurrentPolls)

	for i, station := range c.stations {
		g.Go(func() error {
			rec, err := c.Poll(ctx, station)
			results[i] = PollResult{Station: station, Record: rec, Err: err}
			if err != nil && !errors.Is(err, ErrNoData) {
				logging.Ctx(ctx).Warn().Err(err).Str("station", station).Msg("Station poll failed")
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // station goroutines never return errors

	return results
}

func pollOutcome(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}
