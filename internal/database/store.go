// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tomtom215/gridwatch/internal/config"
	"github.com/tomtom215/gridwatch/internal/models"
)

var (
	// ErrUnsupportedDriver is returned by Open for an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrInvalidQuery is returned for a history query with a bad range or
	// aggregation level.
	ErrInvalidQuery = errors.New("invalid history query")
)

// Store is the persistence layer used by the broker consumers and the API.
type Store interface {
	InsertWeather(ctx context.Context, rec *models.WeatherRecord, ts time.Time) error
	InsertPower(ctx context.Context, sample *models.PowerSample, ts time.Time) error

	WeatherHistory(ctx context.Context, q models.HistoryQuery) ([]models.WeatherPoint, error)
	PowerHistory(ctx context.Context, q models.HistoryQuery) ([]models.PowerPoint, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend and ensures the schema exists.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "duckdb", "":
		return NewDuckDB(ctx, cfg)
	case "postgres", "postgresql":
		return NewPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// closeQuietly closes a resource on an error path where the close error is
// not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() //nolint:errcheck // best-effort cleanup
	}
}
