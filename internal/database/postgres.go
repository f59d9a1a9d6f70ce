// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/gridwatch/internal/config"
	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/metrics"
	"github.com/tomtom215/gridwatch/internal/models"
)

// PostgresStore is the PostgreSQL Store backend.
type PostgresStore struct {
	pool *pgxpool.Pool

	insertWeather string
	insertPower   string
}

// NewPostgres connects a pool using cfg.PostgresDSN and creates the schema.
// Sessions run in UTC so date_trunc buckets line up with stored timestamps.
func NewPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	logging.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("PostgreSQL store ready")

	return &PostgresStore{
		pool:          pool,
		insertWeather: insertWeatherSQL(dialectPostgres),
		insertPower:   insertPowerSQL(dialectPostgres),
	}, nil
}

// InsertWeather writes one weather row.
func (s *PostgresStore) InsertWeather(ctx context.Context, rec *models.WeatherRecord, ts time.Time) error {
	args, err := weatherInsertArgs(rec, ts)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = s.pool.Exec(ctx, s.insertWeather, args...)
	metrics.RecordDBQuery("insert", "weather_readings", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert weather reading: %w", err)
	}
	return nil
}

// InsertPower writes one power row.
func (s *PostgresStore) InsertPower(ctx context.Context, sample *models.PowerSample, ts time.Time) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, s.insertPower, powerInsertArgs(sample, ts)...)
	metrics.RecordDBQuery("insert", "power_readings", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert power reading: %w", err)
	}
	return nil
}

// WeatherHistory returns raw or bucketed weather rows in time order.
func (s *PostgresStore) WeatherHistory(ctx context.Context, q models.HistoryQuery) ([]models.WeatherPoint, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	query, args := weatherHistorySQL(dialectPostgres, q)

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordDBQuery("select", "weather_readings", time.Since(start), err)
		return nil, fmt.Errorf("query weather history: %w", err)
	}
	defer rows.Close()

	points, err := scanWeather(rows)
	metrics.RecordDBQuery("select", "weather_readings", time.Since(start), err)
	return points, err
}

// PowerHistory returns raw or bucketed power rows in time order.
func (s *PostgresStore) PowerHistory(ctx context.Context, q models.HistoryQuery) ([]models.PowerPoint, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	query, args := powerHistorySQL(dialectPostgres, q)

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordDBQuery("select", "power_readings", time.Since(start), err)
		return nil, fmt.Errorf("query power history: %w", err)
	}
	defer rows.Close()

	points, err := scanPower(rows)
	metrics.RecordDBQuery("select", "power_readings", time.Since(start), err)
	return points, err
}

// Ping checks that a pooled connection is usable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
