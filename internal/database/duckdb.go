// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/gridwatch/internal/config"
	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/metrics"
	"github.com/tomtom215/gridwatch/internal/models"
)

// DuckDBStore is the embedded Store backend.
type DuckDBStore struct {
	conn *sql.DB
	path string

	insertWeather string
	insertPower   string
}

// NewDuckDB opens (or creates) the database file at cfg.Path. An empty path
// opens an in-memory database.
func NewDuckDB(ctx context.Context, cfg *config.DatabaseConfig) (*DuckDBStore, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	if dir := filepath.Dir(cfg.Path); cfg.Path != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range duckdbSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			closeQuietly(conn)
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", threads).
		Str("max_memory", maxMemory).
		Msg("DuckDB store ready")

	return &DuckDBStore{
		conn:          conn,
		path:          cfg.Path,
		insertWeather: insertWeatherSQL(dialectDuckDB),
		insertPower:   insertPowerSQL(dialectDuckDB),
	}, nil
}

// InsertWeather writes one weather row.
func (s *DuckDBStore) InsertWeather(ctx context.Context, rec *models.WeatherRecord, ts time.Time) error {
	args, err := weatherInsertArgs(rec, ts)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = s.conn.ExecContext(ctx, s.insertWeather, args...)
	metrics.RecordDBQuery("insert", "weather_readings", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert weather reading: %w", err)
	}
	return nil
}

// InsertPower writes one power row.
func (s *DuckDBStore) InsertPower(ctx context.Context, sample *models.PowerSample, ts time.Time) error {
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, s.insertPower, powerInsertArgs(sample, ts)...)
	metrics.RecordDBQuery("insert", "power_readings", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert power reading: %w", err)
	}
	return nil
}

// WeatherHistory returns raw or bucketed weather rows in time order.
func (s *DuckDBStore) WeatherHistory(ctx context.Context, q models.HistoryQuery) ([]models.WeatherPoint, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	query, args := weatherHistorySQL(dialectDuckDB, q)

	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, query, args...)
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
func (s *DuckDBStore) PowerHistory(ctx context.Context, q models.HistoryQuery) ([]models.PowerPoint, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	query, args := powerHistorySQL(dialectDuckDB, q)

	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordDBQuery("select", "power_readings", time.Since(start), err)
		return nil, fmt.Errorf("query power history: %w", err)
	}
	defer rows.Close()

	points, err := scanPower(rows)
	metrics.RecordDBQuery("select", "power_readings", time.Since(start), err)
	return points, err
}

// Ping checks the connection.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database. A checkpoint is attempted first so the WAL is
// folded into the main file.
func (s *DuckDBStore) Close() error {
	if _, err := s.conn.Exec("CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Str("path", s.path).Msg("DuckDB checkpoint before close failed")
	}
	return s.conn.Close()
}
