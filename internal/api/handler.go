// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package api

import (
	"context"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/gridwatch/internal/eventprocessor"
	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/websocket"
)

// Publisher sends raw bytes to a broker topic.
type Publisher interface {
	PublishBytes(ctx context.Context, topic string, payload []byte) error
}

// SnapshotSource exposes the producer's latest record per station.
type SnapshotSource interface {
	Snapshot() map[string]models.WeatherRecord
	Latest(station string) (models.WeatherRecord, bool)
}

// HistoryStore answers historical range queries.
type HistoryStore interface {
	WeatherHistory(ctx context.Context, q models.HistoryQuery) ([]models.WeatherPoint, error)
	PowerHistory(ctx context.Context, q models.HistoryQuery) ([]models.PowerPoint, error)
}

// ThresholdStore persists alarm thresholds.
type ThresholdStore interface {
	Get(ctx context.Context, parameter string) (*models.Threshold, error)
	List(ctx context.Context) ([]models.Threshold, error)
	Put(ctx context.Context, th models.Threshold) (*models.Threshold, error)
	Delete(ctx context.Context, parameter string) error
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	CheckAll(ctx context.Context) eventprocessor.OverallHealth
}

// Dependencies are the collaborators behind the HTTP surface. Nil fields
// make the matching endpoints answer 503.
type Dependencies struct {
	Publisher  Publisher
	PowerTopic string

	Snapshot   SnapshotSource
	History    HistoryStore
	Thresholds ThresholdStore
	Health     HealthReporter
	Hub        *websocket.Hub
}

// Handler serves every API endpoint.
type Handler struct {
	deps           Dependencies
	maxIngestBytes int64
	upgrader       *gorillaws.Upgrader
	startTime      time.Time
	now            func() time.Time
}

// NewHandler creates a Handler. maxIngestBytes caps ingest bodies.
func NewHandler(deps Dependencies, maxIngestBytes int64, corsOrigins []string) *Handler {
	if maxIngestBytes <= 0 {
		maxIngestBytes = 1 << 20
	}
	return &Handler{
		deps:           deps,
		maxIngestBytes: maxIngestBytes,
		upgrader:       websocket.NewUpgrader(corsOrigins),
		startTime:      time.Now(),
		now:            time.Now,
	}
}
