// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package cache

import (
	"context"
	"time"

	"github.com/tomtom215/gridwatch/internal/metrics"
	"github.com/tomtom215/gridwatch/internal/models"
)

// Lookup results recorded in gridwatch_history_cache_lookups_total.
const (
	resultHit    = "hit"
	resultMiss   = "miss"
	resultBypass = "bypass"
)

// HistoryStore answers historical range queries.
type HistoryStore interface {
	WeatherHistory(ctx context.Context, q models.HistoryQuery) ([]models.WeatherPoint, error)
	PowerHistory(ctx context.Context, q models.HistoryQuery) ([]models.PowerPoint, error)
}

// History wraps a HistoryStore and remembers answers to closed-range
// queries, those whose end lies in the past. Open-ended queries always reach
// the store. Cached slices are shared between callers and must not be
// modified.
type History struct {
	store   HistoryStore
	weather *Cache[[]models.WeatherPoint]
	power   *Cache[[]models.PowerPoint]
	now     func() time.Time
}

// NewHistory wraps store with a cache of maxEntries answers per series kind.
func NewHistory(store HistoryStore, ttl time.Duration, maxEntries int) *History {
	return &History{
		store:   store,
		weather: New[[]models.WeatherPoint](ttl, maxEntries),
		power:   New[[]models.PowerPoint](ttl, maxEntries),
		now:     time.Now,
	}
}

// WeatherHistory implements HistoryStore.
func (h *History) WeatherHistory(ctx context.Context, q models.HistoryQuery) ([]models.WeatherPoint, error) {
	return lookup(ctx, h, h.weather, "weather", q, h.store.WeatherHistory)
}

// PowerHistory implements HistoryStore.
func (h *History) PowerHistory(ctx context.Context, q models.HistoryQuery) ([]models.PowerPoint, error) {
	return lookup(ctx, h, h.power, "power", q, h.store.PowerHistory)
}

// Stats returns the weather and power cache counters.
func (h *History) Stats() (weather, power Stats) {
	return h.weather.GetStats(), h.power.GetStats()
}

func (h *History) cacheable(q models.HistoryQuery) bool {
	return !q.End.IsZero() && !q.End.After(h.now())
}

func lookup[P any](
	ctx context.Context,
	h *History,
	c *Cache[[]P],
	kind string,
	q models.HistoryQuery,
	fetch func(context.Context, models.HistoryQuery) ([]P, error),
) ([]P, error) {
	if !h.cacheable(q) {
		metrics.RecordHistoryCacheLookup(kind, resultBypass)
		return fetch(ctx, q)
	}

	key := GenerateKey(kind, q)
	if points, ok := c.Get(key); ok {
		metrics.RecordHistoryCacheLookup(kind, resultHit)
		return points, nil
	}
	metrics.RecordHistoryCacheLookup(kind, resultMiss)

	points, err := fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	c.Set(key, points)
	return points, nil
}
