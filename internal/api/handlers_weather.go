// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/database"
	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/models"
)

// WeatherLatest returns the latest-snapshot map, station -> record.
func (h *Handler) WeatherLatest(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Snapshot == nil {
		rw.ServiceUnavailable("Weather producer is not running")
		return
	}
	snap := h.deps.Snapshot.Snapshot()
	rw.List(snap, len(snap))
}

// WeatherLatestStation returns the latest record for one station.
func (h *Handler) WeatherLatestStation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Snapshot == nil {
		rw.ServiceUnavailable("Weather producer is not running")
		return
	}
	station := chi.URLParam(r, "station")
	rec, ok := h.deps.Snapshot.Latest(station)
	if !ok {
		rw.NotFound("No reading for station " + station)
		return
	}
	rw.Success(rec)
}

// WeatherHistory returns stored weather rows, raw or bucketed.
//
// Query: start, end (RFC 3339 or epoch ms), agg (raw|minute|hour|day),
// station, limit.
func (h *Handler) WeatherHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.History == nil {
		rw.ServiceUnavailable("History store is not available")
		return
	}
	q, verr := parseHistoryQuery(r, "station")
	if verr != nil {
		rw.ValidationError(verr)
		return
	}

	points, err := h.deps.History.WeatherHistory(r.Context(), q)
	if err != nil {
		h.historyError(rw, err)
		return
	}
	rw.List(points, len(points))
}

// LegacyClima serves GET /clima: a bare array of flat weather rows for the
// default window, oldest first.
func (h *Handler) LegacyClima(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		NewResponseWriter(w, r).ServiceUnavailable("History store is not available")
		return
	}
	points, err := h.deps.History.WeatherHistory(r.Context(), models.HistoryQuery{Agg: models.AggRaw})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Legacy weather query failed")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "database error"})
		return
	}

	rows := make([]map[string]interface{}, 0, len(points))
	for i := range points {
		row := make(map[string]interface{}, len(points[i].Metrics)+2)
		for k, v := range points[i].Metrics {
			if v != nil {
				row[k] = *v
			} else {
				row[k] = nil
			}
		}
		row["station"] = points[i].Station
		row["timestamp"] = points[i].Timestamp
		rows = append(rows, row)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		logging.Error().Err(err).Msg("Failed to encode legacy weather rows")
	}
}

func (h *Handler) historyError(rw *ResponseWriter, err error) {
	if errors.Is(err, database.ErrInvalidQuery) {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}
	rw.DatabaseError(err)
}
