// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/gridwatch/internal/middleware"
)

// NewRouter wires every route. latency may be nil.
func NewRouter(h *Handler, mw *ChiMiddleware, latency *middleware.LatencyTracker) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(middleware.PrometheusMetrics)
	if latency != nil {
		r.Use(latency.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.WebSocket)

	// Edge ingest: the bridge posts here.
	r.With(mw.RateLimitIngest()).Post("/api/sv", h.Ingest)

	r.With(mw.RateLimit(), chimiddleware.Compress(5)).Get("/clima", h.LegacyClima)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/health", func(r chi.Router) {
			r.Get("/", h.Health)
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})

		r.With(mw.RateLimitIngest()).Post("/power/ingest", h.Ingest)

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit())
			r.Use(chimiddleware.Compress(5))

			r.Get("/weather", h.WeatherHistory)
			r.Get("/weather/latest", h.WeatherLatest)
			r.Get("/weather/latest/{station}", h.WeatherLatestStation)
			r.Get("/power", h.PowerHistory)

			r.Get("/thresholds", h.ListThresholds)
			r.Get("/thresholds/{parameter}", h.GetThreshold)
			r.Put("/thresholds/{parameter}", h.PutThreshold)
			r.Delete("/thresholds/{parameter}", h.DeleteThreshold)
		})
	})

	return r
}
