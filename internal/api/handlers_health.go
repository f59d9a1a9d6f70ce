// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/gridwatch/internal/eventprocessor"
	"github.com/tomtom215/gridwatch/internal/websocket"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	eventprocessor.OverallHealth
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Health runs every registered health check. Healthy and degraded answer 200,
// unhealthy answers 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Health == nil {
		rw.ServiceUnavailable("Health checks are not configured")
		return
	}

	overall := h.deps.Health.CheckAll(r.Context())
	status := http.StatusOK
	if overall.Status == eventprocessor.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	rw.Status(status, HealthStatus{
		OverallHealth: overall,
		UptimeSeconds: h.now().Sub(h.startTime).Seconds(),
	})
}

// HealthLive always answers 200 while the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{
		"status":    "alive",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// HealthReady answers 200 unless a component is unhealthy.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Health == nil {
		rw.ServiceUnavailable("Health checks are not configured")
		return
	}
	overall := h.deps.Health.CheckAll(r.Context())
	if overall.Status == eventprocessor.HealthStatusUnhealthy {
		rw.ServiceUnavailable("Not ready")
		return
	}
	rw.Success(map[string]string{"status": string(overall.Status)})
}

// WebSocket upgrades the connection and registers it with the fanout hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.deps.Hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}
	websocket.ServeWS(h.deps.Hub, h.upgrader, w, r)
}
