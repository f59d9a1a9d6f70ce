// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package main

import (
	"context"

	"github.com/tomtom215/gridwatch/internal/eventprocessor"
	"github.com/tomtom215/gridwatch/internal/middleware"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type clientCounter interface {
	GetClientCount() int
}

type authState interface {
	Authenticated() bool
	Stations() []string
}

// healthDeps are the non-broker components reported by /api/v1/health.
// upstream may be nil when the producer is disabled.
type healthDeps struct {
	store      pinger
	thresholds pinger
	hub        clientCounter
	latency    *middleware.LatencyTracker
	upstream   authState
}

func registerHealth(checker *eventprocessor.HealthChecker, deps healthDeps) {
	checker.RegisterComponent("database", pingCheck(deps.store))
	checker.RegisterComponent("thresholds", pingCheck(deps.thresholds))
	checker.RegisterComponent("websocket", eventprocessor.HealthCheckFunc(func(context.Context) eventprocessor.ComponentHealth {
		return eventprocessor.ComponentHealth{
			Healthy: true,
			Details: map[string]interface{}{"clients": deps.hub.GetClientCount()},
		}
	}))
	if deps.latency != nil {
		checker.RegisterComponent("api", eventprocessor.HealthCheckFunc(func(context.Context) eventprocessor.ComponentHealth {
			return eventprocessor.ComponentHealth{
				Healthy: true,
				Details: map[string]interface{}{"routes": deps.latency.Snapshot()},
			}
		}))
	}
	if deps.upstream != nil {
		checker.RegisterComponent("upstream", upstreamCheck(deps.upstream))
	}
}

func pingCheck(p pinger) eventprocessor.HealthCheckFunc {
	return func(ctx context.Context) eventprocessor.ComponentHealth {
		if err := p.Ping(ctx); err != nil {
			return eventprocessor.ComponentHealth{Healthy: false, Error: err.Error()}
		}
		return eventprocessor.ComponentHealth{Healthy: true}
	}
}

// upstreamCheck reports a lost session as degraded: the producer logs in
// again on its next round.
func upstreamCheck(u authState) eventprocessor.HealthCheckFunc {
	return func(context.Context) eventprocessor.ComponentHealth {
		h := eventprocessor.ComponentHealth{
			Healthy: true,
			Details: map[string]interface{}{
				"authenticated": u.Authenticated(),
				"stations":      u.Stations(),
			},
		}
		if !u.Authenticated() {
			h.Degraded = true
			h.Message = "not authenticated"
		}
		return h
	}
}
