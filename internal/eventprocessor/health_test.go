// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"context"
	"testing"
	"time"
)

func staticHealth(h ComponentHealth) HealthCheckFunc {
	return func(context.Context) ComponentHealth { return h }
}

func TestHealthChecker_CheckAll(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		components  map[string]ComponentHealth
		wantHealthy bool
		wantStatus  HealthStatusType
	}{
		{
			name:        "no components",
			wantHealthy: true,
			wantStatus:  HealthStatusHealthy,
		},
		{
			name: "all healthy",
			components: map[string]ComponentHealth{
				"a": {Healthy: true},
				"b": {Healthy: true},
			},
			wantHealthy: true,
			wantStatus:  HealthStatusHealthy,
		},
		{
			name: "one degraded",
			components: map[string]ComponentHealth{
				"a": {Healthy: true},
				"b": {Healthy: true, Degraded: true},
			},
			wantHealthy: true,
			wantStatus:  HealthStatusDegraded,
		},
		{
			name: "unhealthy wins over degraded",
			components: map[string]ComponentHealth{
				"a": {Healthy: false},
				"b": {Healthy: true, Degraded: true},
			},
			wantHealthy: false,
			wantStatus:  HealthStatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hc := NewHealthChecker(time.Second)
			for name, h := range tt.components {
				hc.RegisterComponent(name, staticHealth(h))
			}

			got := hc.CheckAll(context.Background())
			if got.Healthy != tt.wantHealthy || got.Status != tt.wantStatus {
				t.Errorf("CheckAll() = healthy %v status %s, want %v %s",
					got.Healthy, got.Status, tt.wantHealthy, tt.wantStatus)
			}
			if len(got.Components) != len(tt.components) {
				t.Errorf("len(Components) = %d, want %d", len(got.Components), len(tt.components))
			}
			for name, c := range got.Components {
				if c.Name != name {
					t.Errorf("component %q reported Name %q", name, c.Name)
				}
				if c.LastCheck.IsZero() {
					t.Errorf("component %q has zero LastCheck", name)
				}
			}
		})
	}
}

func TestHealthChecker_Timeout(t *testing.T) {
	t.Parallel()

	hc := NewHealthChecker(20 * time.Millisecond)
	hc.RegisterComponent("slow", HealthCheckFunc(func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return ComponentHealth{Healthy: true}
	}))

	start := time.Now()
	got := hc.CheckAll(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("CheckAll took %v, timeout not applied", elapsed)
	}
	if got.Healthy {
		t.Error("a timed out component must be unhealthy")
	}
	if got.Components["slow"].Error != "health check timeout" {
		t.Errorf("Error = %q", got.Components["slow"].Error)
	}
}
