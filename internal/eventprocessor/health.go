// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"context"
	"sync"
	"time"
)

// HealthStatusType represents the overall health status.
type HealthStatusType string

const (
	HealthStatusHealthy   HealthStatusType = "healthy"
	HealthStatusDegraded  HealthStatusType = "degraded"
	HealthStatusUnhealthy HealthStatusType = "unhealthy"
)

// ComponentHealth represents the health status of a single component.
type ComponentHealth struct {
	Healthy   bool                   `json:"healthy"`
	Degraded  bool                   `json:"degraded,omitempty"`
	Name      string                 `json:"name"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	LastCheck time.Time              `json:"last_check"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthCheckable is implemented by components that support health checking.
type HealthCheckable interface {
	HealthCheck(ctx context.Context) ComponentHealth
}

// HealthCheckFunc adapts a function to HealthCheckable.
type HealthCheckFunc func(ctx context.Context) ComponentHealth

// HealthCheck implements HealthCheckable.
func (f HealthCheckFunc) HealthCheck(ctx context.Context) ComponentHealth {
	return f(ctx)
}

// OverallHealth represents the aggregated health status of all components.
type OverallHealth struct {
	Healthy    bool                       `json:"healthy"`
	Status     HealthStatusType           `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthChecker runs registered health checks concurrently.
type HealthChecker struct {
	timeout    time.Duration
	mu         sync.RWMutex
	components map[string]HealthCheckable
}

// NewHealthChecker creates a health checker. Each check gets timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		timeout:    timeout,
		components: make(map[string]HealthCheckable),
	}
}

// RegisterComponent registers a component for health checking.
func (h *HealthChecker) RegisterComponent(name string, component HealthCheckable) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = component
}

// CheckAll performs health checks on all registered components. A component
// that does not answer within the timeout is unhealthy.
func (h *HealthChecker) CheckAll(ctx context.Context) OverallHealth {
	h.mu.RLock()
	componentsCopy := make(map[string]HealthCheckable, len(h.components))
	for name, comp := range h.components {
		componentsCopy[name] = comp
	}
	h.mu.RUnlock()

	overall := OverallHealth{
		Healthy:    true,
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth, len(componentsCopy)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, comp := range componentsCopy {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := h.check(ctx, name, comp)

			mu.Lock()
			defer mu.Unlock()
			overall.Components[name] = result
			switch {
			case !result.Healthy:
				overall.Healthy = false
				overall.Status = HealthStatusUnhealthy
			case result.Degraded && overall.Status == HealthStatusHealthy:
				overall.Status = HealthStatusDegraded
			}
		}()
	}

	wg.Wait()
	return overall
}

func (h *HealthChecker) check(ctx context.Context, name string, comp HealthCheckable) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resultCh := make(chan ComponentHealth, 1)
	go func() {
		resultCh <- comp.HealthCheck(checkCtx)
	}()

	var result ComponentHealth
	select {
	case result = <-resultCh:
	case <-checkCtx.Done():
		result = ComponentHealth{Healthy: false, Error: "health check timeout"}
	}
	result.Name = name
	result.LastCheck = time.Now().UTC()
	return result
}
