// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestEmbeddedServer_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}

	srv, err := NewEmbeddedServer(&ServerConfig{
		Host:              "127.0.0.1",
		Port:              -1,
		StoreDir:          t.TempDir(),
		JetStreamMaxMem:   16 << 20,
		JetStreamMaxStore: 64 << 20,
		ReadyTimeout:      10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}

	if !strings.HasPrefix(srv.ClientURL(), "nats://127.0.0.1:") {
		t.Errorf("ClientURL() = %q", srv.ClientURL())
	}
	if !srv.IsRunning() {
		t.Fatal("IsRunning() = false after start")
	}

	h := srv.HealthCheck(context.Background())
	if !h.Healthy {
		t.Errorf("HealthCheck().Healthy = false: %s", h.Error)
	}
	if h.Details["jetstream"] != true {
		t.Errorf("Details[jetstream] = %v, want true", h.Details["jetstream"])
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after Shutdown")
	}
	if srv.HealthCheck(context.Background()).Healthy {
		t.Error("HealthCheck().Healthy = true after Shutdown")
	}
}
