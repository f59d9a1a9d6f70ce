// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const (
	embeddedServerName = "gridwatch"

	// Telemetry payloads are small; 1 MiB leaves room for batched SV packets.
	embeddedMaxPayload = 1 << 20

	defaultReadyTimeout = 30 * time.Second
)

// errServerNotReady is returned when the embedded server does not accept
// connections in time.
var errServerNotReady = errors.New("embedded NATS server not ready")

// EmbeddedServer runs nats-server in-process with JetStream, so a single
// GridWatch node needs no external broker.
type EmbeddedServer struct {
	ns        *server.Server
	storeDir  string
	clientURL string
}

// NewEmbeddedServer starts the server and blocks until it accepts clients.
func NewEmbeddedServer(cfg *ServerConfig) (*EmbeddedServer, error) {
	ready := cfg.ReadyTimeout
	if ready <= 0 {
		ready = defaultReadyTimeout
	}

	ns, err := server.NewServer(&server.Options{
		ServerName:         embeddedServerName,
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.JetStreamMaxMem,
		JetStreamMaxStore:  cfg.JetStreamMaxStore,
		MaxPayload:         embeddedMaxPayload,
		NoLog:              true,
		NoSigs:             true,
	})
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(ready) {
		ns.Shutdown()
		return nil, fmt.Errorf("%w after %s", errServerNotReady, ready)
	}
	if !ns.JetStreamEnabled() {
		ns.Shutdown()
		return nil, fmt.Errorf("%w: JetStream failed to start in %q", errServerNotReady, cfg.StoreDir)
	}

	return &EmbeddedServer{
		ns:        ns,
		storeDir:  cfg.StoreDir,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL is the nats:// URL local clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server. It waits for the store to flush unless ctx is
// already done.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.ns.Shutdown()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.ns.WaitForShutdown()
	return nil
}

// IsRunning reports whether the server is still accepting clients.
func (s *EmbeddedServer) IsRunning() bool {
	return s.ns.Running()
}

// HealthCheck implements HealthCheckable.
func (s *EmbeddedServer) HealthCheck(_ context.Context) ComponentHealth {
	h := ComponentHealth{
		Healthy:   s.ns.Running() && s.ns.JetStreamEnabled(),
		LastCheck: time.Now(),
		Details: map[string]interface{}{
			"url":       s.clientURL,
			"clients":   s.ns.NumClients(),
			"jetstream": s.ns.JetStreamEnabled(),
			"store_dir": s.storeDir,
		},
	}
	if !h.Healthy {
		h.Error = "embedded NATS server is not running with JetStream"
	}
	return h
}
