// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Command svbridge listens for sampled-value UDP datagrams and forwards them
// to the GridWatch ingest endpoint.
//
// Environment:
//
//	SV_UDP_HOST / SV_UDP_PORT   listen address (default 0.0.0.0:5000)
//	BACKEND_URL                 ingest endpoint (default http://localhost:4000/api/sv)
//	BUFFER_SIZE                 UDP read buffer (default 65536)
//	BRIDGE_MAX_RETRIES          POST attempts per payload (default 5)
//	BRIDGE_REQUEST_TIMEOUT      per-POST timeout (default 5s)
//	BRIDGE_MAX_PPS              accepted packets per second, 0 = unlimited
//	LOG_LEVEL / LOG_FORMAT      logging
//
// A .env file in the working directory is loaded first.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tomtom215/gridwatch/internal/bridge"
	"github.com/tomtom215/gridwatch/internal/config"
	"github.com/tomtom215/gridwatch/internal/logging"
)

func main() {
	cfg, err := config.LoadBridge()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "svbridge",
		Output:    os.Stderr,
	})

	fwdCfg := bridge.DefaultForwarderConfig(cfg.Bridge.BackendURL)
	fwdCfg.Timeout = cfg.Bridge.RequestTimeout
	fwdCfg.MaxAttempts = cfg.Bridge.MaxRetries
	forwarder, err := bridge.NewForwarder(fwdCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create forwarder")
	}

	addr := net.JoinHostPort(cfg.Bridge.UDPHost, strconv.Itoa(cfg.Bridge.UDPPort))
	logging.Info().
		Str("addr", addr).
		Str("backend_url", logging.SanitizeURL(cfg.Bridge.BackendURL)).
		Uint64("max_attempts", fwdCfg.MaxAttempts).
		Float64("max_pps", cfg.Bridge.MaxPacketsPerSecond).
		Msg("SV UDP -> HTTP bridge starting")

	b := bridge.New(bridge.Config{
		Addr:                addr,
		BufferSize:          cfg.Bridge.BufferSize,
		MaxPacketsPerSecond: cfg.Bridge.MaxPacketsPerSecond,
	}, forwarder)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := b.ListenAndServe(ctx); err != nil {
		logging.Error().Err(err).Msg("UDP bridge failed")
		cancel()
		os.Exit(1)
	}
	logging.Info().Str("breaker", forwarder.BreakerState()).Msg("UDP bridge shut down")
}
