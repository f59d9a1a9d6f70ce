// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Package testinfra provides containers and fake endpoints for integration
// tests. Everything here is built only with the integration tag:
//
//	go test -tags integration ./...
//
// # PostgreSQL
//
//	pg, err := testinfra.NewPostgresContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, pg)
//
//	store, err := database.NewPostgres(ctx, &config.DatabaseConfig{DSN: pg.DSN})
//
// # Ingest Capture
//
// CaptureServer records every request it receives, for tests of components
// that POST to the ingest endpoint, such as the UDP bridge.
//
// Tests call SkipIfNoDocker first so the suite still passes on machines
// without a Docker daemon.
package testinfra
