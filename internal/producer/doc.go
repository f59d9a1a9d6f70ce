// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Package producer drives the weather polling loop.
//
// Every tick starts a new round in its own goroutine. A round polls all
// stations, stores each record in the latest-snapshot map whether or not it
// is complete, and publishes to the weather topic only the records whose
// required metrics are all present. Publish failures are logged and counted;
// the next tick is the retry.
//
// The snapshot map is owned by the Producer and read through Snapshot and
// Latest, which the WebSocket hub uses for the "initial" event.
package producer
