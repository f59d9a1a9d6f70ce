// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Package aggregate downsamples the power stream into fixed windows.
//
// Each source gets a bucket holding running sums and per-metric counts.
// At every tick Flush turns the buckets into PowerAverage values, rounded to
// three decimals, and starts a fresh window. A window timestamp is the rounded
// mean of the sample timestamps in it.
package aggregate
