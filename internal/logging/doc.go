// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Package logging provides the process-wide zerolog logger for GridWatch.
//
// JSON output is the default; console output is available for local runs.
// Components log through the package-level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("topic", "weather-data").Msg("published")
//	logging.Ctx(ctx).Warn().Err(err).Msg("poll failed")
//
// NewSlogLogger bridges the same logger into libraries that speak log/slog,
// such as the suture supervisor tree and the Watermill router.
//
// Credentials (upstream password, session cookie, database DSN) must go
// through SanitizeSecret or SanitizeURL before they reach a log field.
package logging
