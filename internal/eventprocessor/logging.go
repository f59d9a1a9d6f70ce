// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/gridwatch/internal/logging"
)

// NewWatermillLogger routes Watermill's logs through the zerolog slog adapter
// so router, publisher, and subscriber output matches the rest of the process.
func NewWatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}
