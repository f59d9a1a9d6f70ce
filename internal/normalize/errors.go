// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package normalize

import "errors"

var (
	// ErrNoData is returned for upstream responses with success=false or no items.
	ErrNoData = errors.New("no data in payload")

	// ErrMalformed is returned when a payload is not a JSON object.
	ErrMalformed = errors.New("malformed payload")
)
