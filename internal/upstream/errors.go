// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package upstream

import (
	"errors"
	"fmt"

	"github.com/tomtom215/gridwatch/internal/normalize"
)

var (
	// ErrUnauthorized means the session could not be (re)established.
	ErrUnauthorized = errors.New("upstream authentication failed")

	// ErrUnknownStation is returned by Poll for a key not in the station list.
	ErrUnknownStation = errors.New("unknown station")

	// ErrNoData aliases normalize.ErrNoData so callers need only this package.
	ErrNoData = normalize.ErrNoData
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Station    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("station %s: unexpected status %d", e.Station, e.StatusCode)
}
