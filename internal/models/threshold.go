// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package models

import "time"

// Threshold is an alarm band for one dashboard parameter.
type Threshold struct {
	Parameter string    `json:"parameter" validate:"required,max=64,threshold_param"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max" validate:"gtefield=Min"`
	UpdatedAt time.Time `json:"updatedAt"`
}
