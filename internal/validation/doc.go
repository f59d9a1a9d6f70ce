// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Package validation wraps go-playground/validator for HTTP request bodies.
//
// Field names in messages are the JSON names. The custom threshold_param tag
// restricts threshold parameter names to [A-Za-z0-9_.-].
//
//	if verr := validation.ValidateStruct(req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation
