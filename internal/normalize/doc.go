// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Package normalize converts upstream weather responses and edge power
// packets into GridWatch's canonical records.
//
// Weather normalization is stateful: WeatherNormalizer remembers the last
// non-null value of every metric per station and fills gaps with it.
//
// Power normalization is stateless and never consults the clock. A packet's
// "values" field decides its shape:
//
//	{"svID":"4000","timestamp_ms":1700000000000,"values":[230.1,4.2,966.4]}   positional
//	{"sourceId":"sv1","values":{"voltaje":230.1,"corriente":4.2}}             named
//	{"voltaje":230.1,"corriente":4.2,"potencia":966.4}                         legacy flat
package normalize
