// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Package upstream polls the weather station API.
//
// The API uses a session cookie obtained by POSTing credentials to a login
// endpoint. Client keeps that cookie in a jar and, when a station request comes
// back 401, logs in once more and retries that request exactly once. A second
// failure abandons the station until the next round.
//
// Usage:
//
//	stations, err := upstream.ParseStations(os.Getenv("API_DATA_URLS"))
//	client, err := upstream.NewClient(upstream.Config{
//	    AuthURL:  cfg.Upstream.AuthURL,
//	    Username: cfg.Upstream.Username,
//	    Password: cfg.Upstream.Password,
//	    Stations: stations,
//	}, normalize.NewWeatherNormalizer())
//
//	for _, r := range client.PollAll(ctx) {
//	    if r.Err == nil {
//	        handle(r.Record)
//	    }
//	}
package upstream
