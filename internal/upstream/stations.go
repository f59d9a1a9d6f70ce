// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package upstream

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNoStations is returned when a station list yields no usable entries.
var ErrNoStations = errors.New("no station URLs configured")

var (
	slashRuns   = regexp.MustCompile(`/+`)
	nonWordRuns = regexp.MustCompile(`\W+`)
)

// ParseStations reads a station list in any of the supported forms:
//
//	{"quintay":"https://api.example.com/data/quintay/latest"}   JSON object
//	quintay=https://...,casona=https://...                     key=url list
//	https://.../data/quintay/latest,https://...                bare URLs
//
// Bare URLs get a key derived from their path. Malformed entries are skipped;
// ErrNoStations is returned when nothing usable remains.
func ParseStations(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoStations
	}

	if strings.HasPrefix(raw, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			stations := make(map[string]string, len(obj))
			for k, v := range obj {
				if s, ok := v.(string); ok && k != "" && s != "" {
					stations[k] = s
				}
			}
			if len(stations) == 0 {
				return nil, ErrNoStations
			}
			return stations, nil
		}
	}

	stations := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// "key=url", unless the '=' belongs to a bare URL's query string.
		if k, v, ok := strings.Cut(part, "="); ok && !strings.Contains(k, "://") {
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if k != "" && v != "" {
				stations[k] = v
			}
			continue
		}

		u, err := url.Parse(part)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		name := stationKeyFromURL(u)
		candidate := name
		for idx := 1; stations[candidate] != ""; idx++ {
			candidate = fmt.Sprintf("%s_%d", name, idx)
		}
		stations[candidate] = part
	}

	if len(stations) == 0 {
		return nil, ErrNoStations
	}
	return stations, nil
}

// stationKeyFromURL turns "/data/quintay_davis/latest" into "quintay_davis".
func stationKeyFromURL(u *url.URL) string {
	name := slashRuns.ReplaceAllString(u.Path, "_")
	name = nonWordRuns.ReplaceAllString(name, "_")
	name = strings.TrimPrefix(name, "_")
	name = strings.TrimSuffix(name, "_")
	name = strings.TrimPrefix(name, "data_")
	name = strings.TrimSuffix(name, "_latest")
	if name == "" {
		name = u.Hostname()
	}
	return name
}
