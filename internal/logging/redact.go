// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package logging

import (
	"net/url"
	"strings"
)

// SanitizeSecret masks a credential, keeping the first and last 4 characters.
// Short values are fully masked.
//
//	"s3ss10n-c00k1e-v4lue" -> "s3ss...4lue"
func SanitizeSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 12 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// SanitizeUsername keeps the first 2 characters.
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

// SanitizeURL drops userinfo and the query string, which is where upstream
// station APIs tend to carry keys.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return truncateString(raw, 80)
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	u.Fragment = ""
	return u.String()
}

// SanitizeValue masks value when key names a credential.
func SanitizeValue(key, value string) string {
	switch strings.ToLower(key) {
	case "password", "api_password", "secret", "token", "api_token",
		"authorization", "cookie", "session", "session_id", "dsn", "database_url":
		return SanitizeSecret(value)
	}
	return value
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
