// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package normalize

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/models"
)

// ValuesKind tells how a power payload encodes its metrics.
type ValuesKind int

const (
	// ValuesNone means "values" held something unusable (a scalar or a string).
	ValuesNone ValuesKind = iota
	// ValuesPositional is an array [voltage, current, power].
	ValuesPositional
	// ValuesNamed is an object with aliased keys. Payloads without "values"
	// are read as Named from their top level.
	ValuesNamed
)

func (k ValuesKind) String() string {
	switch k {
	case ValuesPositional:
		return "positional"
	case ValuesNamed:
		return "named"
	default:
		return "none"
	}
}

// Named metric aliases, first match wins.
var (
	voltageKeys = []string{"voltage", "voltaje", "v"}
	currentKeys = []string{"current", "corriente", "i"}
	powerKeys   = []string{"power", "potencia", "p"}

	sourceKeys    = []string{"sourceId", "svID", "source_id"}
	timestampKeys = []string{"timestamp_ms", "timestampMs", "timestamp", "received_at"}
)

// PowerPayload is a parsed power packet before canonicalization.
// Exactly one of Positional or Named is meaningful, as selected by Kind.
type PowerPayload struct {
	SourceID    string
	TimestampMs *int64
	Kind        ValuesKind
	Positional  []json.RawMessage
	Named       map[string]json.RawMessage
}

// ParsePower decodes raw into a PowerPayload. It fails only when raw is not a
// JSON object.
func ParsePower(raw []byte) (*PowerPayload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrMalformed)
	}

	p := &PowerPayload{
		SourceID:    firstString(top, sourceKeys),
		TimestampMs: firstTimestamp(top, timestampKeys),
	}
	if p.SourceID == "" {
		p.SourceID = models.DefaultSourceID
	}

	values, ok := top["values"]
	if !ok || isNull(values) {
		p.Kind = ValuesNamed
		p.Named = top
		return p, nil
	}

	switch firstByte(values) {
	case '[':
		if err := json.Unmarshal(values, &p.Positional); err == nil {
			p.Kind = ValuesPositional
		}
	case '{':
		if err := json.Unmarshal(values, &p.Named); err == nil {
			p.Kind = ValuesNamed
		}
	}
	return p, nil
}

// Canonical returns the canonical record for the payload.
func (p *PowerPayload) Canonical() models.PowerSample {
	s := models.PowerSample{SourceID: p.SourceID, TimestampMs: p.TimestampMs}

	switch p.Kind {
	case ValuesPositional:
		s.Voltage = positional(p.Positional, 0)
		s.Current = positional(p.Positional, 1)
		s.Power = positional(p.Positional, 2)
	case ValuesNamed:
		s.Voltage = firstNumber(p.Named, voltageKeys)
		s.Current = firstNumber(p.Named, currentKeys)
		s.Power = firstNumber(p.Named, powerKeys)
	}
	return s
}

// Power parses and canonicalizes raw in one step. It never reads the clock,
// so equal input bytes always produce equal records.
func Power(raw []byte) (models.PowerSample, error) {
	p, err := ParsePower(raw)
	if err != nil {
		return models.PowerSample{}, err
	}
	return p.Canonical(), nil
}

func positional(values []json.RawMessage, idx int) *float64 {
	if idx >= len(values) {
		return nil
	}
	if v, ok := parseNumber(values[idx]); ok {
		return &v
	}
	return nil
}

func firstNumber(obj map[string]json.RawMessage, keys []string) *float64 {
	for _, k := range keys {
		if raw, ok := obj[k]; ok {
			if v, ok := parseNumber(raw); ok {
				return &v
			}
		}
	}
	return nil
}

// firstString accepts strings and numbers ("4000" and 4000 are the same svID).
func firstString(obj map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return ""
}

// timestampLayouts are tried in order for string timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// firstTimestamp reads epoch millis (number or numeric string) or an ISO
// string. Unparseable values are skipped.
func firstTimestamp(obj map[string]json.RawMessage, keys []string) *int64 {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok || isNull(raw) {
			continue
		}
		if v, ok := parseNumber(raw); ok {
			ms := int64(v)
			return &ms
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				ms := t.UnixMilli()
				return &ms
			}
		}
	}
	return nil
}

// parseNumber accepts JSON numbers and numeric strings. null, booleans,
// objects, NaN, infinities, and non-numeric strings are rejected.
func parseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(string(bytes.TrimSpace([]byte(s))), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}
