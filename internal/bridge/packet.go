// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package bridge

import (
	"bytes"
	"net"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// OPALSourceID is the svID whose positional values are voltage, current, power.
const OPALSourceID = "4000"

// cutset is trimmed from both ends of every datagram.
const cutset = "\x00\n\r "

// Payload is what the bridge POSTs to the ingest endpoint.
//
// Values is a {voltage, current, power} object for OPALSourceID packets with at
// least three values; otherwise it is the packet's "values" field verbatim, or
// null when there is none.
type Payload struct {
	SvID        string          `json:"svID,omitempty"`
	TimestampMs int64           `json:"timestamp_ms"`
	Values      json.RawMessage `json:"values"`
}

// opalValues keeps the original JSON of each element so strings and numbers
// reach the ingest endpoint unchanged.
type opalValues struct {
	Voltage json.RawMessage `json:"voltage"`
	Current json.RawMessage `json:"current"`
	Power   json.RawMessage `json:"power"`
}

// rawPacket wraps a datagram that is not JSON.
type rawPacket struct {
	Raw        string `json:"raw"`
	From       string `json:"from"`
	Port       int    `json:"port"`
	ReceivedAt int64  `json:"received_at"`
}

var nullJSON = json.RawMessage("null")

// Normalize turns one datagram into a Payload. ok is false for packets that
// are empty after trimming. wrapped reports that the datagram was not JSON
// and was wrapped as {raw, from, port, received_at} before normalizing.
func Normalize(data []byte, from net.Addr, now time.Time) (p Payload, wrapped, ok bool) {
	text := bytes.Trim(data, cutset)
	if len(text) == 0 {
		return Payload{}, false, false
	}

	nowMs := now.UnixMilli()
	if !json.Valid(text) {
		host, port := splitAddr(from)
		// Marshal of a plain struct cannot fail.
		text, _ = json.Marshal(rawPacket{Raw: string(text), From: host, Port: port, ReceivedAt: nowMs}) //nolint:errcheck
		wrapped = true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(text, &obj); err != nil || obj == nil {
		// Valid JSON but not an object: arrays, numbers, strings.
		return Payload{TimestampMs: nowMs, Values: nullJSON}, wrapped, true
	}

	p = Payload{
		SvID:        svID(obj["svID"]),
		TimestampMs: timestamp(obj, nowMs),
		Values:      obj["values"],
	}
	if len(p.Values) == 0 {
		p.Values = nullJSON
	}

	if p.SvID == OPALSourceID {
		var vals []json.RawMessage
		if err := json.Unmarshal(p.Values, &vals); err == nil && len(vals) >= 3 {
			named, _ := json.Marshal(opalValues{Voltage: vals[0], Current: vals[1], Power: vals[2]}) //nolint:errcheck
			p.Values = named
		}
	}
	return p, wrapped, true
}

// timestamp takes the first non-zero of timestamp_ms and received_at, then
// falls back to now.
func timestamp(obj map[string]json.RawMessage, nowMs int64) int64 {
	for _, key := range []string{"timestamp_ms", "received_at"} {
		if ms, ok := epochMillis(obj[key]); ok && ms != 0 {
			return ms
		}
	}
	return nowMs
}

// epochMillis accepts a JSON number or a numeric string.
func epochMillis(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

// svID accepts strings and numbers, so 4000 and "4000" match.
func svID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func splitAddr(addr net.Addr) (string, int) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String(), a.Port
	case nil:
		return "", 0
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	port, _ := strconv.Atoi(portStr) //nolint:errcheck // zero on failure
	return host, port
}
