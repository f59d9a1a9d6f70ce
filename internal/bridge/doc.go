// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package bridge relays sampled-value UDP datagrams to the HTTP ingest endpoint.

Each datagram is trimmed of NUL and whitespace padding and skipped when
nothing is left. Datagrams that are not JSON are wrapped as
{raw, from, port, received_at}. The forwarded body is:

	{"svID": "4000", "timestamp_ms": 1700000000000,
	 "values": {"voltage": 230.1, "current": 5.2, "power": 1196.5}}

timestamp_ms is the first non-zero of the packet's timestamp_ms, its
received_at, or the arrival time. For svID 4000 a values array of at least
three elements becomes {voltage, current, power}; every other packet carries
its values unchanged.

Delivery goes through a Forwarder: exponential backoff (cenkalti/backoff)
for up to MaxAttempts POSTs, inside a gobreaker circuit breaker so a dead
backend is not hammered. A 4xx other than 429 is final and does not count
against the breaker.

Packet outcomes are exported as gridwatch_bridge_packets_total{outcome}.
*/
package bridge
