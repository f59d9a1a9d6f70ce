// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package main is the entry point for the GridWatch server.

GridWatch polls a session-authenticated weather API, accepts power samples
pushed over HTTP (usually by cmd/svbridge), and relays both through NATS
JetStream to three consumer groups: a windowed power aggregator feeding the
WebSocket fanout, a power persistence consumer, and a weather persistence
consumer that also feeds the fanout.

# Application Architecture

	RootSupervisor ("gridwatch")
	├── BrokerSupervisor ("broker-layer")
	│   └── Pipeline (embedded NATS, publisher, Watermill router)
	├── StreamSupervisor ("stream-layer")
	│   ├── WebSocket Hub
	│   ├── Weather Producer (PRODUCER_ENABLED)
	│   └── Power Aggregator flush loop
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Initialization order:

 1. Configuration: Koanf v2 (.env, defaults, config.yaml, environment)
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Storage: DuckDB or PostgreSQL readings store, Badger threshold store
 4. WebSocket hub and power aggregator
 5. Broker pipeline: stream, publisher, consumer groups
 6. Upstream client and weather producer
 7. Health checker, router, HTTP server
 8. Supervisor tree

# Configuration

Common environment variables:

	API_AUTH_URL, API_USER, API_PASSWORD   upstream login
	API_DATA_URLS                          station list (JSON, key=url, or URLs)
	POLL_INTERVAL                          producer tick (default 1s)
	AGGREGATION_WINDOW                     power window (default 1s)
	NATS_EMBEDDED, NATS_URL                broker
	DB_DRIVER                              duckdb (default) or postgres
	THRESHOLDS_PATH                        Badger directory
	PORT                                   HTTP port (default 4000)
	HISTORY_CACHE_TTL                      closed-range history cache (default 30s, 0 disables)

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops the HTTP
server, producer, aggregator, hub, and consumer router; main then closes the
broker connection, the embedded server, and the stores.
*/
package main
