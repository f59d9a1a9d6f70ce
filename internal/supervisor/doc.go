// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package supervisor provides process supervision for GridWatch using suture v4.

The tree groups long-running services into three layers so that a failure in
one restarts only its own layer:

	RootSupervisor ("gridwatch")
	├── BrokerSupervisor ("broker-layer")
	│   └── PipelineService      NATS consumers: aggregation, persistence, fanout
	├── StreamSupervisor ("stream-layer")
	│   ├── HubService           WebSocket fanout
	│   ├── ProducerService      weather polling (when PRODUCER_ENABLED)
	│   └── AggregatorService    power window flush -> hub
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events (service panics, restarts, backoff) are logged through
sutureslog on the slog bridge from internal/logging.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.Add(supervisor.LayerBroker, services.NewPipelineService(pipeline, 30*time.Second))
	tree.Add(supervisor.LayerStream, services.NewHubService(hub))
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)

Serve blocks until ctx is cancelled. Services that ignore cancellation past
ShutdownTimeout show up in UnstoppedServiceReport.

See package services for the individual wrappers.
*/
package supervisor
