// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package services provides suture.Service wrappers for GridWatch components.

Each wrapper translates one lifecycle shape into suture's context-aware
Serve(ctx) error:

	PipelineService    Start(ctx) / Shutdown(ctx) / IsRunning()  broker layer
	ProducerService    Start(ctx) / Stop()                       stream layer
	AggregatorService  Run(ctx, window, emit)                    stream layer
	HubService         RunWithContext(ctx)                       stream layer
	HTTPServerService  ListenAndServe() / Shutdown(ctx)          api layer

Wrappers depend on small interfaces rather than concrete types so the
component packages never import the supervisor. Every wrapper implements
fmt.Stringer; suture uses the name in its event log.

Returning an error from Serve makes suture restart the service under the
tree's backoff policy. Returning ctx.Err() after cancellation is a normal stop.
*/
package services
