// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package services

import (
	"context"
	"time"

	"github.com/tomtom215/gridwatch/internal/aggregate"
)

// WindowRunner matches *aggregate.Aggregator's flush loop.
type WindowRunner interface {
	Run(ctx context.Context, window time.Duration, emit aggregate.EmitFunc) error
}

// AggregatorService drives the power window flush loop. Each non-empty flush
// is handed to emit, which in GridWatch is the hub's BroadcastPower.
type AggregatorService struct {
	runner WindowRunner
	window time.Duration
	emit   aggregate.EmitFunc
	name   string
}

// NewAggregatorService creates an aggregator wrapper. A non-positive window
// falls back to one second.
func NewAggregatorService(runner WindowRunner, window time.Duration, emit aggregate.EmitFunc) *AggregatorService {
	if window <= 0 {
		window = time.Second
	}
	return &AggregatorService{
		runner: runner,
		window: window,
		emit:   emit,
		name:   "power-aggregator",
	}
}

// Serve implements suture.Service.
func (s *AggregatorService) Serve(ctx context.Context) error {
	return s.runner.Run(ctx, s.window, s.emit)
}

// String implements fmt.Stringer.
func (s *AggregatorService) String() string {
	return s.name
}
