// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package services

import (
	"context"
	"fmt"
	"time"
)

// PipelineRunner matches the lifecycle of *eventprocessor.Pipeline.
//
// Start brings up the consumer router on an already-open broker. Shutdown
// stops the router but leaves the broker connection open so the pipeline can
// be started again after a restart; the caller closes the broker once the
// tree has stopped.
type PipelineRunner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// PipelineService wraps the broker pipeline as a supervised service.
//
//	pipeline, _ := eventprocessor.NewPipeline(ctx, settings, consumers)
//	tree.Add(supervisor.LayerBroker, services.NewPipelineService(pipeline, 30*time.Second))
type PipelineService struct {
	pipeline        PipelineRunner
	shutdownTimeout time.Duration
	name            string
}

// NewPipelineService creates a pipeline wrapper. A non-positive
// shutdownTimeout falls back to 10s.
func NewPipelineService(pipeline PipelineRunner, shutdownTimeout time.Duration) *PipelineService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &PipelineService{
		pipeline:        pipeline,
		shutdownTimeout: shutdownTimeout,
		name:            "broker-pipeline",
	}
}

// Serve implements suture.Service.
func (s *PipelineService) Serve(ctx context.Context) error {
	if !s.pipeline.IsRunning() {
		if err := s.pipeline.Start(ctx); err != nil {
			return fmt.Errorf("pipeline start failed: %w", err)
		}
	}

	<-ctx.Done()

	// ctx is already cancelled here.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.pipeline.Shutdown(shutdownCtx)

	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *PipelineService) String() string {
	return s.name
}
