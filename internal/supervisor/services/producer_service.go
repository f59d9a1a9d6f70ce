// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package services

import (
	"context"
	"fmt"
)

// StartStopRunner matches *producer.Producer: Start spawns the polling loop
// and returns, Stop blocks until every in-flight round has finished.
type StartStopRunner interface {
	Start(ctx context.Context) error
	Stop() error
}

// ProducerService wraps the weather producer as a supervised service.
type ProducerService struct {
	runner StartStopRunner
	name   string
}

// NewProducerService creates a producer wrapper.
func NewProducerService(runner StartStopRunner) *ProducerService {
	return &ProducerService{
		runner: runner,
		name:   "weather-producer",
	}
}

// Serve implements suture.Service.
func (s *ProducerService) Serve(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("weather producer start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.runner.Stop(); err != nil {
		return fmt.Errorf("weather producer stop failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *ProducerService) String() string {
	return s.name
}
