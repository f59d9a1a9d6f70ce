// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package services

import (
	"context"
)

// ContextHub matches *websocket.Hub's RunWithContext.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService wraps the WebSocket fanout hub. RunWithContext already has the
// suture shape, so this only supplies a name.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService creates a hub wrapper.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer.
func (s *HubService) String() string {
	return s.name
}
