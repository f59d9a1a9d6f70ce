// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer selects one of the tree's child supervisors.
type Layer int

// Layers, in start order.
const (
	// LayerBroker holds the NATS pipeline: embedded server, publisher and
	// consumer router.
	LayerBroker Layer = iota
	// LayerStream holds the weather producer, the power aggregator flush loop
	// and the WebSocket hub.
	LayerStream
	// LayerAPI holds the HTTP server.
	LayerAPI
)

var layerNames = [...]string{
	LayerBroker: "broker-layer",
	LayerStream: "stream-layer",
	LayerAPI:    "api-layer",
}

func (l Layer) String() string {
	if l < 0 || int(l) >= len(layerNames) {
		return fmt.Sprintf("layer(%d)", int(l))
	}
	return layerNames[l]
}

// TreeConfig tunes restart behavior. Zero fields take DefaultTreeConfig
// values.
type TreeConfig struct {
	// FailureThreshold failures, decaying at FailureDecay seconds each,
	// put a layer into FailureBackoff.
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration

	// ShutdownTimeout bounds each service's Serve return after cancellation.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig mirrors suture's defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) spec(hook suture.EventHook) suture.Spec {
	return suture.Spec{
		EventHook:        hook,
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// SupervisorTree is the GridWatch process tree: a root supervisor with one
// child per Layer. A failing producer restarts inside the stream layer while
// the API layer keeps answering history queries.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers [len(layerNames)]*suture.Supervisor
	logger *slog.Logger
	config TreeConfig
}

// NewSupervisorTree builds the tree. A nil logger means slog.Default().
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.withDefaults()

	handler := &sutureslog.Handler{Logger: logger}
	t := &SupervisorTree{
		// Children inherit the root's hook.
		root:   suture.New("gridwatch", config.spec(handler.MustHook())),
		logger: logger,
		config: config,
	}
	for i, name := range layerNames {
		t.layers[i] = suture.New(name, config.spec(nil))
		t.root.Add(t.layers[i])
	}
	return t, nil
}

// Root returns the root supervisor.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// Add registers svc under layer.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) suture.ServiceToken {
	return t.layer(layer).Add(svc)
}

// Remove stops and removes a service previously added to layer.
func (t *SupervisorTree) Remove(layer Layer, token suture.ServiceToken) error {
	return t.layer(layer).Remove(token)
}

func (t *SupervisorTree) layer(l Layer) *suture.Supervisor {
	if l < 0 || int(l) >= len(t.layers) {
		panic(fmt.Sprintf("supervisor: unknown %s", l))
	}
	return t.layers[l]
}

// Serve runs the tree until ctx is cancelled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The channel receives the
// Serve result.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
