// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/metrics"
)

// Packet outcomes recorded in gridwatch_bridge_packets_total.
const (
	OutcomeForwarded = "forwarded"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// queueSize bounds payloads waiting for the forwarder.
const queueSize = 1024

// Sender delivers a normalized payload. *Forwarder implements it.
type Sender interface {
	Forward(ctx context.Context, p Payload) error
}

// Config configures a Bridge.
type Config struct {
	// Addr is the UDP listen address, host:port.
	Addr       string
	BufferSize int

	// MaxPacketsPerSecond caps accepted datagrams. Zero means unlimited.
	MaxPacketsPerSecond float64
}

// Bridge reads datagrams, normalizes them, and hands them to a Sender in
// arrival order. Reading never waits on delivery: when the queue is full the
// newest payload is dropped.
type Bridge struct {
	cfg     Config
	sender  Sender
	limiter *rate.Limiter
	now     func() time.Time
	ready   chan net.Addr
}

// New creates a Bridge.
func New(cfg Config, sender Sender) *Bridge {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 65536
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.MaxPacketsPerSecond > 0 {
		burst := int(cfg.MaxPacketsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxPacketsPerSecond), burst)
	}
	return &Bridge{
		cfg:     cfg,
		sender:  sender,
		limiter: limiter,
		now:     time.Now,
		ready:   make(chan net.Addr, 1),
	}
}

// Ready receives the bound address once the socket is listening.
func (b *Bridge) Ready() <-chan net.Addr {
	return b.ready
}

// ListenAndServe binds cfg.Addr and serves until ctx is cancelled.
func (b *Bridge) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", b.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP %s: %w", b.cfg.Addr, err)
	}
	return b.Serve(ctx, conn)
}

// Serve reads from conn until ctx is cancelled, then closes conn and waits
// for the delivery loop to exit. It returns nil on cancellation.
func (b *Bridge) Serve(ctx context.Context, conn net.PacketConn) error {
	logging.Info().
		Str("addr", conn.LocalAddr().String()).
		Int("buffer_size", b.cfg.BufferSize).
		Msg("UDP bridge listening")
	select {
	case b.ready <- conn.LocalAddr():
	default:
	}

	queue := make(chan Payload, queueSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		defer close(queue)
		return b.read(gctx, conn, queue)
	})
	g.Go(func() error {
		b.deliver(ctx, queue)
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		logging.Info().Msg("UDP bridge stopped")
		return nil
	}
	return err
}

func (b *Bridge) read(ctx context.Context, conn net.PacketConn, queue chan<- Payload) error {
	buf := make([]byte, b.cfg.BufferSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("UDP read failed: %w", err)
		}

		if !b.limiter.Allow() {
			metrics.RecordBridgePacket(OutcomeDropped)
			continue
		}

		p, wrapped, ok := Normalize(buf[:n], from, b.now())
		if !ok {
			metrics.RecordBridgePacket(OutcomeEmpty)
			logging.Debug().Str("from", from.String()).Msg("Empty packet")
			continue
		}
		if wrapped {
			logging.Warn().Str("from", from.String()).Msg("Received non-JSON packet, wrapping")
		}

		select {
		case queue <- p:
		default:
			metrics.RecordBridgePacket(OutcomeDropped)
			logging.Warn().Str("from", from.String()).Msg("Forward queue full, dropping packet")
		}
	}
}

// deliver drains queue until it is closed. Payloads still queued after ctx
// is cancelled are counted as dropped.
func (b *Bridge) deliver(ctx context.Context, queue <-chan Payload) {
	for p := range queue {
		if ctx.Err() != nil {
			metrics.RecordBridgePacket(OutcomeDropped)
			continue
		}
		fctx := logging.ContextWithNewCorrelationID(ctx)
		if err := b.sender.Forward(fctx, p); err != nil {
			metrics.RecordBridgePacket(OutcomeFailed)
			logging.Ctx(fctx).Error().Err(err).
				Str("sv_id", p.SvID).
				Int64("timestamp_ms", p.TimestampMs).
				Msg("Failed to forward payload")
			continue
		}
		metrics.RecordBridgePacket(OutcomeForwarded)
		logging.Ctx(fctx).Debug().Str("sv_id", p.SvID).Msg("Forwarded payload")
	}
}
