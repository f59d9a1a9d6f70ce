// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/gridwatch/internal/logging"
)

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
}

// HTTPServerService supervises the API server. On cancellation it drains
// in-flight requests for up to shutdownTimeout and then force-closes whatever
// is left. Upgraded WebSocket connections are owned by the hub, not drained
// here.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. shutdownTimeout <= 0 means 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		err := h.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		// Closed by someone else; let the supervisor restart it.
		return errors.New("http server exited unexpectedly")
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	started := time.Now()
	if err := h.server.Shutdown(drainCtx); err != nil {
		logging.Warn().Err(err).Dur("timeout", h.shutdownTimeout).Msg("HTTP drain incomplete, closing connections")
		if cerr := h.server.Close(); cerr != nil {
			return fmt.Errorf("http server close failed: %w", cerr)
		}
	}
	<-done
	logging.Info().Dur("drain", time.Since(started)).Msg("HTTP server stopped")
	return ctx.Err()
}

func (h *HTTPServerService) String() string {
	return "http-server"
}
