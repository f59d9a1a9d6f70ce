// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/logging"
)

// IngestAck is the body of a 202 from the ingest endpoint.
type IngestAck struct {
	Topic string `json:"topic"`
	Bytes int    `json:"bytes"`
}

// Ingest publishes the request body verbatim to the power topic.
//
// The body must be a JSON object no larger than the configured limit. Arrays
// and scalars are rejected because no consumer can normalize them. The object
// is not normalized here; each consumer group normalizes on its own.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Publisher == nil {
		rw.ServiceUnavailable("Ingest is not available")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxIngestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body too large")
			return
		}
		rw.BadRequest("Failed to read request body")
		return
	}

	if !isJSONObject(body) {
		rw.BadRequest("Request body must be a JSON object")
		return
	}

	if err := h.deps.Publisher.PublishBytes(r.Context(), h.deps.PowerTopic, body); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("topic", h.deps.PowerTopic).
			Int("bytes", len(body)).
			Msg("Failed to publish ingest payload")
		rw.ServiceUnavailable("Broker unavailable")
		return
	}

	rw.Status(http.StatusAccepted, IngestAck{Topic: h.deps.PowerTopic, Bytes: len(body)})
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
