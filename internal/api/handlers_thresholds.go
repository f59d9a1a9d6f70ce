// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/thresholds"
	"github.com/tomtom215/gridwatch/internal/validation"
)

// maxThresholdBody caps PUT /thresholds bodies.
const maxThresholdBody = 4 << 10

// thresholdRequest is the PUT body. Both bounds are required.
type thresholdRequest struct {
	Min *float64 `json:"min" validate:"required"`
	Max *float64 `json:"max" validate:"required"`
}

// ListThresholds returns every stored threshold ordered by parameter.
func (h *Handler) ListThresholds(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Thresholds == nil {
		rw.ServiceUnavailable("Threshold store is not available")
		return
	}
	list, err := h.deps.Thresholds.List(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.List(list, len(list))
}

// GetThreshold returns the threshold for {parameter}.
func (h *Handler) GetThreshold(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Thresholds == nil {
		rw.ServiceUnavailable("Threshold store is not available")
		return
	}
	param := chi.URLParam(r, "parameter")
	th, err := h.deps.Thresholds.Get(r.Context(), param)
	switch {
	case errors.Is(err, thresholds.ErrNotFound):
		rw.NotFound("No threshold for " + param)
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.Success(th)
	}
}

// PutThreshold creates or replaces the threshold for {parameter}.
func (h *Handler) PutThreshold(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Thresholds == nil {
		rw.ServiceUnavailable("Threshold store is not available")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxThresholdBody))
	if err != nil {
		rw.BadRequest("Failed to read request body")
		return
	}
	var req thresholdRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rw.BadRequest("Request body must be a JSON object with min and max")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.ToAPIError())
		return
	}

	th := models.Threshold{
		Parameter: strings.TrimSpace(chi.URLParam(r, "parameter")),
		Min:       *req.Min,
		Max:       *req.Max,
	}
	if verr := validation.ValidateStruct(&th); verr != nil {
		rw.ValidationError(verr.ToAPIError())
		return
	}

	stored, err := h.deps.Thresholds.Put(r.Context(), th)
	switch {
	case errors.Is(err, thresholds.ErrInvalidThreshold):
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.Success(stored)
	}
}

// DeleteThreshold removes the threshold for {parameter}.
func (h *Handler) DeleteThreshold(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Thresholds == nil {
		rw.ServiceUnavailable("Threshold store is not available")
		return
	}
	param := chi.URLParam(r, "parameter")
	err := h.deps.Thresholds.Delete(r.Context(), param)
	switch {
	case errors.Is(err, thresholds.ErrNotFound):
		rw.NotFound("No threshold for " + param)
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.NoContent()
	}
}
