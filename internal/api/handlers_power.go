// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package api

import "net/http"

// PowerHistory returns stored power rows, raw or bucketed, filtered by the
// optional source parameter.
func (h *Handler) PowerHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.History == nil {
		rw.ServiceUnavailable("History store is not available")
		return
	}
	q, verr := parseHistoryQuery(r, "source")
	if verr != nil {
		rw.ValidationError(verr)
		return
	}

	points, err := h.deps.History.PowerHistory(r.Context(), q)
	if err != nil {
		h.historyError(rw, err)
		return
	}
	rw.List(points, len(points))
}
