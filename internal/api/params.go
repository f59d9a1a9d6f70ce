// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/validation"
)

// historyParams are the query parameters shared by the history endpoints.
type historyParams struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Agg    string `json:"agg" validate:"omitempty,oneof=raw minute hour day"`
	Series string `json:"series" validate:"omitempty,max=128"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=10000"`
}

// parseHistoryQuery reads start, end, agg, limit and the series parameter
// (station or source). Missing start/end are left zero for the store to
// default.
func parseHistoryQuery(r *http.Request, seriesParam string) (models.HistoryQuery, *validation.APIError) {
	q := r.URL.Query()
	p := historyParams{
		Start:  q.Get("start"),
		End:    q.Get("end"),
		Agg:    strings.ToLower(strings.TrimSpace(q.Get("agg"))),
		Series: strings.TrimSpace(q.Get(seriesParam)),
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return models.HistoryQuery{}, &validation.APIError{
				Code:    ErrCodeValidationFailed,
				Message: "limit must be an integer",
			}
		}
		p.Limit = n
	}

	if verr := validation.ValidateStruct(&p); verr != nil {
		return models.HistoryQuery{}, verr.ToAPIError()
	}

	out := models.HistoryQuery{Agg: p.Agg, Series: p.Series, Limit: p.Limit}
	if out.Agg == "" {
		out.Agg = models.AggRaw
	}

	var err error
	if out.Start, err = parseTime(p.Start); err != nil {
		return models.HistoryQuery{}, &validation.APIError{Code: ErrCodeValidationFailed, Message: "start: " + err.Error()}
	}
	if out.End, err = parseTime(p.End); err != nil {
		return models.HistoryQuery{}, &validation.APIError{Code: ErrCodeValidationFailed, Message: "end: " + err.Error()}
	}
	if !out.Start.IsZero() && !out.End.IsZero() && !out.Start.Before(out.End) {
		return models.HistoryQuery{}, &validation.APIError{Code: ErrCodeValidationFailed, Message: "start must be before end"}
	}
	return out, nil
}

// parseTime accepts RFC 3339, a bare date, or epoch milliseconds.
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}
