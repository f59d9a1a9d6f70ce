// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordUpstreamPoll(t *testing.T) {
	before := testutil.ToFloat64(UpstreamPolls.WithLabelValues("test_station", "ok"))

	RecordUpstreamPoll("test_station", "ok", 20*time.Millisecond)

	after := testutil.ToFloat64(UpstreamPolls.WithLabelValues("test_station", "ok"))
	if after-before != 1 {
		t.Errorf("UpstreamPolls increased by %v, want 1", after-before)
	}
}

func TestRecordUpstreamAuth(t *testing.T) {
	okBefore := testutil.ToFloat64(UpstreamAuthAttempts.WithLabelValues("success"))
	failBefore := testutil.ToFloat64(UpstreamAuthAttempts.WithLabelValues("failure"))

	RecordUpstreamAuth(true)
	RecordUpstreamAuth(false)
	RecordUpstreamAuth(false)

	if got := testutil.ToFloat64(UpstreamAuthAttempts.WithLabelValues("success")) - okBefore; got != 1 {
		t.Errorf("success attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(UpstreamAuthAttempts.WithLabelValues("failure")) - failBefore; got != 2 {
		t.Errorf("failure attempts = %v, want 2", got)
	}
}

func TestRecordNATSPublish(t *testing.T) {
	pubBefore := testutil.ToFloat64(NATSMessagesPublished.WithLabelValues("test-topic"))
	errBefore := testutil.ToFloat64(NATSPublishErrors.WithLabelValues("test-topic"))

	RecordNATSPublish("test-topic", nil)
	RecordNATSPublish("test-topic", errors.New("no responders"))

	if got := testutil.ToFloat64(NATSMessagesPublished.WithLabelValues("test-topic")) - pubBefore; got != 1 {
		t.Errorf("published = %v, want 1", got)
	}
	if got := testutil.ToFloat64(NATSPublishErrors.WithLabelValues("test-topic")) - errBefore; got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestRecordFlush_SkipsEmpty(t *testing.T) {
	flushes := testutil.ToFloat64(AggregationFlushes)
	averages := testutil.ToFloat64(AggregationAverages)

	RecordFlush(0)
	RecordFlush(3)

	if got := testutil.ToFloat64(AggregationFlushes) - flushes; got != 1 {
		t.Errorf("flushes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(AggregationAverages) - averages; got != 3 {
		t.Errorf("averages = %v, want 3", got)
	}
}

func TestRecordDBQuery(t *testing.T) {
	insBefore := testutil.ToFloat64(DBInserts.WithLabelValues("test_table"))
	errBefore := testutil.ToFloat64(DBErrors.WithLabelValues("insert", "test_table"))

	RecordDBQuery("insert", "test_table", time.Millisecond, nil)
	RecordDBQuery("insert", "test_table", time.Millisecond, errors.New("constraint"))
	RecordDBQuery("select", "test_table", time.Millisecond, nil)

	if got := testutil.ToFloat64(DBInserts.WithLabelValues("test_table")) - insBefore; got != 1 {
		t.Errorf("inserts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(DBErrors.WithLabelValues("insert", "test_table")) - errBefore; got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}

	var m dto.Metric
	observer := DBQueryDuration.WithLabelValues("select", "test_table")
	if err := observer.(interface{ Write(*dto.Metric) error }).Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if m.GetHistogram().GetSampleCount() == 0 {
		t.Error("expected at least one select observation")
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("test-breaker", "closed", "open", 2)

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test-breaker")); got != 2 {
		t.Errorf("state = %v, want 2", got)
	}
	if got := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("test-breaker", "closed", "open")); got < 1 {
		t.Errorf("transitions = %v, want >= 1", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("active = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active = %v, want %v", got, before)
	}
}

func TestRecordHistoryCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(HistoryCacheLookups.WithLabelValues("power", "hit"))
	RecordHistoryCacheLookup("power", "hit")
	RecordHistoryCacheLookup("power", "miss")
	if got := testutil.ToFloat64(HistoryCacheLookups.WithLabelValues("power", "hit")) - before; got != 1 {
		t.Errorf("hit delta = %v, want 1", got)
	}
}
