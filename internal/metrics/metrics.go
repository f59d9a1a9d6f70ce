// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream weather API
	UpstreamPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_upstream_polls_total",
			Help: "Upstream station polls by outcome",
		},
		[]string{"station", "outcome"}, // ok, no_data, error, unauthorized
	)

	UpstreamPollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridwatch_upstream_poll_duration_seconds",
			Help:    "Duration of one upstream station poll including a re-auth retry",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"station"},
	)

	UpstreamAuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_upstream_auth_attempts_total",
			Help: "Upstream authentication attempts by result",
		},
		[]string{"result"}, // success, failure
	)

	// Producer
	ProducerRounds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridwatch_producer_rounds_total",
			Help: "Polling rounds started by the weather producer",
		},
	)

	ProducerPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_producer_published_total",
			Help: "Weather records published to the broker",
		},
		[]string{"station"},
	)

	ProducerGated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_producer_gated_total",
			Help: "Weather records held back because a required metric was still null",
		},
		[]string{"station"},
	)

	ProducerPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridwatch_producer_publish_errors_total",
			Help: "Weather publish failures",
		},
	)

	// Broker
	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_nats_messages_published_total",
			Help: "Messages published to NATS JetStream",
		},
		[]string{"topic"},
	)

	NATSPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_nats_publish_errors_total",
			Help: "Failed publishes to NATS JetStream",
		},
		[]string{"topic"},
	)

	NATSMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_nats_messages_consumed_total",
			Help: "Messages consumed per handler",
		},
		[]string{"handler"},
	)

	NATSMessagesMalformed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_nats_messages_malformed_total",
			Help: "Messages acked and dropped because they could not be parsed",
		},
		[]string{"handler"},
	)

	NATSProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridwatch_nats_processing_duration_seconds",
			Help:    "Handler processing time per message",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"handler"},
	)

	// Aggregation
	AggregationFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridwatch_aggregation_flushes_total",
			Help: "Non-empty window flushes",
		},
	)

	AggregationAverages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridwatch_aggregation_averages_total",
			Help: "Per-source window averages emitted",
		},
	)

	AggregationSamples = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridwatch_aggregation_samples_total",
			Help: "Power samples added to a window bucket",
		},
	)

	// Storage
	DBInserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_db_inserts_total",
			Help: "Rows inserted per table",
		},
		[]string{"table"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridwatch_db_query_duration_seconds",
			Help:    "Duration of database statements in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_db_errors_total",
			Help: "Failed database statements",
		},
		[]string{"operation", "table"},
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridwatch_websocket_connections",
			Help: "Connected WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_websocket_messages_total",
			Help: "Events broadcast to WebSocket clients by type",
		},
		[]string{"type"},
	)

	WSClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridwatch_websocket_clients_dropped_total",
			Help: "Clients disconnected because their send buffer was full",
		},
	)

	// Circuit breaker: 0=closed, 1=half-open, 2=open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridwatch_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridwatch_api_active_requests",
			Help: "In-flight HTTP requests",
		},
	)

	// UDP bridge
	BridgePackets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_bridge_packets_total",
			Help: "UDP packets handled by the bridge by outcome",
		},
		[]string{"outcome"}, // forwarded, empty, failed, dropped
	)

	// History cache
	HistoryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridwatch_history_cache_lookups_total",
			Help: "History cache lookups by series kind and result",
		},
		[]string{"kind", "result"}, // weather|power, hit|miss|bypass
	)
)

// RecordUpstreamPoll records one station poll.
func RecordUpstreamPoll(station, outcome string, duration time.Duration) {
	UpstreamPolls.WithLabelValues(station, outcome).Inc()
	UpstreamPollDuration.WithLabelValues(station).Observe(duration.Seconds())
}

// RecordUpstreamAuth records an authentication attempt.
func RecordUpstreamAuth(success bool) {
	if success {
		UpstreamAuthAttempts.WithLabelValues("success").Inc()
		return
	}
	UpstreamAuthAttempts.WithLabelValues("failure").Inc()
}

// RecordNATSPublish records a publish attempt on topic.
func RecordNATSPublish(topic string, err error) {
	if err != nil {
		NATSPublishErrors.WithLabelValues(topic).Inc()
		return
	}
	NATSMessagesPublished.WithLabelValues(topic).Inc()
}

// RecordNATSConsume records a handled message and its processing time.
func RecordNATSConsume(handler string, duration time.Duration) {
	NATSMessagesConsumed.WithLabelValues(handler).Inc()
	NATSProcessingDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordNATSMalformed records a message dropped as unparseable.
func RecordNATSMalformed(handler string) {
	NATSMessagesMalformed.WithLabelValues(handler).Inc()
}

// RecordFlush records one window flush that emitted averages.
func RecordFlush(averages int) {
	if averages == 0 {
		return
	}
	AggregationFlushes.Inc()
	AggregationAverages.Add(float64(averages))
}

// RecordDBQuery records a statement and its error, if any.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBErrors.WithLabelValues(operation, table).Inc()
		return
	}
	if operation == "insert" {
		DBInserts.WithLabelValues(table).Inc()
	}
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCircuitBreakerTransition records a gobreaker state change.
// States follow gobreaker's numbering: closed=0, half-open=1, open=2.
func RecordCircuitBreakerTransition(name, from, to string, toState int) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(float64(toState))
}

// RecordBridgePacket records a UDP packet outcome.
func RecordBridgePacket(outcome string) {
	BridgePackets.WithLabelValues(outcome).Inc()
}

// RecordHistoryCacheLookup records one history cache lookup.
func RecordHistoryCacheLookup(kind, result string) {
	HistoryCacheLookups.WithLabelValues(kind, result).Inc()
}
