// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/gridwatch/internal/aggregate"
	"github.com/tomtom215/gridwatch/internal/api"
	"github.com/tomtom215/gridwatch/internal/cache"
	"github.com/tomtom215/gridwatch/internal/config"
	"github.com/tomtom215/gridwatch/internal/database"
	"github.com/tomtom215/gridwatch/internal/eventprocessor"
	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/middleware"
	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/producer"
	"github.com/tomtom215/gridwatch/internal/supervisor"
	"github.com/tomtom215/gridwatch/internal/supervisor/services"
	"github.com/tomtom215/gridwatch/internal/thresholds"
	ws "github.com/tomtom215/gridwatch/internal/websocket"
)

const (
	// closeTimeout bounds the post-supervisor cleanup of broker and stores.
	closeTimeout = 15 * time.Second

	latencySamplesPerRoute = 512
	historyCacheEntries    = 256
)

//nolint:gocyclo // sequential wiring of every component
func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "gridwatch",
		Output:    os.Stderr,
	})
	logging.Info().
		Str("db_driver", cfg.Database.Driver).
		Bool("producer_enabled", cfg.Producer.Enabled).
		Bool("nats_embedded", cfg.NATS.EmbeddedServer).
		Dur("aggregation_window", cfg.Aggregation.Window).
		Msg("Starting GridWatch")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// === STORAGE ===
	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open readings store")
	}
	thresholdStore, err := thresholds.Open(cfg.Thresholds.Path)
	if err != nil {
		closeStore(store)
		logging.Fatal().Err(err).Str("path", cfg.Thresholds.Path).Msg("Failed to open threshold store")
	}

	// === STREAMING ===
	// The hub serves the producer's snapshot, but the producer needs the
	// pipeline publisher, and the pipeline needs the hub.
	var weatherProducer *producer.Producer
	hub := ws.NewHub(ws.HubConfig{
		HeartbeatInterval: cfg.WebSocket.HeartbeatInterval,
		LegacyEvents:      cfg.WebSocket.LegacyEvents,
		Snapshot: func() map[string]models.WeatherRecord {
			if weatherProducer == nil {
				return nil
			}
			return weatherProducer.Snapshot()
		},
	})
	aggregator := aggregate.New()

	pipeline, err := initPipeline(ctx, &cfg.NATS, eventprocessor.Consumers{
		PowerSink:    aggregator,
		PowerStore:   store,
		WeatherStore: store,
		Broadcaster:  hub,
	})
	if err != nil {
		closeStores(store, thresholdStore)
		logging.Fatal().Err(err).Msg("Failed to initialize broker pipeline")
	}

	upstreamClient, weatherProducer, err := initProducer(cfg, pipeline.Publisher())
	if err != nil {
		shutdownPipeline(pipeline)
		closeStores(store, thresholdStore)
		logging.Fatal().Err(err).Msg("Failed to initialize weather producer")
	}

	// === HEALTH AND HTTP ===
	latency := middleware.NewLatencyTracker(latencySamplesPerRoute, 0)
	checker := eventprocessor.NewHealthChecker(5 * time.Second)
	pipeline.RegisterHealth(checker)
	deps := healthDeps{
		store:      store,
		thresholds: thresholdStore,
		hub:        hub,
		latency:    latency,
	}
	if upstreamClient != nil {
		deps.upstream = upstreamClient
	}
	registerHealth(checker, deps)

	var history api.HistoryStore = store
	if cfg.Server.HistoryCacheTTL > 0 {
		history = cache.NewHistory(store, cfg.Server.HistoryCacheTTL, historyCacheEntries)
	}

	var snapshot api.SnapshotSource
	if weatherProducer != nil {
		snapshot = weatherProducer
	}
	handler := api.NewHandler(api.Dependencies{
		Publisher:  pipeline.Publisher(),
		PowerTopic: cfg.NATS.PowerTopic,
		Snapshot:   snapshot,
		History:    history,
		Thresholds: thresholdStore,
		Health:     checker,
		Hub:        hub,
	}, cfg.Server.MaxIngestBytes, cfg.Server.CORSOrigins)

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Server.RateLimitRequests
	mwCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Server.RateLimitDisabled
	mw := api.NewChiMiddleware(mwCfg)
	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, mw, latency),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// === SUPERVISOR TREE ===
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		shutdownPipeline(pipeline)
		closeStores(store, thresholdStore)
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.Add(supervisor.LayerBroker, services.NewPipelineService(pipeline, cfg.NATS.RouterCloseTimeout))
	tree.Add(supervisor.LayerStream, services.NewHubService(hub))
	tree.Add(supervisor.LayerStream, services.NewAggregatorService(aggregator, cfg.Aggregation.Window, hub.BroadcastPower))
	if weatherProducer != nil {
		tree.Add(supervisor.LayerStream, services.NewProducerService(weatherProducer))
	}
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 { //nolint:errcheck // report only
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	shutdownPipeline(pipeline)
	closeStores(store, thresholdStore)
	logging.Info().Msg("GridWatch stopped gracefully")
}

func shutdownPipeline(p *eventprocessor.Pipeline) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	p.Close(ctx)
}

func closeStore(store database.Store) {
	if err := store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing readings store")
	}
}

func closeStores(store database.Store, th *thresholds.Store) {
	closeStore(store)
	if err := th.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing threshold store")
	}
}
