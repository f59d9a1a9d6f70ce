// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/gridwatch/internal/logging"
)

// Consumers are the downstream components the handlers feed. Nil fields
// disable the matching consumer group.
type Consumers struct {
	PowerSink    PowerSink
	PowerStore   PowerWriter
	WeatherStore WeatherWriter
	Broadcaster  WeatherBroadcaster
}

// Pipeline owns every broker component: the optional embedded server, the
// connection used for stream management, the publisher, and the router with
// one subscriber per consumer group.
//
// The publisher is ready as soon as NewPipeline returns. The router and its
// subscribers are built by Start and torn down by Shutdown, so a supervised
// restart gets fresh ones. Close releases everything else at process exit.
type Pipeline struct {
	settings Settings
	url      string

	server            *EmbeddedServer
	conn              *natsgo.Conn
	streamInitializer *StreamInitializer
	publisher         *Publisher

	powerLive  *PowerLiveHandler
	powerStore *PowerStoreHandler
	weather    *WeatherHandler

	mu          sync.Mutex
	router      *Router
	subscribers []*Subscriber
	routerDone  chan struct{}
	running     bool
}

// NewPipeline starts the embedded server if configured, ensures the stream,
// and creates the publisher.
func NewPipeline(ctx context.Context, settings Settings, consumers Consumers) (*Pipeline, error) {
	p := &Pipeline{settings: settings, url: settings.URL}

	if settings.Embedded {
		srv, err := NewEmbeddedServer(&settings.Server)
		if err != nil {
			return nil, err
		}
		p.server = srv
		p.url = srv.ClientURL()
		logging.Info().Str("url", p.url).Msg("Embedded NATS server started")
	} else {
		logging.Info().Str("url", logging.SanitizeURL(p.url)).Msg("Using external NATS server")
	}

	nc, err := natsgo.Connect(p.url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p.conn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p.streamInitializer, err = NewStreamInitializer(js, &settings.Stream)
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("create stream initializer: %w", err)
	}
	stream, err := p.streamInitializer.EnsureStream(ctx)
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("ensure stream exists: %w", err)
	}
	info := stream.CachedInfo()
	logging.Info().
		Str("name", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Dur("max_age", info.Config.MaxAge).
		Msg("JetStream stream ready")

	p.publisher, err = NewPublisher(DefaultPublisherConfig(p.url), nil)
	if err != nil {
		p.Close(ctx)
		return nil, err
	}
	p.publisher.SetCircuitBreaker(NewCircuitBreaker(DefaultCircuitBreakerConfig("nats-publisher")))

	if consumers.PowerSink != nil {
		p.powerLive = NewPowerLiveHandler(consumers.PowerSink)
	}
	if consumers.PowerStore != nil {
		p.powerStore = NewPowerStoreHandler(consumers.PowerStore)
	}
	if consumers.WeatherStore != nil {
		p.weather = NewWeatherHandler(consumers.WeatherStore, consumers.Broadcaster)
	}

	return p, nil
}

// Publisher returns the shared publisher.
func (p *Pipeline) Publisher() *Publisher {
	return p.publisher
}

// URL returns the NATS URL clients connect to.
func (p *Pipeline) URL() string {
	return p.url
}

func (p *Pipeline) newSubscriber(durable string, deliverAll bool) (*Subscriber, error) {
	cfg := DefaultSubscriberConfig(p.url, durable)
	cfg.DeliverAll = deliverAll
	cfg.StreamName = p.settings.Stream.Name
	cfg.CloseTimeout = p.settings.Router.CloseTimeout
	return NewSubscriber(&cfg, nil)
}

// Start builds the router and its consumer groups and returns once every
// handler is subscribed.
//
//	<prefix>-power-live   power topic, deliver all   -> aggregation
//	<prefix>-power-db     power topic, deliver new   -> power_readings
//	<prefix>-weather-db   weather topic, deliver new -> weather_readings + fanout
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("pipeline is already running")
	}

	router, err := NewRouter(&p.settings.Router, p.publisher.WatermillPublisher(), nil)
	if err != nil {
		return err
	}

	var subs []*Subscriber
	add := func(name, group, topic string, deliverAll bool, handle message.NoPublishHandlerFunc) error {
		sub, err := p.newSubscriber(p.settings.Durable(group), deliverAll)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		router.AddConsumerHandler(name, topic, sub, handle)
		return nil
	}

	if p.powerLive != nil {
		err = add(HandlerPowerLive, GroupPowerLive, p.settings.PowerTopic, true, p.powerLive.Handle)
	}
	if err == nil && p.powerStore != nil {
		err = add(HandlerPowerStore, GroupPowerStore, p.settings.PowerTopic, false, p.powerStore.Handle)
	}
	if err == nil && p.weather != nil {
		err = add(HandlerWeather, GroupWeather, p.settings.WeatherTopic, false, p.weather.Handle)
	}
	if err != nil {
		closeSubscribers(subs)
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := router.Run(ctx); err != nil {
			logging.Error().Err(err).Msg("Router stopped with error")
		}
	}()

	select {
	case <-router.Running():
	case <-done:
		closeSubscribers(subs)
		return errors.New("router exited before it was running")
	case <-ctx.Done():
		_ = router.Close() //nolint:errcheck // shutting down
		closeSubscribers(subs)
		return ctx.Err()
	}

	p.router = router
	p.subscribers = subs
	p.routerDone = done
	p.running = true

	logging.Info().
		Int("consumer_groups", len(subs)).
		Str("prefix", p.settings.DurablePrefix).
		Msg("Broker consumers started")
	return nil
}

// Shutdown stops the router and closes the subscribers. The publisher and the
// broker connection stay open.
func (p *Pipeline) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	router, subs, done := p.router, p.subscribers, p.routerDone
	p.router, p.subscribers, p.routerDone = nil, nil, nil
	p.mu.Unlock()

	if err := router.Close(); err != nil {
		logging.Warn().Err(err).Msg("Router close failed")
	}
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn().Msg("Timed out waiting for router to stop")
	}
	closeSubscribers(subs)
	logging.Info().Msg("Broker consumers stopped")
}

// IsRunning reports whether the router is active.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Close stops consumers and releases the publisher, the connection, and the
// embedded server, in that order.
func (p *Pipeline) Close(ctx context.Context) {
	p.Shutdown(ctx)

	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Publisher close failed")
		}
	}
	if p.conn != nil {
		p.conn.Close()
	}
	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS shutdown failed")
		}
	}
}

// RegisterHealth adds the broker components to checker.
func (p *Pipeline) RegisterHealth(checker *HealthChecker) {
	if p.server != nil {
		checker.RegisterComponent("nats_server", p.server)
	}
	checker.RegisterComponent("nats_stream", p.streamInitializer)
	checker.RegisterComponent("nats_publisher", p.publisher)
	checker.RegisterComponent("nats_router", HealthCheckFunc(func(ctx context.Context) ComponentHealth {
		p.mu.Lock()
		router := p.router
		p.mu.Unlock()
		if router == nil {
			return ComponentHealth{Healthy: false, Error: "router is not running"}
		}
		h := router.HealthCheck(ctx)
		if h.Details == nil {
			h.Details = map[string]interface{}{}
		}
		for name, stats := range p.HandlerStats() {
			h.Details[name] = stats
		}
		return h
	}))
}

// HandlerStats returns counters for every configured handler.
func (p *Pipeline) HandlerStats() map[string]HandlerStats {
	out := make(map[string]HandlerStats, 3)
	if p.powerLive != nil {
		out[HandlerPowerLive] = p.powerLive.Stats()
	}
	if p.powerStore != nil {
		out[HandlerPowerStore] = p.powerStore.Stats()
	}
	if p.weather != nil {
		out[HandlerWeather] = p.weather.Stats()
	}
	return out
}

func closeSubscribers(subs []*Subscriber) {
	for _, s := range subs {
		if err := s.Close(); err != nil {
			logging.Warn().Err(err).Str("durable", s.DurableName()).Msg("Subscriber close failed")
		}
	}
}
