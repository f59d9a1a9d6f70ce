// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

func newGoChannel(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	return newGoChannelWithConfig(t, gochannel.Config{Persistent: true})
}

// newOrderedGoChannel blocks Publish until the subscriber acks. Without it
// each message is delivered from its own goroutine and arrival order is
// random. Handlers that publish to a topic the test itself reads would
// deadlock on it.
func newOrderedGoChannel(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	return newGoChannelWithConfig(t, gochannel.Config{
		Persistent:                     true,
		BlockPublishUntilSubscriberAck: true,
	})
}

func newGoChannelWithConfig(t *testing.T, cfg gochannel.Config) *gochannel.GoChannel {
	t.Helper()
	ch := gochannel.NewGoChannel(cfg, watermill.NopLogger{})
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func runRouter(t *testing.T, r *Router) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
}

func TestRouter_DeliversInOrder(t *testing.T) {
	t.Parallel()

	ch := newOrderedGoChannel(t)
	r, err := NewRouter(&RouterConfig{CloseTimeout: time.Second}, nil, watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan string, 10)
	r.AddConsumerHandler("ordered", "power-data", ch, func(msg *message.Message) error {
		got <- string(msg.Payload)
		return nil
	})
	runRouter(t, r)

	if !r.IsRunning() {
		t.Error("IsRunning() = false after Running() closed")
	}

	want := []string{"1", "2", "3", "4", "5"}
	for _, p := range want {
		if err := ch.Publish("power-data", message.NewMessage(watermill.NewUUID(), []byte(p))); err != nil {
			t.Fatal(err)
		}
	}

	for i, w := range want {
		select {
		case g := <-got:
			if g != w {
				t.Errorf("message %d = %s, want %s", i, g, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestRouter_PanicRetriedThenPoisoned(t *testing.T) {
	t.Parallel()

	ch := newGoChannel(t)
	cfg := &RouterConfig{
		CloseTimeout:         time.Second,
		RetryMaxRetries:      2,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
		RetryMultiplier:      2,
		PoisonQueueTopic:     "telemetry.poison",
	}
	r, err := NewRouter(cfg, ch, watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}

	var attempts atomic.Int32
	r.AddConsumerHandler("explodes", "weather-data", ch, func(*message.Message) error {
		attempts.Add(1)
		panic("boom")
	})

	poisoned, err := ch.Subscribe(context.Background(), "telemetry.poison")
	if err != nil {
		t.Fatal(err)
	}
	runRouter(t, r)

	if err := ch.Publish("weather-data", message.NewMessage("poison-me", []byte(`{}`))); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-poisoned:
		msg.Ack()
		if msg.UUID != "poison-me" {
			t.Errorf("poisoned UUID = %s, want poison-me", msg.UUID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message never reached the poison topic")
	}

	// One initial attempt plus two retries.
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	t.Parallel()

	ch := newGoChannel(t)
	r, err := NewRouter(nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.AddConsumerHandler("noop", "power-data", ch, func(*message.Message) error { return nil })

	if h := r.HealthCheck(context.Background()); h.Healthy {
		t.Error("router should be unhealthy before Run")
	}
	runRouter(t, r)
	h := r.HealthCheck(context.Background())
	if !h.Healthy {
		t.Errorf("router should be healthy while running: %+v", h)
	}
	names, _ := h.Details["handlers"].([]string)
	if len(names) != 1 || names[0] != "noop" {
		t.Errorf("handlers = %v, want [noop]", names)
	}
}
