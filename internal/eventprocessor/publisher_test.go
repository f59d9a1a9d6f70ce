// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package eventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/gridwatch/internal/logging"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(string, ...*message.Message) error {
	f.calls++
	return errors.New("nats: no responders available for request")
}

func (f *failingPublisher) Close() error { return nil }

func TestNewPublisherFrom_Nil(t *testing.T) {
	t.Parallel()
	if _, err := NewPublisherFrom(nil); !errors.Is(err, ErrNilPublisher) {
		t.Errorf("err = %v, want ErrNilPublisher", err)
	}
}

func TestPublisher_PublishBytesVerbatim(t *testing.T) {
	t.Parallel()

	ch := newGoChannel(t)
	pub, err := NewPublisherFrom(ch)
	if err != nil {
		t.Fatal(err)
	}

	out, err := ch.Subscribe(context.Background(), "power-data")
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte(`{"svID":4000, "values":[220.1,1.5,330]}`)
	ctx := logging.ContextWithCorrelationID(context.Background(), "req-42")
	if err := pub.PublishBytes(ctx, "power-data", payload); err != nil {
		t.Fatalf("PublishBytes() error = %v", err)
	}

	select {
	case msg := <-out:
		msg.Ack()
		if string(msg.Payload) != string(payload) {
			t.Errorf("payload = %s, want %s", msg.Payload, payload)
		}
		if msg.Metadata.Get(natsgo.MsgIdHdr) != msg.UUID {
			t.Errorf("%s = %q, want message UUID %q", natsgo.MsgIdHdr, msg.Metadata.Get(natsgo.MsgIdHdr), msg.UUID)
		}
		if msg.Metadata.Get("correlation_id") != "req-42" {
			t.Errorf("correlation_id = %q, want req-42", msg.Metadata.Get("correlation_id"))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestPublisher_Closed(t *testing.T) {
	t.Parallel()

	pub, _ := NewPublisherFrom(newGoChannel(t))
	if err := pub.Close(); err != nil {
		t.Fatal(err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if err := pub.PublishBytes(context.Background(), "x", []byte(`{}`)); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("err = %v, want ErrPublisherClosed", err)
	}
	if h := pub.HealthCheck(context.Background()); h.Healthy {
		t.Error("closed publisher should be unhealthy")
	}
}

func TestPublisher_CircuitBreakerOpens(t *testing.T) {
	t.Parallel()

	fp := &failingPublisher{}
	pub, _ := NewPublisherFrom(fp)
	cfg := DefaultCircuitBreakerConfig("test-publisher")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Minute
	pub.SetCircuitBreaker(NewCircuitBreaker(cfg))

	for i := 0; i < 2; i++ {
		if err := pub.PublishBytes(context.Background(), "power-data", []byte(`{}`)); err == nil {
			t.Fatal("expected publish error")
		}
	}

	err := pub.PublishBytes(context.Background(), "power-data", []byte(`{}`))
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
	if fp.calls != 2 {
		t.Errorf("underlying publisher called %d times, want 2", fp.calls)
	}

	h := pub.HealthCheck(context.Background())
	if !h.Healthy || !h.Degraded {
		t.Errorf("health = %+v, want healthy and degraded", h)
	}
}
