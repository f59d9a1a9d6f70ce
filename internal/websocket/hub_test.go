// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func fp(v float64) *float64 { return &v }

// startHub runs hub until the test ends.
func startHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func newTestClient(hub *Hub, buffer int) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, buffer)}
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func waitClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.GetClientCount(), want)
}

func TestNewHub_Defaults(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{})
	if hub.cfg.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("HeartbeatInterval = %v, want %v", hub.cfg.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("GetClientCount() = %d, want 0", hub.GetClientCount())
	}
	if cap(hub.broadcast) != broadcastBuffer {
		t.Errorf("broadcast capacity = %d, want %d", cap(hub.broadcast), broadcastBuffer)
	}
}

func TestHub_InitialSnapshotOnRegister(t *testing.T) {
	t.Parallel()

	snap := map[string]models.WeatherRecord{
		"station1": {
			Station:   "station1",
			Timestamp: "2026-01-01T00:00:00Z",
			Metrics:   map[string]*float64{models.MetricTemperature: fp(21.5)},
		},
	}
	hub := NewHub(HubConfig{HeartbeatInterval: time.Hour, Snapshot: func() map[string]models.WeatherRecord { return snap }})
	startHub(t, hub)

	client := newTestClient(hub, 8)
	hub.Register <- client

	msg := recv(t, client)
	if msg.Type != MessageTypeInitial {
		t.Fatalf("Type = %q, want %q", msg.Type, MessageTypeInitial)
	}
	got, ok := msg.Data.(map[string]models.WeatherRecord)
	if !ok {
		t.Fatalf("Data type = %T", msg.Data)
	}
	rec := got["station1"]
	if v, ok := rec.Value(models.MetricTemperature); !ok || v != 21.5 {
		t.Errorf("temperature = %v (ok=%v), want 21.5", v, ok)
	}
}

func TestHub_InitialSnapshotNilProvider(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{HeartbeatInterval: time.Hour})
	startHub(t, hub)

	client := newTestClient(hub, 8)
	hub.Register <- client

	msg := recv(t, client)
	got, ok := msg.Data.(map[string]models.WeatherRecord)
	if !ok || got == nil || len(got) != 0 {
		t.Errorf("Data = %#v, want empty map", msg.Data)
	}
}

func TestHub_BroadcastWeather(t *testing.T) {
	t.Parallel()

	rec := &models.WeatherRecord{
		Station:   "station2",
		Timestamp: "2026-01-01T00:00:00Z",
		Metrics: map[string]*float64{
			models.MetricTemperature: fp(18),
			models.MetricHumidity:    nil,
		},
	}

	tests := []struct {
		name      string
		legacy    bool
		wantTypes []string
	}{
		{"update only", false, []string{MessageTypeWeatherUpdate}},
		{"with legacy alias", true, []string{MessageTypeWeatherUpdate, MessageTypeWeather}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hub := NewHub(HubConfig{HeartbeatInterval: time.Hour, LegacyEvents: tt.legacy})
			startHub(t, hub)
			client := newTestClient(hub, 8)
			hub.Register <- client
			_ = recv(t, client) // initial

			hub.BroadcastWeather(rec)
			for _, want := range tt.wantTypes {
				msg := recv(t, client)
				if msg.Type != want {
					t.Fatalf("Type = %q, want %q", msg.Type, want)
				}
				if want == MessageTypeWeather {
					flat, ok := msg.Data.(map[string]interface{})
					if !ok {
						t.Fatalf("legacy Data type = %T", msg.Data)
					}
					if flat["station"] != "station2" {
						t.Errorf("legacy station = %v", flat["station"])
					}
				}
			}
			select {
			case extra := <-client.send:
				t.Errorf("unexpected extra message %q", extra.Type)
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestHub_BroadcastWeatherNil(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{})
	hub.BroadcastWeather(nil)
	if len(hub.broadcast) != 0 {
		t.Errorf("queued %d messages for nil record", len(hub.broadcast))
	}
}

func TestHub_BroadcastPowerOnePerSource(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{HeartbeatInterval: time.Hour})
	startHub(t, hub)
	client := newTestClient(hub, 8)
	hub.Register <- client
	_ = recv(t, client)

	hub.BroadcastPower([]models.PowerAverage{
		{SourceID: "a", TimestampMs: 1000, Power: fp(10), Samples: 2},
		{SourceID: "b", TimestampMs: 1000, Power: fp(20), Samples: 1},
	})

	for _, want := range []string{"a", "b"} {
		msg := recv(t, client)
		if msg.Type != MessageTypePowerUpdate {
			t.Fatalf("Type = %q, want %q", msg.Type, MessageTypePowerUpdate)
		}
		avg, ok := msg.Data.(models.PowerAverage)
		if !ok {
			t.Fatalf("Data type = %T", msg.Data)
		}
		if avg.SourceID != want {
			t.Errorf("SourceID = %q, want %q", avg.SourceID, want)
		}
	}
}

func TestHub_Heartbeat(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{HeartbeatInterval: 20 * time.Millisecond})
	hub.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600)) }
	startHub(t, hub)
	client := newTestClient(hub, 8)
	hub.Register <- client
	_ = recv(t, client)

	msg := recv(t, client)
	if msg.Type != MessageTypeHeartbeat {
		t.Fatalf("Type = %q, want %q", msg.Type, MessageTypeHeartbeat)
	}
	hb, ok := msg.Data.(HeartbeatData)
	if !ok {
		t.Fatalf("Data type = %T", msg.Data)
	}
	if hb.Timestamp != "2026-03-01T11:00:00Z" {
		t.Errorf("Timestamp = %q, want UTC RFC3339", hb.Timestamp)
	}
	if hb.Clients != 1 {
		t.Errorf("Clients = %d, want 1", hb.Clients)
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{HeartbeatInterval: time.Hour})
	startHub(t, hub)

	fast := newTestClient(hub, 16)
	slow := newTestClient(hub, 1)
	hub.Register <- fast
	hub.Register <- slow
	waitClients(t, hub, 2)

	// slow's single slot holds the initial snapshot, so the next event overflows it.
	hub.BroadcastJSON("test", 1)
	waitClients(t, hub, 1)

	if msg := recv(t, slow); msg.Type != MessageTypeInitial {
		t.Errorf("slow first message = %q, want initial", msg.Type)
	}
	select {
	case _, ok := <-slow.send:
		if ok {
			t.Error("slow client channel should be closed")
		}
	case <-time.After(time.Second):
		t.Error("slow client channel not closed")
	}

	_ = recv(t, fast) // initial
	if msg := recv(t, fast); msg.Type != "test" {
		t.Errorf("fast message = %q, want test", msg.Type)
	}
}

func TestHub_Unregister(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{HeartbeatInterval: time.Hour})
	startHub(t, hub)

	client := newTestClient(hub, 8)
	hub.Register <- client
	waitClients(t, hub, 1)

	hub.Unregister <- client
	waitClients(t, hub, 0)

	// A second unregister for a client that is gone is a no-op.
	hub.Unregister <- client
	waitClients(t, hub, 0)
}

func TestHub_RunWithContextClosesClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{HeartbeatInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.RunWithContext(ctx) }()

	client := newTestClient(hub, 8)
	hub.Register <- client
	waitClients(t, hub, 1)

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	if hub.GetClientCount() != 0 {
		t.Errorf("GetClientCount() = %d after shutdown", hub.GetClientCount())
	}
	for range client.send {
	}
}

func TestGetShutdownReason(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		want ShutdownReason
	}{
		{"canceled", canceled, ShutdownReasonContextCanceled},
		{"deadline", expired, ShutdownReasonContextDeadline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := getShutdownReason(tt.ctx); got != tt.want {
				t.Errorf("getShutdownReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarshalMessage(t *testing.T) {
	t.Parallel()

	data, err := MarshalMessage(Message{Type: MessageTypePong, Data: nil})
	if err != nil {
		t.Fatalf("MarshalMessage() error = %v", err)
	}
	if string(data) != `{"type":"pong","data":null}` {
		t.Errorf("MarshalMessage() = %s", data)
	}
}
