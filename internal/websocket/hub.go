// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/metrics"
	"github.com/tomtom215/gridwatch/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types sent to and received from dashboard clients.
const (
	MessageTypeInitial       = "initial"
	MessageTypeHeartbeat     = "heartbeat"
	MessageTypeWeatherUpdate = "weather_update"
	MessageTypeWeather       = "weather"
	MessageTypePowerUpdate   = "power_update"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
)

// DefaultHeartbeatInterval is used when HubConfig leaves the interval unset.
const DefaultHeartbeatInterval = 15 * time.Second

// broadcastBuffer bounds the hub's inbound queue.
const broadcastBuffer = 256

// Message is the {type, data} envelope every event uses.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// HeartbeatData is the payload of a heartbeat event.
type HeartbeatData struct {
	Timestamp string `json:"timestamp"`
	Clients   int    `json:"clients"`
}

// SnapshotFunc returns the latest accepted record per station. It is called
// once for every client that registers.
type SnapshotFunc func() map[string]models.WeatherRecord

// HubConfig configures a Hub.
type HubConfig struct {
	HeartbeatInterval time.Duration

	// LegacyEvents also emits the flat "weather" event next to weather_update.
	LegacyEvents bool

	// Snapshot feeds the initial event. Nil sends an empty map.
	Snapshot SnapshotFunc
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	cfg HubConfig
	now func() time.Time
}

// NewHub creates a Hub. Call RunWithContext to start it.
func NewHub(cfg HubConfig) *Hub {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Hub{
		broadcast:  make(chan Message, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		cfg:        cfg,
		now:        time.Now,
	}
}

// RunWithContext runs the hub until ctx is cancelled and then closes every
// client. It returns ctx.Err() so it can run as a supervised service.
//
// Shutdown is checked first, then client lifecycle events, so client state is
// settled before any broadcast or heartbeat is delivered.
func (h *Hub) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		case <-ticker.C:
			h.broadcastToClients(h.heartbeat())
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client connected")

	initial := Message{Type: MessageTypeInitial, Data: h.snapshot()}
	if !client.trySend(initial) {
		logging.Warn().Uint64("client_id", client.id).Msg("client send buffer full, initial snapshot skipped")
		return
	}
	metrics.WSMessagesSent.WithLabelValues(MessageTypeInitial).Inc()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closeSend()
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client disconnected")
}

func (h *Hub) snapshot() map[string]models.WeatherRecord {
	if h.cfg.Snapshot == nil {
		return map[string]models.WeatherRecord{}
	}
	snap := h.cfg.Snapshot()
	if snap == nil {
		return map[string]models.WeatherRecord{}
	}
	return snap
}

func (h *Hub) heartbeat() Message {
	return Message{
		Type: MessageTypeHeartbeat,
		Data: HeartbeatData{
			Timestamp: h.now().UTC().Format(time.RFC3339),
			Clients:   h.GetClientCount(),
		},
	}
}

// logGracefulShutdown closes all clients and logs the shutdown. ctx.Err() is
// not logged as an error since cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns the clients ordered by ID. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients delivers message to every client in ID order. A client
// whose send buffer is full is dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dropped []*Client
	delivered := 0
	for _, client := range h.sortedClients() {
		if client.trySend(message) {
			delivered++
		} else {
			dropped = append(dropped, client)
		}
	}

	for _, client := range dropped {
		client.closeSend()
		delete(h.clients, client)
		metrics.WSClientsDropped.Inc()
		logging.Warn().Uint64("client_id", client.id).Str("message_type", message.Type).Msg("dropping slow websocket client")
	}

	if delivered > 0 {
		metrics.WSMessagesSent.WithLabelValues(message.Type).Add(float64(delivered))
	}
	if len(dropped) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		client.closeSend()
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastWeather sends weather_update with the record, and the flat legacy
// weather event when LegacyEvents is set.
func (h *Hub) BroadcastWeather(rec *models.WeatherRecord) {
	if rec == nil {
		return
	}
	h.enqueue(Message{Type: MessageTypeWeatherUpdate, Data: rec.Clone()})
	if h.cfg.LegacyEvents {
		h.enqueue(Message{Type: MessageTypeWeather, Data: rec.Flat()})
	}
}

// BroadcastPower sends one power_update per average, in the given order.
func (h *Hub) BroadcastPower(averages []models.PowerAverage) {
	for i := range averages {
		h.enqueue(Message{Type: MessageTypePowerUpdate, Data: averages[i]})
	}
}

// BroadcastJSON sends an arbitrary typed message.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	h.enqueue(Message{Type: messageType, Data: data})
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
