// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

/*
Package websocket is the live fanout gateway for dashboard clients.

A Hub owns the connected clients and serializes every change to that set
through its run loop. Each Client runs a read pump and a write pump over a
gorilla/websocket connection.

Events are JSON envelopes {"type": ..., "data": ...}:

  - initial: sent once per client on registration, data is the latest
    accepted weather record per station
  - weather_update: one persisted weather record
  - weather: flat legacy form of the same record, only with LegacyEvents
  - power_update: one windowed power average per source
  - heartbeat: {"timestamp", "clients"} on a fixed interval
  - pong: reply to a client "ping"

A client whose send buffer is full when a broadcast arrives is dropped and
its connection closed.

Usage:

	hub := websocket.NewHub(websocket.HubConfig{
	    HeartbeatInterval: cfg.WebSocket.HeartbeatInterval,
	    LegacyEvents:      cfg.WebSocket.LegacyEvents,
	    Snapshot:          prod.Snapshot,
	})
	tree.AddMessagingService(services.NewWebSocketHubService(hub))

	upgrader := websocket.NewUpgrader(cfg.Server.CORSOrigins)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
	    websocket.ServeWS(hub, upgrader, w, r)
	})
*/
package websocket
