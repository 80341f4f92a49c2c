// Package websocket streams event bus traffic to connected browsers.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gorilla/websocket"

	"yello-auth/internal/event"
)

type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	count      chan chan int

	// Closed once Run returns so late clients do not block.
	done chan struct{}

	bus      event.Bus
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub builds a hub whose connections accept the given browser origins.
func NewHub(bus event.Bus, origins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		bus:        bus,
		upgrader:   newUpgrader(origins),
		logger:     logger,
	}
}

// Run fans bus events out to every client until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.logger.Info("Websocket hub: stopped")
			return
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("Websocket hub: client registered", "remote", client.remote, "clients", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("Websocket hub: client left", "remote", client.remote, "clients", len(h.clients))
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		case e, ok := <-events:
			if !ok {
				return
			}
			message, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("Websocket hub: failed to marshal event", "type", e.Type, "error", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("Websocket hub: dropped slow client", "remote", client.remote)
				}
			}
		}
	}
}

// Clients reports the number of connected clients, or zero once the hub stopped.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
