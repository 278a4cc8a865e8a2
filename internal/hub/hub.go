// Package hub fans route events out to websocket watchers. Clients
// subscribe to route ids and receive fix, pickup and route-ended deltas
// for those routes.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"schoolbus/internal/domain"
)

type Client struct {
	ID     string
	Send   chan []byte
	routes map[string]struct{}
	mu     sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:     id,
		Send:   make(chan []byte, bufferSize),
		routes: make(map[string]struct{}),
	}
}

func (c *Client) AddRoutes(routeIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range routeIDs {
		c.routes[id] = struct{}{}
	}
}

func (c *Client) RemoveRoutes(routeIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range routeIDs {
		delete(c.routes, id)
	}
}

func (c *Client) Routes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	routes := make([]string, 0, len(c.routes))
	for id := range c.routes {
		routes = append(routes, id)
	}
	return routes
}

type Hub struct {
	mu           sync.RWMutex
	clients      map[*Client]struct{}
	routeClients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan []domain.Event

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:      make(map[*Client]struct{}),
		routeClients: make(map[string]map[*Client]struct{}),
		register:     make(chan *Client, 16),
		unregister:   make(chan *Client, 16),
		broadcast:    make(chan []domain.Event, 256),
		logger:       logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", len(h.clients))

		case client := <-h.unregister:
			h.removeClient(client)

		case events := <-h.broadcast:
			h.fanout(events)
		}
	}
}

func (h *Hub) Subscribe(client *Client, routeIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.AddRoutes(routeIDs)

	for _, id := range routeIDs {
		if h.routeClients[id] == nil {
			h.routeClients[id] = make(map[*Client]struct{})
		}
		h.routeClients[id][client] = struct{}{}
	}
}

func (h *Hub) Unsubscribe(client *Client, routeIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.RemoveRoutes(routeIDs)

	for _, id := range routeIDs {
		if h.routeClients[id] != nil {
			delete(h.routeClients[id], client)
			if len(h.routeClients[id]) == 0 {
				delete(h.routeClients, id)
			}
		}
	}
}

func (h *Hub) Broadcast(events []domain.Event) {
	if len(events) == 0 {
		return
	}
	select {
	case h.broadcast <- events:
	default:
		h.logger.Warn("broadcast channel full, dropping events", "count", len(events))
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type DeltaMessage struct {
	Type    string         `json:"type"`
	Payload []domain.Event `json:"payload"`
}

func (h *Hub) fanout(events []domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clientEvents := make(map[*Client][]domain.Event)

	for _, ev := range events {
		if clients, ok := h.routeClients[ev.RouteID]; ok {
			for client := range clients {
				clientEvents[client] = append(clientEvents[client], ev)
			}
		}
	}

	for client, evs := range clientEvents {
		data, err := json.Marshal(DeltaMessage{Type: "delta", Payload: evs})
		if err != nil {
			continue
		}

		select {
		case client.Send <- data:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	for _, id := range client.Routes() {
		if h.routeClients[id] != nil {
			delete(h.routeClients[id], client)
			if len(h.routeClients[id]) == 0 {
				delete(h.routeClients, id)
			}
		}
	}

	delete(h.clients, client)
	close(client.Send)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.routeClients = make(map[string]map[*Client]struct{})
}
