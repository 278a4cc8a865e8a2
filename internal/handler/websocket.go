package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"schoolbus/internal/domain"
	"schoolbus/internal/hub"
	"schoolbus/internal/metrics"
	"schoolbus/internal/tracker"
)

// WSHandler lets dashboards watch routes live: subscribe to route ids,
// receive a snapshot per route, then fix/pickup/ended deltas from the hub.
type WSHandler struct {
	hub        *hub.Hub
	tracker    *tracker.Tracker
	metrics    *metrics.Collector
	sendBuffer int
	logger     *slog.Logger
}

func NewWSHandler(h *hub.Hub, tk *tracker.Tracker, m *metrics.Collector, sendBuffer int, logger *slog.Logger) *WSHandler {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &WSHandler{hub: h, tracker: tk, metrics: m, sendBuffer: sendBuffer, logger: logger}
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubscribePayload struct {
	RouteIDs []string `json:"routeIds"`
}

type SnapshotMessage struct {
	Type    string          `json:"type"`
	Payload SnapshotPayload `json:"payload"`
}

type SnapshotPayload struct {
	Route   domain.Route    `json:"route"`
	Fixes   []domain.Fix    `json:"fixes"`
	Pickups []domain.Pickup `json:"pickups"`
}

type PongMessage struct {
	Type string `json:"type"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, h.sendBuffer)

	h.hub.Register(client)
	ServerStats.IncWSConnections()
	if h.metrics != nil {
		h.metrics.WSClients.Inc()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		ServerStats.DecWSConnections()
		if h.metrics != nil {
			h.metrics.WSClients.Dec()
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}
		ServerStats.IncWSMessagesIn()

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "subscribe":
			var payload SubscribePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			if len(payload.RouteIDs) > 0 {
				h.hub.Subscribe(client, payload.RouteIDs)
				h.sendSnapshots(client, payload.RouteIDs)
			}

		case "unsubscribe":
			var payload SubscribePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			if len(payload.RouteIDs) > 0 {
				h.hub.Unsubscribe(client, payload.RouteIDs)
			}

		case "ping":
			h.sendPong(client)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// sendSnapshots seeds a new subscriber with the current state of each
// route; unknown route ids are silently skipped.
func (h *WSHandler) sendSnapshots(client *hub.Client, routeIDs []string) {
	for _, routeID := range routeIDs {
		route, fixes, pickups, err := h.tracker.Snapshot(routeID)
		if err != nil {
			continue
		}

		msg := SnapshotMessage{
			Type: "snapshot",
			Payload: SnapshotPayload{
				Route:   route,
				Fixes:   fixes,
				Pickups: pickups,
			},
		}

		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}

		select {
		case client.Send <- data:
			ServerStats.IncWSMessagesOut()
		default:
			h.logger.Debug("failed to send snapshot, buffer full", "client_id", client.ID)
		}
	}
}

func (h *WSHandler) sendPong(client *hub.Client) {
	data, err := json.Marshal(PongMessage{Type: "pong"})
	if err != nil {
		return
	}

	select {
	case client.Send <- data:
	default:
	}
}
