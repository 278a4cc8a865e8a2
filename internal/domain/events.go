package domain

// EventType indicates what changed on a route.
type EventType string

const (
	EventFix        EventType = "fix"
	EventPickup     EventType = "pickup"
	EventRouteEnded EventType = "routeEnded"
)

// Event is a change notification fanned out to websocket watchers and,
// when configured, published to NATS for downstream consumers.
type Event struct {
	Type    EventType `json:"type"`
	RouteID string    `json:"routeId"`
	Fix     *Fix      `json:"fix,omitempty"`
	Pickup  *Pickup   `json:"pickup,omitempty"`
	Route   *Route    `json:"route,omitempty"`
}
