package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"schoolbus/internal/tracker"
)

type HealthHandler struct {
	tracker *tracker.Tracker
}

func NewHealthHandler(tk *tracker.Tracker) *HealthHandler {
	return &HealthHandler{tracker: tk}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready        bool      `json:"ready"`
	ActiveRoutes int       `json:"activeRoutes"`
	ServerTime   time.Time `json:"serverTime"`
}

// Readyz reports ready as soon as the server is up; the tracker has no
// upstream dependency to wait for.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ReadyResponse{
		Ready:        true,
		ActiveRoutes: h.tracker.ActiveRouteCount(),
		ServerTime:   time.Now(),
	})
}
