package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"schoolbus/internal/cache"
	"schoolbus/internal/domain"
	"schoolbus/internal/tracker"
)

// RouteHandler exposes the tracker's operations over HTTP. Payloads are
// explicit tagged structs validated before they reach the core.
type RouteHandler struct {
	tracker  *tracker.Tracker
	roster   tracker.Roster
	cache    *cache.RedisCache // optional
	cacheTTL time.Duration
	validate *validator.Validate
	logger   *slog.Logger
}

func NewRouteHandler(tk *tracker.Tracker, roster tracker.Roster, c *cache.RedisCache, cacheTTL time.Duration, logger *slog.Logger) *RouteHandler {
	return &RouteHandler{
		tracker:  tk,
		roster:   roster,
		cache:    c,
		cacheTTL: cacheTTL,
		validate: validator.New(),
		logger:   logger.With("component", "http"),
	}
}

type startRouteRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	BusID    string `json:"busId" validate:"required"`
	DriverID string `json:"driverId" validate:"required"`
}

type startRouteResponse struct {
	RouteID   string    `json:"routeId"`
	StartedAt time.Time `json:"startedAt"`
}

func (h *RouteHandler) StartRoute(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	var req startRouteRequest
	if !h.decode(w, r, &req) {
		return
	}

	route, err := h.tracker.StartRoute(r.Context(), req.Name, req.BusID, req.DriverID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.invalidate(r, cache.KeyRouteList)
	respondJSON(w, http.StatusCreated, startRouteResponse{
		RouteID:   route.ID,
		StartedAt: route.StartedAt,
	})
}

type ingestFixRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

type ingestFixResponse struct {
	FixSequenceNumber int `json:"fixSequenceNumber"`
}

func (h *RouteHandler) IngestFix(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	routeID := r.PathValue("id")
	var req ingestFixRequest
	if !h.decode(w, r, &req) {
		return
	}

	fix, err := h.tracker.IngestFix(r.Context(), routeID, *req.Lat, *req.Lng)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.invalidate(r, cache.KeyMapView(routeID), cache.KeyRouteList)
	respondJSON(w, http.StatusCreated, ingestFixResponse{FixSequenceNumber: fix.Seq})
}

type markPickupRequest struct {
	StudentID         string `json:"studentId" validate:"required"`
	FixSequenceNumber int    `json:"fixSequenceNumber" validate:"required,gte=1"`
}

type markPickupResponse struct {
	PickupID   string    `json:"pickupId"`
	PickedUpAt time.Time `json:"pickedUpAt"`
	Duplicate  bool      `json:"duplicate,omitempty"`
}

func (h *RouteHandler) MarkPickup(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	routeID := r.PathValue("id")
	var req markPickupRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.tracker.MarkPickup(r.Context(), routeID, req.StudentID, req.FixSequenceNumber)
	if err != nil {
		// A duplicate is success for a retrying device: it gets the
		// original pickup's identity back, never a second pickup.
		if errors.Is(err, domain.ErrDuplicatePickup) {
			respondJSON(w, http.StatusOK, markPickupResponse{
				PickupID:   p.ID,
				PickedUpAt: p.PickedUpAt,
				Duplicate:  true,
			})
			return
		}
		h.respondDomainError(w, err)
		return
	}

	h.invalidate(r, cache.KeyMapView(routeID))
	respondJSON(w, http.StatusCreated, markPickupResponse{
		PickupID:   p.ID,
		PickedUpAt: p.PickedUpAt,
	})
}

type endRouteResponse struct {
	EndedAt             time.Time `json:"endedAt"`
	TotalDistanceMeters float64   `json:"totalDistanceMeters"`
}

func (h *RouteHandler) EndRoute(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	routeID := r.PathValue("id")
	route, err := h.tracker.EndRoute(r.Context(), routeID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.invalidate(r, cache.KeyMapView(routeID), cache.KeyRouteList)
	respondJSON(w, http.StatusOK, endRouteResponse{
		EndedAt:             *route.EndedAt,
		TotalDistanceMeters: route.DistanceMeters,
	})
}

func (h *RouteHandler) MapView(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	routeID := r.PathValue("id")

	if h.cache != nil {
		var cached tracker.MapView
		found, err := h.cache.GetJSONCompressed(r.Context(), cache.KeyMapView(routeID), &cached)
		if err == nil && found {
			ServerStats.IncCacheHits()
			respondJSON(w, http.StatusOK, cached)
			return
		}
		ServerStats.IncCacheMisses()
	}

	view, err := h.tracker.MapView(r.Context(), routeID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetJSONCompressed(r.Context(), cache.KeyMapView(routeID), view, h.cacheTTL); err != nil {
			h.logger.Debug("failed to cache map view", "route_id", routeID, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, view)
}

type routesResponse struct {
	Routes     []domain.Route `json:"routes"`
	Count      int            `json:"count"`
	ServerTime time.Time      `json:"serverTime"`
}

func (h *RouteHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	routes := h.tracker.ListRoutes()
	respondJSON(w, http.StatusOK, routesResponse{
		Routes:     routes,
		Count:      len(routes),
		ServerTime: time.Now(),
	})
}

func (h *RouteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	detail, err := h.tracker.RouteDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

type studentsResponse struct {
	Students []domain.Student `json:"students"`
	Count    int              `json:"count"`
}

func (h *RouteHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	if h.cache != nil {
		var cached studentsResponse
		found, err := h.cache.GetJSON(r.Context(), cache.KeyStudents, &cached)
		if err == nil && found {
			ServerStats.IncCacheHits()
			respondJSON(w, http.StatusOK, cached)
			return
		}
		ServerStats.IncCacheMisses()
	}

	students, err := h.roster.ActiveStudents(r.Context())
	if err != nil {
		h.logger.Error("roster query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "roster unavailable")
		return
	}

	resp := studentsResponse{Students: students, Count: len(students)}
	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), cache.KeyStudents, resp, h.cacheTTL); err != nil {
			h.logger.Debug("failed to cache students", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// decode parses and validates a JSON request body. Returns false after
// writing the error response when the payload is rejected.
func (h *RouteHandler) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dest); err != nil {
		respondError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}

func (h *RouteHandler) invalidate(r *http.Request, keys ...string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(r.Context(), keys...); err != nil {
		h.logger.Debug("cache invalidation failed", "keys", keys, "error", err)
	}
}

func (h *RouteHandler) respondDomainError(w http.ResponseWriter, err error) {
	respondError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRouteNotActive), errors.Is(err, domain.ErrAlreadyEnded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownFix):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
