// Package tracker is the single entry point for route tracking: it owns the
// keyed route store, gates every mutation through the route lifecycle, and
// derives map-ready aggregates from the accumulated trails.
package tracker

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"schoolbus/internal/domain"
	"schoolbus/internal/geo"
	"schoolbus/internal/lifecycle"
	"schoolbus/internal/metrics"
	"schoolbus/internal/pickup"
	"schoolbus/internal/trail"
)

// Roster looks up students in the external roster collaborator.
type Roster interface {
	Student(ctx context.Context, id string) (domain.Student, bool, error)
	ActiveStudents(ctx context.Context) ([]domain.Student, error)
}

// Persister durably stores route records. Writes happen outside the
// per-route lock and are best effort from the tracker's point of view: the
// in-memory state stays authoritative and persistence failures are logged,
// not surfaced to the device.
type Persister interface {
	SaveRoute(ctx context.Context, r domain.Route) error
	SaveFix(ctx context.Context, routeID string, f domain.Fix) error
	SavePickup(ctx context.Context, p domain.Pickup) error
	MarkRouteEnded(ctx context.Context, r domain.Route) error
}

// Broadcaster fans events out to live watchers.
type Broadcaster interface {
	Broadcast(events []domain.Event)
}

// EventPublisher pushes events to an external broker for downstream
// consumers.
type EventPublisher interface {
	Publish(ev domain.Event) error
}

// Deps wires the tracker's collaborators. Persister, Broadcaster, Publisher
// and Metrics are optional.
type Deps struct {
	Roster        Roster
	Persister     Persister
	Broadcaster   Broadcaster
	Publisher     EventPublisher
	Metrics       *metrics.Collector
	DefaultCenter geo.Point
	Logger        *slog.Logger
}

// routeEntry is the unit of mutual exclusion: sequence assignment, the
// lifecycle check and pickup deduplication are atomic under its mutex.
type routeEntry struct {
	mu     sync.Mutex
	route  domain.Route
	lc     *lifecycle.Lifecycle
	trail  *trail.Trail
	ledger *pickup.Ledger
}

type Tracker struct {
	mu     sync.RWMutex
	routes map[string]*routeEntry

	roster        Roster
	persister     Persister
	broadcaster   Broadcaster
	publisher     EventPublisher
	metrics       *metrics.Collector
	defaultCenter geo.Point
	logger        *slog.Logger
}

func New(deps Deps) *Tracker {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		routes:        make(map[string]*routeEntry),
		roster:        deps.Roster,
		persister:     deps.Persister,
		broadcaster:   deps.Broadcaster,
		publisher:     deps.Publisher,
		metrics:       deps.Metrics,
		defaultCenter: deps.DefaultCenter,
		logger:        logger.With("component", "tracker"),
	}
}

// StartRoute creates a route in the Active state with an empty trail and
// ledger. Nothing prevents the same bus or driver from having several
// active routes at once; that business rule is deliberately not enforced
// here.
func (t *Tracker) StartRoute(ctx context.Context, name, busID, driverID string) (domain.Route, error) {
	route := domain.Route{
		ID:        uuid.New().String(),
		Name:      name,
		BusID:     busID,
		DriverID:  driverID,
		StartedAt: time.Now().UTC(),
	}

	lc := lifecycle.New()
	tr := trail.New()
	entry := &routeEntry{
		route:  route,
		lc:     lc,
		trail:  tr,
		ledger: pickup.NewLedger(lc, tr),
	}

	t.mu.Lock()
	t.routes[route.ID] = entry
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RoutesStarted.Inc()
		t.metrics.ActiveRoutes.Inc()
	}
	t.logger.Info("route started", "route_id", route.ID, "name", name, "bus_id", busID, "driver_id", driverID)

	t.persist(ctx, "route", route.ID, func() error {
		return t.persister.SaveRoute(ctx, route)
	})

	return route, nil
}

// IngestFix validates the coordinate, checks the lifecycle and appends the
// fix to the trail, all under the route's lock.
func (t *Tracker) IngestFix(ctx context.Context, routeID string, lat, lng float64) (domain.Fix, error) {
	start := time.Now()

	if !validCoordinate(lat, lng) {
		t.reject("invalid_coordinate")
		return domain.Fix{}, domain.ErrInvalidCoordinate
	}

	entry, err := t.entry(routeID)
	if err != nil {
		t.reject("not_found")
		return domain.Fix{}, err
	}

	entry.mu.Lock()
	if err := entry.lc.RequireActive(); err != nil {
		entry.mu.Unlock()
		t.reject("not_active")
		return domain.Fix{}, err
	}
	fix := entry.trail.Append(lat, lng, time.Now().UTC())
	entry.mu.Unlock()

	if t.metrics != nil {
		t.metrics.FixesIngested.Inc()
		t.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}

	t.persist(ctx, "fix", routeID, func() error {
		return t.persister.SaveFix(ctx, routeID, fix)
	})
	t.emit(domain.Event{Type: domain.EventFix, RouteID: routeID, Fix: &fix})

	return fix, nil
}

// MarkPickup records a student boarding bound to an existing fix. The
// two-step capture-then-bind protocol is mandatory: the caller ingests the
// device's current position first, then binds the pickup to that fix.
// A duplicate returns the original pickup alongside ErrDuplicatePickup so
// retrying devices can treat it as success.
func (t *Tracker) MarkPickup(ctx context.Context, routeID, studentID string, fixSeq int) (domain.Pickup, error) {
	entry, err := t.entry(routeID)
	if err != nil {
		t.reject("not_found")
		return domain.Pickup{}, err
	}

	entry.mu.Lock()
	p, err := entry.ledger.Record(routeID, studentID, fixSeq, time.Now().UTC())
	entry.mu.Unlock()

	if err != nil {
		switch err {
		case domain.ErrDuplicatePickup:
			if t.metrics != nil {
				t.metrics.DuplicatePickups.Inc()
			}
			t.logger.Debug("duplicate pickup", "route_id", routeID, "student_id", studentID)
			return p, err
		case domain.ErrUnknownFix:
			t.reject("unknown_fix")
		case domain.ErrRouteNotActive:
			t.reject("not_active")
		}
		return domain.Pickup{}, err
	}

	if t.metrics != nil {
		t.metrics.PickupsRecorded.Inc()
	}
	t.logger.Info("pickup recorded", "route_id", routeID, "student_id", studentID, "fix_seq", fixSeq)

	t.persist(ctx, "pickup", routeID, func() error {
		return t.persister.SavePickup(ctx, p)
	})
	t.emit(domain.Event{Type: domain.EventPickup, RouteID: routeID, Pickup: &p})

	return p, nil
}

// EndRoute transitions the route to Ended and freezes the cumulative
// distance into the route record.
func (t *Tracker) EndRoute(ctx context.Context, routeID string) (domain.Route, error) {
	entry, err := t.entry(routeID)
	if err != nil {
		t.reject("not_found")
		return domain.Route{}, err
	}

	entry.mu.Lock()
	if err := entry.lc.End(time.Now().UTC()); err != nil {
		entry.mu.Unlock()
		return domain.Route{}, err
	}
	endedAt, _ := entry.lc.EndedAt()
	entry.route.EndedAt = &endedAt
	entry.route.DistanceMeters = entry.trail.CumulativeDistance()
	route := entry.route
	fixes := entry.trail.Len()
	entry.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RoutesEnded.Inc()
		t.metrics.ActiveRoutes.Dec()
	}
	t.logger.Info("route ended",
		"route_id", routeID,
		"fixes", fixes,
		"distance_meters", route.DistanceMeters,
	)

	t.persist(ctx, "route_end", routeID, func() error {
		return t.persister.MarkRouteEnded(ctx, route)
	})
	t.emit(domain.Event{Type: domain.EventRouteEnded, RouteID: routeID, Route: &route})

	return route, nil
}

// Route returns a copy of the route record.
func (t *Tracker) Route(routeID string) (domain.Route, error) {
	entry, err := t.entry(routeID)
	if err != nil {
		return domain.Route{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	route := entry.route
	route.DistanceMeters = entry.trail.CumulativeDistance()
	return route, nil
}

// ListRoutes returns all routes, most recently started first.
func (t *Tracker) ListRoutes() []domain.Route {
	t.mu.RLock()
	entries := make([]*routeEntry, 0, len(t.routes))
	for _, e := range t.routes {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	routes := make([]domain.Route, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		r := e.route
		r.DistanceMeters = e.trail.CumulativeDistance()
		e.mu.Unlock()
		routes = append(routes, r)
	}

	sort.Slice(routes, func(i, j int) bool {
		return routes[i].StartedAt.After(routes[j].StartedAt)
	})
	return routes
}

// ActiveRouteCount reports how many routes currently accept fixes.
func (t *Tracker) ActiveRouteCount() int {
	t.mu.RLock()
	entries := make([]*routeEntry, 0, len(t.routes))
	for _, e := range t.routes {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	count := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.lc.State() == lifecycle.Active {
			count++
		}
		e.mu.Unlock()
	}
	return count
}

// Snapshot returns consistent copies of the route, its trail and its
// pickups, taken under the route lock. Used by the websocket handler to
// seed new watchers.
func (t *Tracker) Snapshot(routeID string) (domain.Route, []domain.Fix, []domain.Pickup, error) {
	entry, err := t.entry(routeID)
	if err != nil {
		return domain.Route{}, nil, nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	route := entry.route
	route.DistanceMeters = entry.trail.CumulativeDistance()
	return route, entry.trail.Snapshot(), entry.ledger.List(), nil
}

func (t *Tracker) entry(routeID string) (*routeEntry, error) {
	t.mu.RLock()
	entry, ok := t.routes[routeID]
	t.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRouteNotFound
	}
	return entry, nil
}

// persist runs a durable write outside the per-route lock. Failures are
// logged; the in-memory state stays authoritative.
func (t *Tracker) persist(ctx context.Context, kind, routeID string, fn func() error) {
	if t.persister == nil {
		return
	}
	if err := fn(); err != nil {
		t.logger.Error("persist failed", "kind", kind, "route_id", routeID, "error", err)
	}
}

func (t *Tracker) emit(ev domain.Event) {
	if t.broadcaster != nil {
		t.broadcaster.Broadcast([]domain.Event{ev})
	}
	if t.publisher != nil {
		if err := t.publisher.Publish(ev); err != nil {
			t.logger.Error("event publish failed", "type", ev.Type, "route_id", ev.RouteID, "error", err)
		}
	}
}

func (t *Tracker) reject(reason string) {
	if t.metrics != nil {
		t.metrics.RejectedWrites.WithLabelValues(reason).Inc()
	}
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
