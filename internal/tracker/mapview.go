package tracker

import (
	"context"
	"time"

	"schoolbus/internal/domain"
	"schoolbus/internal/geo"
)

// MapView is the map-ready aggregate for one route: fitted viewport, the
// trail as a polyline and pickup markers joined with student names.
type MapView struct {
	Center   geo.Point      `json:"center"`
	Bounds   geo.Bounds     `json:"bounds"`
	Zoom     int            `json:"zoom"`
	Polyline [][2]float64   `json:"polyline"`
	Pickups  []PickupMarker `json:"pickups"`
}

// PickupMarker places a pickup on the map at the coordinates of its bound
// fix. The student name comes from the roster lookup, not from storage.
type PickupMarker struct {
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	StudentName string    `json:"studentName"`
	PickedUpAt  time.Time `json:"pickedUpAt"`
}

// RouteDetail is the dashboard view of a route: the record plus its full
// trail and pickups with resolved student names.
type RouteDetail struct {
	Route   domain.Route   `json:"route"`
	Fixes   []domain.Fix   `json:"fixes"`
	Pickups []PickupRecord `json:"pickups"`
}

type PickupRecord struct {
	domain.Pickup
	StudentName string `json:"studentName"`
}

// MapView computes the viewport and marker aggregate. It is a pure read:
// the per-route lock is held only long enough to copy the snapshot, then
// released before any geometry work. A route with no fixes yields the
// configured default center and a zero-span bound.
func (t *Tracker) MapView(ctx context.Context, routeID string) (MapView, error) {
	start := time.Now()

	_, fixes, pickups, err := t.Snapshot(routeID)
	if err != nil {
		return MapView{}, err
	}

	points := make([]geo.Point, len(fixes))
	polyline := make([][2]float64, len(fixes))
	for i, f := range fixes {
		points[i] = geo.Point{Lat: f.Lat, Lng: f.Lng}
		polyline[i] = [2]float64{f.Lat, f.Lng}
	}

	center, bounds := geo.CenterAndBounds(points, t.defaultCenter)

	markers := make([]PickupMarker, 0, len(pickups))
	for _, p := range pickups {
		fix := fixes[p.FixSeq-1]
		markers = append(markers, PickupMarker{
			Lat:         fix.Lat,
			Lng:         fix.Lng,
			StudentName: t.studentName(ctx, p.StudentID),
			PickedUpAt:  p.PickedUpAt,
		})
	}

	if t.metrics != nil {
		t.metrics.MapViewDuration.Observe(time.Since(start).Seconds())
	}

	return MapView{
		Center:   center,
		Bounds:   bounds,
		Zoom:     geo.ZoomFor(bounds),
		Polyline: polyline,
		Pickups:  markers,
	}, nil
}

// RouteDetail assembles the dashboard review payload for one route.
func (t *Tracker) RouteDetail(ctx context.Context, routeID string) (RouteDetail, error) {
	route, fixes, pickups, err := t.Snapshot(routeID)
	if err != nil {
		return RouteDetail{}, err
	}

	records := make([]PickupRecord, 0, len(pickups))
	for _, p := range pickups {
		records = append(records, PickupRecord{
			Pickup:      p,
			StudentName: t.studentName(ctx, p.StudentID),
		})
	}

	return RouteDetail{Route: route, Fixes: fixes, Pickups: records}, nil
}

func (t *Tracker) studentName(ctx context.Context, studentID string) string {
	if t.roster == nil {
		return "Unknown"
	}
	student, ok, err := t.roster.Student(ctx, studentID)
	if err != nil {
		t.logger.Warn("roster lookup failed", "student_id", studentID, "error", err)
		return "Unknown"
	}
	if !ok {
		return "Unknown"
	}
	return student.DisplayName()
}
