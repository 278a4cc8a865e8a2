package tracker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolbus/internal/domain"
	"schoolbus/internal/geo"
)

type fakeRoster struct {
	students map[string]domain.Student
}

func (r *fakeRoster) Student(_ context.Context, id string) (domain.Student, bool, error) {
	s, ok := r.students[id]
	return s, ok, nil
}

func (r *fakeRoster) ActiveStudents(_ context.Context) ([]domain.Student, error) {
	out := make([]domain.Student, 0, len(r.students))
	for _, s := range r.students {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func newTracker() *Tracker {
	return New(Deps{
		Roster: &fakeRoster{students: map[string]domain.Student{
			"5": {ID: "5", FirstName: "Maya", LastName: "Reyes", Grade: "3", Active: true},
		}},
		DefaultCenter: geo.Point{Lat: 37.78825, Lng: -122.4324},
	})
}

func TestMorningRunScenario(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	route, err := tk.StartRoute(ctx, "Morning Run", "7", "driver-1")
	require.NoError(t, err)
	require.NotEmpty(t, route.ID)
	assert.Nil(t, route.EndedAt)

	fix1, err := tk.IngestFix(ctx, route.ID, 37.0, -122.0)
	require.NoError(t, err)
	fix2, err := tk.IngestFix(ctx, route.ID, 37.01, -122.0)
	require.NoError(t, err)
	assert.Equal(t, 1, fix1.Seq)
	assert.Equal(t, 2, fix2.Seq)

	p, err := tk.MarkPickup(ctx, route.ID, "5", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.FixSeq)

	ended, err := tk.EndRoute(ctx, route.ID)
	require.NoError(t, err)
	require.NotNil(t, ended.EndedAt)
	assert.InDelta(t, 1113, ended.DistanceMeters, 5)

	_, err = tk.IngestFix(ctx, route.ID, 37.02, -122.0)
	assert.ErrorIs(t, err, domain.ErrRouteNotActive)

	_, err = tk.EndRoute(ctx, route.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyEnded)
}

func TestIngestFixValidation(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	route, err := tk.StartRoute(ctx, "Validation", "1", "driver-1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		lat, lng float64
	}{
		{"latitude too high", 90.5, 0},
		{"latitude too low", -91, 0},
		{"longitude too high", 0, 180.5},
		{"longitude too low", 0, -181},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tk.IngestFix(ctx, route.ID, tt.lat, tt.lng)
			assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
		})
	}

	// Boundary values are valid.
	_, err = tk.IngestFix(ctx, route.ID, 90, -180)
	assert.NoError(t, err)
}

func TestUnknownRoute(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	_, err := tk.IngestFix(ctx, "nope", 0, 0)
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)

	_, err = tk.MarkPickup(ctx, "nope", "5", 1)
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)

	_, err = tk.EndRoute(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)

	_, err = tk.MapView(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)
}

func TestDuplicatePickupReturnsOriginal(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	route, err := tk.StartRoute(ctx, "Dup", "2", "driver-1")
	require.NoError(t, err)
	_, err = tk.IngestFix(ctx, route.ID, 37.0, -122.0)
	require.NoError(t, err)

	first, err := tk.MarkPickup(ctx, route.ID, "5", 1)
	require.NoError(t, err)

	second, err := tk.MarkPickup(ctx, route.ID, "5", 1)
	assert.ErrorIs(t, err, domain.ErrDuplicatePickup)
	assert.Equal(t, first.ID, second.ID)
}

func TestMarkPickupUnknownFix(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	route, err := tk.StartRoute(ctx, "NoFix", "3", "driver-1")
	require.NoError(t, err)

	_, err = tk.MarkPickup(ctx, route.ID, "5", 1)
	assert.ErrorIs(t, err, domain.ErrUnknownFix)
}

func TestMapView(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	route, err := tk.StartRoute(ctx, "Map", "4", "driver-1")
	require.NoError(t, err)

	for _, p := range [][2]float64{{0, 0}, {0, 1}, {1, 1}} {
		_, err := tk.IngestFix(ctx, route.ID, p[0], p[1])
		require.NoError(t, err)
	}
	_, err = tk.MarkPickup(ctx, route.ID, "5", 2)
	require.NoError(t, err)

	view, err := tk.MapView(ctx, route.ID)
	require.NoError(t, err)

	assert.InDelta(t, 0.333, view.Center.Lat, 0.001)
	assert.InDelta(t, 0.667, view.Center.Lng, 0.001)
	assert.Equal(t, geo.Bounds{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 1}, view.Bounds)
	assert.Equal(t, 10, view.Zoom)

	require.Len(t, view.Polyline, 3)
	assert.Equal(t, [2]float64{0, 1}, view.Polyline[1])

	require.Len(t, view.Pickups, 1)
	assert.Equal(t, "Maya Reyes", view.Pickups[0].StudentName)
	assert.Equal(t, 0.0, view.Pickups[0].Lat)
	assert.Equal(t, 1.0, view.Pickups[0].Lng)
}

func TestMapViewEmptyRoute(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	route, err := tk.StartRoute(ctx, "Empty", "5", "driver-1")
	require.NoError(t, err)

	view, err := tk.MapView(ctx, route.ID)
	require.NoError(t, err)

	assert.Equal(t, geo.Point{Lat: 37.78825, Lng: -122.4324}, view.Center)
	assert.Equal(t, 0.0, view.Bounds.LatSpan())
	assert.Empty(t, view.Polyline)
	assert.Empty(t, view.Pickups)
}

func TestRouteDetailResolvesNames(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	route, err := tk.StartRoute(ctx, "Detail", "6", "driver-1")
	require.NoError(t, err)
	_, err = tk.IngestFix(ctx, route.ID, 37.0, -122.0)
	require.NoError(t, err)
	_, err = tk.MarkPickup(ctx, route.ID, "5", 1)
	require.NoError(t, err)

	detail, err := tk.RouteDetail(ctx, route.ID)
	require.NoError(t, err)

	assert.Len(t, detail.Fixes, 1)
	require.Len(t, detail.Pickups, 1)
	assert.Equal(t, "Maya Reyes", detail.Pickups[0].StudentName)
}

func TestRouteDetailUnknownStudentName(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	route, err := tk.StartRoute(ctx, "Ghost", "6", "driver-1")
	require.NoError(t, err)
	_, err = tk.IngestFix(ctx, route.ID, 37.0, -122.0)
	require.NoError(t, err)
	_, err = tk.MarkPickup(ctx, route.ID, "not-in-roster", 1)
	require.NoError(t, err)

	detail, err := tk.RouteDetail(ctx, route.ID)
	require.NoError(t, err)
	require.Len(t, detail.Pickups, 1)
	assert.Equal(t, "Unknown", detail.Pickups[0].StudentName)
}

func TestListRoutesNewestFirst(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	for _, name := range []string{"first", "second", "third"} {
		_, err := tk.StartRoute(ctx, name, "1", "driver-1")
		require.NoError(t, err)
	}

	routes := tk.ListRoutes()
	require.Len(t, routes, 3)
	for i := 1; i < len(routes); i++ {
		assert.False(t, routes[i].StartedAt.After(routes[i-1].StartedAt))
	}
}

func TestActiveRouteCount(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	a, _ := tk.StartRoute(ctx, "a", "1", "d")
	_, _ = tk.StartRoute(ctx, "b", "2", "d")
	assert.Equal(t, 2, tk.ActiveRouteCount())

	_, err := tk.EndRoute(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tk.ActiveRouteCount())
}

func TestConcurrentIngest(t *testing.T) {
	ctx := context.Background()
	tk := newTracker()

	route, err := tk.StartRoute(ctx, "Concurrent", "9", "driver-1")
	require.NoError(t, err)

	const n = 64
	var wg sync.WaitGroup
	seqs := make(chan int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fix, err := tk.IngestFix(ctx, route.ID, 37.0+float64(i)*0.0001, -122.0)
			if err == nil {
				seqs <- fix.Seq
			}
		}(i)
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int]bool)
	for s := range seqs {
		assert.False(t, seen[s], "sequence number %d assigned twice", s)
		seen[s] = true
	}
	assert.Len(t, seen, n)

	_, fixes, _, err := tk.Snapshot(route.ID)
	require.NoError(t, err)
	require.Len(t, fixes, n)
	for i, f := range fixes {
		assert.Equal(t, i+1, f.Seq)
	}
}
