package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceIdenticalPoints(t *testing.T) {
	p := Point{Lat: 52.2297, Lng: 21.0122}
	assert.Equal(t, 0.0, Distance(p, p))
}

func TestDistanceKnownValues(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Point
		expected float64 // meters
		delta    float64
	}{
		{
			name:     "one hundredth degree of latitude",
			a:        Point{Lat: 37.0, Lng: -122.0},
			b:        Point{Lat: 37.01, Lng: -122.0},
			expected: 1113,
			delta:    5,
		},
		{
			name:     "one degree of latitude at the equator",
			a:        Point{Lat: 0, Lng: 0},
			b:        Point{Lat: 1, Lng: 0},
			expected: 111_195,
			delta:    200,
		},
		{
			name:     "antipodal points",
			a:        Point{Lat: 0, Lng: 0},
			b:        Point{Lat: 0, Lng: 180},
			expected: 20_015_086,
			delta:    1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.a, tt.b), tt.delta)
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := Point{Lat: 40.7128, Lng: -74.0060}
	b := Point{Lat: 51.5074, Lng: -0.1278}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestCenterAndBounds(t *testing.T) {
	points := []Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 1},
	}

	center, bounds := CenterAndBounds(points, Point{})

	assert.InDelta(t, 0.333, center.Lat, 0.001)
	assert.InDelta(t, 0.667, center.Lng, 0.001)
	assert.Equal(t, Bounds{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 1}, bounds)
}

func TestCenterAndBoundsEmpty(t *testing.T) {
	fallback := Point{Lat: 37.78825, Lng: -122.4324}

	center, bounds := CenterAndBounds(nil, fallback)

	assert.Equal(t, fallback, center)
	assert.Equal(t, 0.0, bounds.LatSpan())
	assert.Equal(t, 0.0, bounds.LngSpan())
	assert.Equal(t, fallback.Lat, bounds.MinLat)
	assert.Equal(t, fallback.Lng, bounds.MinLng)
}

func TestCenterAndBoundsSinglePoint(t *testing.T) {
	p := Point{Lat: 52.1, Lng: 21.2}
	center, bounds := CenterAndBounds([]Point{p}, Point{})

	assert.Equal(t, p, center)
	assert.Equal(t, 0.0, bounds.LatSpan())
	assert.True(t, bounds.Contains(p.Lat, p.Lng))
}

func TestZoomFor(t *testing.T) {
	tests := []struct {
		name     string
		bounds   Bounds
		expected int
	}{
		{"zero span", Bounds{}, 13},
		{"small trail", Bounds{MinLat: 37.0, MaxLat: 37.01, MinLng: -122.0, MaxLng: -122.0}, 13},
		{"city-sized span", Bounds{MinLat: 0, MaxLat: 0.2, MinLng: 0, MaxLng: 0.1}, 11},
		{"clamped to minimum", Bounds{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 1}, 10},
		{"lng span dominates", Bounds{MinLat: 0, MaxLat: 0.05, MinLng: 0, MaxLng: 0.3}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ZoomFor(tt.bounds))
		})
	}
}
