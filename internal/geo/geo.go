// Package geo holds the stateless numeric routines behind trail distances
// and map viewport fitting. All distances use the Haversine formula on
// WGS-84 coordinates with the mean Earth radius.
package geo

import "math"

// EarthRadiusMeters is the mean radius of Earth.
const EarthRadiusMeters = 6_371_000.0

// Point is a WGS-84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is a geographic rectangle enclosing a set of points.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
}

func (b Bounds) LatSpan() float64 { return b.MaxLat - b.MinLat }
func (b Bounds) LngSpan() float64 { return b.MaxLng - b.MinLng }

// Contains reports whether the point lies within the bounds.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lng >= b.MinLng && lng <= b.MaxLng
}

// Distance returns the great-circle distance between two points in meters.
// Identical points yield exactly 0.
func Distance(a, b Point) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*sinLng*sinLng

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// CenterAndBounds returns the arithmetic mean of the points as the center
// and their min/max extremes as the bounds. For an empty input it returns
// the fallback center and a zero-size bound at that center; callers must
// treat that as "no data", not a real location.
func CenterAndBounds(points []Point, fallback Point) (Point, Bounds) {
	if len(points) == 0 {
		return fallback, Bounds{
			MinLat: fallback.Lat, MaxLat: fallback.Lat,
			MinLng: fallback.Lng, MaxLng: fallback.Lng,
		}
	}

	var sumLat, sumLng float64
	b := Bounds{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLng: points[0].Lng, MaxLng: points[0].Lng,
	}

	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}

	n := float64(len(points))
	return Point{Lat: sumLat / n, Lng: sumLng / n}, b
}

// ZoomFor derives a map zoom level from the larger of the lat/lng spans:
//
//	zoom = round(13 - max(latSpan, lngSpan) * 10)
//
// clamped to a minimum of 10. Dashboards depend on this exact formula for
// reproducible viewports; it is a presentation heuristic, not a projection.
func ZoomFor(b Bounds) int {
	span := math.Max(b.LatSpan(), b.LngSpan())
	zoom := int(math.Round(13 - span*10))
	if zoom < 10 {
		zoom = 10
	}
	return zoom
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
