// Package trail stores the ordered, append-only fix sequence of one route.
//
// Ingestion order is authoritative: a device's fixes can arrive late or out
// of order through retries, so server arrival order is the only reliable
// ordering signal. Capture timestamps are kept as metadata and never used
// to re-sort the trail.
package trail

import (
	"time"

	"schoolbus/internal/domain"
	"schoolbus/internal/geo"
)

// Trail is passive: it trusts its caller to gate appends on the route
// lifecycle and to serialize access under the per-route lock.
type Trail struct {
	fixes []domain.Fix
	total float64
}

func New() *Trail {
	return &Trail{}
}

// Append stores a fix at the tail and assigns it the next sequence number
// (current length + 1). The cumulative distance is extended by the leg from
// the previous tail, keeping the running total O(1) per append.
func (t *Trail) Append(lat, lng float64, recordedAt time.Time) domain.Fix {
	fix := domain.Fix{
		Seq:        len(t.fixes) + 1,
		Lat:        lat,
		Lng:        lng,
		RecordedAt: recordedAt,
	}

	if n := len(t.fixes); n > 0 {
		prev := t.fixes[n-1]
		t.total += geo.Distance(
			geo.Point{Lat: prev.Lat, Lng: prev.Lng},
			geo.Point{Lat: fix.Lat, Lng: fix.Lng},
		)
	}

	t.fixes = append(t.fixes, fix)
	return fix
}

func (t *Trail) Len() int {
	return len(t.fixes)
}

// Fix returns the fix with the given sequence number, if it exists.
func (t *Trail) Fix(seq int) (domain.Fix, bool) {
	if seq < 1 || seq > len(t.fixes) {
		return domain.Fix{}, false
	}
	return t.fixes[seq-1], true
}

// CumulativeDistance is the sum of Haversine distances over consecutive
// fixes, in meters. Zero or one fix yields 0.
func (t *Trail) CumulativeDistance() float64 {
	return t.total
}

// Snapshot returns a copy of the fixes in storage order.
func (t *Trail) Snapshot() []domain.Fix {
	out := make([]domain.Fix, len(t.fixes))
	copy(out, t.fixes)
	return out
}

// Points returns the trail as coordinate points in storage order, for
// bounding-box and polyline work.
func (t *Trail) Points() []geo.Point {
	out := make([]geo.Point, len(t.fixes))
	for i, f := range t.fixes {
		out[i] = geo.Point{Lat: f.Lat, Lng: f.Lng}
	}
	return out
}
