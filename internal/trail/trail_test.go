package trail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolbus/internal/geo"
)

func TestAppendAssignsSequenceNumbers(t *testing.T) {
	tr := New()
	now := time.Now()

	for i := 1; i <= 5; i++ {
		fix := tr.Append(37.0+float64(i)*0.001, -122.0, now)
		assert.Equal(t, i, fix.Seq)
	}
	assert.Equal(t, 5, tr.Len())
}

func TestAppendIgnoresCaptureTimestampOrder(t *testing.T) {
	tr := New()
	now := time.Now()

	// A retried fix arrives with an older capture timestamp; it still goes
	// to the tail with the next sequence number.
	first := tr.Append(37.0, -122.0, now)
	second := tr.Append(37.01, -122.0, now.Add(-time.Minute))

	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, 2, second.Seq)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 37.0, snap[0].Lat)
	assert.Equal(t, 37.01, snap[1].Lat)
}

func TestCumulativeDistance(t *testing.T) {
	tr := New()
	now := time.Now()

	assert.Equal(t, 0.0, tr.CumulativeDistance())

	tr.Append(37.0, -122.0, now)
	assert.Equal(t, 0.0, tr.CumulativeDistance())

	tr.Append(37.01, -122.0, now)
	tr.Append(37.01, -122.01, now)

	a := geo.Point{Lat: 37.0, Lng: -122.0}
	b := geo.Point{Lat: 37.01, Lng: -122.0}
	c := geo.Point{Lat: 37.01, Lng: -122.01}
	expected := geo.Distance(a, b) + geo.Distance(b, c)

	assert.InDelta(t, expected, tr.CumulativeDistance(), 1e-9)
}

func TestFixLookup(t *testing.T) {
	tr := New()
	tr.Append(1, 2, time.Now())
	tr.Append(3, 4, time.Now())

	fix, ok := tr.Fix(2)
	require.True(t, ok)
	assert.Equal(t, 3.0, fix.Lat)

	_, ok = tr.Fix(0)
	assert.False(t, ok)
	_, ok = tr.Fix(3)
	assert.False(t, ok)
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := New()
	tr.Append(1, 1, time.Now())

	snap := tr.Snapshot()
	snap[0].Lat = 99

	fix, _ := tr.Fix(1)
	assert.Equal(t, 1.0, fix.Lat)
}

func TestPoints(t *testing.T) {
	tr := New()
	tr.Append(0, 0, time.Now())
	tr.Append(0, 1, time.Now())

	points := tr.Points()
	require.Len(t, points, 2)
	assert.Equal(t, geo.Point{Lat: 0, Lng: 1}, points[1])
}
