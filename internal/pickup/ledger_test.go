package pickup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolbus/internal/domain"
	"schoolbus/internal/lifecycle"
	"schoolbus/internal/trail"
)

func newFixture(t *testing.T, fixes int) (*lifecycle.Lifecycle, *trail.Trail, *Ledger) {
	t.Helper()
	lc := lifecycle.New()
	tr := trail.New()
	for i := 0; i < fixes; i++ {
		tr.Append(37.0+float64(i)*0.01, -122.0, time.Now())
	}
	return lc, tr, NewLedger(lc, tr)
}

func TestRecord(t *testing.T) {
	_, _, ledger := newFixture(t, 2)
	now := time.Now()

	p, err := ledger.Record("route-1", "student-5", 2, now)
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "route-1", p.RouteID)
	assert.Equal(t, "student-5", p.StudentID)
	assert.Equal(t, 2, p.FixSeq)
	assert.Equal(t, now, p.PickedUpAt)
	assert.Equal(t, 1, ledger.Len())
}

func TestRecordUnknownFix(t *testing.T) {
	_, _, ledger := newFixture(t, 1)

	_, err := ledger.Record("route-1", "student-5", 7, time.Now())
	assert.ErrorIs(t, err, domain.ErrUnknownFix)
	assert.Equal(t, 0, ledger.Len())
}

func TestRecordDuplicateReturnsOriginal(t *testing.T) {
	_, _, ledger := newFixture(t, 2)

	first, err := ledger.Record("route-1", "student-5", 1, time.Now())
	require.NoError(t, err)

	// Retried request binds to a later fix; the original still wins.
	second, err := ledger.Record("route-1", "student-5", 2, time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrDuplicatePickup)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.FixSeq)
	assert.Equal(t, 1, ledger.Len())
}

func TestRecordOnEndedRoute(t *testing.T) {
	lc, _, ledger := newFixture(t, 1)
	require.NoError(t, lc.End(time.Now()))

	_, err := ledger.Record("route-1", "student-5", 1, time.Now())
	assert.ErrorIs(t, err, domain.ErrRouteNotActive)
}

func TestByStudent(t *testing.T) {
	_, _, ledger := newFixture(t, 1)

	_, ok := ledger.ByStudent("student-5")
	assert.False(t, ok)

	p, err := ledger.Record("route-1", "student-5", 1, time.Now())
	require.NoError(t, err)

	got, ok := ledger.ByStudent("student-5")
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)
}

func TestListOrderedByPickupTime(t *testing.T) {
	_, _, ledger := newFixture(t, 3)
	base := time.Now()

	// Recorded out of time order; listing sorts by pickup time.
	_, err := ledger.Record("route-1", "b", 2, base.Add(2*time.Minute))
	require.NoError(t, err)
	_, err = ledger.Record("route-1", "a", 1, base)
	require.NoError(t, err)
	_, err = ledger.Record("route-1", "c", 3, base.Add(2*time.Minute))
	require.NoError(t, err)

	list := ledger.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].StudentID)
	// Equal timestamps keep insertion order.
	assert.Equal(t, "b", list[1].StudentID)
	assert.Equal(t, "c", list[2].StudentID)
}
