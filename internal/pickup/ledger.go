// Package pickup records student boardings with referential integrity.
//
// A pickup references a fix of the same route rather than carrying its own
// coordinates, so a pickup's location is always one the vehicle actually
// recorded and its marker always lies on the rendered trail.
package pickup

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"schoolbus/internal/domain"
	"schoolbus/internal/lifecycle"
	"schoolbus/internal/trail"
)

// Ledger holds the pickups of one route. Like the trail, it is passive and
// relies on the tracker's per-route lock for serialization.
type Ledger struct {
	lc        *lifecycle.Lifecycle
	trail     *trail.Trail
	pickups   []domain.Pickup
	byStudent map[string]int // student id -> index into pickups
}

func NewLedger(lc *lifecycle.Lifecycle, tr *trail.Trail) *Ledger {
	return &Ledger{
		lc:        lc,
		trail:     tr,
		byStudent: make(map[string]int),
	}
}

// Record creates a pickup bound to the fix with the given sequence number.
// The route must be active and the fix must exist in the route's trail.
// First pickup wins: a second attempt for the same student returns the
// original pickup together with ErrDuplicatePickup so that device retries
// can treat it as success.
func (l *Ledger) Record(routeID, studentID string, fixSeq int, now time.Time) (domain.Pickup, error) {
	if err := l.lc.RequireActive(); err != nil {
		return domain.Pickup{}, err
	}

	if _, ok := l.trail.Fix(fixSeq); !ok {
		return domain.Pickup{}, domain.ErrUnknownFix
	}

	if idx, ok := l.byStudent[studentID]; ok {
		return l.pickups[idx], domain.ErrDuplicatePickup
	}

	p := domain.Pickup{
		ID:         uuid.New().String(),
		RouteID:    routeID,
		StudentID:  studentID,
		FixSeq:     fixSeq,
		PickedUpAt: now,
	}
	l.byStudent[studentID] = len(l.pickups)
	l.pickups = append(l.pickups, p)
	return p, nil
}

// ByStudent returns the student's pickup on this route, if any.
func (l *Ledger) ByStudent(studentID string) (domain.Pickup, bool) {
	idx, ok := l.byStudent[studentID]
	if !ok {
		return domain.Pickup{}, false
	}
	return l.pickups[idx], true
}

func (l *Ledger) Len() int {
	return len(l.pickups)
}

// List returns the pickups ordered by pickup time ascending, with ties
// broken by insertion order. Used for map markers and dashboard review.
func (l *Ledger) List() []domain.Pickup {
	out := make([]domain.Pickup, len(l.pickups))
	copy(out, l.pickups)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PickedUpAt.Before(out[j].PickedUpAt)
	})
	return out
}
