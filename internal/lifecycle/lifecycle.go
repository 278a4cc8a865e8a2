// Package lifecycle is the single source of truth for whether a route is
// open for writes. Every mutating operation consults it; nothing else
// duplicates the active/ended check.
package lifecycle

import (
	"time"

	"schoolbus/internal/domain"
)

// State of a route. Active is the initial state; Ended is terminal.
type State int

const (
	Active State = iota
	Ended
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Lifecycle tracks a single route's state. Not safe for concurrent use;
// the tracker serializes access under the per-route lock.
type Lifecycle struct {
	state   State
	endedAt time.Time
}

func New() *Lifecycle {
	return &Lifecycle{state: Active}
}

func (l *Lifecycle) State() State {
	return l.state
}

// RequireActive gates mutations. Returns ErrRouteNotActive once the route
// has ended.
func (l *Lifecycle) RequireActive() error {
	if l.state != Active {
		return domain.ErrRouteNotActive
	}
	return nil
}

// End transitions Active -> Ended. The transition happens at most once;
// a second call returns ErrAlreadyEnded.
func (l *Lifecycle) End(now time.Time) error {
	if l.state == Ended {
		return domain.ErrAlreadyEnded
	}
	l.state = Ended
	l.endedAt = now
	return nil
}

// EndedAt returns the end timestamp and whether the route has ended.
func (l *Lifecycle) EndedAt() (time.Time, bool) {
	if l.state != Ended {
		return time.Time{}, false
	}
	return l.endedAt, true
}
