package domain

import "time"

// Route is one tracking session: a driver starts it, streams fixes while
// driving, and ends it exactly once.
type Route struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	BusID          string     `json:"busId"`
	DriverID       string     `json:"driverId"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	DistanceMeters float64    `json:"distanceMeters"`
}

// Fix is a single GPS sample in a route's trail. Seq is assigned by the
// trail in arrival order and is unique within the route. RecordedAt is the
// device capture time and is metadata only; it never influences ordering.
type Fix struct {
	Seq        int       `json:"seq"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Pickup marks a student boarding at a specific fix of the same route.
type Pickup struct {
	ID         string    `json:"id"`
	RouteID    string    `json:"routeId"`
	StudentID  string    `json:"studentId"`
	FixSeq     int       `json:"fixSeq"`
	PickedUpAt time.Time `json:"pickedUpAt"`
}

// Student is roster data owned by an external collaborator; the tracker
// only reads it.
type Student struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Grade     string   `json:"grade"`
	PickupLat *float64 `json:"pickupLat,omitempty"`
	PickupLng *float64 `json:"pickupLng,omitempty"`
	Active    bool     `json:"active"`
}

func (s Student) DisplayName() string {
	if s.FirstName == "" && s.LastName == "" {
		return s.ID
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
