package domain

import "errors"

// Recoverable conditions surfaced to the transport layer. All are matched
// with errors.Is; none are fatal to the process.
var (
	ErrRouteNotFound     = errors.New("route not found")
	ErrRouteNotActive    = errors.New("route is not active")
	ErrAlreadyEnded      = errors.New("route has already ended")
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrUnknownFix        = errors.New("fix does not belong to this route")
	ErrDuplicatePickup   = errors.New("student already picked up on this route")
)
