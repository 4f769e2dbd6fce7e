package models

import (
	"time"

	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/uuid"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Validate checks the coordinate ranges
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return types.ErrInvalidCoordinates
	}
	return nil
}

// DriverPosition is the ephemeral last-known position of a driver.
// Owned exclusively by the location index; expires TTL after RecordedAt.
type DriverPosition struct {
	DriverID   uuid.UUID `json:"driver_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NearbyDriver is one radius-query result, distance measured from the query center.
type NearbyDriver struct {
	DriverID   uuid.UUID `json:"driver_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DistanceKm float64   `json:"distance_km"`
}

// RouteInfo is the routing collaborator's answer for an origin/destination pair.
type RouteInfo struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin int     `json:"duration_min"`

	// Estimated is true when the routing provider was unavailable and the
	// distance is a straight-line fallback (declared policy, never silent).
	Estimated bool `json:"estimated,omitempty"`
}
