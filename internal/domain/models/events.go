package models

import (
	"time"

	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/uuid"
)

/* ======================= rabbitmq ======================= */

type LocationUpdateMessage struct {
	DriverID      uuid.UUID `json:"driver_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	RecordedAt    time.Time `json:"recorded_at"`
	CorrelationID string    `json:"correlation_id"`
}

type TripStatusMessage struct {
	TripID        uuid.UUID        `json:"trip_id"`
	Status        types.TripStatus `json:"status"`
	DriverID      *uuid.UUID       `json:"driver_id,omitempty"`
	ActualFare    *float64         `json:"actual_fare,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	CorrelationID string           `json:"correlation_id"`
}

/* ======================= websocket ======================= */

// LocationEvent is the push message fanned out to trip participants.
type LocationEvent struct {
	Type       string    `json:"type"` // always "location_update"
	TripID     uuid.UUID `json:"trip_id"`
	DriverID   uuid.UUID `json:"driver_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}
