package models

import (
	"time"

	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// StatusChange is one append-only status history entry.
type StatusChange struct {
	From   types.TripStatus `json:"from"`
	To     types.TripStatus `json:"to"`
	At     time.Time        `json:"at"`
	Reason string           `json:"reason,omitempty"`
}

// Trip is the authoritative trip record. Status is mutated only by the trip
// service; StatusHistory records every transition for audit and replay checks.
type Trip struct {
	ID          uuid.UUID
	PassengerID uuid.UUID
	DriverID    *uuid.UUID
	Status      types.TripStatus
	Pickup      Location
	Dropoff     Location
	VehicleType types.VehicleType

	PaymentMethod types.PaymentMethod

	EstimatedFare       float64
	EstimatedDistanceKm float64
	ActualFare          *float64
	ActualDistanceKm    *float64

	// PendingSettlement marks a COMPLETED trip whose payment did not settle;
	// reconciliation happens out of band.
	PendingSettlement bool

	CancellationReason *string

	CreatedAt     time.Time
	StatusHistory []StatusChange
}

// DriverReservation is the transient matching lock on a driver. At most one
// active reservation exists per driver at any instant.
type DriverReservation struct {
	DriverID   uuid.UUID `json:"driver_id"`
	TripID     uuid.UUID `json:"trip_id"`
	ReservedAt time.Time `json:"reserved_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the reservation has passed its TTL as of now.
func (r DriverReservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
