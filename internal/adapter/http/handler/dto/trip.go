package dto

import (
	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/internal/service/trip"
	"github.com/uit-go/ridehail/pkg/uuid"
	"github.com/uit-go/ridehail/pkg/validator"
)

type CreateTripRequest struct {
	PickupLatitude   *float64 `json:"pickup_latitude"`
	PickupLongitude  *float64 `json:"pickup_longitude"`
	PickupAddress    string   `json:"pickup_address"`
	DropoffLatitude  *float64 `json:"dropoff_latitude"`
	DropoffLongitude *float64 `json:"dropoff_longitude"`
	DropoffAddress   string   `json:"dropoff_address"`
	VehicleType      string   `json:"vehicle_type"`
	PaymentMethod    string   `json:"payment_method"`
}

func (r *CreateTripRequest) Validate(v *validator.Validator) {
	// Pickup
	v.Check(r.PickupLatitude != nil, "pickup_latitude", "must be provided")
	v.Check(r.PickupLongitude != nil, "pickup_longitude", "must be provided")
	if r.PickupLatitude != nil && r.PickupLongitude != nil {
		v.Check(*r.PickupLatitude >= -90 && *r.PickupLatitude <= 90, "pickup_latitude", "must be between -90 and 90")
		v.Check(*r.PickupLongitude >= -180 && *r.PickupLongitude <= 180, "pickup_longitude", "must be between -180 and 180")
	}
	v.Check(len(r.PickupAddress) <= 255, "pickup_address", "must not be more than 255 characters long")

	// Dropoff
	v.Check(r.DropoffLatitude != nil, "dropoff_latitude", "must be provided")
	v.Check(r.DropoffLongitude != nil, "dropoff_longitude", "must be provided")
	if r.DropoffLatitude != nil && r.DropoffLongitude != nil {
		v.Check(*r.DropoffLatitude >= -90 && *r.DropoffLatitude <= 90, "dropoff_latitude", "must be between -90 and 90")
		v.Check(*r.DropoffLongitude >= -180 && *r.DropoffLongitude <= 180, "dropoff_longitude", "must be between -180 and 180")
	}
	v.Check(len(r.DropoffAddress) <= 255, "dropoff_address", "must not be more than 255 characters long")

	// Vehicle type
	v.Check(r.VehicleType != "", "vehicle_type", "must be provided")
	v.Check(
		validator.PermittedValue(r.VehicleType, string(types.VehicleBike), string(types.VehicleCar)),
		"vehicle_type", "must be one of BIKE or CAR",
	)

	// Payment method
	v.Check(r.PaymentMethod != "", "payment_method", "must be provided")
	v.Check(
		validator.PermittedValue(r.PaymentMethod,
			string(types.MethodCash), string(types.MethodWallet), string(types.MethodVNPay)),
		"payment_method", "must be one of CASH, WALLET or VNPAY",
	)
}

func (r *CreateTripRequest) ToModel(passengerID uuid.UUID) trip.CreateRequest {
	return trip.CreateRequest{
		PassengerID: passengerID,
		Pickup: models.Location{
			Latitude:  *r.PickupLatitude,
			Longitude: *r.PickupLongitude,
			Address:   r.PickupAddress,
		},
		Dropoff: models.Location{
			Latitude:  *r.DropoffLatitude,
			Longitude: *r.DropoffLongitude,
			Address:   r.DropoffAddress,
		},
		VehicleType:   types.VehicleType(r.VehicleType),
		PaymentMethod: types.PaymentMethod(r.PaymentMethod),
	}
}

type CancelTripRequest struct {
	Reason string `json:"reason"`
}

func (r *CancelTripRequest) Validate(v *validator.Validator) {
	v.Check(len(r.Reason) <= 255, "reason", "must not be more than 255 characters long")
}

type CompleteTripRequest struct {
	ActualDistanceKm float64 `json:"actual_distance_km"`
}

func (r *CompleteTripRequest) Validate(v *validator.Validator) {
	v.Check(r.ActualDistanceKm >= 0, "actual_distance_km", "must not be negative")
	v.Check(r.ActualDistanceKm <= 1000, "actual_distance_km", "must not be more than 1000")
}

// TripResponse is the wire form of a trip shared by all trip endpoints.
type TripResponse struct {
	ID                  uuid.UUID           `json:"id"`
	PassengerID         uuid.UUID           `json:"passenger_id"`
	DriverID            *uuid.UUID          `json:"driver_id,omitempty"`
	Status              types.TripStatus    `json:"status"`
	Pickup              models.Location     `json:"pickup"`
	Dropoff             models.Location     `json:"dropoff"`
	VehicleType         types.VehicleType   `json:"vehicle_type"`
	PaymentMethod       types.PaymentMethod `json:"payment_method"`
	EstimatedFare       float64             `json:"estimated_fare"`
	EstimatedDistanceKm float64             `json:"estimated_distance_km"`
	ActualFare          *float64            `json:"actual_fare,omitempty"`
	ActualDistanceKm    *float64            `json:"actual_distance_km,omitempty"`
	PendingSettlement   bool                `json:"pending_settlement,omitempty"`
	CancellationReason  *string             `json:"cancellation_reason,omitempty"`
}

func ToTripResponse(t *models.Trip) TripResponse {
	return TripResponse{
		ID:                  t.ID,
		PassengerID:         t.PassengerID,
		DriverID:            t.DriverID,
		Status:              t.Status,
		Pickup:              t.Pickup,
		Dropoff:             t.Dropoff,
		VehicleType:         t.VehicleType,
		PaymentMethod:       t.PaymentMethod,
		EstimatedFare:       t.EstimatedFare,
		EstimatedDistanceKm: t.EstimatedDistanceKm,
		ActualFare:          t.ActualFare,
		ActualDistanceKm:    t.ActualDistanceKm,
		PendingSettlement:   t.PendingSettlement,
		CancellationReason:  t.CancellationReason,
	}
}

func ToTripResponses(trips []models.Trip) []TripResponse {
	out := make([]TripResponse, 0, len(trips))
	for i := range trips {
		out = append(out, ToTripResponse(&trips[i]))
	}
	return out
}
