package dto

import (
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/internal/service/payment"
	"github.com/uit-go/ridehail/pkg/uuid"
	"github.com/uit-go/ridehail/pkg/validator"
)

type TopUpRequest struct {
	Amount float64 `json:"amount"`
}

func (r *TopUpRequest) Validate(v *validator.Validator) {
	v.Check(r.Amount > 0, "amount", "must be greater than zero")
	v.Check(r.Amount <= 100_000_000, "amount", "must not be more than 100000000")
}

type EstimateFareRequest struct {
	VehicleType string  `json:"vehicle_type"`
	DistanceKm  float64 `json:"distance_km"`
}

func (r *EstimateFareRequest) Validate(v *validator.Validator) {
	v.Check(r.VehicleType != "", "vehicle_type", "must be provided")
	v.Check(
		validator.PermittedValue(r.VehicleType, string(types.VehicleBike), string(types.VehicleCar)),
		"vehicle_type", "must be one of BIKE or CAR",
	)
	v.Check(r.DistanceKm >= 0, "distance_km", "must not be negative")
}

// SettleTripRequest is the service-to-service settlement payload.
type SettleTripRequest struct {
	TripID      string  `json:"trip_id"`
	PassengerID string  `json:"passenger_id"`
	DriverID    string  `json:"driver_id"`
	Amount      float64 `json:"amount"`
	Method      string  `json:"method"`
}

func (r *SettleTripRequest) Validate(v *validator.Validator) {
	v.Check(r.TripID != "", "trip_id", "must be provided")
	if r.TripID != "" {
		_, err := uuid.Parse(r.TripID)
		v.Check(err == nil, "trip_id", "must be a valid UUID")
	}

	v.Check(r.PassengerID != "", "passenger_id", "must be provided")
	if r.PassengerID != "" {
		_, err := uuid.Parse(r.PassengerID)
		v.Check(err == nil, "passenger_id", "must be a valid UUID")
	}

	v.Check(r.DriverID != "", "driver_id", "must be provided")
	if r.DriverID != "" {
		_, err := uuid.Parse(r.DriverID)
		v.Check(err == nil, "driver_id", "must be a valid UUID")
	}

	v.Check(r.Amount > 0, "amount", "must be greater than zero")

	v.Check(r.Method != "", "method", "must be provided")
	v.Check(
		validator.PermittedValue(r.Method,
			string(types.MethodCash), string(types.MethodWallet), string(types.MethodVNPay)),
		"method", "must be one of CASH, WALLET or VNPAY",
	)
}

// ToModel assumes Validate has already run, so the UUID fields parse cleanly.
func (r *SettleTripRequest) ToModel() payment.SettleRequest {
	tripID, _ := uuid.Parse(r.TripID)
	passengerID, _ := uuid.Parse(r.PassengerID)
	driverID, _ := uuid.Parse(r.DriverID)

	return payment.SettleRequest{
		TripID:      tripID,
		PassengerID: passengerID,
		DriverID:    driverID,
		Amount:      r.Amount,
		Method:      types.PaymentMethod(r.Method),
	}
}
