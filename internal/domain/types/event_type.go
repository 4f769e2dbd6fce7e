package types

type TripEvent string

func (s TripEvent) String() string {
	return string(s)
}

const (
	EventTripRequested     TripEvent = "TRIP_REQUESTED"
	EventDriverMatched     TripEvent = "DRIVER_MATCHED"
	EventTripStarted       TripEvent = "TRIP_STARTED"
	EventTripCompleted     TripEvent = "TRIP_COMPLETED"
	EventTripCancelled     TripEvent = "TRIP_CANCELLED"
	EventLocationUpdated   TripEvent = "LOCATION_UPDATED"
	EventSettlementPending TripEvent = "SETTLEMENT_PENDING"
	EventSettlementDone    TripEvent = "SETTLEMENT_COMPLETED"
)
