package types

type ServiceMode string

// Trip Service - Orchestrates the complete trip lifecycle, matching, and passenger interactions
// Location Service - Handles driver position reporting and geospatial queries
// Payment Service - Handles wallets, fare settlement, and the payment gateway callback
const (
	TripService     ServiceMode = "trip-service"
	LocationService ServiceMode = "location-service"
	PaymentService  ServiceMode = "payment-service"
)

// VehicleType enumerates supported vehicle classes
type VehicleType string

const (
	VehicleBike VehicleType = "BIKE"
	VehicleCar  VehicleType = "CAR"
)

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleBike, VehicleCar:
		return true
	default:
		return false
	}
}

// TripStatus enumerates the trip state machine states
type TripStatus string

const (
	StatusPending    TripStatus = "PENDING"
	StatusAccepted   TripStatus = "ACCEPTED"
	StatusInProgress TripStatus = "IN_PROGRESS"
	StatusCompleted  TripStatus = "COMPLETED"
	StatusCancelled  TripStatus = "CANCELLED"
)

func (s TripStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is permitted from s.
func (s TripStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// PaymentMethod enumerates how a trip is paid
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodWallet PaymentMethod = "WALLET"
	MethodVNPay  PaymentMethod = "VNPAY"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodWallet, MethodVNPay:
		return true
	default:
		return false
	}
}

// TransactionStatus enumerates payment transaction states
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
	TxFailed    TransactionStatus = "FAILED"
)

// IsFinal reports whether the transaction can no longer change
func (s TransactionStatus) IsFinal() bool {
	return s == TxCompleted || s == TxFailed
}

// UserRole enumerates user roles on the transport boundary
type UserRole string

func (r UserRole) String() string {
	return string(r)
}

const (
	RolePassenger UserRole = "PASSENGER"
	RoleDriver    UserRole = "DRIVER"
	RoleAdmin     UserRole = "ADMIN"
)
