package types

import "errors"

var (
	// State machine
	ErrInvalidTransition = errors.New("invalid trip status transition")
	ErrTripNotFound      = errors.New("trip not found")

	// Matching
	ErrNoCandidate         = errors.New("no candidate driver found")
	ErrReservationConflict = errors.New("driver already reserved")
	ErrReservationNotFound = errors.New("no active reservation for driver")
	ErrDriverNotAvailable  = errors.New("driver is not available")

	// Location
	ErrInvalidCoordinates = errors.New("coordinates out of range")

	// Settlement
	ErrInsufficientFunds    = errors.New("insufficient wallet balance")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionFinalized = errors.New("transaction already finalized")
	ErrSignatureInvalid     = errors.New("callback signature verification failed")

	// Collaborators
	ErrCollaboratorUnavailable = errors.New("external collaborator unavailable")

	ErrNotFound = errors.New("requested item not found")
)
