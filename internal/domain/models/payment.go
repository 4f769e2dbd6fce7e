package models

import (
	"time"

	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// Wallet balance is mutated only through atomic deltas; balance never goes
// below zero.
type Wallet struct {
	OwnerID  uuid.UUID `json:"owner_id"`
	Balance  float64   `json:"balance"`
	Currency string    `json:"currency"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is immutable once COMPLETED or FAILED.
type Transaction struct {
	ID            uuid.UUID               `json:"transaction_id"`
	TripID        uuid.UUID               `json:"trip_id"`
	PayerID       uuid.UUID               `json:"payer_id"`
	PayeeID       uuid.UUID               `json:"payee_id"`
	Amount        float64                 `json:"amount"`
	Method        types.PaymentMethod     `json:"method"`
	Status        types.TransactionStatus `json:"status"`
	FailureReason string                  `json:"failure_reason,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
}

// SettlementResult is what a settlement attempt returns to the trip service.
// RedirectURL is set only for gateway payments awaiting the provider callback.
type SettlementResult struct {
	Transaction Transaction `json:"transaction"`
	RedirectURL string      `json:"redirect_url,omitempty"`
}
