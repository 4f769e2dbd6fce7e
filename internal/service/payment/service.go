package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/metrics"
	"github.com/uit-go/ridehail/pkg/trm"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// WalletRepository persists wallet balances. ApplyDelta is a single guarded
// update: a negative delta that would push the balance below zero fails with
// types.ErrInsufficientFunds without changing anything.
type WalletRepository interface {
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (models.Wallet, error)
	ApplyDelta(ctx context.Context, ownerID uuid.UUID, delta float64) error
}

// TransactionRepository persists payment transactions.
type TransactionRepository interface {
	Create(ctx context.Context, txn models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (models.Transaction, error)
	Finalize(ctx context.Context, id uuid.UUID, status types.TransactionStatus, failureReason string) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// CallbackResult is the parsed, signature-verified gateway callback.
type CallbackResult struct {
	TxnRef       string
	Amount       float64
	Success      bool
	ResponseCode string
}

// Gateway abstracts the external payment provider.
type Gateway interface {
	BuildPayURL(ctx context.Context, txnID uuid.UUID, amount float64, orderInfo string) (string, error)
	VerifyCallback(params url.Values) (CallbackResult, error)
}

// SettleRequest is the fare settlement order issued by the trip service
// after a trip completes.
type SettleRequest struct {
	TripID      uuid.UUID
	PassengerID uuid.UUID
	DriverID    uuid.UUID
	Amount      float64
	Method      types.PaymentMethod
}

type Service struct {
	wallets      WalletRepository
	transactions TransactionRepository
	gateway      Gateway
	txManager    trm.TxManager
	log          logger.Logger

	commissionRate float64
}

func NewService(wallets WalletRepository, transactions TransactionRepository, gateway Gateway, txManager trm.TxManager, log logger.Logger, commissionRate float64) *Service {
	return &Service{
		wallets:        wallets,
		transactions:   transactions,
		gateway:        gateway,
		txManager:      txManager,
		log:            log,
		commissionRate: commissionRate,
	}
}

// Settle runs the payment protocol for a completed trip. CASH and WALLET
// settle synchronously; VNPAY returns a redirect URL and finalizes later
// through HandleGatewayCallback. A settlement failure is reported to the
// caller and never unwinds the trip itself.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (models.SettlementResult, error) {
	ctx = wrap.WithAction(ctx, "payment.Settle")
	ctx = wrap.WithTripID(ctx, req.TripID.String())

	if !req.Method.Valid() {
		return models.SettlementResult{}, wrap.Error(ctx, fmt.Errorf("unknown payment method %q", req.Method))
	}
	if req.Amount <= 0 {
		return models.SettlementResult{}, wrap.Error(ctx, fmt.Errorf("non-positive settlement amount %.2f", req.Amount))
	}

	txn := models.Transaction{
		ID:        uuid.MustNew(),
		TripID:    req.TripID,
		PayerID:   req.PassengerID,
		PayeeID:   req.DriverID,
		Amount:    req.Amount,
		Method:    req.Method,
		Status:    types.TxPending,
		CreatedAt: time.Now(),
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		metrics.RecordSettlement(string(req.Method), "error")
		return models.SettlementResult{}, wrap.Error(ctx, fmt.Errorf("create transaction: %w", err))
	}

	switch req.Method {
	case types.MethodCash:
		return s.settleCash(ctx, txn)
	case types.MethodWallet:
		return s.settleWallet(ctx, txn)
	case types.MethodVNPay:
		return s.settleGateway(ctx, txn)
	default:
		return models.SettlementResult{}, wrap.Error(ctx, fmt.Errorf("unhandled payment method %q", req.Method))
	}
}

// settleCash records the fare as collected in person. No money moves
// through the platform; the transaction is simply closed out.
func (s *Service) settleCash(ctx context.Context, txn models.Transaction) (models.SettlementResult, error) {
	if err := s.transactions.Finalize(ctx, txn.ID, types.TxCompleted, ""); err != nil {
		metrics.RecordSettlement(string(txn.Method), "error")
		return models.SettlementResult{}, wrap.Error(ctx, fmt.Errorf("finalize cash transaction: %w", err))
	}

	metrics.RecordSettlement(string(txn.Method), "completed")
	return s.result(ctx, txn.ID, "")
}

// settleWallet moves the fare from the passenger wallet to the driver
// wallet in one transaction. Insufficient funds fail the settlement.
func (s *Service) settleWallet(ctx context.Context, txn models.Transaction) (models.SettlementResult, error) {
	earnings, _ := SplitFare(txn.Amount, s.commissionRate)

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.wallets.ApplyDelta(ctx, txn.PayerID, -txn.Amount); err != nil {
			return fmt.Errorf("debit passenger wallet: %w", err)
		}
		if err := s.wallets.ApplyDelta(ctx, txn.PayeeID, earnings); err != nil {
			return fmt.Errorf("credit driver wallet: %w", err)
		}
		return s.transactions.Finalize(ctx, txn.ID, types.TxCompleted, "")
	})
	if err != nil {
		metrics.RecordSettlement(string(txn.Method), "failed")
		s.failQuietly(ctx, txn.ID, err.Error())
		return models.SettlementResult{}, wrap.Error(ctx, err)
	}

	metrics.RecordSettlement(string(txn.Method), "completed")
	return s.result(ctx, txn.ID, "")
}

// settleGateway leaves the transaction PENDING and hands the passenger a
// redirect URL; the provider callback finishes the settlement.
func (s *Service) settleGateway(ctx context.Context, txn models.Transaction) (models.SettlementResult, error) {
	orderInfo := fmt.Sprintf("Trip %s fare", txn.TripID)
	payURL, err := s.gateway.BuildPayURL(ctx, txn.ID, txn.Amount, orderInfo)
	if err != nil {
		metrics.RecordSettlement(string(txn.Method), "failed")
		s.failQuietly(ctx, txn.ID, err.Error())
		return models.SettlementResult{}, wrap.Error(ctx, fmt.Errorf("build pay url: %w", err))
	}

	metrics.RecordSettlement(string(txn.Method), "pending")
	return s.result(ctx, txn.ID, payURL)
}

// HandleGatewayCallback verifies and applies the provider's payment result.
// Replayed callbacks for a completed transaction are acknowledged without
// effect; callbacks for a failed transaction are rejected.
func (s *Service) HandleGatewayCallback(ctx context.Context, params url.Values) error {
	ctx = wrap.WithAction(ctx, "payment.HandleGatewayCallback")

	result, err := s.gateway.VerifyCallback(params)
	if err != nil {
		// A bad signature still fails the referenced transaction so it
		// does not sit PENDING forever.
		if errors.Is(err, types.ErrSignatureInvalid) {
			if txnID, parseErr := uuid.Parse(params.Get("vnp_TxnRef")); parseErr == nil {
				s.failQuietly(ctx, txnID, "callback signature invalid")
				metrics.RecordSettlement(string(types.MethodVNPay), "failed")
			}
		}
		return wrap.Error(ctx, err)
	}

	txnID, err := uuid.Parse(result.TxnRef)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("callback txn ref %q: %w", result.TxnRef, err))
	}

	txn, err := s.transactions.GetByID(ctx, txnID)
	if err != nil {
		return wrap.Error(ctx, err)
	}
	ctx = wrap.WithTripID(ctx, txn.TripID.String())

	if txn.Status.IsFinal() {
		if txn.Status == types.TxCompleted && result.Success {
			s.log.Info(ctx, "gateway callback replay ignored", "transaction_id", txn.ID)
			return nil
		}
		return wrap.Error(ctx, types.ErrTransactionFinalized)
	}

	if result.Amount != txn.Amount {
		s.failQuietly(ctx, txn.ID, fmt.Sprintf("callback amount %.0f does not match %.0f", result.Amount, txn.Amount))
		metrics.RecordSettlement(string(txn.Method), "failed")
		return wrap.Error(ctx, fmt.Errorf("callback amount mismatch"))
	}

	if !result.Success {
		s.failQuietly(ctx, txn.ID, fmt.Sprintf("gateway declined with code %s", result.ResponseCode))
		metrics.RecordSettlement(string(txn.Method), "failed")
		return nil
	}

	earnings, _ := SplitFare(txn.Amount, s.commissionRate)
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.wallets.ApplyDelta(ctx, txn.PayeeID, earnings); err != nil {
			return fmt.Errorf("credit driver wallet: %w", err)
		}
		return s.transactions.Finalize(ctx, txn.ID, types.TxCompleted, "")
	})
	if err != nil {
		metrics.RecordSettlement(string(txn.Method), "error")
		return wrap.Error(ctx, err)
	}

	metrics.RecordSettlement(string(txn.Method), "completed")
	s.log.Info(ctx, "gateway settlement completed", "transaction_id", txn.ID)
	return nil
}

// TopUp credits a wallet. Amount must be positive.
func (s *Service) TopUp(ctx context.Context, ownerID uuid.UUID, amount float64) (models.Wallet, error) {
	ctx = wrap.WithAction(ctx, "payment.TopUp")

	if amount <= 0 {
		return models.Wallet{}, wrap.Error(ctx, fmt.Errorf("non-positive top-up amount %.2f", amount))
	}
	if err := s.wallets.ApplyDelta(ctx, ownerID, amount); err != nil {
		return models.Wallet{}, wrap.Error(ctx, fmt.Errorf("top up wallet: %w", err))
	}
	return s.wallets.GetByOwner(ctx, ownerID)
}

// Balance returns the wallet for its owner.
func (s *Service) Balance(ctx context.Context, ownerID uuid.UUID) (models.Wallet, error) {
	ctx = wrap.WithAction(ctx, "payment.Balance")
	return s.wallets.GetByOwner(ctx, ownerID)
}

// History lists the user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	ctx = wrap.WithAction(ctx, "payment.History")

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	txns, err := s.transactions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

// EstimateTripFare exposes the fare table for quotes before a trip exists.
func (s *Service) EstimateTripFare(ctx context.Context, vehicle types.VehicleType, distanceKm float64) (float64, error) {
	fare, err := EstimateFare(vehicle, distanceKm)
	if err != nil {
		return 0, wrap.Error(ctx, err)
	}
	return fare, nil
}

// failQuietly marks a transaction FAILED without surfacing repository
// errors; the original failure is what the caller needs to see.
func (s *Service) failQuietly(ctx context.Context, txnID uuid.UUID, reason string) {
	if err := s.transactions.Finalize(ctx, txnID, types.TxFailed, reason); err != nil {
		if !errors.Is(err, types.ErrTransactionFinalized) {
			s.log.Warn(ctx, "could not mark transaction failed", "transaction_id", txnID)
		}
	}
}

func (s *Service) result(ctx context.Context, txnID uuid.UUID, redirectURL string) (models.SettlementResult, error) {
	txn, err := s.transactions.GetByID(ctx, txnID)
	if err != nil {
		return models.SettlementResult{}, wrap.Error(ctx, fmt.Errorf("reload transaction: %w", err))
	}
	return models.SettlementResult{Transaction: txn, RedirectURL: redirectURL}, nil
}
