package payment

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/logger"
	"github.com/uit-go/ridehail/pkg/uuid"
)

type walletRepoFake struct {
	mu       sync.Mutex
	balances map[uuid.UUID]float64
}

func newWalletRepoFake() *walletRepoFake {
	return &walletRepoFake{balances: make(map[uuid.UUID]float64)}
}

func (w *walletRepoFake) GetByOwner(_ context.Context, ownerID uuid.UUID) (models.Wallet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	balance, ok := w.balances[ownerID]
	if !ok {
		return models.Wallet{}, types.ErrWalletNotFound
	}
	return models.Wallet{OwnerID: ownerID, Balance: balance, Currency: "VND"}, nil
}

func (w *walletRepoFake) ApplyDelta(_ context.Context, ownerID uuid.UUID, delta float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[ownerID]+delta < 0 {
		return types.ErrInsufficientFunds
	}
	w.balances[ownerID] += delta
	return nil
}

func (w *walletRepoFake) balance(ownerID uuid.UUID) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[ownerID]
}

type transactionRepoFake struct {
	mu   sync.Mutex
	byID map[uuid.UUID]models.Transaction
}

func newTransactionRepoFake() *transactionRepoFake {
	return &transactionRepoFake{byID: make(map[uuid.UUID]models.Transaction)}
}

func (r *transactionRepoFake) Create(_ context.Context, txn models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[txn.ID] = txn
	return nil
}

func (r *transactionRepoFake) GetByID(_ context.Context, id uuid.UUID) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.byID[id]
	if !ok {
		return models.Transaction{}, types.ErrTransactionNotFound
	}
	return txn, nil
}

func (r *transactionRepoFake) Finalize(_ context.Context, id uuid.UUID, status types.TransactionStatus, failureReason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.byID[id]
	if !ok {
		return types.ErrTransactionNotFound
	}
	if txn.Status.IsFinal() {
		return types.ErrTransactionFinalized
	}
	now := time.Now()
	txn.Status = status
	txn.FailureReason = failureReason
	txn.CompletedAt = &now
	r.byID[id] = txn
	return nil
}

func (r *transactionRepoFake) ListByUser(_ context.Context, userID uuid.UUID, limit, _ int) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, txn := range r.byID {
		if txn.PayerID == userID || txn.PayeeID == userID {
			out = append(out, txn)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type gatewayFake struct {
	payURL   string
	buildErr error

	callback CallbackResult
	verifErr error
}

func (g *gatewayFake) BuildPayURL(_ context.Context, _ uuid.UUID, _ float64, _ string) (string, error) {
	return g.payURL, g.buildErr
}

func (g *gatewayFake) VerifyCallback(_ url.Values) (CallbackResult, error) {
	return g.callback, g.verifErr
}

// noTx runs the function directly; the fakes above are not transactional.
type noTx struct{}

func (noTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc          *Service
	wallets      *walletRepoFake
	transactions *transactionRepoFake
	gateway      *gatewayFake
}

func newFixture() *fixture {
	wallets := newWalletRepoFake()
	transactions := newTransactionRepoFake()
	gateway := &gatewayFake{payURL: "https://sandbox.vnpayment.vn/pay?ref=x"}
	log := logger.InitLogger("payment-test", "error")
	return &fixture{
		svc:          NewService(wallets, transactions, gateway, noTx{}, log, 0.20),
		wallets:      wallets,
		transactions: transactions,
		gateway:      gateway,
	}
}

func TestSettle_WalletMovesFunds(t *testing.T) {
	f := newFixture()
	passenger := uuid.MustNew()
	driver := uuid.MustNew()
	f.wallets.balances[passenger] = 100000
	f.wallets.balances[driver] = 0

	res, err := f.svc.Settle(context.Background(), SettleRequest{
		TripID:      uuid.MustNew(),
		PassengerID: passenger,
		DriverID:    driver,
		Amount:      30000,
		Method:      types.MethodWallet,
	})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}

	if res.Transaction.Status != types.TxCompleted {
		t.Fatalf("transaction status = %s, want COMPLETED", res.Transaction.Status)
	}
	if got := f.wallets.balance(passenger); got != 70000 {
		t.Fatalf("passenger balance = %.0f, want 70000", got)
	}
	// 30000 fare at 0.20 commission leaves the driver 24000.
	if got := f.wallets.balance(driver); got != 24000 {
		t.Fatalf("driver balance = %.0f, want 24000", got)
	}
}

func TestSettle_WalletInsufficientFunds(t *testing.T) {
	f := newFixture()
	passenger := uuid.MustNew()
	driver := uuid.MustNew()
	f.wallets.balances[passenger] = 10000

	_, err := f.svc.Settle(context.Background(), SettleRequest{
		TripID:      uuid.MustNew(),
		PassengerID: passenger,
		DriverID:    driver,
		Amount:      30000,
		Method:      types.MethodWallet,
	})
	if !errors.Is(err, types.ErrInsufficientFunds) {
		t.Fatalf("Settle() error = %v, want ErrInsufficientFunds", err)
	}

	// The balance must be untouched and the transaction marked FAILED.
	if got := f.wallets.balance(passenger); got != 10000 {
		t.Fatalf("passenger balance = %.0f, want unchanged 10000", got)
	}
	txns, _ := f.transactions.ListByUser(context.Background(), passenger, 10, 0)
	if len(txns) != 1 || txns[0].Status != types.TxFailed {
		t.Fatalf("expected one FAILED transaction, got %+v", txns)
	}
}

func TestSettle_CashTouchesNoWallets(t *testing.T) {
	f := newFixture()
	passenger := uuid.MustNew()
	driver := uuid.MustNew()
	f.wallets.balances[passenger] = 5000 // irrelevant for cash
	f.wallets.balances[driver] = 1000

	res, err := f.svc.Settle(context.Background(), SettleRequest{
		TripID:      uuid.MustNew(),
		PassengerID: passenger,
		DriverID:    driver,
		Amount:      30000,
		Method:      types.MethodCash,
	})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	if res.Transaction.Status != types.TxCompleted {
		t.Fatalf("transaction status = %s, want COMPLETED", res.Transaction.Status)
	}

	// The fare changed hands in person; balances stay as they were.
	if got := f.wallets.balance(passenger); got != 5000 {
		t.Fatalf("cash settlement touched the passenger wallet: %.0f", got)
	}
	if got := f.wallets.balance(driver); got != 1000 {
		t.Fatalf("cash settlement touched the driver wallet: %.0f", got)
	}
}

func TestSettle_CashNeedsNoWalletRows(t *testing.T) {
	f := newFixture()

	// Neither party has a wallet; cash settlement must still complete.
	res, err := f.svc.Settle(context.Background(), SettleRequest{
		TripID:      uuid.MustNew(),
		PassengerID: uuid.MustNew(),
		DriverID:    uuid.MustNew(),
		Amount:      30000,
		Method:      types.MethodCash,
	})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	if res.Transaction.Status != types.TxCompleted {
		t.Fatalf("transaction status = %s, want COMPLETED", res.Transaction.Status)
	}
	if len(f.wallets.balances) != 0 {
		t.Fatalf("cash settlement created wallet entries: %v", f.wallets.balances)
	}
}

func TestSettle_GatewayReturnsRedirect(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Settle(context.Background(), SettleRequest{
		TripID:      uuid.MustNew(),
		PassengerID: uuid.MustNew(),
		DriverID:    uuid.MustNew(),
		Amount:      30000,
		Method:      types.MethodVNPay,
	})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	if res.RedirectURL == "" {
		t.Fatal("gateway settlement returned no redirect URL")
	}
	if res.Transaction.Status != types.TxPending {
		t.Fatalf("transaction status = %s, want PENDING until callback", res.Transaction.Status)
	}
}

func TestHandleGatewayCallback_SuccessCreditsDriver(t *testing.T) {
	f := newFixture()
	driver := uuid.MustNew()

	res, err := f.svc.Settle(context.Background(), SettleRequest{
		TripID:      uuid.MustNew(),
		PassengerID: uuid.MustNew(),
		DriverID:    driver,
		Amount:      30000,
		Method:      types.MethodVNPay,
	})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}

	f.gateway.callback = CallbackResult{
		TxnRef:       res.Transaction.ID.String(),
		Amount:       30000,
		Success:      true,
		ResponseCode: "00",
	}
	if err := f.svc.HandleGatewayCallback(context.Background(), url.Values{}); err != nil {
		t.Fatalf("HandleGatewayCallback() error: %v", err)
	}

	txn, _ := f.transactions.GetByID(context.Background(), res.Transaction.ID)
	if txn.Status != types.TxCompleted {
		t.Fatalf("transaction status = %s, want COMPLETED", txn.Status)
	}
	if got := f.wallets.balance(driver); got != 24000 {
		t.Fatalf("driver balance = %.0f, want 24000", got)
	}

	// Replayed callback is acknowledged without double-crediting.
	if err := f.svc.HandleGatewayCallback(context.Background(), url.Values{}); err != nil {
		t.Fatalf("replayed callback error: %v", err)
	}
	if got := f.wallets.balance(driver); got != 24000 {
		t.Fatalf("driver balance after replay = %.0f, want 24000", got)
	}
}

func TestHandleGatewayCallback_DeclineFailsTransaction(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Settle(context.Background(), SettleRequest{
		TripID:      uuid.MustNew(),
		PassengerID: uuid.MustNew(),
		DriverID:    uuid.MustNew(),
		Amount:      30000,
		Method:      types.MethodVNPay,
	})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}

	f.gateway.callback = CallbackResult{
		TxnRef:       res.Transaction.ID.String(),
		Amount:       30000,
		Success:      false,
		ResponseCode: "24",
	}
	if err := f.svc.HandleGatewayCallback(context.Background(), url.Values{}); err != nil {
		t.Fatalf("declined callback must be acknowledged, got: %v", err)
	}

	txn, _ := f.transactions.GetByID(context.Background(), res.Transaction.ID)
	if txn.Status != types.TxFailed {
		t.Fatalf("transaction status = %s, want FAILED", txn.Status)
	}
}

func TestHandleGatewayCallback_AmountMismatch(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Settle(context.Background(), SettleRequest{
		TripID:      uuid.MustNew(),
		PassengerID: uuid.MustNew(),
		DriverID:    uuid.MustNew(),
		Amount:      30000,
		Method:      types.MethodVNPay,
	})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}

	f.gateway.callback = CallbackResult{
		TxnRef:  res.Transaction.ID.String(),
		Amount:  99999,
		Success: true,
	}
	if err := f.svc.HandleGatewayCallback(context.Background(), url.Values{}); err == nil {
		t.Fatal("HandleGatewayCallback() accepted a mismatched amount")
	}

	txn, _ := f.transactions.GetByID(context.Background(), res.Transaction.ID)
	if txn.Status != types.TxFailed {
		t.Fatalf("transaction status = %s, want FAILED", txn.Status)
	}
}

func TestHandleGatewayCallback_BadSignatureFailsTransaction(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Settle(context.Background(), SettleRequest{
		TripID:      uuid.MustNew(),
		PassengerID: uuid.MustNew(),
		DriverID:    uuid.MustNew(),
		Amount:      30000,
		Method:      types.MethodVNPay,
	})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}

	f.gateway.verifErr = types.ErrSignatureInvalid
	params := url.Values{}
	params.Set("vnp_TxnRef", res.Transaction.ID.String())

	err = f.svc.HandleGatewayCallback(context.Background(), params)
	if !errors.Is(err, types.ErrSignatureInvalid) {
		t.Fatalf("HandleGatewayCallback() error = %v, want ErrSignatureInvalid", err)
	}

	// The referenced transaction must not stay PENDING.
	txn, _ := f.transactions.GetByID(context.Background(), res.Transaction.ID)
	if txn.Status != types.TxFailed {
		t.Fatalf("transaction status = %s, want FAILED", txn.Status)
	}
}

func TestTopUp(t *testing.T) {
	f := newFixture()
	owner := uuid.MustNew()
	f.wallets.balances[owner] = 0

	wallet, err := f.svc.TopUp(context.Background(), owner, 50000)
	if err != nil {
		t.Fatalf("TopUp() error: %v", err)
	}
	if wallet.Balance != 50000 {
		t.Fatalf("balance after top-up = %.0f, want 50000", wallet.Balance)
	}

	if _, err := f.svc.TopUp(context.Background(), owner, -100); err == nil {
		t.Fatal("TopUp() accepted a negative amount")
	}
}
