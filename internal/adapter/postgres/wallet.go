package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/postgres"
	"github.com/uit-go/ridehail/pkg/uuid"
)

type WalletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepo(db *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{db: db}
}

func (r *WalletRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) (models.Wallet, error) {
	q := TxorDB(ctx, r.db)

	var wallet models.Wallet
	query := `SELECT owner_id, balance, currency, updated_at FROM wallets WHERE owner_id = $1;`

	err := q.QueryRow(ctx, query, ownerID).Scan(&wallet.OwnerID, &wallet.Balance, &wallet.Currency, &wallet.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Wallet{}, types.ErrWalletNotFound
		}
		return models.Wallet{}, fmt.Errorf("wallet repo: GetByOwner: %w", err)
	}
	return wallet, nil
}

// ApplyDelta moves the balance in one guarded statement. The balance
// CHECK constraint turns an overdraft into ErrInsufficientFunds without
// a read-modify-write race.
func (r *WalletRepo) ApplyDelta(ctx context.Context, ownerID uuid.UUID, delta float64) error {
	q := TxorDB(ctx, r.db)

	query := `
        UPDATE wallets
        SET balance = balance + $2, updated_at = now()
        WHERE owner_id = $1;`

	tag, err := q.Exec(ctx, query, ownerID, delta)
	if err != nil {
		if postgres.IsCheckViolation(err) {
			return types.ErrInsufficientFunds
		}
		return fmt.Errorf("wallet repo: ApplyDelta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrWalletNotFound
	}
	return nil
}

// Create opens a zero-balance wallet. Duplicate creation is a no-op.
func (r *WalletRepo) Create(ctx context.Context, ownerID uuid.UUID, currency string) error {
	q := TxorDB(ctx, r.db)

	query := `
        INSERT INTO wallets (owner_id, balance, currency, updated_at)
        VALUES ($1, 0, $2, now())
        ON CONFLICT (owner_id) DO NOTHING;`

	if _, err := q.Exec(ctx, query, ownerID, currency); err != nil {
		return fmt.Errorf("wallet repo: Create: %w", err)
	}
	return nil
}
