package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/uuid"
)

type TransactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepo(db *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) Create(ctx context.Context, txn models.Transaction) error {
	q := TxorDB(ctx, r.db)

	query := `
        INSERT INTO transactions (id, trip_id, payer_id, payee_id, amount, method, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err := q.Exec(ctx, query,
		txn.ID, txn.TripID, txn.PayerID, txn.PayeeID,
		txn.Amount, txn.Method, txn.Status, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("transaction repo: Create: %w", err)
	}
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	q := TxorDB(ctx, r.db)

	var txn models.Transaction
	query := `
        SELECT id, trip_id, payer_id, payee_id, amount, method, status,
               COALESCE(failure_reason, ''), created_at, completed_at
        FROM transactions
        WHERE id = $1;`

	err := q.QueryRow(ctx, query, id).Scan(
		&txn.ID, &txn.TripID, &txn.PayerID, &txn.PayeeID,
		&txn.Amount, &txn.Method, &txn.Status,
		&txn.FailureReason, &txn.CreatedAt, &txn.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Transaction{}, types.ErrTransactionNotFound
		}
		return models.Transaction{}, fmt.Errorf("transaction repo: GetByID: %w", err)
	}
	return txn, nil
}

// Finalize moves a PENDING transaction to its terminal status. The WHERE
// clause keeps finalized transactions immutable even under concurrent
// callbacks.
func (r *TransactionRepo) Finalize(ctx context.Context, id uuid.UUID, status types.TransactionStatus, failureReason string) error {
	q := TxorDB(ctx, r.db)

	query := `
        UPDATE transactions
        SET status = $2, failure_reason = NULLIF($3, ''), completed_at = now()
        WHERE id = $1 AND status = 'PENDING';`

	tag, err := q.Exec(ctx, query, id, status, failureReason)
	if err != nil {
		return fmt.Errorf("transaction repo: Finalize: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return types.ErrTransactionFinalized
	}
	return nil
}

func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	q := TxorDB(ctx, r.db)

	query := `
        SELECT id, trip_id, payer_id, payee_id, amount, method, status,
               COALESCE(failure_reason, ''), created_at, completed_at
        FROM transactions
        WHERE payer_id = $1 OR payee_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3;`

	rows, err := q.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transaction repo: ListByUser: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(
			&txn.ID, &txn.TripID, &txn.PayerID, &txn.PayeeID,
			&txn.Amount, &txn.Method, &txn.Status,
			&txn.FailureReason, &txn.CreatedAt, &txn.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("transaction repo: ListByUser scan: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
