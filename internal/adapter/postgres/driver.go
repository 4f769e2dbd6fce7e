package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// DriverRepo is the driver directory: registration data plus the online
// flag the matcher filters on.
type DriverRepo struct {
	db *pgxpool.Pool
}

func NewDriverRepo(db *pgxpool.Pool) *DriverRepo {
	return &DriverRepo{db: db}
}

// IsAvailable reports whether the driver is online, drives the requested
// vehicle type, and has no trip in flight.
func (r *DriverRepo) IsAvailable(ctx context.Context, driverID uuid.UUID, vehicle types.VehicleType) (bool, error) {
	q := TxorDB(ctx, r.db)

	var available bool
	query := `
        SELECT d.is_online
               AND d.vehicle_type = $2
               AND NOT EXISTS (
                   SELECT 1 FROM trips t
                   WHERE t.driver_id = d.id AND t.status IN ('ACCEPTED', 'IN_PROGRESS')
               )
        FROM drivers d
        WHERE d.id = $1;`

	err := q.QueryRow(ctx, query, driverID, vehicle).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("driver repo: IsAvailable: %w", err)
	}
	return available, nil
}

// SetOnline flips the driver's online flag.
func (r *DriverRepo) SetOnline(ctx context.Context, driverID uuid.UUID, online bool) error {
	q := TxorDB(ctx, r.db)

	query := `UPDATE drivers SET is_online = $2, updated_at = now() WHERE id = $1;`

	tag, err := q.Exec(ctx, query, driverID, online)
	if err != nil {
		return fmt.Errorf("driver repo: SetOnline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

// VehicleType returns the vehicle class the driver is registered with.
func (r *DriverRepo) VehicleType(ctx context.Context, driverID uuid.UUID) (types.VehicleType, error) {
	q := TxorDB(ctx, r.db)

	var vehicle types.VehicleType
	query := `SELECT vehicle_type FROM drivers WHERE id = $1;`

	err := q.QueryRow(ctx, query, driverID).Scan(&vehicle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.ErrNotFound
		}
		return "", fmt.Errorf("driver repo: VehicleType: %w", err)
	}
	return vehicle, nil
}
