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

type TripRepo struct {
	db *pgxpool.Pool
}

func NewTripRepo(db *pgxpool.Pool) *TripRepo {
	return &TripRepo{db: db}
}

func (r *TripRepo) Create(ctx context.Context, trip *models.Trip) error {
	q := TxorDB(ctx, r.db)

	query := `
        INSERT INTO trips (id, passenger_id, status, vehicle_type, payment_method,
                           pickup_address, pickup_lat, pickup_lon,
                           dropoff_address, dropoff_lat, dropoff_lon,
                           estimated_fare, estimated_distance_km, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);`

	_, err := q.Exec(ctx, query,
		trip.ID, trip.PassengerID, trip.Status, trip.VehicleType, trip.PaymentMethod,
		trip.Pickup.Address, trip.Pickup.Latitude, trip.Pickup.Longitude,
		trip.Dropoff.Address, trip.Dropoff.Latitude, trip.Dropoff.Longitude,
		trip.EstimatedFare, trip.EstimatedDistanceKm, trip.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("trip repo: Create: %w", err)
	}

	for _, change := range trip.StatusHistory {
		if err := r.AppendStatusChange(ctx, trip.ID, change); err != nil {
			return err
		}
	}
	return nil
}

func (r *TripRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)

	var trip models.Trip
	query := `
        SELECT id, passenger_id, driver_id, status, vehicle_type, payment_method,
               pickup_address, pickup_lat, pickup_lon,
               dropoff_address, dropoff_lat, dropoff_lon,
               estimated_fare, estimated_distance_km, actual_fare, actual_distance_km,
               pending_settlement, cancellation_reason, created_at
        FROM trips
        WHERE id = $1;`

	err := q.QueryRow(ctx, query, id).Scan(
		&trip.ID, &trip.PassengerID, &trip.DriverID, &trip.Status, &trip.VehicleType, &trip.PaymentMethod,
		&trip.Pickup.Address, &trip.Pickup.Latitude, &trip.Pickup.Longitude,
		&trip.Dropoff.Address, &trip.Dropoff.Latitude, &trip.Dropoff.Longitude,
		&trip.EstimatedFare, &trip.EstimatedDistanceKm, &trip.ActualFare, &trip.ActualDistanceKm,
		&trip.PendingSettlement, &trip.CancellationReason, &trip.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrTripNotFound
		}
		return nil, fmt.Errorf("trip repo: GetByID: %w", err)
	}

	trip.StatusHistory, err = r.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (r *TripRepo) Update(ctx context.Context, trip *models.Trip) error {
	q := TxorDB(ctx, r.db)

	query := `
        UPDATE trips
        SET status = $2,
            driver_id = $3,
            actual_fare = $4,
            actual_distance_km = $5,
            pending_settlement = $6,
            cancellation_reason = $7
        WHERE id = $1;`

	tag, err := q.Exec(ctx, query,
		trip.ID, trip.Status, trip.DriverID,
		trip.ActualFare, trip.ActualDistanceKm,
		trip.PendingSettlement, trip.CancellationReason,
	)
	if err != nil {
		return fmt.Errorf("trip repo: Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrTripNotFound
	}
	return nil
}

func (r *TripRepo) AppendStatusChange(ctx context.Context, tripID uuid.UUID, change models.StatusChange) error {
	q := TxorDB(ctx, r.db)

	query := `
        INSERT INTO trip_status_history (trip_id, from_status, to_status, changed_at, reason)
        VALUES ($1, NULLIF($2, ''), $3, $4, $5);`

	_, err := q.Exec(ctx, query, tripID, string(change.From), change.To, change.At, change.Reason)
	if err != nil {
		return fmt.Errorf("trip repo: AppendStatusChange: %w", err)
	}
	return nil
}

func (r *TripRepo) History(ctx context.Context, tripID uuid.UUID) ([]models.StatusChange, error) {
	q := TxorDB(ctx, r.db)

	query := `
        SELECT COALESCE(from_status, ''), to_status, changed_at, COALESCE(reason, '')
        FROM trip_status_history
        WHERE trip_id = $1
        ORDER BY changed_at ASC, id ASC;`

	rows, err := q.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("trip repo: History: %w", err)
	}
	defer rows.Close()

	var history []models.StatusChange
	for rows.Next() {
		var change models.StatusChange
		if err := rows.Scan(&change.From, &change.To, &change.At, &change.Reason); err != nil {
			return nil, fmt.Errorf("trip repo: History scan: %w", err)
		}
		history = append(history, change)
	}
	return history, rows.Err()
}

func (r *TripRepo) ListByPassenger(ctx context.Context, passengerID uuid.UUID, limit, offset int) ([]models.Trip, error) {
	q := TxorDB(ctx, r.db)

	query := `
        SELECT id, passenger_id, driver_id, status, vehicle_type, payment_method,
               pickup_address, pickup_lat, pickup_lon,
               dropoff_address, dropoff_lat, dropoff_lon,
               estimated_fare, estimated_distance_km, actual_fare, actual_distance_km,
               pending_settlement, cancellation_reason, created_at
        FROM trips
        WHERE passenger_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3;`

	rows, err := q.Query(ctx, query, passengerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("trip repo: ListByPassenger: %w", err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		var trip models.Trip
		if err := rows.Scan(
			&trip.ID, &trip.PassengerID, &trip.DriverID, &trip.Status, &trip.VehicleType, &trip.PaymentMethod,
			&trip.Pickup.Address, &trip.Pickup.Latitude, &trip.Pickup.Longitude,
			&trip.Dropoff.Address, &trip.Dropoff.Latitude, &trip.Dropoff.Longitude,
			&trip.EstimatedFare, &trip.EstimatedDistanceKm, &trip.ActualFare, &trip.ActualDistanceKm,
			&trip.PendingSettlement, &trip.CancellationReason, &trip.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("trip repo: ListByPassenger scan: %w", err)
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func (r *TripRepo) ActiveTripForDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)

	var id uuid.UUID
	query := `
        SELECT id FROM trips
        WHERE driver_id = $1 AND status IN ('ACCEPTED', 'IN_PROGRESS')
        ORDER BY created_at DESC
        LIMIT 1;`

	err := q.QueryRow(ctx, query, driverID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrTripNotFound
		}
		return nil, fmt.Errorf("trip repo: ActiveTripForDriver: %w", err)
	}
	return r.GetByID(ctx, id)
}
