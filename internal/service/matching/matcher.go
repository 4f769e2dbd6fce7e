package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/metrics"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// NearbyFinder is the slice of the location service the matcher needs.
type NearbyFinder interface {
	FindNearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.NearbyDriver, error)
}

// DriverDirectory answers availability and vehicle questions about drivers.
type DriverDirectory interface {
	// IsAvailable reports whether the driver is online, matches the
	// requested vehicle type, and has no trip in flight.
	IsAvailable(ctx context.Context, driverID uuid.UUID, vehicle types.VehicleType) (bool, error)
}

// Request describes one matching attempt for a trip.
type Request struct {
	TripID      uuid.UUID
	PickupLat   float64
	PickupLon   float64
	VehicleType types.VehicleType
	RadiusKm    float64

	// Exclude lists drivers who already declined or were released for this
	// trip; they are skipped even if geographically closest.
	Exclude []uuid.UUID
}

// Match is a successful reservation of a nearby driver.
type Match struct {
	Driver      models.NearbyDriver
	Reservation models.DriverReservation
}

type Matcher struct {
	finder       NearbyFinder
	directory    DriverDirectory
	reservations ReservationStore
	log          logger.Logger

	reservationTTL time.Duration
	candidateLimit int
}

func NewMatcher(finder NearbyFinder, directory DriverDirectory, reservations ReservationStore, log logger.Logger, reservationTTL time.Duration, candidateLimit int) *Matcher {
	return &Matcher{
		finder:         finder,
		directory:      directory,
		reservations:   reservations,
		log:            log,
		reservationTTL: reservationTTL,
		candidateLimit: candidateLimit,
	}
}

// FindAndReserve queries nearby drivers, walks them nearest first, and
// reserves the first available one. A reservation conflict moves on to the
// next candidate instead of failing the attempt. Returns
// types.ErrNoCandidate when the list is exhausted; the caller decides
// whether to widen the radius and retry.
func (m *Matcher) FindAndReserve(ctx context.Context, req Request) (Match, error) {
	ctx = wrap.WithAction(ctx, "matching.FindAndReserve")
	ctx = wrap.WithTripID(ctx, req.TripID.String())

	candidates, err := m.finder.FindNearby(ctx, req.PickupLat, req.PickupLon, req.RadiusKm, m.candidateLimit)
	if err != nil {
		metrics.RecordMatchAttempt("error")
		return Match{}, wrap.Error(ctx, fmt.Errorf("find nearby drivers: %w", err))
	}

	excluded := make(map[uuid.UUID]struct{}, len(req.Exclude))
	for _, id := range req.Exclude {
		excluded[id] = struct{}{}
	}

	for _, candidate := range candidates {
		if _, skip := excluded[candidate.DriverID]; skip {
			continue
		}

		ok, err := m.directory.IsAvailable(ctx, candidate.DriverID, req.VehicleType)
		if err != nil {
			m.log.Warn(ctx, "availability check failed, skipping candidate", "driver_id", candidate.DriverID)
			continue
		}
		if !ok {
			continue
		}

		reserved, err := m.reservations.TryReserve(ctx, candidate.DriverID, req.TripID, m.reservationTTL)
		if err != nil {
			metrics.RecordMatchAttempt("error")
			return Match{}, wrap.Error(ctx, fmt.Errorf("reserve driver: %w", err))
		}
		if !reserved {
			// Another trip won the race for this driver.
			metrics.ReservationConflictsTotal.Inc()
			continue
		}

		res, err := m.reservations.Get(ctx, candidate.DriverID)
		if err != nil {
			// Reservation expired between placement and read, treat as lost.
			metrics.ReservationConflictsTotal.Inc()
			continue
		}

		m.log.Info(ctx, "driver reserved",
			"driver_id", candidate.DriverID,
			"distance_km", candidate.DistanceKm,
		)
		metrics.RecordMatchAttempt("matched")
		return Match{Driver: candidate, Reservation: res}, nil
	}

	metrics.RecordMatchAttempt("no_candidate")
	return Match{}, wrap.Error(ctx, types.ErrNoCandidate)
}

// Release frees the reservation a trip holds. Safe to call when no
// reservation exists.
func (m *Matcher) Release(ctx context.Context, tripID uuid.UUID) error {
	ctx = wrap.WithAction(ctx, "matching.Release")

	if err := m.reservations.ReleaseByTrip(ctx, tripID); err != nil {
		return wrap.Error(ctx, fmt.Errorf("release reservation: %w", err))
	}
	return nil
}

// Confirm validates that the driver's active reservation belongs to the
// trip, then consumes it. Used by trip assignment so an expired or
// foreign reservation cannot be turned into an assignment.
func (m *Matcher) Confirm(ctx context.Context, driverID, tripID uuid.UUID) error {
	ctx = wrap.WithAction(ctx, "matching.Confirm")

	res, err := m.reservations.Get(ctx, driverID)
	if err != nil {
		return wrap.Error(ctx, err)
	}
	if res.TripID != tripID {
		return wrap.Error(ctx, types.ErrReservationConflict)
	}
	if err := m.reservations.Release(ctx, driverID, tripID); err != nil {
		return wrap.Error(ctx, fmt.Errorf("consume reservation: %w", err))
	}
	return nil
}
