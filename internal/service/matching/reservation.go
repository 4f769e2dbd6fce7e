package matching

import (
	"context"
	"sync"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// ReservationStore implements the short-lived matching lock on drivers.
// TryReserve is compare-and-swap: exactly one concurrent caller wins.
// The in-memory implementation is the default; a Redis SET NX adapter
// satisfies the same interface for multi-instance deployments.
type ReservationStore interface {
	// TryReserve places a reservation for the driver unless an unexpired
	// one already exists. Returns false on conflict, never an error for
	// a lost race.
	TryReserve(ctx context.Context, driverID, tripID uuid.UUID, ttl time.Duration) (bool, error)

	// Release removes the driver's reservation if it belongs to tripID.
	Release(ctx context.Context, driverID, tripID uuid.UUID) error

	// ReleaseByTrip removes whatever reservation tripID holds, if any.
	ReleaseByTrip(ctx context.Context, tripID uuid.UUID) error

	// Get returns the active reservation for the driver, or
	// types.ErrReservationNotFound.
	Get(ctx context.Context, driverID uuid.UUID) (models.DriverReservation, error)
}

// MemoryReservationStore keeps reservations in a mutex-guarded map.
// Expiry is checked inside the critical section so a stale reservation
// can never block a fresh TryReserve.
type MemoryReservationStore struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]models.DriverReservation
	byTrip map[uuid.UUID]uuid.UUID // trip -> reserved driver

	now func() time.Time
}

func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{
		byID:   make(map[uuid.UUID]models.DriverReservation),
		byTrip: make(map[uuid.UUID]uuid.UUID),
		now:    time.Now,
	}
}

func (s *MemoryReservationStore) TryReserve(_ context.Context, driverID, tripID uuid.UUID, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.byID[driverID]; ok && !existing.Expired(now) {
		return false, nil
	}

	s.byID[driverID] = models.DriverReservation{
		DriverID:   driverID,
		TripID:     tripID,
		ReservedAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	s.byTrip[tripID] = driverID
	return true, nil
}

func (s *MemoryReservationStore) Release(_ context.Context, driverID, tripID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[driverID]
	if !ok || existing.TripID != tripID {
		return nil
	}
	delete(s.byID, driverID)
	delete(s.byTrip, tripID)
	return nil
}

func (s *MemoryReservationStore) ReleaseByTrip(_ context.Context, tripID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	driverID, ok := s.byTrip[tripID]
	if !ok {
		return nil
	}
	if existing, found := s.byID[driverID]; found && existing.TripID == tripID {
		delete(s.byID, driverID)
	}
	delete(s.byTrip, tripID)
	return nil
}

func (s *MemoryReservationStore) Get(_ context.Context, driverID uuid.UUID) (models.DriverReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[driverID]
	if !ok || existing.Expired(s.now()) {
		return models.DriverReservation{}, types.ErrReservationNotFound
	}
	return existing, nil
}
