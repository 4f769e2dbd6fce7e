package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/logger"
	"github.com/uit-go/ridehail/pkg/uuid"
)

type finderStub struct {
	drivers []models.NearbyDriver
	err     error
}

func (f *finderStub) FindNearby(_ context.Context, _, _, radiusKm float64, _ int) ([]models.NearbyDriver, error) {
	if f.err != nil {
		return nil, f.err
	}
	var inRange []models.NearbyDriver
	for _, d := range f.drivers {
		if d.DistanceKm <= radiusKm {
			inRange = append(inRange, d)
		}
	}
	return inRange, nil
}

type directoryStub struct {
	unavailable map[uuid.UUID]bool
	err         error
}

func (d *directoryStub) IsAvailable(_ context.Context, driverID uuid.UUID, _ types.VehicleType) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return !d.unavailable[driverID], nil
}

func newTestMatcher(finder NearbyFinder, dir DriverDirectory, store ReservationStore) *Matcher {
	log := logger.InitLogger("matching-test", "error")
	return NewMatcher(finder, dir, store, log, 15*time.Second, 20)
}

// driversAt builds a sorted candidate list at the given distances.
func driversAt(distances ...float64) ([]models.NearbyDriver, []uuid.UUID) {
	drivers := make([]models.NearbyDriver, len(distances))
	ids := make([]uuid.UUID, len(distances))
	for i, km := range distances {
		ids[i] = uuid.MustNew()
		drivers[i] = models.NearbyDriver{DriverID: ids[i], DistanceKm: km}
	}
	return drivers, ids
}

func TestMatcher_ReservesNearestAvailable(t *testing.T) {
	drivers, ids := driversAt(0.5, 1.2, 2.0, 4.5)
	store := NewMemoryReservationStore()
	m := newTestMatcher(&finderStub{drivers: drivers}, &directoryStub{}, store)

	tripID := uuid.MustNew()
	match, err := m.FindAndReserve(context.Background(), Request{
		TripID:      tripID,
		VehicleType: types.VehicleBike,
		RadiusKm:    3.0,
	})
	if err != nil {
		t.Fatalf("FindAndReserve() error: %v", err)
	}
	if match.Driver.DriverID != ids[0] {
		t.Fatalf("matched driver at %.1f km, want the one at 0.5 km", match.Driver.DistanceKm)
	}
	if match.Reservation.TripID != tripID {
		t.Fatalf("reservation trip = %s, want %s", match.Reservation.TripID, tripID)
	}

	// The match must leave a live reservation behind.
	res, err := store.Get(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("Get() reservation error: %v", err)
	}
	if res.TripID != tripID {
		t.Fatalf("stored reservation trip = %s, want %s", res.TripID, tripID)
	}
}

func TestMatcher_SkipsUnavailableAndReserved(t *testing.T) {
	drivers, ids := driversAt(0.5, 1.2, 2.0, 4.5)
	store := NewMemoryReservationStore()

	// Nearest driver is busy, second-nearest is already reserved by
	// another trip.
	dir := &directoryStub{unavailable: map[uuid.UUID]bool{ids[0]: true}}
	if ok, _ := store.TryReserve(context.Background(), ids[1], uuid.MustNew(), 15*time.Second); !ok {
		t.Fatal("pre-reserving second driver failed")
	}

	m := newTestMatcher(&finderStub{drivers: drivers}, dir, store)
	match, err := m.FindAndReserve(context.Background(), Request{
		TripID:      uuid.MustNew(),
		VehicleType: types.VehicleCar,
		RadiusKm:    3.0,
	})
	if err != nil {
		t.Fatalf("FindAndReserve() error: %v", err)
	}
	if match.Driver.DriverID != ids[2] {
		t.Fatalf("matched driver at %.1f km, want the one at 2.0 km", match.Driver.DistanceKm)
	}
}

func TestMatcher_HonorsExclusions(t *testing.T) {
	drivers, ids := driversAt(0.5, 1.2)
	m := newTestMatcher(&finderStub{drivers: drivers}, &directoryStub{}, NewMemoryReservationStore())

	match, err := m.FindAndReserve(context.Background(), Request{
		TripID:      uuid.MustNew(),
		VehicleType: types.VehicleBike,
		RadiusKm:    3.0,
		Exclude:     []uuid.UUID{ids[0]},
	})
	if err != nil {
		t.Fatalf("FindAndReserve() error: %v", err)
	}
	if match.Driver.DriverID != ids[1] {
		t.Fatal("excluded driver was matched")
	}
}

func TestMatcher_NoCandidate(t *testing.T) {
	// Only driver is outside the radius.
	drivers, _ := driversAt(4.5)
	m := newTestMatcher(&finderStub{drivers: drivers}, &directoryStub{}, NewMemoryReservationStore())

	_, err := m.FindAndReserve(context.Background(), Request{
		TripID:      uuid.MustNew(),
		VehicleType: types.VehicleBike,
		RadiusKm:    3.0,
	})
	if !errors.Is(err, types.ErrNoCandidate) {
		t.Fatalf("FindAndReserve() error = %v, want ErrNoCandidate", err)
	}
}

func TestMatcher_DirectoryErrorSkipsCandidate(t *testing.T) {
	drivers, _ := driversAt(0.5)
	dir := &directoryStub{err: errors.New("directory down")}
	m := newTestMatcher(&finderStub{drivers: drivers}, dir, NewMemoryReservationStore())

	// A failing availability check degrades to no candidate, not a hard
	// failure of the matching attempt.
	_, err := m.FindAndReserve(context.Background(), Request{
		TripID:      uuid.MustNew(),
		VehicleType: types.VehicleBike,
		RadiusKm:    3.0,
	})
	if !errors.Is(err, types.ErrNoCandidate) {
		t.Fatalf("FindAndReserve() error = %v, want ErrNoCandidate", err)
	}
}

func TestMatcher_ConfirmConsumesReservation(t *testing.T) {
	drivers, ids := driversAt(0.5)
	store := NewMemoryReservationStore()
	m := newTestMatcher(&finderStub{drivers: drivers}, &directoryStub{}, store)

	tripID := uuid.MustNew()
	if _, err := m.FindAndReserve(context.Background(), Request{
		TripID:      tripID,
		VehicleType: types.VehicleBike,
		RadiusKm:    3.0,
	}); err != nil {
		t.Fatalf("FindAndReserve() error: %v", err)
	}

	// Confirming against the wrong trip is rejected.
	if err := m.Confirm(context.Background(), ids[0], uuid.MustNew()); !errors.Is(err, types.ErrReservationConflict) {
		t.Fatalf("Confirm() with wrong trip error = %v, want ErrReservationConflict", err)
	}

	if err := m.Confirm(context.Background(), ids[0], tripID); err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}
	// Consumed: a second confirm finds nothing.
	if err := m.Confirm(context.Background(), ids[0], tripID); !errors.Is(err, types.ErrReservationNotFound) {
		t.Fatalf("second Confirm() error = %v, want ErrReservationNotFound", err)
	}
}

func TestMatcher_ReleaseIsIdempotent(t *testing.T) {
	drivers, ids := driversAt(0.5)
	store := NewMemoryReservationStore()
	m := newTestMatcher(&finderStub{drivers: drivers}, &directoryStub{}, store)

	tripID := uuid.MustNew()
	if _, err := m.FindAndReserve(context.Background(), Request{
		TripID:      tripID,
		VehicleType: types.VehicleBike,
		RadiusKm:    3.0,
	}); err != nil {
		t.Fatalf("FindAndReserve() error: %v", err)
	}

	if err := m.Release(context.Background(), tripID); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if err := m.Release(context.Background(), tripID); err != nil {
		t.Fatalf("second Release() error: %v", err)
	}
	if _, err := store.Get(context.Background(), ids[0]); !errors.Is(err, types.ErrReservationNotFound) {
		t.Fatalf("reservation survived release: %v", err)
	}
}
