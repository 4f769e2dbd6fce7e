package matching

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/uuid"
)

func TestMemoryReservationStore_SingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReservationStore()
	driverID := uuid.MustNew()

	const trips = 50
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < trips; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.TryReserve(ctx, driverID, uuid.MustNew(), 15*time.Second)
			if err != nil {
				t.Errorf("TryReserve() error: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("%d trips reserved the same driver, want exactly 1", got)
	}
}

func TestMemoryReservationStore_ExpiryFreesDriver(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReservationStore()

	current := time.Now()
	store.now = func() time.Time { return current }

	driverID := uuid.MustNew()
	firstTrip := uuid.MustNew()
	secondTrip := uuid.MustNew()

	ok, err := store.TryReserve(ctx, driverID, firstTrip, 15*time.Second)
	if err != nil || !ok {
		t.Fatalf("first TryReserve() = (%v, %v), want (true, nil)", ok, err)
	}

	// While the reservation is live the driver is locked.
	ok, err = store.TryReserve(ctx, driverID, secondTrip, 15*time.Second)
	if err != nil {
		t.Fatalf("TryReserve() error: %v", err)
	}
	if ok {
		t.Fatal("second trip reserved a driver with a live reservation")
	}

	// After the TTL a new reservation succeeds without explicit cleanup.
	current = current.Add(16 * time.Second)
	ok, err = store.TryReserve(ctx, driverID, secondTrip, 15*time.Second)
	if err != nil || !ok {
		t.Fatalf("TryReserve() after expiry = (%v, %v), want (true, nil)", ok, err)
	}

	res, err := store.Get(ctx, driverID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if res.TripID != secondTrip {
		t.Fatalf("reservation belongs to %s, want %s", res.TripID, secondTrip)
	}
}

func TestMemoryReservationStore_ReleaseChecksOwner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReservationStore()

	driverID := uuid.MustNew()
	ownerTrip := uuid.MustNew()
	otherTrip := uuid.MustNew()

	if ok, _ := store.TryReserve(ctx, driverID, ownerTrip, 15*time.Second); !ok {
		t.Fatal("TryReserve() failed on empty store")
	}

	// A trip that does not own the reservation cannot release it.
	if err := store.Release(ctx, driverID, otherTrip); err != nil {
		t.Fatalf("Release() by non-owner error: %v", err)
	}
	if _, err := store.Get(ctx, driverID); err != nil {
		t.Fatalf("reservation vanished after non-owner release: %v", err)
	}

	if err := store.Release(ctx, driverID, ownerTrip); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if _, err := store.Get(ctx, driverID); !errors.Is(err, types.ErrReservationNotFound) {
		t.Fatalf("Get() after release error = %v, want ErrReservationNotFound", err)
	}
}

func TestMemoryReservationStore_ReleaseByTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReservationStore()

	driverID := uuid.MustNew()
	tripID := uuid.MustNew()

	if ok, _ := store.TryReserve(ctx, driverID, tripID, 15*time.Second); !ok {
		t.Fatal("TryReserve() failed on empty store")
	}
	if err := store.ReleaseByTrip(ctx, tripID); err != nil {
		t.Fatalf("ReleaseByTrip() error: %v", err)
	}
	if _, err := store.Get(ctx, driverID); !errors.Is(err, types.ErrReservationNotFound) {
		t.Fatalf("Get() after ReleaseByTrip error = %v, want ErrReservationNotFound", err)
	}

	// Releasing a trip with no reservation is a no-op.
	if err := store.ReleaseByTrip(ctx, uuid.MustNew()); err != nil {
		t.Fatalf("ReleaseByTrip() on unknown trip error: %v", err)
	}
}
