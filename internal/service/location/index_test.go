package location

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// Ho Chi Minh City center, used as query origin in the tests below.
const (
	originLat = 10.7769
	originLon = 106.7009
)

// offsetKm returns a point approximately km kilometers north of the origin.
func offsetKm(km float64) (lat, lon float64) {
	return originLat + km/111.0, originLon
}

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		{"same point", originLat, originLon, originLat, originLon, 0, 0.001},
		{"hcmc to hanoi", 10.7769, 106.7009, 21.0285, 105.8542, 1137, 10},
		{"one degree latitude", 0, 0, 1, 0, 111.19, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.tolKm {
				t.Fatalf("HaversineKm() = %.3f, want %.3f ± %.3f", got, tt.wantKm, tt.tolKm)
			}
		})
	}
}

func TestMemoryStore_NearbySortedByDistance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5 * time.Minute)

	distances := []float64{4.5, 0.5, 2.0, 1.2}
	ids := make([]uuid.UUID, len(distances))
	for i, km := range distances {
		lat, lon := offsetKm(km)
		ids[i] = uuid.MustNew()
		err := store.Upsert(ctx, models.DriverPosition{
			DriverID:   ids[i],
			Latitude:   lat,
			Longitude:  lon,
			RecordedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
	}

	got, err := store.Nearby(ctx, originLat, originLon, 3.0, 10)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}

	// 4.5 km driver is outside the 3 km radius.
	if len(got) != 3 {
		t.Fatalf("Nearby() returned %d drivers, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].DistanceKm < got[i-1].DistanceKm {
			t.Fatalf("results not sorted ascending: %.2f before %.2f", got[i-1].DistanceKm, got[i].DistanceKm)
		}
	}
	if got[0].DriverID != ids[1] {
		t.Fatalf("nearest driver = %s, want %s", got[0].DriverID, ids[1])
	}
}

func TestMemoryStore_NearbyLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5 * time.Minute)

	for i := 0; i < 10; i++ {
		lat, lon := offsetKm(float64(i) * 0.1)
		if err := store.Upsert(ctx, models.DriverPosition{
			DriverID:   uuid.MustNew(),
			Latitude:   lat,
			Longitude:  lon,
			RecordedAt: time.Now(),
		}); err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
	}

	got, err := store.Nearby(ctx, originLat, originLon, 5, 3)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Nearby() returned %d drivers, want limit of 3", len(got))
	}
}

func TestMemoryStore_OutOfOrderUpdateIgnored(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5 * time.Minute)
	driverID := uuid.MustNew()
	now := time.Now()

	fresh := models.DriverPosition{DriverID: driverID, Latitude: originLat, Longitude: originLon, RecordedAt: now}
	if err := store.Upsert(ctx, fresh); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	staleLat, staleLon := offsetKm(2.0)
	stale := models.DriverPosition{DriverID: driverID, Latitude: staleLat, Longitude: staleLon, RecordedAt: now.Add(-30 * time.Second)}
	if err := store.Upsert(ctx, stale); err != nil {
		t.Fatalf("Upsert() with stale timestamp must not error, got: %v", err)
	}

	got, err := store.Nearby(ctx, originLat, originLon, 10, 10)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Nearby() returned %d drivers, want 1", len(got))
	}
	if got[0].DistanceKm > 0.01 {
		t.Fatalf("stale update overwrote fresh position, distance = %.3f km", got[0].DistanceKm)
	}
}

func TestMemoryStore_ExpiredPositionsInvisible(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5 * time.Minute)

	current := time.Now()
	store.now = func() time.Time { return current }

	driverID := uuid.MustNew()
	if err := store.Upsert(ctx, models.DriverPosition{
		DriverID:   driverID,
		Latitude:   originLat,
		Longitude:  originLon,
		RecordedAt: current,
	}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	// Advance past the TTL without touching the store.
	current = current.Add(6 * time.Minute)

	got, err := store.Nearby(ctx, originLat, originLon, 10, 10)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expired position still visible, got %d drivers", len(got))
	}

	// A fresh update for the same driver must be accepted after expiry.
	if err := store.Upsert(ctx, models.DriverPosition{
		DriverID:   driverID,
		Latitude:   originLat,
		Longitude:  originLon,
		RecordedAt: current,
	}); err != nil {
		t.Fatalf("Upsert() after expiry error: %v", err)
	}
	got, err = store.Nearby(ctx, originLat, originLon, 10, 10)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("driver did not reappear after fresh update, got %d drivers", len(got))
	}
}

func TestMemoryStore_Compact(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5 * time.Minute)

	current := time.Now()
	store.now = func() time.Time { return current }

	for i := 0; i < 4; i++ {
		if err := store.Upsert(ctx, models.DriverPosition{
			DriverID:   uuid.MustNew(),
			Latitude:   originLat,
			Longitude:  originLon,
			RecordedAt: current,
		}); err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
	}

	current = current.Add(10 * time.Minute)
	if removed := store.Compact(); removed != 4 {
		t.Fatalf("Compact() removed %d, want 4", removed)
	}
	if store.Len() != 0 {
		t.Fatalf("Len() = %d after compaction, want 0", store.Len())
	}
}

func TestMemoryStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5 * time.Minute)
	driverID := uuid.MustNew()

	if err := store.Upsert(ctx, models.DriverPosition{
		DriverID:   driverID,
		Latitude:   originLat,
		Longitude:  originLon,
		RecordedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := store.Remove(ctx, driverID); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	got, err := store.Nearby(ctx, originLat, originLon, 10, 10)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("removed driver still visible, got %d drivers", len(got))
	}
}

func BenchmarkMemoryStore_Nearby(b *testing.B) {
	ctx := context.Background()
	store := NewMemoryStore(5 * time.Minute)

	for i := 0; i < 1000; i++ {
		lat, lon := offsetKm(float64(i%50) * 0.1)
		_ = store.Upsert(ctx, models.DriverPosition{
			DriverID:   uuid.MustNew(),
			Latitude:   lat,
			Longitude:  lon,
			RecordedAt: time.Now(),
		})
	}

	for b.Loop() {
		_, _ = store.Nearby(ctx, originLat, originLon, 3, 20)
	}
}
