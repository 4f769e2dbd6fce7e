package location

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// Store holds driver positions for radius queries. The in-memory
// implementation below is the default; a Redis GEO adapter satisfies the
// same interface for multi-instance deployments.
type Store interface {
	// Upsert records a position. Updates carrying a RecordedAt older than
	// the stored one are silently ignored.
	Upsert(ctx context.Context, pos models.DriverPosition) error

	// Nearby returns drivers within radiusKm of the center, nearest first,
	// at most limit entries. Expired positions are never returned.
	Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.NearbyDriver, error)

	// Remove deletes a driver's position, for example when the driver goes offline.
	Remove(ctx context.Context, driverID uuid.UUID) error
}

// MemoryStore is a map-backed position index guarded by a RWMutex.
// Expiry is lazy: stale entries are skipped at query time and deleted
// on the next write path that touches them.
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[uuid.UUID]models.DriverPosition
	ttl       time.Duration

	now func() time.Time // swappable in tests
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		positions: make(map[uuid.UUID]models.DriverPosition),
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *MemoryStore) Upsert(_ context.Context, pos models.DriverPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.positions[pos.DriverID]
	if ok && !s.expired(prev) && pos.RecordedAt.Before(prev.RecordedAt) {
		// Out-of-order delivery, keep the fresher position.
		return nil
	}
	s.positions[pos.DriverID] = pos
	return nil
}

func (s *MemoryStore) Nearby(_ context.Context, lat, lon, radiusKm float64, limit int) ([]models.NearbyDriver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.NearbyDriver, 0, limit)
	for _, pos := range s.positions {
		if s.expired(pos) {
			continue
		}
		dist := HaversineKm(lat, lon, pos.Latitude, pos.Longitude)
		if dist > radiusKm {
			continue
		}
		result = append(result, models.NearbyDriver{
			DriverID:   pos.DriverID,
			Latitude:   pos.Latitude,
			Longitude:  pos.Longitude,
			DistanceKm: dist,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DistanceKm < result[j].DistanceKm
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) Remove(_ context.Context, driverID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.positions, driverID)
	return nil
}

// Compact drops expired entries. Called periodically by the service so the
// map does not grow unbounded between queries.
func (s *MemoryStore) Compact() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, pos := range s.positions {
		if s.expired(pos) {
			delete(s.positions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked positions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

func (s *MemoryStore) expired(pos models.DriverPosition) bool {
	return s.now().Sub(pos.RecordedAt) > s.ttl
}
