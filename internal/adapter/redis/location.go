package redisadapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/pkg/uuid"
)

const (
	geoKey          = "drivers:geo"
	positionKeyFmt  = "drivers:pos:%s" // holds recorded_at, carries the TTL
	geoUnitKm       = "km"
	defaultGeoCount = 100
)

// LocationStore keeps driver positions in a Redis GEO set so multiple
// location-service instances share one index. A per-driver timestamp key
// carries the TTL; the GEO member itself is removed lazily when its
// timestamp key has expired.
type LocationStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocationStore(client *redis.Client, ttl time.Duration) *LocationStore {
	return &LocationStore{client: client, ttl: ttl}
}

func (s *LocationStore) Upsert(ctx context.Context, pos models.DriverPosition) error {
	posKey := fmt.Sprintf(positionKeyFmt, pos.DriverID)

	// Reject out-of-order delivery against the stored timestamp. The
	// read-then-write window is acceptable: a driver's updates come from
	// a single device.
	stored, err := s.client.Get(ctx, posKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redis location: read timestamp: %w", err)
	}
	if err == nil {
		storedMs, parseErr := strconv.ParseInt(stored, 10, 64)
		if parseErr == nil && pos.RecordedAt.UnixMilli() < storedMs {
			return nil
		}
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, posKey, strconv.FormatInt(pos.RecordedAt.UnixMilli(), 10), s.ttl)
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      pos.DriverID.String(),
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis location: upsert: %w", err)
	}
	return nil
}

func (s *LocationStore) Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.NearbyDriver, error) {
	count := limit
	if count <= 0 {
		count = defaultGeoCount
	}

	locations, err := s.client.GeoSearchLocation(ctx, geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: geoUnitKm,
			Sort:       "ASC",
			Count:      count,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis location: geo search: %w", err)
	}

	result := make([]models.NearbyDriver, 0, len(locations))
	for _, loc := range locations {
		driverID, err := uuid.Parse(loc.Name)
		if err != nil {
			continue
		}

		// The GEO set has no TTL of its own; a missing timestamp key
		// means the position expired.
		exists, err := s.client.Exists(ctx, fmt.Sprintf(positionKeyFmt, driverID)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis location: ttl check: %w", err)
		}
		if exists == 0 {
			s.client.ZRem(ctx, geoKey, loc.Name)
			continue
		}

		result = append(result, models.NearbyDriver{
			DriverID:   driverID,
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			DistanceKm: loc.Dist,
		})
	}
	return result, nil
}

func (s *LocationStore) Remove(ctx context.Context, driverID uuid.UUID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, fmt.Sprintf(positionKeyFmt, driverID))
	pipe.ZRem(ctx, geoKey, driverID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis location: remove: %w", err)
	}
	return nil
}
