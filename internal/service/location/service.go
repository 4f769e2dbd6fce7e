package location

import (
	"context"
	"fmt"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/metrics"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// Publisher broadcasts accepted position updates to interested services.
type Publisher interface {
	PublishLocationUpdate(ctx context.Context, msg models.LocationUpdateMessage) error
}

type Service struct {
	store     Store
	publisher Publisher
	log       logger.Logger

	radiusKm    float64
	nearbyLimit int
}

func NewService(store Store, publisher Publisher, log logger.Logger, defaultRadiusKm float64, nearbyLimit int) *Service {
	return &Service{
		store:       store,
		publisher:   publisher,
		log:         log,
		radiusKm:    defaultRadiusKm,
		nearbyLimit: nearbyLimit,
	}
}

// UpdatePosition validates and records a driver position, then broadcasts it.
// Broadcasting is best effort: a publish failure never fails the update.
func (s *Service) UpdatePosition(ctx context.Context, pos models.DriverPosition) error {
	ctx = wrap.WithAction(ctx, "location.UpdatePosition")

	loc := models.Location{Latitude: pos.Latitude, Longitude: pos.Longitude}
	if err := loc.Validate(); err != nil {
		return wrap.Error(ctx, err)
	}
	if pos.RecordedAt.IsZero() {
		pos.RecordedAt = time.Now()
	}

	if err := s.store.Upsert(ctx, pos); err != nil {
		return wrap.Error(ctx, fmt.Errorf("upsert position: %w", err))
	}

	if s.publisher != nil {
		msg := models.LocationUpdateMessage{
			DriverID:      pos.DriverID,
			Latitude:      pos.Latitude,
			Longitude:     pos.Longitude,
			RecordedAt:    pos.RecordedAt,
			CorrelationID: uuid.MustNew().String(),
		}
		if err := s.publisher.PublishLocationUpdate(ctx, msg); err != nil {
			s.log.Warn(ctx, "location update broadcast failed", "driver_id", pos.DriverID)
		}
	}
	return nil
}

// FindNearby returns drivers within radiusKm of the point, nearest first.
// radiusKm <= 0 falls back to the configured default.
func (s *Service) FindNearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.NearbyDriver, error) {
	ctx = wrap.WithAction(ctx, "location.FindNearby")

	center := models.Location{Latitude: lat, Longitude: lon}
	if err := center.Validate(); err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if radiusKm <= 0 {
		radiusKm = s.radiusKm
	}
	if limit <= 0 {
		limit = s.nearbyLimit
	}

	drivers, err := s.store.Nearby(ctx, lat, lon, radiusKm, limit)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("nearby query: %w", err))
	}
	return drivers, nil
}

// GoOffline removes the driver from the index immediately instead of
// waiting for the TTL to pass.
func (s *Service) GoOffline(ctx context.Context, driverID uuid.UUID) error {
	ctx = wrap.WithAction(ctx, "location.GoOffline")

	if err := s.store.Remove(ctx, driverID); err != nil {
		return wrap.Error(ctx, fmt.Errorf("remove position: %w", err))
	}
	s.log.Info(ctx, "driver went offline", "driver_id", driverID)
	return nil
}

// RunCompaction periodically drops expired positions from a memory store.
// No-op for stores that expire natively.
func (s *Service) RunCompaction(ctx context.Context, interval time.Duration) {
	mem, ok := s.store.(*MemoryStore)
	if !ok {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := mem.Compact()
			if removed > 0 {
				s.log.Debug(ctx, "compacted expired driver positions", "removed", removed)
			}
			metrics.DriverPositionsGauge.Set(float64(mem.Len()))
		}
	}
}
