package location

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

type publisherStub struct {
	published []models.LocationUpdateMessage
	err       error
}

func (p *publisherStub) PublishLocationUpdate(_ context.Context, msg models.LocationUpdateMessage) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func newTestService(pub Publisher) *Service {
	store := NewMemoryStore(5 * time.Minute)
	log := logger.InitLogger("location-service-test", "error")
	return NewService(store, pub, log, 5, 20)
}

func TestService_UpdatePositionRejectsBadCoordinates(t *testing.T) {
	svc := newTestService(nil)

	err := svc.UpdatePosition(context.Background(), models.DriverPosition{
		DriverID:   uuid.MustNew(),
		Latitude:   91.0,
		Longitude:  106.7,
		RecordedAt: time.Now(),
	})
	if !errors.Is(err, types.ErrInvalidCoordinates) {
		t.Fatalf("UpdatePosition() error = %v, want ErrInvalidCoordinates", err)
	}
}

func TestService_UpdatePositionBroadcasts(t *testing.T) {
	pub := &publisherStub{}
	svc := newTestService(pub)
	driverID := uuid.MustNew()

	err := svc.UpdatePosition(context.Background(), models.DriverPosition{
		DriverID:   driverID,
		Latitude:   originLat,
		Longitude:  originLon,
		RecordedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpdatePosition() error: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	if pub.published[0].DriverID != driverID {
		t.Fatalf("published driver_id = %s, want %s", pub.published[0].DriverID, driverID)
	}
	if pub.published[0].CorrelationID == "" {
		t.Fatal("published message has empty correlation_id")
	}
}

func TestService_UpdatePositionSurvivesPublishFailure(t *testing.T) {
	pub := &publisherStub{err: errors.New("broker unavailable")}
	svc := newTestService(pub)

	err := svc.UpdatePosition(context.Background(), models.DriverPosition{
		DriverID:   uuid.MustNew(),
		Latitude:   originLat,
		Longitude:  originLon,
		RecordedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpdatePosition() must not fail on broadcast error, got: %v", err)
	}

	// The position must still be queryable.
	got, err := svc.FindNearby(context.Background(), originLat, originLon, 1, 10)
	if err != nil {
		t.Fatalf("FindNearby() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("FindNearby() returned %d drivers, want 1", len(got))
	}
}

func TestService_FindNearbyDefaults(t *testing.T) {
	svc := newTestService(nil)

	// 4 km away: inside the 5 km configured default radius.
	lat, lon := offsetKm(4.0)
	if err := svc.UpdatePosition(context.Background(), models.DriverPosition{
		DriverID:  uuid.MustNew(),
		Latitude:  lat,
		Longitude: lon,
	}); err != nil {
		t.Fatalf("UpdatePosition() error: %v", err)
	}

	got, err := svc.FindNearby(context.Background(), originLat, originLon, 0, 0)
	if err != nil {
		t.Fatalf("FindNearby() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("FindNearby() with default radius returned %d drivers, want 1", len(got))
	}
}

func TestService_GoOffline(t *testing.T) {
	svc := newTestService(nil)
	driverID := uuid.MustNew()

	if err := svc.UpdatePosition(context.Background(), models.DriverPosition{
		DriverID:  driverID,
		Latitude:  originLat,
		Longitude: originLon,
	}); err != nil {
		t.Fatalf("UpdatePosition() error: %v", err)
	}
	if err := svc.GoOffline(context.Background(), driverID); err != nil {
		t.Fatalf("GoOffline() error: %v", err)
	}

	got, err := svc.FindNearby(context.Background(), originLat, originLon, 10, 10)
	if err != nil {
		t.Fatalf("FindNearby() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("offline driver still discoverable, got %d drivers", len(got))
	}
}
