package redisadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/uuid"
)

const (
	reservationKeyFmt     = "reservations:driver:%s"
	reservationTripKeyFmt = "reservations:trip:%s"
)

// releaseScript deletes the reservation only if it still belongs to the
// given trip, so a lapsed reservation re-taken by another trip is never
// removed by the old holder.
var releaseScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  return 0
end
if cjson.decode(v)["trip_id"] == ARGV[1] then
  redis.call("DEL", KEYS[1])
  redis.call("DEL", KEYS[2])
  return 1
end
return 0
`)

// ReservationStore implements the matching lock on Redis. SET NX with a
// TTL gives the single-winner and expiry semantics in one command, which
// makes the lock correct across service instances.
type ReservationStore struct {
	client *redis.Client
}

func NewReservationStore(client *redis.Client) *ReservationStore {
	return &ReservationStore{client: client}
}

func (s *ReservationStore) TryReserve(ctx context.Context, driverID, tripID uuid.UUID, ttl time.Duration) (bool, error) {
	now := time.Now()
	res := models.DriverReservation{
		DriverID:   driverID,
		TripID:     tripID,
		ReservedAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	body, err := json.Marshal(res)
	if err != nil {
		return false, fmt.Errorf("redis reservation: marshal: %w", err)
	}

	ok, err := s.client.SetNX(ctx, fmt.Sprintf(reservationKeyFmt, driverID), body, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis reservation: setnx: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := s.client.Set(ctx, fmt.Sprintf(reservationTripKeyFmt, tripID), driverID.String(), ttl).Err(); err != nil {
		return false, fmt.Errorf("redis reservation: trip index: %w", err)
	}
	return true, nil
}

func (s *ReservationStore) Release(ctx context.Context, driverID, tripID uuid.UUID) error {
	keys := []string{
		fmt.Sprintf(reservationKeyFmt, driverID),
		fmt.Sprintf(reservationTripKeyFmt, tripID),
	}
	if err := releaseScript.Run(ctx, s.client, keys, tripID.String()).Err(); err != nil {
		return fmt.Errorf("redis reservation: release: %w", err)
	}
	return nil
}

func (s *ReservationStore) ReleaseByTrip(ctx context.Context, tripID uuid.UUID) error {
	raw, err := s.client.Get(ctx, fmt.Sprintf(reservationTripKeyFmt, tripID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis reservation: trip lookup: %w", err)
	}

	driverID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("redis reservation: trip index value %q: %w", raw, err)
	}
	return s.Release(ctx, driverID, tripID)
}

func (s *ReservationStore) Get(ctx context.Context, driverID uuid.UUID) (models.DriverReservation, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf(reservationKeyFmt, driverID)).Bytes()
	if err == redis.Nil {
		return models.DriverReservation{}, types.ErrReservationNotFound
	}
	if err != nil {
		return models.DriverReservation{}, fmt.Errorf("redis reservation: get: %w", err)
	}

	var res models.DriverReservation
	if err := json.Unmarshal(raw, &res); err != nil {
		return models.DriverReservation{}, fmt.Errorf("redis reservation: unmarshal: %w", err)
	}
	return res, nil
}
