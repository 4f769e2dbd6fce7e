package trip

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/internal/service/matching"
	"github.com/uit-go/ridehail/internal/service/payment"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/metrics"
	"github.com/uit-go/ridehail/pkg/trm"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// TripRepository persists trips and their status history.
type TripRepository interface {
	Create(ctx context.Context, trip *models.Trip) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	Update(ctx context.Context, trip *models.Trip) error
	AppendStatusChange(ctx context.Context, tripID uuid.UUID, change models.StatusChange) error
	History(ctx context.Context, tripID uuid.UUID) ([]models.StatusChange, error)
	ListByPassenger(ctx context.Context, passengerID uuid.UUID, limit, offset int) ([]models.Trip, error)
	ActiveTripForDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error)
}

// Matcher is the slice of the matching service the trip lifecycle needs.
type Matcher interface {
	FindAndReserve(ctx context.Context, req matching.Request) (matching.Match, error)
	Confirm(ctx context.Context, driverID, tripID uuid.UUID) error
	Release(ctx context.Context, tripID uuid.UUID) error
}

// Settler orders fare settlement after completion. In deployment this is
// an HTTP client for the payment service.
type Settler interface {
	Settle(ctx context.Context, req payment.SettleRequest) (models.SettlementResult, error)
}

// Router resolves distance and duration between two points.
type Router interface {
	Route(ctx context.Context, from, to models.Location) (models.RouteInfo, error)
}

// Publisher broadcasts trip lifecycle events to the message broker.
type Publisher interface {
	PublishTripStatus(ctx context.Context, msg models.TripStatusMessage) error
}

// Presence is the trip-room fan-out surface.
type Presence interface {
	Publish(tripID uuid.UUID, payload any)
	Close(tripID uuid.UUID)
}

// CreateRequest is a passenger's trip order.
type CreateRequest struct {
	PassengerID   uuid.UUID
	Pickup        models.Location
	Dropoff       models.Location
	VehicleType   types.VehicleType
	PaymentMethod types.PaymentMethod
}

const lockStripes = 64

type Service struct {
	repo      TripRepository
	matcher   Matcher
	settler   Settler
	router    Router
	publisher Publisher
	presence  Presence
	txManager trm.TxManager
	log       logger.Logger

	searchRadiusKm float64

	// Per-trip striped locks serialize concurrent lifecycle calls for the
	// same trip without a global lock.
	locks [lockStripes]sync.Mutex
}

func NewService(repo TripRepository, matcher Matcher, settler Settler, router Router, publisher Publisher, presence Presence, txManager trm.TxManager, log logger.Logger, searchRadiusKm float64) *Service {
	return &Service{
		repo:           repo,
		matcher:        matcher,
		settler:        settler,
		router:         router,
		publisher:      publisher,
		presence:       presence,
		txManager:      txManager,
		log:            log,
		searchRadiusKm: searchRadiusKm,
	}
}

func (s *Service) lock(tripID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(tripID[:])
	return &s.locks[h.Sum32()%lockStripes]
}

// Create registers a new PENDING trip with an estimated fare.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Trip, error) {
	ctx = wrap.WithAction(ctx, "trip.Create")

	if err := req.Pickup.Validate(); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("pickup: %w", err))
	}
	if err := req.Dropoff.Validate(); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("dropoff: %w", err))
	}
	if !req.VehicleType.Valid() {
		return nil, wrap.Error(ctx, fmt.Errorf("unknown vehicle type %q", req.VehicleType))
	}
	if !req.PaymentMethod.Valid() {
		return nil, wrap.Error(ctx, fmt.Errorf("unknown payment method %q", req.PaymentMethod))
	}

	route, err := s.router.Route(ctx, req.Pickup, req.Dropoff)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("resolve route: %w", err))
	}
	estimate, err := payment.EstimateFare(req.VehicleType, route.DistanceKm)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	now := time.Now()
	trip := &models.Trip{
		ID:                  uuid.MustNew(),
		PassengerID:         req.PassengerID,
		Status:              types.StatusPending,
		Pickup:              req.Pickup,
		Dropoff:             req.Dropoff,
		VehicleType:         req.VehicleType,
		PaymentMethod:       req.PaymentMethod,
		EstimatedFare:       estimate,
		EstimatedDistanceKm: route.DistanceKm,
		CreatedAt:           now,
		StatusHistory: []models.StatusChange{
			{To: types.StatusPending, At: now, Reason: "trip requested"},
		},
	}
	ctx = wrap.WithTripID(ctx, trip.ID.String())

	if err := s.repo.Create(ctx, trip); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("create trip: %w", err))
	}

	metrics.ActiveTripsGauge.Inc()
	s.broadcast(ctx, trip, types.EventTripRequested)
	s.log.Info(ctx, "trip created",
		"passenger_id", trip.PassengerID,
		"estimated_fare", trip.EstimatedFare,
	)
	return trip, nil
}

// Match finds and reserves the nearest available driver for a PENDING
// trip. The reservation stands until the driver accepts through Assign or
// its TTL lapses.
func (s *Service) Match(ctx context.Context, tripID uuid.UUID) (matching.Match, error) {
	ctx = wrap.WithAction(ctx, "trip.Match")
	ctx = wrap.WithTripID(ctx, tripID.String())

	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		return matching.Match{}, wrap.Error(ctx, err)
	}
	if trip.Status != types.StatusPending {
		return matching.Match{}, wrap.Error(ctx, types.ErrInvalidTransition)
	}

	match, err := s.matcher.FindAndReserve(ctx, matching.Request{
		TripID:      trip.ID,
		PickupLat:   trip.Pickup.Latitude,
		PickupLon:   trip.Pickup.Longitude,
		VehicleType: trip.VehicleType,
		RadiusKm:    s.searchRadiusKm,
	})
	if err != nil {
		return matching.Match{}, wrap.Error(ctx, err)
	}

	msg := models.TripStatusMessage{
		TripID:        trip.ID,
		Status:        trip.Status,
		DriverID:      &match.Driver.DriverID,
		Timestamp:     time.Now(),
		CorrelationID: uuid.MustNew().String(),
	}
	if s.publisher != nil {
		if err := s.publisher.PublishTripStatus(ctx, msg); err != nil {
			s.log.Warn(ctx, "driver match notification failed", "driver_id", match.Driver.DriverID)
		}
	}
	return match, nil
}

// Assign records the driver's acceptance, moving the trip to ACCEPTED.
// Repeating the call with the same driver is a no-op success; a different
// driver on an already-assigned trip is rejected.
func (s *Service) Assign(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	ctx = wrap.WithAction(ctx, "trip.Assign")
	ctx = wrap.WithTripID(ctx, tripID.String())

	mu := s.lock(tripID)
	mu.Lock()
	defer mu.Unlock()

	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	if trip.DriverID != nil {
		if *trip.DriverID == driverID && trip.Status == types.StatusAccepted {
			// Duplicate acceptance, e.g. a retried request.
			return trip, nil
		}
		return nil, wrap.Error(ctx, types.ErrInvalidTransition)
	}
	if !CanTransition(trip.Status, types.StatusAccepted) {
		return nil, wrap.Error(ctx, types.ErrInvalidTransition)
	}

	// The acceptance must consume the driver's reservation for this trip;
	// an expired or foreign reservation cannot become an assignment.
	if err := s.matcher.Confirm(ctx, driverID, tripID); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	change := models.StatusChange{
		From:   trip.Status,
		To:     types.StatusAccepted,
		At:     time.Now(),
		Reason: "driver accepted",
	}
	trip.DriverID = &driverID
	trip.Status = types.StatusAccepted
	trip.StatusHistory = append(trip.StatusHistory, change)

	if err := s.persistTransition(ctx, trip, change); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	s.broadcast(ctx, trip, types.EventDriverMatched)
	s.log.Info(ctx, "driver assigned", "driver_id", driverID)
	return trip, nil
}

// Start moves an ACCEPTED trip to IN_PROGRESS. Only the assigned driver
// may start the trip.
func (s *Service) Start(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	ctx = wrap.WithAction(ctx, "trip.Start")
	ctx = wrap.WithTripID(ctx, tripID.String())

	mu := s.lock(tripID)
	mu.Lock()
	defer mu.Unlock()

	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if trip.DriverID == nil || *trip.DriverID != driverID {
		return nil, wrap.Error(ctx, types.ErrDriverNotAvailable)
	}
	if !CanTransition(trip.Status, types.StatusInProgress) {
		return nil, wrap.Error(ctx, types.ErrInvalidTransition)
	}

	change := models.StatusChange{
		From: trip.Status,
		To:   types.StatusInProgress,
		At:   time.Now(),
	}
	trip.Status = types.StatusInProgress
	trip.StatusHistory = append(trip.StatusHistory, change)

	if err := s.persistTransition(ctx, trip, change); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	s.broadcast(ctx, trip, types.EventTripStarted)
	return trip, nil
}

// Complete finishes an IN_PROGRESS trip and orders fare settlement. The
// completion is committed before settlement runs; a settlement failure
// flags the trip for reconciliation instead of unwinding it.
func (s *Service) Complete(ctx context.Context, tripID, driverID uuid.UUID, actualDistanceKm float64) (*models.Trip, error) {
	ctx = wrap.WithAction(ctx, "trip.Complete")
	ctx = wrap.WithTripID(ctx, tripID.String())

	mu := s.lock(tripID)
	mu.Lock()
	defer mu.Unlock()

	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if trip.DriverID == nil || *trip.DriverID != driverID {
		return nil, wrap.Error(ctx, types.ErrDriverNotAvailable)
	}
	if !CanTransition(trip.Status, types.StatusCompleted) {
		return nil, wrap.Error(ctx, types.ErrInvalidTransition)
	}

	if actualDistanceKm <= 0 {
		actualDistanceKm = trip.EstimatedDistanceKm
	}
	fare, err := payment.EstimateFare(trip.VehicleType, actualDistanceKm)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	change := models.StatusChange{
		From: trip.Status,
		To:   types.StatusCompleted,
		At:   time.Now(),
	}
	trip.Status = types.StatusCompleted
	trip.ActualFare = &fare
	trip.ActualDistanceKm = &actualDistanceKm
	trip.StatusHistory = append(trip.StatusHistory, change)

	if err := s.persistTransition(ctx, trip, change); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	metrics.ActiveTripsGauge.Dec()
	metrics.TripsTotal.WithLabelValues(types.StatusCompleted.String()).Inc()
	s.broadcast(ctx, trip, types.EventTripCompleted)

	s.settle(ctx, trip, fare)

	s.presence.Close(trip.ID)
	return trip, nil
}

// settle orders fare settlement for a completed trip. Failure marks the
// trip pending settlement; the completed status is never rolled back.
func (s *Service) settle(ctx context.Context, trip *models.Trip, fare float64) {
	_, err := s.settler.Settle(ctx, payment.SettleRequest{
		TripID:      trip.ID,
		PassengerID: trip.PassengerID,
		DriverID:    *trip.DriverID,
		Amount:      fare,
		Method:      trip.PaymentMethod,
	})
	if err == nil {
		return
	}

	s.log.Error(ctx, "fare settlement failed, flagging trip", err, "fare", fare)
	trip.PendingSettlement = true
	if updErr := s.repo.Update(ctx, trip); updErr != nil {
		s.log.Error(ctx, "could not flag trip pending settlement", updErr)
	}
	s.broadcast(ctx, trip, types.EventSettlementPending)
}

// Cancel aborts a PENDING or ACCEPTED trip and releases any driver
// reservation the trip holds.
func (s *Service) Cancel(ctx context.Context, tripID, requesterID uuid.UUID, reason string) (*models.Trip, error) {
	ctx = wrap.WithAction(ctx, "trip.Cancel")
	ctx = wrap.WithTripID(ctx, tripID.String())

	mu := s.lock(tripID)
	mu.Lock()
	defer mu.Unlock()

	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !CanTransition(trip.Status, types.StatusCancelled) {
		return nil, wrap.Error(ctx, types.ErrInvalidTransition)
	}

	change := models.StatusChange{
		From:   trip.Status,
		To:     types.StatusCancelled,
		At:     time.Now(),
		Reason: reason,
	}
	trip.Status = types.StatusCancelled
	trip.CancellationReason = &reason
	trip.StatusHistory = append(trip.StatusHistory, change)

	if err := s.persistTransition(ctx, trip, change); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	if err := s.matcher.Release(ctx, tripID); err != nil {
		s.log.Warn(ctx, "reservation release failed, will lapse by TTL")
	}

	metrics.ActiveTripsGauge.Dec()
	metrics.TripsTotal.WithLabelValues(types.StatusCancelled.String()).Inc()
	s.broadcast(ctx, trip, types.EventTripCancelled)
	s.presence.Close(trip.ID)

	s.log.Info(ctx, "trip cancelled", "requester_id", requesterID, "reason", reason)
	return trip, nil
}

// Get returns a trip by id.
func (s *Service) Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	ctx = wrap.WithAction(ctx, "trip.Get")
	return s.repo.GetByID(ctx, tripID)
}

// History returns the trip's append-only status history, oldest first.
func (s *Service) History(ctx context.Context, tripID uuid.UUID) ([]models.StatusChange, error) {
	ctx = wrap.WithAction(ctx, "trip.History")
	return s.repo.History(ctx, tripID)
}

// ListByPassenger returns the passenger's trips, newest first.
func (s *Service) ListByPassenger(ctx context.Context, passengerID uuid.UUID, limit, offset int) ([]models.Trip, error) {
	ctx = wrap.WithAction(ctx, "trip.ListByPassenger")

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByPassenger(ctx, passengerID, limit, offset)
}

// HandleLocationUpdate routes a driver's position to the room of the
// driver's active trip. Delivery is best effort.
func (s *Service) HandleLocationUpdate(ctx context.Context, msg models.LocationUpdateMessage) error {
	trip, err := s.repo.ActiveTripForDriver(ctx, msg.DriverID)
	if err != nil {
		if errors.Is(err, types.ErrTripNotFound) {
			return nil
		}
		return wrap.Error(ctx, err)
	}

	s.presence.Publish(trip.ID, models.LocationEvent{
		Type:       "location_update",
		TripID:     trip.ID,
		DriverID:   msg.DriverID,
		Latitude:   msg.Latitude,
		Longitude:  msg.Longitude,
		RecordedAt: msg.RecordedAt,
	})
	return nil
}

// persistTransition writes the mutated trip and its new history entry in
// one transaction.
func (s *Service) persistTransition(ctx context.Context, trip *models.Trip, change models.StatusChange) error {
	return s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, trip); err != nil {
			return fmt.Errorf("update trip: %w", err)
		}
		if err := s.repo.AppendStatusChange(ctx, trip.ID, change); err != nil {
			return fmt.Errorf("append status change: %w", err)
		}
		return nil
	})
}

// broadcast pushes the trip's current state to the broker and the trip
// room. Both paths are best effort.
func (s *Service) broadcast(ctx context.Context, trip *models.Trip, event types.TripEvent) {
	msg := models.TripStatusMessage{
		TripID:        trip.ID,
		Status:        trip.Status,
		DriverID:      trip.DriverID,
		ActualFare:    trip.ActualFare,
		Timestamp:     time.Now(),
		CorrelationID: uuid.MustNew().String(),
	}
	if s.publisher != nil {
		if err := s.publisher.PublishTripStatus(ctx, msg); err != nil {
			s.log.Warn(ctx, "trip status publish failed", "event", string(event))
		}
	}
	if s.presence != nil {
		s.presence.Publish(trip.ID, map[string]any{
			"type":   string(event),
			"trip":   msg,
			"status": trip.Status,
		})
	}
}
