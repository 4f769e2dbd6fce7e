package trip

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/internal/service/matching"
	"github.com/uit-go/ridehail/internal/service/payment"
	"github.com/uit-go/ridehail/pkg/logger"
	"github.com/uit-go/ridehail/pkg/uuid"
)

type tripRepoFake struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.Trip
	history map[uuid.UUID][]models.StatusChange
}

func newTripRepoFake() *tripRepoFake {
	return &tripRepoFake{
		byID:    make(map[uuid.UUID]*models.Trip),
		history: make(map[uuid.UUID][]models.StatusChange),
	}
}

func (r *tripRepoFake) Create(_ context.Context, trip *models.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *trip
	r.byID[trip.ID] = &cp
	r.history[trip.ID] = append([]models.StatusChange(nil), trip.StatusHistory...)
	return nil
}

func (r *tripRepoFake) GetByID(_ context.Context, id uuid.UUID) (*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trip, ok := r.byID[id]
	if !ok {
		return nil, types.ErrTripNotFound
	}
	cp := *trip
	cp.StatusHistory = append([]models.StatusChange(nil), r.history[id]...)
	return &cp, nil
}

func (r *tripRepoFake) Update(_ context.Context, trip *models.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[trip.ID]; !ok {
		return types.ErrTripNotFound
	}
	cp := *trip
	r.byID[trip.ID] = &cp
	return nil
}

func (r *tripRepoFake) AppendStatusChange(_ context.Context, tripID uuid.UUID, change models.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[tripID] = append(r.history[tripID], change)
	return nil
}

func (r *tripRepoFake) History(_ context.Context, tripID uuid.UUID) ([]models.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.StatusChange(nil), r.history[tripID]...), nil
}

func (r *tripRepoFake) ListByPassenger(_ context.Context, passengerID uuid.UUID, limit, _ int) ([]models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Trip
	for _, trip := range r.byID {
		if trip.PassengerID == passengerID {
			out = append(out, *trip)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *tripRepoFake) ActiveTripForDriver(_ context.Context, driverID uuid.UUID) (*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, trip := range r.byID {
		if trip.DriverID != nil && *trip.DriverID == driverID && !trip.Status.IsTerminal() {
			cp := *trip
			return &cp, nil
		}
	}
	return nil, types.ErrTripNotFound
}

type matcherFake struct {
	mu         sync.Mutex
	match      matching.Match
	findErr    error
	confirmErr error
	confirmed  []uuid.UUID
	released   []uuid.UUID
}

func (m *matcherFake) FindAndReserve(_ context.Context, _ matching.Request) (matching.Match, error) {
	return m.match, m.findErr
}

func (m *matcherFake) Confirm(_ context.Context, driverID, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmErr != nil {
		return m.confirmErr
	}
	m.confirmed = append(m.confirmed, driverID)
	return nil
}

func (m *matcherFake) Release(_ context.Context, tripID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, tripID)
	return nil
}

type settlerFake struct {
	mu       sync.Mutex
	err      error
	requests []payment.SettleRequest
}

func (s *settlerFake) Settle(_ context.Context, req payment.SettleRequest) (models.SettlementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.SettlementResult{}, s.err
	}
	s.requests = append(s.requests, req)
	return models.SettlementResult{}, nil
}

type routerFake struct {
	route models.RouteInfo
	err   error
}

func (r *routerFake) Route(_ context.Context, _, _ models.Location) (models.RouteInfo, error) {
	return r.route, r.err
}

type publisherFake struct {
	mu       sync.Mutex
	messages []models.TripStatusMessage
}

func (p *publisherFake) PublishTripStatus(_ context.Context, msg models.TripStatusMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

type presenceFake struct {
	mu        sync.Mutex
	published map[uuid.UUID][]any
	closed    []uuid.UUID
}

func newPresenceFake() *presenceFake {
	return &presenceFake{published: make(map[uuid.UUID][]any)}
}

func (p *presenceFake) Publish(tripID uuid.UUID, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[tripID] = append(p.published[tripID], payload)
}

func (p *presenceFake) Close(tripID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, tripID)
}

type noTx struct{}

func (noTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc      *Service
	repo     *tripRepoFake
	matcher  *matcherFake
	settler  *settlerFake
	router   *routerFake
	pub      *publisherFake
	presence *presenceFake
}

func newFixture() *fixture {
	repo := newTripRepoFake()
	matcher := &matcherFake{}
	settler := &settlerFake{}
	router := &routerFake{route: models.RouteInfo{DistanceKm: 10, DurationMin: 25}}
	pub := &publisherFake{}
	presence := newPresenceFake()
	log := logger.InitLogger("trip-test", "error")
	return &fixture{
		svc:      NewService(repo, matcher, settler, router, pub, presence, noTx{}, log, 5),
		repo:     repo,
		matcher:  matcher,
		settler:  settler,
		router:   router,
		pub:      pub,
		presence: presence,
	}
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		PassengerID:   uuid.MustNew(),
		Pickup:        models.Location{Latitude: 10.7769, Longitude: 106.7009},
		Dropoff:       models.Location{Latitude: 10.8231, Longitude: 106.6297},
		VehicleType:   types.VehicleBike,
		PaymentMethod: types.MethodCash,
	}
}

// createAccepted drives a fresh trip to ACCEPTED with the given driver.
func (f *fixture) createAccepted(t *testing.T, driverID uuid.UUID) *models.Trip {
	t.Helper()
	trip, err := f.svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	trip, err = f.svc.Assign(context.Background(), trip.ID, driverID)
	if err != nil {
		t.Fatalf("Assign() error: %v", err)
	}
	return trip
}

func TestCreate_EstimatesFareFromRoute(t *testing.T) {
	f := newFixture()

	trip, err := f.svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if trip.Status != types.StatusPending {
		t.Fatalf("new trip status = %s, want PENDING", trip.Status)
	}
	// BIKE over 10 km: 15000 + 3000 * 10.
	if trip.EstimatedFare != 45000 {
		t.Fatalf("estimated fare = %.0f, want 45000", trip.EstimatedFare)
	}
	if len(trip.StatusHistory) != 1 || trip.StatusHistory[0].To != types.StatusPending {
		t.Fatalf("initial history = %+v, want single PENDING entry", trip.StatusHistory)
	}
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"bad pickup latitude", func(r *CreateRequest) { r.Pickup.Latitude = 95 }},
		{"bad dropoff longitude", func(r *CreateRequest) { r.Dropoff.Longitude = -200 }},
		{"unknown vehicle", func(r *CreateRequest) { r.VehicleType = "TRUCK" }},
		{"unknown payment method", func(r *CreateRequest) { r.PaymentMethod = "CHECK" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			if _, err := f.svc.Create(context.Background(), req); err == nil {
				t.Fatal("Create() accepted invalid input")
			}
		})
	}
}

func TestCreate_RoutingFailure(t *testing.T) {
	f := newFixture()
	f.router.err = types.ErrCollaboratorUnavailable

	if _, err := f.svc.Create(context.Background(), validCreateRequest()); !errors.Is(err, types.ErrCollaboratorUnavailable) {
		t.Fatalf("Create() error = %v, want ErrCollaboratorUnavailable", err)
	}
}

func TestAssign_HappyPath(t *testing.T) {
	f := newFixture()
	driverID := uuid.MustNew()

	trip := f.createAccepted(t, driverID)
	if trip.Status != types.StatusAccepted {
		t.Fatalf("trip status = %s, want ACCEPTED", trip.Status)
	}
	if trip.DriverID == nil || *trip.DriverID != driverID {
		t.Fatalf("trip driver = %v, want %s", trip.DriverID, driverID)
	}
	if len(f.matcher.confirmed) != 1 {
		t.Fatalf("reservation confirmed %d times, want 1", len(f.matcher.confirmed))
	}

	history, _ := f.svc.History(context.Background(), trip.ID)
	if len(history) != 2 || history[1].To != types.StatusAccepted {
		t.Fatalf("history = %+v, want PENDING then ACCEPTED", history)
	}
}

func TestAssign_IdempotentForSameDriver(t *testing.T) {
	f := newFixture()
	driverID := uuid.MustNew()
	trip := f.createAccepted(t, driverID)

	again, err := f.svc.Assign(context.Background(), trip.ID, driverID)
	if err != nil {
		t.Fatalf("repeated Assign() error: %v", err)
	}
	if again.Status != types.StatusAccepted {
		t.Fatalf("trip status = %s, want ACCEPTED", again.Status)
	}

	// The duplicate call must not add a second history entry.
	history, _ := f.svc.History(context.Background(), trip.ID)
	if len(history) != 2 {
		t.Fatalf("history has %d entries after duplicate assign, want 2", len(history))
	}
}

func TestAssign_RejectsDifferentDriver(t *testing.T) {
	f := newFixture()
	trip := f.createAccepted(t, uuid.MustNew())

	_, err := f.svc.Assign(context.Background(), trip.ID, uuid.MustNew())
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("Assign() with different driver error = %v, want ErrInvalidTransition", err)
	}
}

func TestAssign_RequiresReservation(t *testing.T) {
	f := newFixture()
	f.matcher.confirmErr = types.ErrReservationNotFound

	trip, err := f.svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	_, err = f.svc.Assign(context.Background(), trip.ID, uuid.MustNew())
	if !errors.Is(err, types.ErrReservationNotFound) {
		t.Fatalf("Assign() without reservation error = %v, want ErrReservationNotFound", err)
	}

	// The trip must remain PENDING and unassigned.
	got, _ := f.svc.Get(context.Background(), trip.ID)
	if got.Status != types.StatusPending || got.DriverID != nil {
		t.Fatalf("trip mutated by failed assign: status=%s driver=%v", got.Status, got.DriverID)
	}
}

func TestStart_OnlyAssignedDriver(t *testing.T) {
	f := newFixture()
	driverID := uuid.MustNew()
	trip := f.createAccepted(t, driverID)

	if _, err := f.svc.Start(context.Background(), trip.ID, uuid.MustNew()); !errors.Is(err, types.ErrDriverNotAvailable) {
		t.Fatalf("Start() by stranger error = %v, want ErrDriverNotAvailable", err)
	}

	started, err := f.svc.Start(context.Background(), trip.ID, driverID)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if started.Status != types.StatusInProgress {
		t.Fatalf("trip status = %s, want IN_PROGRESS", started.Status)
	}
}

func TestComplete_SettlesActualFare(t *testing.T) {
	f := newFixture()
	driverID := uuid.MustNew()
	trip := f.createAccepted(t, driverID)
	if _, err := f.svc.Start(context.Background(), trip.ID, driverID); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	done, err := f.svc.Complete(context.Background(), trip.ID, driverID, 12)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if done.Status != types.StatusCompleted {
		t.Fatalf("trip status = %s, want COMPLETED", done.Status)
	}
	// BIKE over the actual 12 km: 15000 + 3000 * 12.
	if done.ActualFare == nil || *done.ActualFare != 51000 {
		t.Fatalf("actual fare = %v, want 51000", done.ActualFare)
	}
	if done.PendingSettlement {
		t.Fatal("successful settlement left the trip flagged pending")
	}

	if len(f.settler.requests) != 1 {
		t.Fatalf("settler called %d times, want 1", len(f.settler.requests))
	}
	req := f.settler.requests[0]
	if req.Amount != 51000 || req.DriverID != driverID || req.Method != types.MethodCash {
		t.Fatalf("settle request = %+v", req)
	}

	if len(f.presence.closed) != 1 || f.presence.closed[0] != trip.ID {
		t.Fatalf("trip room not closed on completion: %v", f.presence.closed)
	}
}

func TestComplete_SettlementFailureFlagsTrip(t *testing.T) {
	f := newFixture()
	f.settler.err = types.ErrInsufficientFunds
	driverID := uuid.MustNew()
	trip := f.createAccepted(t, driverID)
	if _, err := f.svc.Start(context.Background(), trip.ID, driverID); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	done, err := f.svc.Complete(context.Background(), trip.ID, driverID, 10)
	if err != nil {
		t.Fatalf("Complete() must not fail on settlement error, got: %v", err)
	}
	if done.Status != types.StatusCompleted {
		t.Fatalf("trip status = %s, want COMPLETED despite settlement failure", done.Status)
	}
	if !done.PendingSettlement {
		t.Fatal("failed settlement did not flag the trip")
	}

	stored, _ := f.svc.Get(context.Background(), trip.ID)
	if !stored.PendingSettlement {
		t.Fatal("pending settlement flag not persisted")
	}
}

func TestComplete_ZeroDistanceFallsBackToEstimate(t *testing.T) {
	f := newFixture()
	driverID := uuid.MustNew()
	trip := f.createAccepted(t, driverID)
	if _, err := f.svc.Start(context.Background(), trip.ID, driverID); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	done, err := f.svc.Complete(context.Background(), trip.ID, driverID, 0)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	// Falls back to the 10 km estimate: 15000 + 3000 * 10.
	if done.ActualFare == nil || *done.ActualFare != 45000 {
		t.Fatalf("actual fare = %v, want 45000", done.ActualFare)
	}
}

func TestCancel_FromPendingReleasesReservation(t *testing.T) {
	f := newFixture()

	trip, err := f.svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	cancelled, err := f.svc.Cancel(context.Background(), trip.ID, trip.PassengerID, "changed my mind")
	if err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if cancelled.Status != types.StatusCancelled {
		t.Fatalf("trip status = %s, want CANCELLED", cancelled.Status)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "changed my mind" {
		t.Fatalf("cancellation reason = %v", cancelled.CancellationReason)
	}
	if len(f.matcher.released) != 1 || f.matcher.released[0] != trip.ID {
		t.Fatalf("reservation not released: %v", f.matcher.released)
	}
	if len(f.presence.closed) != 1 {
		t.Fatal("trip room not closed on cancellation")
	}
}

func TestCancel_RejectedOnceInProgress(t *testing.T) {
	f := newFixture()
	driverID := uuid.MustNew()
	trip := f.createAccepted(t, driverID)
	if _, err := f.svc.Start(context.Background(), trip.ID, driverID); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if _, err := f.svc.Cancel(context.Background(), trip.ID, trip.PassengerID, "too late"); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("Cancel() of IN_PROGRESS trip error = %v, want ErrInvalidTransition", err)
	}
}

func TestMatch_RequiresPendingTrip(t *testing.T) {
	f := newFixture()
	trip := f.createAccepted(t, uuid.MustNew())

	if _, err := f.svc.Match(context.Background(), trip.ID); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("Match() of ACCEPTED trip error = %v, want ErrInvalidTransition", err)
	}
}

func TestHandleLocationUpdate_RoutesToActiveTripRoom(t *testing.T) {
	f := newFixture()
	driverID := uuid.MustNew()
	trip := f.createAccepted(t, driverID)

	err := f.svc.HandleLocationUpdate(context.Background(), models.LocationUpdateMessage{
		DriverID:  driverID,
		Latitude:  10.78,
		Longitude: 106.70,
	})
	if err != nil {
		t.Fatalf("HandleLocationUpdate() error: %v", err)
	}

	// Create and Assign each publish one room event; the location makes three.
	events := f.presence.published[trip.ID]
	found := false
	for _, ev := range events {
		if le, ok := ev.(models.LocationEvent); ok && le.DriverID == driverID {
			found = true
		}
	}
	if !found {
		t.Fatalf("location event not delivered to trip room, events: %v", events)
	}

	// Updates from drivers with no active trip are dropped silently.
	if err := f.svc.HandleLocationUpdate(context.Background(), models.LocationUpdateMessage{
		DriverID: uuid.MustNew(),
	}); err != nil {
		t.Fatalf("HandleLocationUpdate() for idle driver error: %v", err)
	}
}
