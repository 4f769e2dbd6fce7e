package presence

import (
	"context"
	"sync"

	"github.com/uit-go/ridehail/pkg/logger"
	"github.com/uit-go/ridehail/pkg/metrics"
	"github.com/uit-go/ridehail/pkg/uuid"
)

// Endpoint is one connected participant. The websocket transport adapts
// its connection type to this interface.
type Endpoint interface {
	SendJSON(v any) error
}

const defaultQueueSize = 256

type event struct {
	tripID  uuid.UUID
	payload any
}

// Rooms groups live connections by trip and fans events out to them.
// Delivery is best effort and at most once: Publish never blocks, and a
// full queue drops the event rather than stalling the producer.
type Rooms struct {
	mu           sync.RWMutex
	participants map[uuid.UUID]map[uuid.UUID]Endpoint // trip -> user -> endpoint

	events chan event
	log    logger.Logger
}

func NewRooms(log logger.Logger) *Rooms {
	return &Rooms{
		participants: make(map[uuid.UUID]map[uuid.UUID]Endpoint),
		events:       make(chan event, defaultQueueSize),
		log:          log,
	}
}

// Run drains the event queue until the context is cancelled. Call it in
// its own goroutine before attaching participants.
func (r *Rooms) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.deliver(ctx, ev)
		}
	}
}

// Attach registers a participant's connection in the trip room.
// A reconnect for the same user replaces the previous endpoint.
func (r *Rooms) Attach(tripID, userID uuid.UUID, ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.participants[tripID]
	if !ok {
		room = make(map[uuid.UUID]Endpoint)
		r.participants[tripID] = room
	}
	room[userID] = ep
}

// Detach removes a participant from the trip room. Safe to call twice.
func (r *Rooms) Detach(tripID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.participants[tripID]
	if !ok {
		return
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(r.participants, tripID)
	}
}

// Close tears down a trip's room entirely, for example when the trip
// reaches a terminal status. Connections themselves are closed by the
// transport layer.
func (r *Rooms) Close(tripID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.participants, tripID)
}

// Publish enqueues an event for everyone in the trip room. It never
// blocks; when the queue is full the event is counted and dropped.
func (r *Rooms) Publish(tripID uuid.UUID, payload any) {
	select {
	case r.events <- event{tripID: tripID, payload: payload}:
	default:
		metrics.PresenceEventsDroppedTotal.Inc()
	}
}

// Participants reports how many endpoints are attached to the trip room.
func (r *Rooms) Participants(tripID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants[tripID])
}

func (r *Rooms) deliver(ctx context.Context, ev event) {
	r.mu.RLock()
	room := r.participants[ev.tripID]
	endpoints := make([]Endpoint, 0, len(room))
	for _, ep := range room {
		endpoints = append(endpoints, ep)
	}
	r.mu.RUnlock()

	// Sends happen outside the lock so a slow socket cannot block
	// attach and detach.
	for _, ep := range endpoints {
		if err := ep.SendJSON(ev.payload); err != nil {
			r.log.Debug(ctx, "presence delivery failed", "trip_id", ev.tripID)
		}
	}
}
