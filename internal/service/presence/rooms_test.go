package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/uit-go/ridehail/pkg/logger"
	"github.com/uit-go/ridehail/pkg/uuid"
)

type endpointStub struct {
	mu       sync.Mutex
	received []any
	err      error
}

func (e *endpointStub) SendJSON(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.received = append(e.received, v)
	return nil
}

func (e *endpointStub) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.received)
}

func newTestRooms(t *testing.T) (*Rooms, context.CancelFunc) {
	t.Helper()
	rooms := NewRooms(logger.InitLogger("presence-test", "error"))
	ctx, cancel := context.WithCancel(context.Background())
	go rooms.Run(ctx)
	return rooms, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestRooms_FanOutToAllParticipants(t *testing.T) {
	rooms, cancel := newTestRooms(t)
	defer cancel()

	tripID := uuid.MustNew()
	passenger := &endpointStub{}
	driver := &endpointStub{}
	rooms.Attach(tripID, uuid.MustNew(), passenger)
	rooms.Attach(tripID, uuid.MustNew(), driver)

	rooms.Publish(tripID, map[string]string{"type": "location_update"})

	waitFor(t, func() bool { return passenger.count() == 1 && driver.count() == 1 })
}

func TestRooms_PublishToUnknownTripIsNoop(t *testing.T) {
	rooms, cancel := newTestRooms(t)
	defer cancel()

	// Must not panic or block.
	rooms.Publish(uuid.MustNew(), "orphan event")
	time.Sleep(20 * time.Millisecond)
}

func TestRooms_DetachStopsDelivery(t *testing.T) {
	rooms, cancel := newTestRooms(t)
	defer cancel()

	tripID := uuid.MustNew()
	userID := uuid.MustNew()
	ep := &endpointStub{}

	rooms.Attach(tripID, userID, ep)
	rooms.Publish(tripID, "first")
	waitFor(t, func() bool { return ep.count() == 1 })

	rooms.Detach(tripID, userID)
	rooms.Publish(tripID, "second")
	time.Sleep(50 * time.Millisecond)

	if got := ep.count(); got != 1 {
		t.Fatalf("detached endpoint received %d events, want 1", got)
	}
	if rooms.Participants(tripID) != 0 {
		t.Fatalf("room not empty after detach")
	}
}

func TestRooms_ReattachReplacesEndpoint(t *testing.T) {
	rooms, cancel := newTestRooms(t)
	defer cancel()

	tripID := uuid.MustNew()
	userID := uuid.MustNew()
	stale := &endpointStub{}
	fresh := &endpointStub{}

	rooms.Attach(tripID, userID, stale)
	rooms.Attach(tripID, userID, fresh)
	rooms.Publish(tripID, "event")

	waitFor(t, func() bool { return fresh.count() == 1 })
	if stale.count() != 0 {
		t.Fatalf("stale endpoint received %d events after reconnect", stale.count())
	}
}

func TestRooms_FailingEndpointDoesNotBlockOthers(t *testing.T) {
	rooms, cancel := newTestRooms(t)
	defer cancel()

	tripID := uuid.MustNew()
	broken := &endpointStub{err: errors.New("connection reset")}
	healthy := &endpointStub{}
	rooms.Attach(tripID, uuid.MustNew(), broken)
	rooms.Attach(tripID, uuid.MustNew(), healthy)

	rooms.Publish(tripID, "event")
	waitFor(t, func() bool { return healthy.count() == 1 })
}

func TestRooms_CloseRemovesRoom(t *testing.T) {
	rooms, cancel := newTestRooms(t)
	defer cancel()

	tripID := uuid.MustNew()
	ep := &endpointStub{}
	rooms.Attach(tripID, uuid.MustNew(), ep)

	rooms.Close(tripID)
	if rooms.Participants(tripID) != 0 {
		t.Fatal("room survived Close()")
	}

	rooms.Publish(tripID, "after close")
	time.Sleep(50 * time.Millisecond)
	if ep.count() != 0 {
		t.Fatalf("endpoint received %d events after room close", ep.count())
	}
}

func TestRooms_PublishNeverBlocksWhenQueueFull(t *testing.T) {
	// No Run() goroutine: the queue fills and stays full.
	rooms := NewRooms(logger.InitLogger("presence-test", "error"))
	tripID := uuid.MustNew()
	rooms.Attach(tripID, uuid.MustNew(), &endpointStub{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultQueueSize*2; i++ {
			rooms.Publish(tripID, i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish() blocked on a full queue")
	}
}
