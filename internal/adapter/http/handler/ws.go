package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/internal/service/presence"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/metrics"
	"github.com/uit-go/ridehail/pkg/uuid"
	ws "github.com/uit-go/ridehail/pkg/wsHub"
)

// TripSocket upgrades HTTP requests into trip room WebSocket connections.
type TripSocket struct {
	rooms    *presence.Rooms
	trips    TripReader
	upgrader websocket.Upgrader
	l        logger.Logger
}

type TripReader interface {
	Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
}

func NewTripSocket(rooms *presence.Rooms, trips TripReader, l logger.Logger) *TripSocket {
	return &TripSocket{
		rooms: rooms,
		trips: trips,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		l: l,
	}
}

// Subscribe godoc
// @Summary      Trip event stream
// @Description  Upgrades to a WebSocket delivering live trip status and driver location events
// @Tags         Trips
// @Param        trip_id  path  string  true  "Trip ID"
// @Success      101
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /ws/trips/{trip_id} [get]
func (h *TripSocket) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "trip_socket_subscribe")

	user := models.UserFromContext(ctx)
	if user == nil || user.IsAnonymous() {
		errorResponse(w, http.StatusUnauthorized, "authorization required")
		return
	}

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid trip uuid format")
		return
	}
	ctx = wrap.WithTripID(ctx, tripID.String())

	trip, err := h.trips.Get(ctx, tripID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get trip for socket", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if !h.participant(trip, user) {
		h.l.Warn(ctx, "socket subscription rejected", "user_id", user.ID)
		errorResponse(w, http.StatusForbidden, "not a participant of this trip")
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to upgrade connection", err)
		return
	}

	conn := ws.NewConn(ctx, user.ID, socket)

	h.rooms.Attach(tripID, user.ID, conn)
	metrics.WebSocketConnectionsGauge.Inc()
	h.l.Info(ctx, "socket attached to trip room", "user_id", user.ID)

	defer func() {
		h.rooms.Detach(tripID, user.ID)
		metrics.WebSocketConnectionsGauge.Dec()
		conn.Close()
		h.l.Info(ctx, "socket detached from trip room", "user_id", user.ID)
	}()

	// Client frames are drained but carry no commands; the socket is a
	// one-way event stream. Listen returns when the peer disconnects.
	if err := conn.Listen(func(msg any) error { return nil }); err != nil {
		h.l.Debug(ctx, "socket listen ended", "reason", err.Error())
	}
}

// participant reports whether the user may watch this trip's room.
func (h *TripSocket) participant(trip *models.Trip, user *models.User) bool {
	if types.UserRole(user.Role) == types.RoleAdmin {
		return true
	}
	if trip.PassengerID == user.ID {
		return true
	}
	if trip.DriverID != nil && *trip.DriverID == user.ID {
		return true
	}
	return false
}
