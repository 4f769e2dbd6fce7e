package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/uit-go/ridehail/internal/adapter/http/handler/dto"
	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/service/matching"
	"github.com/uit-go/ridehail/internal/service/trip"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/uuid"
	"github.com/uit-go/ridehail/pkg/validator"
)

type Trip struct {
	service TripService
	l       logger.Logger
}

type TripService interface {
	Create(ctx context.Context, req trip.CreateRequest) (*models.Trip, error)
	Match(ctx context.Context, tripID uuid.UUID) (matching.Match, error)
	Assign(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error)
	Start(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error)
	Complete(ctx context.Context, tripID, driverID uuid.UUID, actualDistanceKm float64) (*models.Trip, error)
	Cancel(ctx context.Context, tripID, requesterID uuid.UUID, reason string) (*models.Trip, error)
	Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	History(ctx context.Context, tripID uuid.UUID) ([]models.StatusChange, error)
	ListByPassenger(ctx context.Context, passengerID uuid.UUID, limit, offset int) ([]models.Trip, error)
}

func NewTrip(service TripService, l logger.Logger) *Trip {
	return &Trip{
		service: service,
		l:       l,
	}
}

// Create godoc
// @Summary      Request a trip
// @Description  Creates a trip in PENDING status with an estimated fare
// @Tags         Trips
// @Accept       json
// @Produce      json
// @Param        request  body      dto.CreateTripRequest  true  "Trip request"
// @Success      201      {object}  dto.TripResponse
// @Failure      400      {object}  map[string]string
// @Failure      422      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/trips [post]
func (h *Trip) Create(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_trip")

	user := models.UserFromContext(ctx)

	var req dto.CreateTripRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	created, err := h.service.Create(ctx, req.ToModel(user.ID))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trip": dto.ToTripResponse(created),
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "trip created successfully", "trip_id", created.ID, "estimated_fare", created.EstimatedFare)
}

// Get godoc
// @Summary      Get a trip
// @Tags         Trips
// @Produce      json
// @Param        trip_id  path      string  true  "Trip ID"
// @Success      200      {object}  dto.TripResponse
// @Failure      404      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/trips/{trip_id} [get]
func (h *Trip) Get(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_trip")

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid trip uuid format")
		return
	}

	found, err := h.service.Get(ctx, tripID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trip": dto.ToTripResponse(found),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// History godoc
// @Summary      Trip status history
// @Description  Returns the ordered list of status changes for a trip
// @Tags         Trips
// @Produce      json
// @Param        trip_id  path      string  true  "Trip ID"
// @Success      200      {object}  map[string]any
// @Failure      404      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/trips/{trip_id}/history [get]
func (h *Trip) History(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "trip_history")

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid trip uuid format")
		return
	}

	history, err := h.service.History(ctx, tripID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get trip history", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trip_id": tripID,
		"history": history,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// ListMine godoc
// @Summary      List my trips
// @Description  Returns the authenticated passenger's trips, newest first
// @Tags         Trips
// @Produce      json
// @Param        limit   query     int  false  "Page size"
// @Param        offset  query     int  false  "Page offset"
// @Success      200     {object}  map[string]any
// @Security     BearerAuth
// @Router       /v1/trips [get]
func (h *Trip) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_my_trips")

	user := models.UserFromContext(ctx)
	limit, offset := paginationParams(r)

	trips, err := h.service.ListByPassenger(ctx, user.ID, limit, offset)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list trips", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trips": dto.ToTripResponses(trips),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// Match godoc
// @Summary      Find a driver for a trip
// @Description  Searches nearby drivers and reserves the closest available one
// @Tags         Trips
// @Produce      json
// @Param        trip_id  path      string  true  "Trip ID"
// @Success      200      {object}  map[string]any
// @Failure      404      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/trips/{trip_id}/match [post]
func (h *Trip) Match(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "match_trip")

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid trip uuid format")
		return
	}

	match, err := h.service.Match(ctx, tripID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to match trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trip_id":        tripID,
		"driver_id":      match.Driver.DriverID,
		"distance_km":    match.Driver.DistanceKm,
		"reserved_until": match.Reservation.ExpiresAt,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver matched", "trip_id", tripID, "driver_id", match.Driver.DriverID)
}

// Accept godoc
// @Summary      Accept a trip
// @Description  Assigns the authenticated driver to the trip they hold a reservation for
// @Tags         Trips
// @Produce      json
// @Param        trip_id  path      string  true  "Trip ID"
// @Success      200      {object}  dto.TripResponse
// @Failure      409      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/trips/{trip_id}/accept [post]
func (h *Trip) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "accept_trip")

	user := models.UserFromContext(ctx)

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid trip uuid format")
		return
	}

	accepted, err := h.service.Assign(ctx, tripID, user.ID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to accept trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trip": dto.ToTripResponse(accepted),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "trip accepted", "trip_id", tripID, "driver_id", user.ID)
}

// Start godoc
// @Summary      Start a trip
// @Tags         Trips
// @Produce      json
// @Param        trip_id  path      string  true  "Trip ID"
// @Success      200      {object}  dto.TripResponse
// @Failure      409      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/trips/{trip_id}/start [post]
func (h *Trip) Start(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "start_trip")

	user := models.UserFromContext(ctx)

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid trip uuid format")
		return
	}

	started, err := h.service.Start(ctx, tripID, user.ID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to start trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trip": dto.ToTripResponse(started),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "trip started", "trip_id", tripID, "driver_id", user.ID)
}

// Complete godoc
// @Summary      Complete a trip
// @Description  Finishes the trip, computes the actual fare and triggers settlement
// @Tags         Trips
// @Accept       json
// @Produce      json
// @Param        trip_id  path      string                   true  "Trip ID"
// @Param        request  body      dto.CompleteTripRequest  true  "Completion data"
// @Success      200      {object}  dto.TripResponse
// @Failure      409      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/trips/{trip_id}/complete [post]
func (h *Trip) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "complete_trip")

	user := models.UserFromContext(ctx)

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid trip uuid format")
		return
	}

	var req dto.CompleteTripRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	completed, err := h.service.Complete(ctx, tripID, user.ID, req.ActualDistanceKm)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to complete trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trip": dto.ToTripResponse(completed),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "trip completed", "trip_id", tripID, "actual_fare", completed.ActualFare)
}

// Cancel godoc
// @Summary      Cancel a trip
// @Description  Cancels a PENDING or ACCEPTED trip and frees any reserved driver
// @Tags         Trips
// @Accept       json
// @Produce      json
// @Param        trip_id  path      string                 true   "Trip ID"
// @Param        request  body      dto.CancelTripRequest  false  "Cancellation reason"
// @Success      200      {object}  dto.TripResponse
// @Failure      409      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/trips/{trip_id}/cancel [post]
func (h *Trip) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "cancel_trip")

	user := models.UserFromContext(ctx)

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid trip uuid format")
		return
	}

	var req dto.CancelTripRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	cancelled, err := h.service.Cancel(ctx, tripID, user.ID, req.Reason)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to cancel trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trip": dto.ToTripResponse(cancelled),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "trip cancelled", "trip_id", tripID, "reason", req.Reason)
}

func paginationParams(r *http.Request) (limit, offset int) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			offset = n
		}
	}
	return limit, offset
}
