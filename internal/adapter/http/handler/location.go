package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/uit-go/ridehail/internal/adapter/http/handler/dto"
	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/uuid"
	"github.com/uit-go/ridehail/pkg/validator"
)

type Location struct {
	service LocationService
	drivers DriverDirectory
	l       logger.Logger
}

type LocationService interface {
	UpdatePosition(ctx context.Context, pos models.DriverPosition) error
	FindNearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.NearbyDriver, error)
	GoOffline(ctx context.Context, driverID uuid.UUID) error
}

// DriverDirectory flips the persistent online flag checked during matching.
type DriverDirectory interface {
	SetOnline(ctx context.Context, driverID uuid.UUID, online bool) error
}

func NewLocation(service LocationService, drivers DriverDirectory, l logger.Logger) *Location {
	return &Location{
		service: service,
		drivers: drivers,
		l:       l,
	}
}

// UpdatePosition godoc
// @Summary      Update driver position
// @Description  Records the authenticated driver's current coordinates
// @Tags         Location
// @Accept       json
// @Produce      json
// @Param        request  body      dto.LocationUpdateRequest  true  "Coordinates"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  map[string]string
// @Failure      422      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/location [post]
func (h *Location) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "update_position")

	user := models.UserFromContext(ctx)

	var req dto.LocationUpdateRequest
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

	if err := h.service.UpdatePosition(ctx, req.ToModel(user.ID)); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to update position", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"status": "position updated",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// Nearby godoc
// @Summary      Find nearby drivers
// @Description  Returns drivers within the given radius, closest first
// @Tags         Location
// @Produce      json
// @Param        latitude   query     number  true   "Search center latitude"
// @Param        longitude  query     number  true   "Search center longitude"
// @Param        radius_km  query     number  false  "Search radius in km"
// @Param        limit      query     int     false  "Max results"
// @Success      200        {object}  map[string]any
// @Failure      400        {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/location/nearby [get]
func (h *Location) Nearby(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "find_nearby_drivers")

	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("latitude"), 64)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "latitude must be a valid number")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("longitude"), 64)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "longitude must be a valid number")
		return
	}

	var radiusKm float64
	if raw := q.Get("radius_km"); raw != "" {
		if radiusKm, err = strconv.ParseFloat(raw, 64); err != nil {
			errorResponse(w, http.StatusBadRequest, "radius_km must be a valid number")
			return
		}
	}

	var limit int
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			errorResponse(w, http.StatusBadRequest, "limit must be a valid integer")
			return
		}
	}

	drivers, err := h.service.FindNearby(ctx, lat, lon, radiusKm, limit)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to find nearby drivers", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"drivers": dto.ToNearbyDriverResponses(drivers),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// GoOnline godoc
// @Summary      Go online
// @Description  Marks the authenticated driver as available and records their position
// @Tags         Location
// @Accept       json
// @Produce      json
// @Param        request  body      dto.LocationUpdateRequest  true  "Current coordinates"
// @Success      200      {object}  map[string]string
// @Failure      422      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/drivers/online [post]
func (h *Location) GoOnline(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "set_driver_online")

	user := models.UserFromContext(ctx)

	var req dto.LocationUpdateRequest
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

	if err := h.drivers.SetOnline(ctx, user.ID, true); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to set driver online", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := h.service.UpdatePosition(ctx, req.ToModel(user.ID)); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to record initial position", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"status":  "AVAILABLE",
		"message": "You are now online and ready to accept trips",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver set to online successfully", "driver_id", user.ID)
}

// GoOffline godoc
// @Summary      Go offline
// @Description  Marks the authenticated driver as unavailable and drops their position
// @Tags         Location
// @Produce      json
// @Success      200  {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/drivers/offline [post]
func (h *Location) GoOffline(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "set_driver_offline")

	user := models.UserFromContext(ctx)

	if err := h.drivers.SetOnline(ctx, user.ID, false); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to set driver offline", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := h.service.GoOffline(ctx, user.ID); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to drop driver position", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"status":  "OFFLINE",
		"message": "You are now offline",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver set to offline successfully", "driver_id", user.ID)
}
