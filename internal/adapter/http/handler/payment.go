package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/uit-go/ridehail/internal/adapter/http/handler/dto"
	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/internal/service/payment"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/uuid"
	"github.com/uit-go/ridehail/pkg/validator"
)

type Payment struct {
	service PaymentService
	l       logger.Logger
}

type PaymentService interface {
	Settle(ctx context.Context, req payment.SettleRequest) (models.SettlementResult, error)
	HandleGatewayCallback(ctx context.Context, params url.Values) error
	TopUp(ctx context.Context, ownerID uuid.UUID, amount float64) (models.Wallet, error)
	Balance(ctx context.Context, ownerID uuid.UUID) (models.Wallet, error)
	History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	EstimateTripFare(ctx context.Context, vehicle types.VehicleType, distanceKm float64) (float64, error)
}

func NewPayment(service PaymentService, l logger.Logger) *Payment {
	return &Payment{
		service: service,
		l:       l,
	}
}

// TopUp godoc
// @Summary      Top up wallet
// @Description  Credits the authenticated user's wallet
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        request  body      dto.TopUpRequest  true  "Top-up amount"
// @Success      200      {object}  map[string]any
// @Failure      422      {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/wallet/topup [post]
func (h *Payment) TopUp(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "wallet_topup")

	user := models.UserFromContext(ctx)

	var req dto.TopUpRequest
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

	wallet, err := h.service.TopUp(ctx, user.ID, req.Amount)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to top up wallet", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"wallet": wallet,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "wallet topped up", "owner_id", user.ID, "amount", req.Amount)
}

// Balance godoc
// @Summary      Wallet balance
// @Tags         Payments
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /v1/wallet [get]
func (h *Payment) Balance(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "wallet_balance")

	user := models.UserFromContext(ctx)

	wallet, err := h.service.Balance(ctx, user.ID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get wallet balance", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"wallet": wallet,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// History godoc
// @Summary      Transaction history
// @Description  Returns transactions where the authenticated user paid or was paid
// @Tags         Payments
// @Produce      json
// @Param        limit   query     int  false  "Page size"
// @Param        offset  query     int  false  "Page offset"
// @Success      200     {object}  map[string]any
// @Security     BearerAuth
// @Router       /v1/wallet/transactions [get]
func (h *Payment) History(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "transaction_history")

	user := models.UserFromContext(ctx)
	limit, offset := paginationParams(r)

	transactions, err := h.service.History(ctx, user.ID, limit, offset)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list transactions", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"transactions": transactions,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// EstimateFare godoc
// @Summary      Estimate a fare
// @Description  Returns the fare for a vehicle type and distance without creating a trip
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        request  body      dto.EstimateFareRequest  true  "Estimation input"
// @Success      200      {object}  map[string]any
// @Failure      422      {object}  map[string]string
// @Router       /v1/fares/estimate [post]
func (h *Payment) EstimateFare(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "estimate_fare")

	var req dto.EstimateFareRequest
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

	fare, err := h.service.EstimateTripFare(ctx, types.VehicleType(req.VehicleType), req.DistanceKm)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to estimate fare", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"vehicle_type": req.VehicleType,
		"distance_km":  req.DistanceKm,
		"fare":         fare,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// Settle godoc
// @Summary      Settle a completed trip
// @Description  Internal endpoint called by the trip service after completion
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        request  body      dto.SettleTripRequest  true  "Settlement request"
// @Success      200      {object}  map[string]any
// @Failure      402      {object}  map[string]string
// @Failure      422      {object}  map[string]string
// @Router       /internal/v1/settlements [post]
func (h *Payment) Settle(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "settle_trip")

	var req dto.SettleTripRequest
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

	result, err := h.service.Settle(ctx, req.ToModel())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to settle trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"settlement": result,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "trip settled", "trip_id", req.TripID, "method", req.Method)
}

// GatewayCallback godoc
// @Summary      Payment gateway callback
// @Description  Return URL hit by the gateway after the passenger pays online
// @Tags         Payments
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /v1/payments/vnpay/callback [get]
func (h *Payment) GatewayCallback(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "gateway_callback")

	if err := h.service.HandleGatewayCallback(ctx, r.URL.Query()); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to process gateway callback", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"status": "callback processed",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "gateway callback processed")
}
