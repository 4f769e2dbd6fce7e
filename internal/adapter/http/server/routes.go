package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
)

// setupRoutes - setups http routes
func (a *API) setupRoutes() {
	// System Health
	a.mux.HandleFunc("/health", a.routes.health.HealthCheck)

	setupSwaggerRoutes(a.mux, a.mode, a.log)
	setupMetricsRoute(a.mux)

	switch a.mode {
	case types.TripService:
		a.setupTripRoutes()
	case types.LocationService:
		a.setupLocationRoutes()
	case types.PaymentService:
		a.setupPaymentRoutes()
	}
}

// setupTripRoutes setups routes for trip service
func (a *API) setupTripRoutes() {
	m, r := a.m, a.routes

	// Passenger side
	a.mux.Handle("POST /v1/trips", m.RequireRoles(r.trip.Create, types.RolePassenger))
	a.mux.Handle("GET /v1/trips", m.RequireRoles(r.trip.ListMine, types.RolePassenger))
	a.mux.Handle("GET /v1/trips/{trip_id}", m.RequireRoles(r.trip.Get))
	a.mux.Handle("GET /v1/trips/{trip_id}/history", m.RequireRoles(r.trip.History))
	a.mux.Handle("POST /v1/trips/{trip_id}/match", m.RequireRoles(r.trip.Match, types.RolePassenger, types.RoleAdmin))
	a.mux.Handle("POST /v1/trips/{trip_id}/cancel", m.RequireRoles(r.trip.Cancel, types.RolePassenger, types.RoleAdmin))

	// Driver side
	a.mux.Handle("POST /v1/trips/{trip_id}/accept", m.RequireRoles(r.trip.Accept, types.RoleDriver))
	a.mux.Handle("POST /v1/trips/{trip_id}/start", m.RequireRoles(r.trip.Start, types.RoleDriver))
	a.mux.Handle("POST /v1/trips/{trip_id}/complete", m.RequireRoles(r.trip.Complete, types.RoleDriver))

	// WebSocket connection for trip participants
	a.mux.HandleFunc("GET /ws/trips/{trip_id}", a.routes.socket.Subscribe)
}

// setupLocationRoutes setups routes for location service
func (a *API) setupLocationRoutes() {
	m, r := a.m, a.routes

	a.mux.Handle("POST /v1/location", m.RequireRoles(r.location.UpdatePosition, types.RoleDriver))
	a.mux.Handle("POST /v1/drivers/online", m.RequireRoles(r.location.GoOnline, types.RoleDriver))
	a.mux.Handle("POST /v1/drivers/offline", m.RequireRoles(r.location.GoOffline, types.RoleDriver))

	// Geospatial query, also called by the trip service during matching
	a.mux.HandleFunc("GET /v1/location/nearby", r.location.Nearby)
}

// setupPaymentRoutes setups routes for payment service
func (a *API) setupPaymentRoutes() {
	m, r := a.m, a.routes

	a.mux.Handle("GET /v1/wallet", m.RequireRoles(r.payment.Balance))
	a.mux.Handle("POST /v1/wallet/topup", m.RequireRoles(r.payment.TopUp))
	a.mux.Handle("GET /v1/wallet/transactions", m.RequireRoles(r.payment.History))
	a.mux.HandleFunc("POST /v1/fares/estimate", r.payment.EstimateFare)
	a.mux.HandleFunc("GET /v1/payments/vnpay/callback", r.payment.GatewayCallback) // Gateway return URL, unauthenticated

	a.mux.Handle("POST /internal/v1/settlements", a.m.InternalOnly(r.payment.Settle, a.cfg.Services.InternalToken))
}

// setupSwaggerRoutes configures Swagger UI endpoints based on service mode
func setupSwaggerRoutes(mux *http.ServeMux, mode types.ServiceMode, log logger.Logger) {
	var instanceName string

	switch mode {
	case types.TripService:
		instanceName = "trip"
	case types.LocationService:
		instanceName = "location"
	case types.PaymentService:
		instanceName = "payment"
	default:
		log.Warn(wrap.WithAction(context.Background(), "setup swagger routes"), "unknown service mode for swagger setup", "mode", mode)
		return
	}

	// Swagger UI endpoint
	swaggerURL := httpSwagger.InstanceName(instanceName)
	mux.HandleFunc("/swagger/", httpSwagger.Handler(swaggerURL))
}

// setupMetricsRoute configures the Prometheus metrics endpoint
func setupMetricsRoute(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
