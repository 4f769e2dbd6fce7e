package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/uit-go/ridehail/config"
	"github.com/uit-go/ridehail/internal/adapter/http/handler"
	"github.com/uit-go/ridehail/internal/adapter/http/middleware"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
)

const serverIPAddress = "%s:%s"

type API struct {
	mode   types.ServiceMode
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

type handlers struct {
	health   *handler.Health
	trip     *handler.Trip
	location *handler.Location
	payment  *handler.Payment
	socket   *handler.TripSocket
}

// Deps carries the per-mode services the API exposes. Only the fields
// for the configured mode need to be set.
type Deps struct {
	Trip       handler.TripService
	Location   handler.LocationService
	Drivers    handler.DriverDirectory
	Payment    handler.PaymentService
	TripSocket *handler.TripSocket
}

func New(cfg config.Config, deps Deps, tokens middleware.TokenVerifier, log logger.Logger) (*API, error) {
	var addr string
	routes := &handlers{
		health: handler.NewHealth(string(cfg.Mode), log),
	}

	switch cfg.Mode {
	case types.TripService:
		if deps.Trip == nil || deps.TripSocket == nil {
			return nil, errors.New("trip service and socket are required")
		}
		addr = fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Services.TripService)
		routes.trip = handler.NewTrip(deps.Trip, log)
		routes.socket = deps.TripSocket
	case types.LocationService:
		if deps.Location == nil {
			return nil, errors.New("location service is required")
		}
		addr = fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Services.LocationService)
		routes.location = handler.NewLocation(deps.Location, deps.Drivers, log)
	case types.PaymentService:
		if deps.Payment == nil {
			return nil, errors.New("payment service is required")
		}
		addr = fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Services.PaymentService)
		routes.payment = handler.NewPayment(deps.Payment, log)
	default:
		return nil, fmt.Errorf("invalid mode: %s", cfg.Mode)
	}

	mid := middleware.NewMiddleware(tokens, log)

	api := &API{
		mode: cfg.Mode,

		mux:    http.NewServeMux(),
		routes: routes,
		m:      mid,
		addr:   addr,
		cfg:    cfg,
		log:    log,
	}

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: api.withMiddleware(),
	}

	api.setupRoutes()

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// withMiddleware applies middlewares to the mux
func (a *API) withMiddleware() http.Handler {
	metricsWrapped := a.m.Metrics(string(a.mode))(a.mux)
	return a.m.Recover(a.m.RequestID(a.m.Logging(a.m.Auth(metricsWrapped))))
}
