package microservices

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/uit-go/ridehail/config"
	"github.com/uit-go/ridehail/internal/adapter/http/middleware"
	"github.com/uit-go/ridehail/internal/adapter/http/server"
	repo "github.com/uit-go/ridehail/internal/adapter/postgres"
	rabbitadapter "github.com/uit-go/ridehail/internal/adapter/rabbit"
	redisadapter "github.com/uit-go/ridehail/internal/adapter/redis"
	"github.com/uit-go/ridehail/internal/service/location"
	"github.com/uit-go/ridehail/pkg/logger"
	"github.com/uit-go/ridehail/pkg/postgres"
	"github.com/uit-go/ridehail/pkg/rabbit"
	"github.com/uit-go/ridehail/pkg/redis"
)

// LocationApp hosts driver position reporting and geospatial queries.
type LocationApp struct {
	postgresDB *postgres.PostgreDB
	rabbitMQ   *rabbit.RabbitMQ
	httpServer *server.API
	service    *location.Service

	cfg config.Config
	log logger.Logger
}

func NewLocation(ctx context.Context, cfg config.Config, log logger.Logger) (*LocationApp, error) {
	postgresDB, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "Failed to setup database", err)
		return nil, err
	}

	rabbitMQ, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		log.Error(ctx, "Failed to setup rabbitmq", err)
		return nil, err
	}

	var store location.Store
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			log.Error(ctx, "Failed to setup redis", err)
			return nil, err
		}
		store = redisadapter.NewLocationStore(redisClient, cfg.Location.DriverTTL)
	} else {
		store = location.NewMemoryStore(cfg.Location.DriverTTL)
	}

	broker := rabbitadapter.NewTripBroker(rabbitMQ, log)
	locationService := location.NewService(store, broker, log, cfg.Location.SearchRadiusKm, cfg.Location.NearbyLimit)

	driverRepo := repo.NewDriverRepo(postgresDB.Pool)
	tokens := middleware.NewJWTVerifier(cfg.Auth.JWTSecret)

	httpServer, err := server.New(cfg, server.Deps{
		Location: locationService,
		Drivers:  driverRepo,
	}, tokens, log)
	if err != nil {
		log.Error(ctx, "Failed to setup http server", err)
		return nil, err
	}

	return &LocationApp{
		postgresDB: postgresDB,
		rabbitMQ:   rabbitMQ,
		httpServer: httpServer,
		service:    locationService,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (s *LocationApp) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	// Expired positions are dropped lazily on reads; the compaction loop
	// keeps the gauge honest between reads. No-op on the Redis store.
	go s.service.RunCompaction(ctx, s.cfg.Location.CompactEvery)

	s.httpServer.Run(ctx, errCh)
	defer func() {
		s.close(ctx)
		s.log.Info(ctx, "location service closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "Location service has been started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (s *LocationApp) close(ctx context.Context) {
	if s.httpServer != nil {
		if err := s.httpServer.Stop(ctx); err != nil {
			s.log.Warn(ctx, "Failed to gracefully close http server", "error", err.Error())
		}
	}

	if s.rabbitMQ != nil {
		if err := s.rabbitMQ.Close(ctx); err != nil {
			s.log.Warn(ctx, "Failed to gracefully close rabbitmq connection", "error", err.Error())
		}
	}

	if s.postgresDB != nil && s.postgresDB.Pool != nil {
		s.postgresDB.Pool.Close()
	}
}
