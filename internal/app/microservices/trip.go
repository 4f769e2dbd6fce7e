package microservices

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/uit-go/ridehail/config"
	"github.com/uit-go/ridehail/internal/adapter/http/handler"
	"github.com/uit-go/ridehail/internal/adapter/http/middleware"
	"github.com/uit-go/ridehail/internal/adapter/http/server"
	"github.com/uit-go/ridehail/internal/adapter/locationapi"
	repo "github.com/uit-go/ridehail/internal/adapter/postgres"
	rabbitadapter "github.com/uit-go/ridehail/internal/adapter/rabbit"
	redisadapter "github.com/uit-go/ridehail/internal/adapter/redis"
	"github.com/uit-go/ridehail/internal/adapter/routing"
	"github.com/uit-go/ridehail/internal/adapter/settlement"
	"github.com/uit-go/ridehail/internal/service/matching"
	"github.com/uit-go/ridehail/internal/service/presence"
	"github.com/uit-go/ridehail/internal/service/trip"
	"github.com/uit-go/ridehail/pkg/logger"
	"github.com/uit-go/ridehail/pkg/postgres"
	"github.com/uit-go/ridehail/pkg/rabbit"
	"github.com/uit-go/ridehail/pkg/redis"
	"github.com/uit-go/ridehail/pkg/trm"
)

// TripApp hosts the trip lifecycle: creation, matching, state transitions,
// the live trip event stream, and the consumer feeding driver positions
// into trip rooms.
type TripApp struct {
	postgresDB *postgres.PostgreDB
	rabbitMQ   *rabbit.RabbitMQ
	httpServer *server.API
	rooms      *presence.Rooms
	consumer   *rabbitadapter.LocationConsumer
	service    *trip.Service

	cfg config.Config
	log logger.Logger
}

func NewTrip(ctx context.Context, cfg config.Config, log logger.Logger) (*TripApp, error) {
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

	tripRepo := repo.NewTripRepo(postgresDB.Pool)
	driverRepo := repo.NewDriverRepo(postgresDB.Pool)
	txManager := trm.New(postgresDB.Pool)

	// Reservations go through Redis when configured so that concurrent
	// match attempts across replicas see the same single winner.
	var reservations matching.ReservationStore
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			log.Error(ctx, "Failed to setup redis", err)
			return nil, err
		}
		reservations = redisadapter.NewReservationStore(redisClient)
	} else {
		reservations = matching.NewMemoryReservationStore()
	}

	finder := locationapi.New(cfg.Services.LocationBaseURL, cfg.Services.InternalToken, cfg.Services.ClientTimeout, log)
	matcher := matching.NewMatcher(finder, driverRepo, reservations, log, cfg.Matching.ReservationTTL, cfg.Matching.CandidateLimit)

	settler := settlement.New(cfg.Services.PaymentBaseURL, cfg.Services.InternalToken, cfg.Services.ClientTimeout, log)
	router := routing.New(cfg.Routing.MapboxToken, cfg.Routing.Timeout, log)
	broker := rabbitadapter.NewTripBroker(rabbitMQ, log)
	rooms := presence.NewRooms(log)

	tripService := trip.NewService(tripRepo, matcher, settler, router, broker, rooms, txManager, log, cfg.Location.SearchRadiusKm)

	socket := handler.NewTripSocket(rooms, tripService, log)
	tokens := middleware.NewJWTVerifier(cfg.Auth.JWTSecret)

	httpServer, err := server.New(cfg, server.Deps{
		Trip:       tripService,
		TripSocket: socket,
	}, tokens, log)
	if err != nil {
		log.Error(ctx, "Failed to setup http server", err)
		return nil, err
	}

	return &TripApp{
		postgresDB: postgresDB,
		rabbitMQ:   rabbitMQ,
		httpServer: httpServer,
		rooms:      rooms,
		consumer:   rabbitadapter.NewLocationConsumer(rabbitMQ, log),
		service:    tripService,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (s *TripApp) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	go s.rooms.Run(ctx)

	go func() {
		if err := s.consumer.ConsumeLocationUpdates(ctx, s.service.HandleLocationUpdate); err != nil {
			errCh <- err
		}
	}()

	s.httpServer.Run(ctx, errCh)
	defer func() {
		s.close(ctx)
		s.log.Info(ctx, "trip service closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "Trip service has been started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (s *TripApp) close(ctx context.Context) {
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
