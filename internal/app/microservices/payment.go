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
	"github.com/uit-go/ridehail/internal/adapter/vnpay"
	"github.com/uit-go/ridehail/internal/service/payment"
	"github.com/uit-go/ridehail/pkg/logger"
	"github.com/uit-go/ridehail/pkg/postgres"
	"github.com/uit-go/ridehail/pkg/trm"
)

// PaymentApp hosts wallets, fare settlement and the gateway callback.
type PaymentApp struct {
	postgresDB *postgres.PostgreDB
	httpServer *server.API

	cfg config.Config
	log logger.Logger
}

func NewPayment(ctx context.Context, cfg config.Config, log logger.Logger) (*PaymentApp, error) {
	postgresDB, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "Failed to setup database", err)
		return nil, err
	}

	walletRepo := repo.NewWalletRepo(postgresDB.Pool)
	transactionRepo := repo.NewTransactionRepo(postgresDB.Pool)
	txManager := trm.New(postgresDB.Pool)

	gateway := vnpay.New(
		cfg.Payment.VNPayURL,
		cfg.Payment.VNPayTmnCode,
		cfg.Payment.VNPayHashSecret,
		cfg.Payment.VNPayReturnURL,
	)

	paymentService := payment.NewService(walletRepo, transactionRepo, gateway, txManager, log, cfg.Payment.CommissionRate)

	tokens := middleware.NewJWTVerifier(cfg.Auth.JWTSecret)

	httpServer, err := server.New(cfg, server.Deps{
		Payment: paymentService,
	}, tokens, log)
	if err != nil {
		log.Error(ctx, "Failed to setup http server", err)
		return nil, err
	}

	return &PaymentApp{
		postgresDB: postgresDB,
		httpServer: httpServer,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (s *PaymentApp) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	s.httpServer.Run(ctx, errCh)
	defer func() {
		s.close(ctx)
		s.log.Info(ctx, "payment service closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "Payment service has been started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (s *PaymentApp) close(ctx context.Context) {
	if s.httpServer != nil {
		if err := s.httpServer.Stop(ctx); err != nil {
			s.log.Warn(ctx, "Failed to gracefully close http server", "error", err.Error())
		}
	}

	if s.postgresDB != nil && s.postgresDB.Pool != nil {
		s.postgresDB.Pool.Close()
	}
}
