package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/configparser"
)

// Flags
var (
	modeFlag = flag.String("mode", "", "application mode")
)

// Errors
var (
	ErrModeNotProvided = errors.New("mode flag not provided")
	ErrUnknownMode     = errors.New("unknown application mode")
)

// Config contains all configuration variables of the application
type (
	Config struct {
		Mode types.ServiceMode

		Database Database
		Redis    Redis
		RabbitMQ RabbitMQ
		Services Services
		Auth     Auth
		Location Location
		Matching Matching
		Routing  Routing
		Payment  Payment
	}

	Database struct {
		Host     string `env:"DATABASE_HOST" default:"localhost"`
		Port     string `env:"DATABASE_PORT" default:"5432"`
		User     string `env:"DATABASE_USER" default:"ridehail_user"`
		Password string `env:"DATABASE_PASSWORD" default:"ridehail_pass"`
		Database string `env:"DATABASE_DATABASE" default:"ridehail_db"`

		MaxConns        int32         `env:"DATABASE_MAXCONNS" default:"20"`
		MinConns        int32         `env:"DATABASE_MINCONNS" default:"2"`
		MaxConnLifetime time.Duration `env:"DATABASE_MAXCONNLIFETIME" default:"30m"`
		MaxConnIdleTime time.Duration `env:"DATABASE_MAXCONNIDLETIME" default:"5m"`
	}

	// Redis is optional; with Host empty the services fall back to the
	// in-memory location and reservation stores.
	Redis struct {
		Host     string `env:"REDIS_HOST"`
		Port     string `env:"REDIS_PORT" default:"6379"`
		Password string `env:"REDIS_PASSWORD"`
	}

	RabbitMQ struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`
	}

	Services struct {
		TripService     string `env:"SERVICES_TRIP_SERVICE" default:"3000"`
		LocationService string `env:"SERVICES_LOCATION_SERVICE" default:"3001"`
		PaymentService  string `env:"SERVICES_PAYMENT_SERVICE" default:"3002"`

		// Base URLs the trip service uses to reach its collaborators.
		LocationBaseURL string        `env:"SERVICES_LOCATION_BASE_URL" default:"http://localhost:3001"`
		PaymentBaseURL  string        `env:"SERVICES_PAYMENT_BASE_URL" default:"http://localhost:3002"`
		InternalToken   string        `env:"SERVICES_INTERNAL_TOKEN" default:"internal-dev-token"`
		ClientTimeout   time.Duration `env:"SERVICES_CLIENT_TIMEOUT" default:"10s"`
	}

	Auth struct {
		JWTSecret string `env:"AUTH_JWT_SECRET" default:"supersecretkey"`
	}

	Location struct {
		DriverTTL      time.Duration `env:"LOCATION_DRIVER_TTL" default:"300s"`
		SearchRadiusKm float64       `env:"LOCATION_SEARCH_RADIUS_KM" default:"5"`
		NearbyLimit    int           `env:"LOCATION_NEARBY_LIMIT" default:"20"`
		CompactEvery   time.Duration `env:"LOCATION_COMPACT_EVERY" default:"1m"`
	}

	Matching struct {
		ReservationTTL time.Duration `env:"MATCHING_RESERVATION_TTL" default:"15s"`
		CandidateLimit int           `env:"MATCHING_CANDIDATE_LIMIT" default:"10"`
	}

	Routing struct {
		MapboxToken string        `env:"ROUTING_MAPBOX_TOKEN"`
		Timeout     time.Duration `env:"ROUTING_TIMEOUT" default:"10s"`
	}

	Payment struct {
		CommissionRate float64 `env:"PAYMENT_COMMISSION_RATE" default:"0.20"`
		Currency       string  `env:"PAYMENT_CURRENCY" default:"VND"`

		VNPayURL        string `env:"PAYMENT_VNPAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
		VNPayTmnCode    string `env:"PAYMENT_VNPAY_TMN_CODE"`
		VNPayHashSecret string `env:"PAYMENT_VNPAY_HASH_SECRET"`
		VNPayReturnURL  string `env:"PAYMENT_VNPAY_RETURN_URL" default:"http://localhost:3002/v1/payments/vnpay/callback"`
	}
)

func (c Database) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// PoolLimits reports the pgx pool sizing from the environment.
func (c Database) PoolLimits() (maxConns, minConns int32, maxConnLifetime, maxConnIdleTime time.Duration) {
	return c.MaxConns, c.MinConns, c.MaxConnLifetime, c.MaxConnIdleTime
}

func (c RabbitMQ) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func (c Redis) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func (c Redis) GetPassword() string {
	return c.Password
}

// Enabled reports whether a Redis host is configured.
func (c Redis) Enabled() bool {
	return c.Host != ""
}

func NewConfig() (*Config, error) {
	cfg := &Config{}

	// Loading environment variables and parsing to config struct.
	if err := configparser.ParseEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Parsing flags
	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	return cfg, nil
}

func parseFlags(cfg *Config) error {
	if modeFlag == nil || *modeFlag == "" {
		return ErrModeNotProvided
	}

	mode := types.ServiceMode(*modeFlag)
	switch mode {
	case types.TripService, types.LocationService, types.PaymentService:
		cfg.Mode = mode
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMode, *modeFlag)
	}

	return nil
}
