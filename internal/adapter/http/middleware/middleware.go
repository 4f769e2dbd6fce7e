package middleware

import (
	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/pkg/logger"
)

type (
	// TokenVerifier turns a bearer token into an authenticated user.
	TokenVerifier interface {
		Verify(token string) (*models.User, error)
	}

	Middleware struct {
		tokens TokenVerifier
		log    logger.Logger
	}
)

func NewMiddleware(tokens TokenVerifier, log logger.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		log:    log,
	}
}
