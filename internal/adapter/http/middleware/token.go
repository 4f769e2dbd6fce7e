package middleware

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/pkg/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// JWTVerifier validates HS256 access tokens issued by the identity
// provider. Token issuing itself lives outside this repository.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(token string) (*models.User, error) {
	parsed, err := jwt.ParseWithClaims(token, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userIDStr, _ := mc["user_id"].(string)
	if userIDStr == "" {
		return nil, fmt.Errorf("missing 'user_id' in token claims")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid 'user_id' in token claims")
	}

	role, _ := mc["role"].(string)
	if role == "" {
		return nil, fmt.Errorf("missing 'role' in token claims")
	}

	return &models.User{ID: userID, Role: role}, nil
}
