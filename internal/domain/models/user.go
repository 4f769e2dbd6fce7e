package models

import (
	"context"

	"github.com/uit-go/ridehail/pkg/uuid"
)

// User is the authenticated principal extracted from a bearer token.
// Identity management itself lives outside this repository.
type User struct {
	ID   uuid.UUID
	Role string
}

var anonymous = &User{}

func AnonymousUser() *User {
	return anonymous
}

func (u *User) IsAnonymous() bool {
	return u == anonymous || (u != nil && u.ID.IsZero())
}

type userCtxKey struct{}

// WithUser injects the user into the context
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the user stored in the context, or nil
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}
