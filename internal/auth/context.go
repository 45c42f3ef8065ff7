package auth

import (
	"context"

	"github.com/petejm/possumbly/internal/models"
)

type contextKey string

const ctxKeyUser contextKey = "auth_user"

// WithUser returns a context carrying the resolved user. Only RequireUser
// sets this; handlers behind the guard chain can rely on UserFrom being
// non-nil.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// UserFrom returns the resolved user, or nil outside the guard chain.
func UserFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(ctxKeyUser).(*models.User)
	return user
}
