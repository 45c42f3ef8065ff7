package auth

import (
	"context"
	"net/url"
)

// Identity is the stable tuple an identity provider yields after a completed
// OAuth exchange.
type Identity struct {
	Provider       string
	ProviderUserID string
	Email          string
	DisplayName    string
	AvatarURL      string
}

// IdentityProvider abstracts one third-party login integration. Concrete
// providers (Google, GitHub, Discord) are registered by the process entry
// point; the resolver never branches on provider name except to persist it.
type IdentityProvider interface {
	// Name is the provider slug used in routes and persisted on users.
	Name() string
	// BeginAuth returns the provider URL to redirect the browser to.
	BeginAuth(state string) (string, error)
	// CompleteAuth exchanges callback parameters for the external identity.
	CompleteAuth(ctx context.Context, params url.Values) (Identity, error)
}
