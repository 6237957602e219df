package ports

import (
	"context"

	"github.com/viralforge/storefront/internal/domain"
)

// SessionResolver turns a raw session credential into an auth state. An
// implementation that cannot reach its authority returns an error, which the
// application treats as unresolved.
type SessionResolver interface {
	ResolveSession(ctx context.Context, credential string) (domain.AuthState, error)
}

type TokenVerifier interface {
	Verify(credential string) (domain.User, error)
}
