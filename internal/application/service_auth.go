package application

import (
	"context"
	"strings"

	"github.com/viralforge/storefront/internal/domain"
)

// ResolveAuth never fails: a session authority that cannot be reached yields
// an unresolved state, which pages treat as "not known yet".
func (s *Service) ResolveAuth(ctx context.Context, credential string) domain.AuthState {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.Unauthenticated()
	}
	if s.tokens != nil {
		user, err := s.tokens.Verify(credential)
		if err != nil {
			s.logger.InfoContext(ctx, "session token rejected",
				"operation", "resolve_auth",
				"outcome", "unauthenticated",
				"error", err.Error(),
			)
			return domain.Unauthenticated()
		}
		return domain.Authenticated(user, credential)
	}
	state, err := s.sessions.ResolveSession(ctx, credential)
	if err != nil {
		s.logger.WarnContext(ctx, "session resolution failed",
			"operation", "resolve_auth",
			"outcome", "unresolved",
			"error", err.Error(),
		)
		return domain.Unresolved()
	}
	return state
}
