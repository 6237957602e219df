package cms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/viralforge/storefront/internal/domain"
	"github.com/viralforge/storefront/internal/ports"
)

// Sessions resolves a credential by asking the backend who it belongs to.
type Sessions struct {
	client *Client
}

func NewSessions(client *Client) *Sessions {
	return &Sessions{client: client}
}

func (s *Sessions) ResolveSession(ctx context.Context, credential string) (domain.AuthState, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.Unauthenticated(), nil
	}
	raw, err := s.client.get(ctx, "/api/users/me", credential)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthorized) {
			return domain.Unauthenticated(), nil
		}
		return domain.Unresolved(), err
	}
	if !gjson.ValidBytes(raw) {
		return domain.Unresolved(), fmt.Errorf("%w: invalid session payload", domain.ErrFetchFailed)
	}
	userJSON := gjson.GetBytes(raw, "user")
	if !userJSON.IsObject() {
		return domain.Unauthenticated(), nil
	}
	user := domain.User{
		ID:    userJSON.Get("id").String(),
		Email: userJSON.Get("email").String(),
		Name:  userJSON.Get("name").String(),
	}
	if user.ID == "" {
		return domain.Unauthenticated(), nil
	}
	return domain.Authenticated(user, credential), nil
}

var _ ports.SessionResolver = (*Sessions)(nil)
