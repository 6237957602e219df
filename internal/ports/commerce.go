package ports

import (
	"context"
	"encoding/json"

	"github.com/viralforge/storefront/internal/domain"
)

// OrderSource reads orders from the commerce backend with the caller's
// credential. Failures are classified with domain.ErrNotFound,
// domain.ErrNotAuthorized or domain.ErrFetchFailed.
type OrderSource interface {
	GetOrder(ctx context.Context, id string, auth domain.AuthState) (domain.Order, error)
	ListOrders(ctx context.Context, auth domain.AuthState) ([]domain.Order, error)
}

type GraphQLRequest struct {
	Query     string
	Variables map[string]any
	// Credential is forwarded when the query reads user-scoped data.
	Credential string
}

// GraphQLClient executes a composed document and returns the raw "data" object.
type GraphQLClient interface {
	Query(ctx context.Context, req GraphQLRequest) (json.RawMessage, error)
}
