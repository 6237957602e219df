package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/viralforge/storefront/internal/domain"
	"github.com/viralforge/storefront/internal/ports"
)

type Orders struct {
	client *Client
}

func NewOrders(client *Client) *Orders {
	return &Orders{client: client}
}

// GetOrder relies on backend access control to scope the order to the
// credential's owner, so no where-clause is sent.
func (o *Orders) GetOrder(ctx context.Context, id string, auth domain.AuthState) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", domain.ErrInvalidInput)
	}
	raw, err := o.client.get(ctx, "/api/orders/"+url.PathEscape(id), auth.Credential)
	if err != nil {
		return domain.Order{}, err
	}
	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return domain.Order{}, fmt.Errorf("%w: decode order %s: %v", domain.ErrFetchFailed, id, err)
	}
	return order, nil
}

func (o *Orders) ListOrders(ctx context.Context, auth domain.AuthState) ([]domain.Order, error) {
	q := url.Values{}
	q.Set("depth", "0")
	q.Set("sort", "-createdAt")
	q.Set("limit", "100")
	raw, err := o.client.get(ctx, "/api/orders?"+q.Encode(), auth.Credential)
	if err != nil {
		return nil, err
	}
	var page struct {
		Docs []domain.Order `json:"docs"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("%w: decode orders: %v", domain.ErrFetchFailed, err)
	}
	if page.Docs == nil {
		page.Docs = []domain.Order{}
	}
	return page.Docs, nil
}

var _ ports.OrderSource = (*Orders)(nil)
