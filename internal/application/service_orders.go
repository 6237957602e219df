package application

import (
	"context"
	"time"

	"github.com/viralforge/storefront/internal/domain"
	"github.com/viralforge/storefront/internal/pagedata"
)

// LoadOrderPage drives the order lifecycle for one request until it settles
// or the render timeout passes, in which case the loading fallback is shown.
func (s *Service) LoadOrderPage(ctx context.Context, id string, auth domain.AuthState) (OrderPage, error) {
	var redirect string
	lc, err := pagedata.New(ctx, pagedata.Options[domain.Order, int64]{
		Fetch:     s.orders.GetOrder,
		Derive:    domain.OrderTotal,
		Navigator: pagedata.NavigatorFunc(func(path string) { redirect = path }),
		LoginPath: s.cfg.LoginPath,
		Observer:  s.metrics,
		Logger:    s.logger,
	})
	if err != nil {
		return OrderPage{}, err
	}
	defer lc.Close()

	lc.Update(id, auth)
	state, waitErr := settle(ctx, s.cfg.RenderTimeout, lc.Wait)
	if waitErr != nil {
		s.logger.InfoContext(ctx, "order page rendered before fetch settled",
			"operation", "load_order_page",
			"outcome", "loading",
			"order_id", id,
			"error", waitErr.Error(),
		)
	}

	page := OrderPage{
		ID:         state.ID,
		Phase:      state.Phase,
		Loading:    state.Loading,
		Order:      state.Data,
		Total:      state.Derived,
		ErrorKind:  classifyError(state.Err),
		RedirectTo: redirect,
	}
	switch state.Phase {
	case pagedata.PhaseLoaded:
		s.publishOrderViewed(ctx, auth, state.Data, state.Derived)
	case pagedata.PhaseIdle:
		// Unresolved auth or nothing to show yet: render the fallback.
		page.Loading = true
	}
	s.metrics.PageRendered("order", pageOutcome(page.Phase, page.Loading, page.ErrorKind))
	return page, nil
}

// ListOrders reuses the page lifecycle for the order history, keyed on a
// fixed identifier since the list is scoped by the credential alone.
func (s *Service) ListOrders(ctx context.Context, auth domain.AuthState) (OrdersPage, error) {
	var redirect string
	lc, err := pagedata.New(ctx, pagedata.Options[[]domain.Order, []OrderSummary]{
		Fetch: func(ctx context.Context, _ string, auth domain.AuthState) ([]domain.Order, error) {
			return s.orders.ListOrders(ctx, auth)
		},
		Derive:    summarizeOrders,
		Navigator: pagedata.NavigatorFunc(func(path string) { redirect = path }),
		LoginPath: s.cfg.LoginPath,
		Observer:  s.metrics,
		Logger:    s.logger,
	})
	if err != nil {
		return OrdersPage{}, err
	}
	defer lc.Close()

	lc.Update("me", auth)
	state, _ := settle(ctx, s.cfg.RenderTimeout, lc.Wait)
	page := OrdersPage{
		Phase:      state.Phase,
		Loading:    state.Loading || state.Phase == pagedata.PhaseIdle,
		Orders:     state.Derived,
		ErrorKind:  classifyError(state.Err),
		RedirectTo: redirect,
	}
	s.metrics.PageRendered("orders", pageOutcome(page.Phase, page.Loading, page.ErrorKind))
	return page, nil
}

// OrderStaticPaths pre-builds no order pages; every order renders on demand.
// It needs no backend, so build tooling can call it without a Service.
func OrderStaticPaths() StaticPaths {
	return StaticPaths{Paths: []string{}, Fallback: true}
}

func (s *Service) OrderStaticPaths() StaticPaths { return OrderStaticPaths() }

// settle waits at most timeout for the lifecycle to finish fetching. On
// timeout the returned state is still loading.
func settle[T any, D any](ctx context.Context, timeout time.Duration, wait func(context.Context) (pagedata.State[T, D], error)) (pagedata.State[T, D], error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return wait(waitCtx)
}

func summarizeOrders(orders *[]domain.Order) []OrderSummary {
	if orders == nil {
		return nil
	}
	out := make([]OrderSummary, 0, len(*orders))
	for i := range *orders {
		o := &(*orders)[i]
		count := 0
		for _, item := range o.Items {
			if item.Quantity > 0 {
				count += item.Quantity
			}
		}
		out = append(out, OrderSummary{
			ID:        o.ID,
			ItemCount: count,
			Total:     domain.OrderTotal(o),
			CreatedAt: o.CreatedAt,
		})
	}
	return out
}

func pageOutcome(phase pagedata.Phase, loading bool, kind ErrorKind) string {
	switch {
	case phase == pagedata.PhaseUnauthenticated:
		return "redirect"
	case kind != ErrorKindNone:
		return string(kind)
	case loading:
		return "loading"
	default:
		return "ok"
	}
}
