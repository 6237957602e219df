package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/viralforge/storefront/internal/domain"
	"github.com/viralforge/storefront/internal/ports"
	"github.com/viralforge/storefront/internal/query"
)

const (
	cacheKeyGlobals       = "globals"
	cacheKeyProductPrefix = "product:"
)

func (s *Service) GetProduct(ctx context.Context, slug string) (domain.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Product{}, fmt.Errorf("%w: product slug is required", domain.ErrInvalidInput)
	}
	var product domain.Product
	err := s.cached(ctx, cacheKeyProductPrefix+slug, s.cfg.ProductCacheTTL, &product, func(ctx context.Context) (any, error) {
		data, err := s.graphql.Query(ctx, ports.GraphQLRequest{
			Query:     s.queries.MustRender(query.ProductQuery),
			Variables: map[string]any{"slug": slug},
		})
		if err != nil {
			return nil, err
		}
		doc := gjson.GetBytes(data, "Products.docs.0")
		if !doc.IsObject() {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, slug)
		}
		var p domain.Product
		if err := json.Unmarshal([]byte(doc.Raw), &p); err != nil {
			return nil, fmt.Errorf("%w: decode product %s: %v", domain.ErrFetchFailed, slug, err)
		}
		return p, nil
	})
	return product, err
}

// GetCart reads the signed-in user's cart. Guests get an empty cart page.
func (s *Service) GetCart(ctx context.Context, auth domain.AuthState) (CartPage, error) {
	if !auth.IsAuthenticated() {
		return CartPage{}, nil
	}
	data, err := s.graphql.Query(ctx, ports.GraphQLRequest{
		Query:      s.queries.MustRender(query.MeCartQuery),
		Credential: auth.Credential,
	})
	if err != nil {
		return CartPage{}, err
	}
	user := gjson.GetBytes(data, "meUser.user")
	if !user.IsObject() {
		return CartPage{}, fmt.Errorf("%w: session no longer valid", domain.ErrUnauthenticated)
	}
	var cart domain.Cart
	if raw := user.Get("cart"); raw.IsObject() {
		if err := json.Unmarshal([]byte(raw.Raw), &cart); err != nil {
			return CartPage{}, fmt.Errorf("%w: decode cart: %v", domain.ErrFetchFailed, err)
		}
	}
	return CartPage{Authenticated: true, Cart: cart, Total: domain.ItemsTotal(cart.Items)}, nil
}

func (s *Service) Globals(ctx context.Context) (domain.Globals, error) {
	var globals domain.Globals
	err := s.cached(ctx, cacheKeyGlobals, s.cfg.GlobalsCacheTTL, &globals, func(ctx context.Context) (any, error) {
		data, err := s.graphql.Query(ctx, ports.GraphQLRequest{Query: s.queries.MustRender(query.GlobalsQuery)})
		if err != nil {
			return nil, err
		}
		var g domain.Globals
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("%w: decode globals: %v", domain.ErrFetchFailed, err)
		}
		return g, nil
	})
	return globals, err
}

// ProductStaticPaths lists every product page for pre-rendering; products
// published later still render on demand.
func (s *Service) ProductStaticPaths(ctx context.Context) (StaticPaths, error) {
	data, err := s.graphql.Query(ctx, ports.GraphQLRequest{Query: s.queries.MustRender(query.ProductsQuery)})
	if err != nil {
		return StaticPaths{}, err
	}
	paths := []string{}
	gjson.GetBytes(data, "Products.docs.#.slug").ForEach(func(_, slug gjson.Result) bool {
		if v := strings.TrimSpace(slug.String()); v != "" {
			paths = append(paths, "/products/"+v)
		}
		return true
	})
	return StaticPaths{Paths: paths, Fallback: true}, nil
}

// cached decodes a JSON cache hit into out, or calls load and stores its
// result. Cache failures degrade to a direct load.
func (s *Service) cached(ctx context.Context, key string, ttl time.Duration, out any, load func(context.Context) (any, error)) error {
	if s.cache != nil {
		raw, found, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "cache read failed",
				"operation", "cache_get",
				"outcome", "failure",
				"key", key,
				"error", err.Error(),
			)
		case found:
			if err := json.Unmarshal([]byte(raw), out); err == nil {
				s.metrics.CacheLookup(true)
				return nil
			}
		}
		s.metrics.CacheLookup(false)
	}

	value, err := load(ctx)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, string(encoded), ttl); err != nil {
			s.logger.WarnContext(ctx, "cache write failed",
				"operation", "cache_set",
				"outcome", "failure",
				"key", key,
				"error", err.Error(),
			)
		}
	}
	return nil
}
