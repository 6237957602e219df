package application

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/viralforge/storefront/internal/domain"
	"github.com/viralforge/storefront/internal/pagedata"
	"github.com/viralforge/storefront/internal/ports"
	"github.com/viralforge/storefront/internal/query"
)

type Service struct {
	cfg      Config
	queries  *query.Registry
	orders   ports.OrderSource
	graphql  ports.GraphQLClient
	sessions ports.SessionResolver
	tokens   ports.TokenVerifier
	cache    ports.Cache
	events   ports.EventPublisher
	metrics  ports.Metrics
	logger   *slog.Logger
	nowFn    func() time.Time
}

type Dependencies struct {
	Config   Config
	Queries  *query.Registry
	Orders   ports.OrderSource
	GraphQL  ports.GraphQLClient
	Sessions ports.SessionResolver
	// Tokens is optional; without it every credential is resolved through Sessions.
	Tokens  ports.TokenVerifier
	Cache   ports.Cache
	Events  ports.EventPublisher
	Metrics ports.Metrics
	Logger  *slog.Logger
}

func NewService(deps Dependencies) (*Service, error) {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "storefront"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = pagedata.DefaultLoginPath
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 5 * time.Second
	}
	if cfg.GlobalsCacheTTL <= 0 {
		cfg.GlobalsCacheTTL = 5 * time.Minute
	}
	if cfg.ProductCacheTTL <= 0 {
		cfg.ProductCacheTTL = time.Minute
	}
	if cfg.OrderViewedEvent == "" {
		cfg.OrderViewedEvent = "storefront.order_viewed"
	}
	if deps.Orders == nil || deps.GraphQL == nil || deps.Sessions == nil {
		return nil, fmt.Errorf("%w: orders, graphql and session dependencies are required", domain.ErrInvalidInput)
	}
	queries := deps.Queries
	if queries == nil {
		var err error
		if queries, err = query.DefaultRegistry(); err != nil {
			return nil, fmt.Errorf("build query catalog: %w", err)
		}
	}
	if !queries.Sealed() {
		if err := queries.Seal(); err != nil {
			return nil, fmt.Errorf("seal query catalog: %w", err)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	return &Service{
		cfg:      cfg,
		queries:  queries,
		orders:   deps.Orders,
		graphql:  deps.GraphQL,
		sessions: deps.Sessions,
		tokens:   deps.Tokens,
		cache:    deps.Cache,
		events:   deps.Events,
		metrics:  m,
		logger:   logger.With("module", "application", "layer", "application"),
		nowFn:    time.Now,
	}, nil
}

func (s *Service) LoginPath() string { return s.cfg.LoginPath }

type noopMetrics struct{}

func (noopMetrics) FetchCompleted(string, time.Duration) {}
func (noopMetrics) StaleDiscarded()                      {}
func (noopMetrics) CacheLookup(bool)                     {}
func (noopMetrics) PageRendered(string, string)          {}
