package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	cacheadapter "github.com/viralforge/storefront/internal/adapters/cache"
	"github.com/viralforge/storefront/internal/adapters/cms"
	eventadapter "github.com/viralforge/storefront/internal/adapters/events"
	grpcadapter "github.com/viralforge/storefront/internal/adapters/grpc"
	httpadapter "github.com/viralforge/storefront/internal/adapters/http"
	"github.com/viralforge/storefront/internal/adapters/security"
	"github.com/viralforge/storefront/internal/application"
	"github.com/viralforge/storefront/internal/metrics"
	"github.com/viralforge/storefront/internal/ports"
	"github.com/viralforge/storefront/internal/query"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	readiness  *grpcadapter.ReadinessWatcher
	cleanupFn  func(ctx context.Context)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type closer interface {
	Close() error
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)
	logger.Info("bootstrapping storefront", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort, "cms_url", cfg.CMSURL)

	// A broken fragment catalog must stop startup, never surface per request.
	queries, err := query.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("validate query catalog: %w", err)
	}

	client, err := cms.NewClient(cms.Config{
		BaseURL:    cfg.CMSURL,
		CookieName: cfg.CookieName,
		Timeout:    cfg.CMSTimeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init cms client: %w", err)
	}

	var cache interface {
		ports.Cache
		pinger
	}
	var cleanups []func()
	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cache = cacheadapter.NewRedisCache(redisClient, cfg.ServiceID+":")
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
	} else {
		logger.Warn("redis url not set, using in-process cache")
		cache = cacheadapter.NewMemoryCache()
	}

	var publisher interface {
		ports.EventPublisher
		closer
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventTopics)
		if err != nil {
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		publisher = kp
	} else {
		publisher = eventadapter.NewLoggingPublisher(logger)
	}
	cleanups = append(cleanups, func() { _ = publisher.Close() })

	var tokens ports.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier, err := security.NewSessionVerifier(cfg.JWTSecret, cfg.UserCollection)
		if err != nil {
			return nil, fmt.Errorf("init session verifier: %w", err)
		}
		tokens = verifier
	} else {
		logger.Info("cms jwt secret not set, resolving sessions through the cms")
	}

	m := metrics.New()
	svc, err := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:     cfg.ServiceID,
			LoginPath:       cfg.LoginPath,
			RenderTimeout:   cfg.RenderTimeout,
			GlobalsCacheTTL: cfg.GlobalsCacheTTL,
			ProductCacheTTL: cfg.ProductCacheTTL,
		},
		Queries:  queries,
		Orders:   cms.NewOrders(client),
		GraphQL:  cms.NewGraphQL(client, cfg.GraphQLPath),
		Sessions: cms.NewSessions(client),
		Tokens:   tokens,
		Cache:    cache,
		Events:   publisher,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init application: %w", err)
	}

	renderer, err := httpadapter.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("init page renderer: %w", err)
	}
	ready := func(ctx context.Context) error { return cache.Ping(ctx) }
	handler := httpadapter.NewHandler(svc, renderer, httpadapter.HandlerConfig{
		CookieName: cfg.CookieName,
		LoginURL:   strings.TrimRight(cfg.CMSURL, "/") + "/admin/login",
		Metrics:    m.Handler(),
		Ready:      ready,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler, m.InstrumentHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	hs := grpcadapter.RegisterHealth(grpcServer)
	cleanupFn := func(context.Context) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		cleanupFn(ctx)
		return nil, fmt.Errorf("listen grpc: %w", err)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		readiness:  grpcadapter.NewReadinessWatcher(hs, ready, cfg.ReadinessPeriod, logger),
		cleanupFn:  cleanupFn,
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() { _ = r.readiness.Run(watchCtx) }()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}
	stopWatch()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}
