package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check service name clients can query in addition
// to the overall ("") status.
const ServiceName = "storefront.v1.Storefront"

// RegisterHealth installs the standard health service, initially serving.
func RegisterHealth(server *grpc.Server) *health.Server {
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return hs
}

// ReadinessWatcher mirrors the storefront's dependency readiness into the
// gRPC health status.
type ReadinessWatcher struct {
	health   *health.Server
	check    func(ctx context.Context) error
	interval time.Duration
	logger   *slog.Logger
}

func NewReadinessWatcher(hs *health.Server, check func(ctx context.Context) error, interval time.Duration, logger *slog.Logger) *ReadinessWatcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadinessWatcher{health: hs, check: check, interval: interval, logger: logger}
}

func (w *ReadinessWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.probe(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ReadinessWatcher) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if w.check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, w.interval)
		err := w.check(checkCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			w.logger.WarnContext(ctx, "readiness check failed",
				"module", "grpc.health",
				"layer", "adapter",
				"operation", "probe",
				"outcome", "failure",
				"error", err.Error(),
			)
		}
	}
	w.health.SetServingStatus(ServiceName, status)
}
