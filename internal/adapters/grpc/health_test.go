package grpc

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func status(t *testing.T, w *ReadinessWatcher, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := w.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	return resp.GetStatus()
}

func TestReadinessWatcherTogglesServiceStatus(t *testing.T) {
	server := grpc.NewServer()
	defer server.Stop()
	hs := RegisterHealth(server)

	var failing error
	w := NewReadinessWatcher(hs, func(context.Context) error { return failing }, 0, nil)

	w.probe(context.Background())
	if got := status(t, w, ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected serving, got %v", got)
	}

	failing = errors.New("cms unreachable")
	w.probe(context.Background())
	if got := status(t, w, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected not serving, got %v", got)
	}
	if got := status(t, w, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected process-level status to stay serving, got %v", got)
	}
}

func TestReadinessWatcherStopsOnCancel(t *testing.T) {
	server := grpc.NewServer()
	defer server.Stop()
	w := NewReadinessWatcher(RegisterHealth(server), nil, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
