package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported to gRPC health checks.
const ServiceName = "wallet.WalletService"

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter keeps the standard gRPC health service in step with the
// wallet's dependencies.
type HealthReporter struct {
	server   *health.Server
	checks   map[string]Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewHealthReporter(checks map[string]Pinger, interval time.Duration, logger *slog.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthReporter{
		server:   health.NewServer(),
		checks:   checks,
		interval: interval,
		timeout:  2 * time.Second,
		logger:   logger.With("component", "grpc_health"),
	}
}

// Server returns the health service to register on a grpc.Server.
func (h *HealthReporter) Server() healthpb.HealthServer {
	return h.server
}

// Check pings every dependency once and publishes the aggregate status for
// both the overall server and ServiceName.
func (h *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, p := range h.checks {
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			h.logger.WarnContext(ctx, "Dependency health check failed", "dependency", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Run re-checks dependencies until ctx is done, then marks the server as
// shutting down.
func (h *HealthReporter) Run(ctx context.Context) error {
	h.Check(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return nil
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
