package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultProbeInterval = 5 * time.Second

// ReadinessProbe reports whether the backing store can serve requests.
type ReadinessProbe func(ctx context.Context) error

// HealthReporter publishes serving status for the whole server and the booking service.
type HealthReporter struct {
	server   *health.Server
	probe    ReadinessProbe
	interval time.Duration
	logger   *zap.Logger
}

// NewHealthReporter registers a health service on grpcServer. Status starts as NOT_SERVING
// until the first successful probe.
func NewHealthReporter(grpcServer grpc.ServiceRegistrar, probe ReadinessProbe, interval time.Duration, logger *zap.Logger) *HealthReporter {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reporter := &HealthReporter{server: healthServer, probe: probe, interval: interval, logger: logger}
	reporter.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return reporter
}

// Check runs the probe once and updates the published status.
func (reporter *HealthReporter) Check(ctx context.Context) bool {
	if reporter.probe == nil {
		reporter.set(healthpb.HealthCheckResponse_SERVING)
		return true
	}
	probeCtx, cancel := context.WithTimeout(ctx, reporter.interval)
	defer cancel()
	if err := reporter.probe(probeCtx); err != nil {
		reporter.logger.Warn("readiness probe failed", zap.Error(err))
		reporter.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	reporter.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Watch probes until ctx is done, then marks the server as shutting down.
func (reporter *HealthReporter) Watch(ctx context.Context) {
	ticker := time.NewTicker(reporter.interval)
	defer ticker.Stop()
	reporter.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			reporter.Shutdown()
			return
		case <-ticker.C:
			reporter.Check(ctx)
		}
	}
}

// Shutdown sets NOT_SERVING everywhere and ignores later updates.
func (reporter *HealthReporter) Shutdown() {
	reporter.server.Shutdown()
}

func (reporter *HealthReporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	reporter.server.SetServingStatus("", status)
	reporter.server.SetServingStatus(ServiceName, status)
}
