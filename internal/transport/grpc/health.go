// Package grpc exposes the storefront's serving status over the standard
// gRPC health protocol.
package grpc

import (
	"log/slog"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SnapshotService is the health service name that tracks snapshot storage.
const SnapshotService = "storefront.snapshot"

type Health struct {
	server *health.Server
	logger *slog.Logger
}

// NewHealth creates a health server reporting SERVING for the process and
// for snapshot storage.
func NewHealth(logger *slog.Logger) *Health {
	s := health.NewServer()
	s.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.SetServingStatus(SnapshotService, healthpb.HealthCheckResponse_SERVING)
	return &Health{server: s, logger: logger.With("component", "health")}
}

// Register adds the health service to s.
func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// OnBreakerStateChange marks snapshot storage NOT_SERVING while its breaker is open.
func (h *Health) OnBreakerStateChange(name string, from, to gobreaker.State) {
	h.logger.Warn("Snapshot storage breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
	st := healthpb.HealthCheckResponse_SERVING
	if to == gobreaker.StateOpen {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus(SnapshotService, st)
}

// Shutdown reports NOT_SERVING for every service so clients drain before the listener closes.
func (h *Health) Shutdown() {
	h.server.Shutdown()
}
