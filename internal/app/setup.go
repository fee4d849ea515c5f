// Package app contains the application setup for the storefront service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/commerce"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/internal/reporter"
	"github.com/abgdnv/storefront/internal/service"
	grpcImpl "github.com/abgdnv/storefront/internal/transport/grpc"
	"github.com/abgdnv/storefront/internal/transport/rest"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/server"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
)

type Dependencies struct {
	StorefrontService service.StorefrontService
	Sessions          *service.Sessions
	Health            *grpcImpl.Health
	Verifier          auth.Verifier
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// SetupDependencies builds the service over one store per session, each
// persisting through storage and reporting failures to rep.
func SetupDependencies(cat *catalog.Catalog, storage commerce.Storage, rep reporter.Reporter, health *grpcImpl.Health,
	cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {

	sessions := service.NewSessions(storage, rep, cfg.Storage.Namespace, cfg.Storage.Timeout)
	if err := observeSessions(sessions); err != nil {
		return nil, err
	}
	return &Dependencies{
		StorefrontService: service.NewService(cat, sessions),
		Sessions:          sessions,
		Health:            health,
		Logger:            logger,
	}, nil
}

// observeSessions exports the number of session stores held in memory.
func observeSessions(sessions *service.Sessions) error {
	_, err := otel.Meter("github.com/abgdnv/storefront/internal/app").Int64ObservableGauge(
		"storefront.sessions.active",
		metric.WithDescription("Session stores held in memory"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(sessions.Len()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to register sessions gauge: %w", err)
	}
	return nil
}

// SetupHttpHandler initializes the router and routes for the storefront.
// Used by tests to exercise the full middleware chain.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.StorefrontService, deps.Verifier, deps.Logger)
	handler.RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
}

// SetupHttpServer creates and configures an HTTP server for the storefront.
func SetupHttpServer(deps *Dependencies, cfg *config.Config, serviceName string) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, serviceName, mux)
}

// SetupGrpcServer initializes the gRPC server with the health service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(deps.Logger, reflectionEnabled, deps.Health.Register)
}
