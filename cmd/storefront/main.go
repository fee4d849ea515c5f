package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abgdnv/storefront/internal/app"
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/config"
	grpcImpl "github.com/abgdnv/storefront/internal/transport/grpc"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/bootstrap"
	"github.com/abgdnv/storefront/pkg/config/configloader"
	"github.com/abgdnv/storefront/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

const serviceName = "storefront"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run wires the storefront and serves HTTP, gRPC and pprof until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	telemetry.SetPropagator()
	if cfg.Telemetry.Enabled() {
		tp, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to shut down tracer provider", "error", err)
			}
		}()
	}
	metrics, err := telemetry.NewMetrics(serviceName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down meter provider", "error", err)
		}
	}()

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	logger.Info("Catalog loaded", slog.Int("products", len(cat.All())))

	health := grpcImpl.NewHealth(logger)
	storage, closeStorage, err := app.SetupStorage(ctx, cfg.Storage, cfg.Resilience, health.OnBreakerStateChange, logger)
	if err != nil {
		return fmt.Errorf("failed to set up snapshot storage: %w", err)
	}
	defer closeStorage()

	rep, closeReporter, err := app.SetupReporter(ctx, serviceName, cfg.Nats, logger)
	if err != nil {
		return fmt.Errorf("failed to set up error reporter: %w", err)
	}
	defer closeReporter()

	deps, err := app.SetupDependencies(cat, storage, rep, health, cfg, logger)
	if err != nil {
		return err
	}
	deps.Metrics = metrics.Handler()
	if cfg.IdP.Enabled() {
		verifier, err := auth.NewJWTVerifier(ctx, cfg.IdP)
		if err != nil {
			return fmt.Errorf("failed to set up token verifier: %w", err)
		}
		deps.Verifier = verifier
	}

	httpServer := app.SetupHttpServer(deps, cfg, serviceName)

	g, gCtx := errgroup.WithContext(ctx)

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.GrpcServer.Enabled() {
		grpcServer := app.SetupGrpcServer(deps, cfg.GrpcServer.ReflectionEnabled)
		lis, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port %s: %w", cfg.GrpcServer.Port, err)
		}
		g.Go(func() error {
			logger.Info("gRPC server listening", slog.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down gRPC server...")
			health.Shutdown()
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(cfg.Shutdown.Timeout):
				grpcServer.Stop()
			}
			return nil
		})
	}

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		pprofServer := &http.Server{
			Addr:              cfg.PProf.Addr,
			ReadHeaderTimeout: cfg.HTTPServer.Timeout.ReadHeader,
		}
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}

	// Evict idle session stores; their snapshots stay in storage.
	g.Go(func() error {
		return deps.Sessions.RunSweeper(gCtx, cfg.Sessions.Sweep, cfg.Sessions.Idle, func(dropped int) {
			if dropped > 0 {
				logger.Debug("Idle sessions evicted", slog.Int("count", dropped), slog.Int("active", deps.Sessions.Len()))
			}
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}
