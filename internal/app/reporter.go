package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/storefront/internal/reporter"
	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/messaging"
	pkgnats "github.com/abgdnv/storefront/pkg/nats"
)

// SetupReporter always logs reports; with NATS configured it also publishes them.
func SetupReporter(ctx context.Context, serviceName string, cfg config.NATSConfig, logger *slog.Logger) (reporter.Reporter, func(), error) {
	logReporter := reporter.NewLogReporter(logger)
	if !cfg.Enabled() {
		return logReporter, func() {}, nil
	}

	nc, err := pkgnats.NewClient(cfg.Url, serviceName, cfg.Timeout)
	if err != nil {
		return nil, func() {}, err
	}
	js, err := pkgnats.NewJetStream(ctx, nc, messaging.StorefrontStream, messaging.ErrorsReportedSubject)
	if err != nil {
		nc.Close()
		return nil, func() {}, fmt.Errorf("failed to set up error reporting stream: %w", err)
	}
	logger.Info("Successfully connected to NATS!")

	closer := func() {
		if err := nc.Drain(); err != nil {
			logger.Error("Failed to drain NATS connection", "error", err)
		}
	}
	publishing := reporter.NewPublishingReporter(pkgnats.NewPublisher(js), serviceName, cfg.PublishTimeout, logger)
	return reporter.Multi{logReporter, publishing}, closer, nil
}
