package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abgdnv/storefront/internal/commerce"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/config"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/retry"
	"github.com/sony/gobreaker/v2"
)

// ResilientStorage retries transient failures of the wrapped storage with
// exponential backoff and stops calling it while its circuit breaker is open.
// A missing snapshot is an answer, not a failure.
type ResilientStorage struct {
	next        commerce.Storage
	breaker     *gobreaker.CircuitBreaker[[]byte]
	maxAttempts uint
	backoff     retry.BackoffFunc
}

// NewResilientStorage wraps next. name identifies the breaker in state-change callbacks.
func NewResilientStorage(name string, next commerce.Storage, cfg config.ResilienceConfig, onStateChange func(name string, from, to gobreaker.State)) *ResilientStorage {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     cfg.CircuitBreaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.CircuitBreaker.ConsecutiveFailures ||
				(total > cfg.CircuitBreaker.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.CircuitBreaker.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, sferrors.ErrSnapshotNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: onStateChange,
	}
	return &ResilientStorage{
		next:        next,
		breaker:     gobreaker.NewCircuitBreaker[[]byte](st),
		maxAttempts: max(cfg.Retry.MaxAttempts, 1),
		backoff:     retry.BackoffExponentialWithJitter(cfg.Retry.InitialBackoff, 0.1),
	}
}

func (r *ResilientStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return r.do(ctx, func() ([]byte, error) { return r.next.Get(ctx, key) })
}

func (r *ResilientStorage) Put(ctx context.Context, key string, data []byte) error {
	_, err := r.do(ctx, func() ([]byte, error) { return nil, r.next.Put(ctx, key, data) })
	return err
}

func (r *ResilientStorage) do(ctx context.Context, call func() ([]byte, error)) ([]byte, error) {
	var lastErr error
	for attempt := uint(0); attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(r.backoff(ctx, attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%w: %w", sferrors.ErrStorageUnavailable, lastErr)
			case <-timer.C:
			}
		}
		data, err := r.breaker.Execute(call)
		switch {
		case err == nil:
			return data, nil
		case errors.Is(err, sferrors.ErrSnapshotNotFound):
			return nil, err
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, fmt.Errorf("%w: %w", sferrors.ErrStorageUnavailable, err)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %w", sferrors.ErrStorageUnavailable, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %w", sferrors.ErrStorageUnavailable, lastErr)
}

// State reports the breaker state, for health reporting.
func (r *ResilientStorage) State() gobreaker.State {
	return r.breaker.State()
}
