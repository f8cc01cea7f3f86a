package backend

import (
	"context"
	"log/slog"
	"math"
	"time"

	"google.golang.org/grpc/codes"
)

// RetryConfig holds the retry strategy for read-only remote calls.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryable is a call that may be repeated.
type retryable[T any] func(ctx context.Context) (T, error)

// doRetry runs fn with exponential backoff while it fails with Unavailable.
// Any other error, or a cancelled ctx, ends the loop immediately. Errors are
// returned as TransportErrors.
func doRetry[T any](ctx context.Context, cfg RetryConfig, log *slog.Logger, op string, fn retryable[T]) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		err = FromError(err)
		if attempt >= attempts || !isRetryable(err) {
			return zero, err
		}

		backoff := calculateBackoff(attempt-1, cfg)
		log.Warn("backend call failed, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, FromError(ctx.Err())
		case <-timer.C:
		}
	}
}

func isRetryable(err error) bool {
	te, ok := err.(*TransportError)
	return ok && te.HasCode && te.Code == codes.Unavailable
}

// calculateBackoff returns exponential backoff duration.
func calculateBackoff(attemptNum int, cfg RetryConfig) time.Duration {
	backoff := time.Duration(float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attemptNum)))
	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}
	return backoff
}
