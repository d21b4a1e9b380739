package saga

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fjod/go_checkout/domain"
)

// isBusinessError reports whether err is a business outcome that must not be
// retried: retrying an out-of-stock SKU or an unknown SKU cannot succeed.
func isBusinessError(err error) bool {
	var oos *domain.OutOfStockError
	var unknown *domain.UnknownSKUError
	return errors.As(err, &oos) || errors.As(err, &unknown)
}

// retryTransport runs fn up to attempts times with exponential backoff,
// stopping early on success, on a business error, or when ctx is done.
func retryTransport(ctx context.Context, attempts int, baseDelay time.Duration, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil || isBusinessError(lastErr) {
			return lastErr
		}

		if attempt == attempts {
			break
		}
		log.Printf("%s failed (attempt %d/%d), retrying in %v: %v", op, attempt, attempts, delay, lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return lastErr
}

// retryCompensation is retryTransport without the ctx short-circuit:
// compensation of applied side effects must run even when the request that
// started the saga has been cancelled.
func retryCompensation(attempts int, baseDelay time.Duration, op string, fn func(ctx context.Context) error) error {
	detached := context.Background()
	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(detached)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}
		log.Printf("compensation %s failed (attempt %d/%d), retrying in %v: %v", op, attempt, attempts, delay, lastErr)
		time.Sleep(delay)
		delay *= 2
	}
	return lastErr
}
