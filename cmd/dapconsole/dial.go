package main

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// dialBackOff is the delay schedule between connection attempts to an
// adapter that may still be starting.
func dialBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.Multiplier = 2
	return b
}

// dialWithRetry calls dial until it succeeds, attempts are used up or ctx
// ends. The last dial error is returned when every attempt failed.
func dialWithRetry[T any](ctx context.Context, attempts int, b backoff.BackOff, logger *zap.Logger, dial func() (T, error)) (T, error) {
	tries := 0
	return backoff.Retry(ctx, backoff.Operation[T](func() (T, error) {
		tries++
		return dial()
	}),
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(max(attempts, 1))),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Info("adapter not reachable, retrying",
				zap.Int("attempt", tries),
				zap.Duration("delay", next),
				zap.Error(err))
		}))
}
