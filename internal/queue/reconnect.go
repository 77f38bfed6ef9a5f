package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Consumer is one consuming session on a broker connection.
type Consumer interface {
	ConsumeWithRetry(ctx context.Context, queue string, handler HandlerFunc, policy RetryPolicy, logger *zap.Logger) error
	Close() error
}

type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// ConsumeForever keeps a consumer attached to queue until ctx is cancelled.
// Each session gets its own connection from dial; when the broker drops it the
// session is closed and dial is retried with exponential backoff.
func ConsumeForever(ctx context.Context, dial func() (Consumer, error), queue string, handler HandlerFunc, policy RetryPolicy, backoff Backoff, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backoff.Initial <= 0 {
		backoff.Initial = time.Second
	}
	if backoff.Max < backoff.Initial {
		backoff.Max = 30 * time.Second
	}

	wait := backoff.Initial
	for ctx.Err() == nil {
		c, err := dial()
		if err != nil {
			logger.Warn("consumer connect failed", zap.String("queue", queue), zap.Duration("retryIn", wait), zap.Error(err))
		} else {
			if wait > backoff.Initial {
				logger.Info("consumer reconnected", zap.String("queue", queue))
			}
			start := time.Now()
			err = c.ConsumeWithRetry(ctx, queue, handler, policy, logger)
			_ = c.Close()
			if ctx.Err() != nil {
				return
			}
			// A session that ran for a while was healthy; start over from the short delay.
			if time.Since(start) > backoff.Max {
				wait = backoff.Initial
			}
			logger.Error("consumer stopped; reconnecting", zap.String("queue", queue), zap.Duration("retryIn", wait), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait *= 2
		if wait > backoff.Max {
			wait = backoff.Max
		}
	}
}

// DialConsumer opens a dedicated broker connection for consuming.
func DialConsumer(url string) func() (Consumer, error) {
	return func() (Consumer, error) {
		return New(url)
	}
}
