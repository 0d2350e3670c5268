package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 6 * time.Second
)

// Policy bounds the attempts and backoff of a retried call. Retryable decides
// whether an error is transient; a nil Retryable retries every error.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Retryable       func(error) bool
}

func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaultInitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return p
}

// Do runs op until it succeeds, returns a non-retryable error, exhausts the
// attempts or ctx is done.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalize()
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, next time.Duration) {
		logutil.GetLogger(ctx).Warn("retrying after failure",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.Error(err),
		)
	}
	return backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, name string, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
