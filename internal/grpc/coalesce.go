package grpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

// Coalesce runs fn once for all concurrent callers sharing key. The shared
// call is detached from any single caller's cancellation and bounded by
// timeout; each caller still stops waiting when its own ctx is done. Nothing
// is kept once the call returns.
func Coalesce[T any](
	ctx context.Context,
	sf *singleflight.Group,
	key string,
	timeout time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}

	ch := sf.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return fn(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		value, ok := res.Val.(T)
		if !ok {
			logger.Error("singleflight type mismatch", zap.String("key", key))
			return zero, fmt.Errorf("type mismatch for key %q", key)
		}
		if res.Shared {
			logger.Debug("singleflight shared result", zap.String("key", key))
		}
		return value, nil
	}
}
