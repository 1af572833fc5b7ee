package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type checkerFunc func(ctx context.Context) ([]Alert, error)

func (f checkerFunc) CheckAlerts(ctx context.Context) ([]Alert, error) { return f(ctx) }

func TestAlertWatcher(t *testing.T) {
	t.Run("checks immediately and on every tick", func(t *testing.T) {
		var calls atomic.Int32
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		w := NewAlertWatcher(checkerFunc(func(ctx context.Context) ([]Alert, error) {
			if calls.Add(1) == 3 {
				cancel()
			}
			return []Alert{{ID: "low_avg_rating", Message: "Average rating is 3.20 (< 3.5)"}}, nil
		}), time.Millisecond, zap.NewNop())

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop")
		}
		assert.GreaterOrEqual(t, calls.Load(), int32(3))
	})

	t.Run("failures keep the watcher running", func(t *testing.T) {
		var calls atomic.Int32
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		w := NewAlertWatcher(checkerFunc(func(ctx context.Context) ([]Alert, error) {
			if calls.Add(1) == 2 {
				cancel()
			}
			return nil, errors.New("store unavailable")
		}), time.Millisecond, nil)

		require.NoError(t, w.Run(ctx))
		assert.GreaterOrEqual(t, calls.Load(), int32(2))
	})

	t.Run("disabled without an interval", func(t *testing.T) {
		w := NewAlertWatcher(checkerFunc(func(ctx context.Context) ([]Alert, error) {
			t.Fatal("should not check")
			return nil, nil
		}), 0, zap.NewNop())

		assert.NoError(t, w.Run(context.Background()))
	})

	t.Run("nil checker panics", func(t *testing.T) {
		assert.Panics(t, func() { NewAlertWatcher(nil, time.Second, nil) })
	})
}
