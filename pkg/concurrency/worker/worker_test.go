package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerManager_RunsTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := NewWorkerManager(2)
	go manager.Run(ctx)

	results := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		value := i
		task := NewTask(func(ctx context.Context) (int, error) {
			return value * 10, nil
		}).Callback(func(result int, err error) {
			require.NoError(t, err)
			results <- result
		})
		require.NoError(t, manager.Add(ctx, task))
	}

	sum := 0
	for i := 0; i < 3; i++ {
		sum += <-results
	}
	require.Equal(t, 60, sum)
}

func TestWorkerManager_LimitsConcurrency(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := NewWorkerManager(1)
	go manager.Run(ctx)

	var running, peak atomic.Int32
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		task := NewTask(func(ctx context.Context) (struct{}, error) {
			current := running.Add(1)
			if current > peak.Load() {
				peak.Store(current)
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		}).Callback(func(struct{}, error) {
			done <- struct{}{}
		})
		require.NoError(t, manager.Add(ctx, task))
	}
	for i := 0; i < 3; i++ {
		<-done
	}
	require.Equal(t, int32(1), peak.Load())
}

func TestWorkerManager_TaskTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := NewWorkerManager(1)
	go manager.Run(ctx)

	errCh := make(chan error, 1)
	task := NewTask(func(ctx context.Context) (struct{}, error) {
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	}).WithTimeout(20 * time.Millisecond).Callback(func(_ struct{}, err error) {
		errCh <- err
	})
	require.NoError(t, manager.Add(ctx, task))
	require.ErrorIs(t, <-errCh, context.DeadlineExceeded)
}

func TestWorkerManager_AddAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	manager := NewWorkerManager(1)
	stopped := make(chan struct{})
	go func() {
		manager.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	task := NewTask(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	err := manager.Add(context.Background(), task)
	require.ErrorIs(t, err, ErrManagerStopped)
}
