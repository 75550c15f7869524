package fifolane

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLane_executesInSubmissionOrder(t *testing.T) {
	t.Parallel()
	lane := New(zap.NewNop())
	lane.Start(context.Background())
	t.Cleanup(lane.Stop)

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lane.Do(context.Background(), "task", func(context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, i)
				return nil
			})
		}()
		// Give each submission time to enqueue before the next.
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	require.Len(t, order, 10)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestLane_serializesTasks(t *testing.T) {
	t.Parallel()
	lane := New(zap.NewNop())
	lane.Start(context.Background())
	t.Cleanup(lane.Stop)

	var inFlight, maxInFlight int32
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lane.Do(context.Background(), "task", func(context.Context) error {
				mu.Lock()
				inFlight++
				if inFlight > maxInFlight {
					maxInFlight = inFlight
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight)
}

func TestLane_returnsTaskError(t *testing.T) {
	t.Parallel()
	lane := New(zap.NewNop())
	lane.Start(context.Background())
	t.Cleanup(lane.Stop)

	wantErr := errors.New("task failed")
	err := lane.Do(context.Background(), "task", func(context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestLane_runsPendingOnStartAndRefusesAfterStop(t *testing.T) {
	t.Parallel()
	lane := New(zap.NewNop())

	// Not started yet: the task waits in the queue and runs once the lane
	// starts. After Stop, new submissions are refused.
	done := make(chan error, 1)
	go func() {
		done <- lane.Do(context.Background(), "task", func(context.Context) error {
			return nil
		})
	}()

	assert.Eventually(t, func() bool { return lane.Len() == 1 }, time.Second, time.Millisecond)
	lane.Start(context.Background())
	require.NoError(t, <-done)
	lane.Stop()

	err := lane.Do(context.Background(), "late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestLane_canceledContextSkipsExecution(t *testing.T) {
	t.Parallel()
	lane := New(zap.NewNop())
	lane.Start(context.Background())
	t.Cleanup(lane.Stop)

	block := make(chan struct{})
	executed := make(chan struct{})

	go func() {
		_ = lane.Do(context.Background(), "slow", func(context.Context) error {
			<-block
			return nil
		})
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := lane.Do(ctx, "abandoned", func(context.Context) error {
		close(executed)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
	select {
	case <-executed:
		t.Fatal("task with canceled context must not execute")
	case <-time.After(50 * time.Millisecond):
	}
}
