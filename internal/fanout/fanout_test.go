package fanout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelerdir/internal/fanout"
)

func TestProcessAll_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	items := []int{5, 4, 3, 2, 1}
	fn := func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	}

	out, err := fanout.ProcessAll(context.Background(), items, fn, fanout.Options{})
	require.NoError(t, err)
	require.Len(t, out, len(items))
	for i, res := range out {
		assert.Equal(t, items[i], res.Input)
		assert.Equal(t, items[i]*10, res.Output)
		assert.NoError(t, res.Err)
	}
}

func TestProcessAll_RunsAllItemsConcurrentlyByDefault(t *testing.T) {
	t.Parallel()

	const n = 6
	var (
		mu      sync.Mutex
		arrived int
	)
	release := make(chan struct{})

	fn := func(ctx context.Context, _ int) (struct{}, error) {
		mu.Lock()
		arrived++
		if arrived == n {
			close(release)
		}
		mu.Unlock()

		select {
		case <-release:
			return struct{}{}, nil
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := fanout.ProcessAll(ctx, make([]int, n), fn, fanout.Options{})
	require.NoError(t, err)
}

func TestProcessAll_FailFastReturnsFirstError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fn := func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		<-ctx.Done()
		return 0, ctx.Err()
	}

	out, err := fanout.ProcessAll(context.Background(), []int{1, 2, 3}, fn, fanout.Options{
		FailurePolicy: fanout.FailFast,
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
}

func TestProcessAll_SettleReportsFailuresPerItem(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, n int) (int, error) {
		if n%2 == 0 {
			return 0, errors.New("even")
		}
		return n, nil
	}

	out, err := fanout.ProcessAll(context.Background(), []int{1, 2, 3, 4}, fn, fanout.Options{
		FailurePolicy: fanout.Settle,
	})
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.NoError(t, out[0].Err)
	assert.Error(t, out[1].Err)
	assert.NoError(t, out[2].Err)
	assert.Error(t, out[3].Err)
}

func TestProcessAll_EmptyInput(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(_ context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", nil
	}

	out, err := fanout.ProcessAll(context.Background(), nil, fn, fanout.Options{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, calls.Load())
}

func TestProcessAll_WorkerCap(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	fn := func(_ context.Context, _ int) (int, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return 0, nil
	}

	_, err := fanout.ProcessAll(context.Background(), make([]int, 20), fn, fanout.Options{Workers: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestProcessAll_RequestTimeout(t *testing.T) {
	t.Parallel()

	fn := func(ctx context.Context, _ int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	out, err := fanout.ProcessAll(context.Background(), []int{1}, fn, fanout.Options{
		RequestTimeout: 5 * time.Millisecond,
		FailurePolicy:  fanout.Settle,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, out[0].Err, context.DeadlineExceeded)
}

func TestProcessAll_CanceledParent(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn := func(_ context.Context, n int) (int, error) { return n, nil }
	_, err := fanout.ProcessAll(ctx, []int{1, 2}, fn, fanout.Options{FailurePolicy: fanout.Settle})
	assert.ErrorIs(t, err, context.Canceled)
}
