package batch

import (
	"context"
	stdliberrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	total int
}

func (o *recordingObserver) ObserveBatch(name string, total, _, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, name)
	o.total += total
}

func TestProcess_AllSuccess(t *testing.T) {
	p := New[string, string]()
	res, err := p.Process(context.Background(), []string{"a", "b", "c"}, func(ctx context.Context, item string) (string, error) {
		return item + "_parsed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, "a_parsed", res.Results[0].Result)
	assert.Equal(t, "c_parsed", res.Results[2].Result)
}

func TestProcess_Empty(t *testing.T) {
	p := New[int, int]()
	res, err := p.Process(context.Background(), nil, func(ctx context.Context, i int) (int, error) { return i, nil })
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
	assert.NotNil(t, res.Results)
}

func TestProcess_NilFunc(t *testing.T) {
	p := New[int, int]()
	_, err := p.Process(context.Background(), []int{1}, nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestProcess_FailuresDoNotAbort(t *testing.T) {
	p := New[int, int]()
	res, err := p.Process(context.Background(), []int{1, 2, 3, 4}, func(ctx context.Context, i int) (int, error) {
		if i%2 == 0 {
			return 0, stdliberrors.New("odd one out")
		}
		return i, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 2, res.FailureCount)
	assert.Equal(t, ItemStatusFailed, res.Results[1].Status)
	assert.Equal(t, 3, res.Results[2].Result)
}

func TestProcess_ConcurrencyLimit(t *testing.T) {
	var current, peak int32
	p := New[int, int](WithMaxConcurrency(2))

	_, err := p.Process(context.Background(), []int{1, 2, 3, 4, 5, 6}, func(ctx context.Context, i int) (int, error) {
		c := atomic.AddInt32(&current, 1)
		defer atomic.AddInt32(&current, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if c <= old || atomic.CompareAndSwapInt32(&peak, old, c) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return i, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestProcess_ItemTimeout(t *testing.T) {
	p := New[int, int](WithItemTimeout(10 * time.Millisecond))
	res, err := p.Process(context.Background(), []int{1}, func(ctx context.Context, i int) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Second):
			return i, nil
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailureCount)
	assert.Equal(t, ItemStatusTimeout, res.Results[0].Status)
}

func TestProcess_Retry(t *testing.T) {
	var attempts int32
	p := New[int, int](WithRetryPolicy(2, time.Millisecond))
	res, err := p.Process(context.Background(), []int{7}, func(ctx context.Context, i int) (int, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return 0, stdliberrors.New("transient")
		}
		return i, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestProcess_UnparseableNotRetried(t *testing.T) {
	var attempts int32
	p := New[int, int](WithRetryPolicy(3, time.Millisecond))
	res, err := p.Process(context.Background(), []int{1}, func(ctx context.Context, i int) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, errors.New(errors.CodeDocumentUnparseable, "too short")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailureCount)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestProcess_Backpressure(t *testing.T) {
	p := New[int, int](WithBackpressureThreshold(2))
	_, err := p.Process(context.Background(), []int{1, 2, 3}, func(ctx context.Context, i int) (int, error) { return i, nil })
	assert.ErrorIs(t, err, ErrBackpressure)
}

func TestProcess_Observer(t *testing.T) {
	obs := &recordingObserver{}
	p := New[int, int](WithName("corpus"), WithObserver(obs))
	_, err := p.Process(context.Background(), []int{1, 2}, func(ctx context.Context, i int) (int, error) { return i, nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"corpus"}, obs.calls)
	assert.Equal(t, 2, obs.total)
}

func TestShutdown_RejectsNewBatches(t *testing.T) {
	p := New[int, int]()
	require.NoError(t, p.Shutdown(context.Background()))
	_, err := p.Process(context.Background(), []int{1}, func(ctx context.Context, i int) (int, error) { return i, nil })
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestCalculateBackoff(t *testing.T) {
	policy := &RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, BackoffMultiplier: 2}
	d := calculateBackoff(0, policy)
	assert.GreaterOrEqual(t, d, 75*time.Millisecond)
	assert.LessOrEqual(t, d, 125*time.Millisecond)

	capped := calculateBackoff(5, policy)
	assert.LessOrEqual(t, capped, 375*time.Millisecond)
	assert.Zero(t, calculateBackoff(1, nil))
}

func TestItemStatus_String(t *testing.T) {
	assert.Equal(t, "TIMEOUT", ItemStatusTimeout.String())
	assert.Equal(t, "UNKNOWN(9)", ItemStatus(9).String())
}
