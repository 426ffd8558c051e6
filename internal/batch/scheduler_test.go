package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/biosim-client/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// recorder is a Func that doubles each item and records every chunk it sees.
type recorder struct {
	mu     sync.Mutex
	chunks [][]int
}

func (r *recorder) fn(_ context.Context, chunk []int) ([]int, error) {
	r.mu.Lock()
	r.chunks = append(r.chunks, append([]int(nil), chunk...))
	r.mu.Unlock()
	out := make([]int, len(chunk))
	for i, v := range chunk {
		out[i] = v * 2
	}
	return out, nil
}

func TestChunks(t *testing.T) {
	assert.Nil(t, Chunks(0, 10))
	assert.Equal(t, []Range{{0, 1}}, Chunks(1, 10))
	assert.Equal(t, []Range{{0, 10}}, Chunks(10, 10))
	assert.Equal(t, []Range{{0, 10}, {10, 11}}, Chunks(11, 10))
	assert.Equal(t, []Range{{0, 5}}, Chunks(5, 0))
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []Range{{0, 4}, {4, 7}}, Split(7, 2))
	assert.Equal(t, []Range{{0, 1}, {1, 2}}, Split(2, 5))
	assert.Equal(t, []Range{{0, 3}}, Split(3, 0))
	assert.Nil(t, Split(0, 2))
}

func TestSequential_ChunkingProperty(t *testing.T) {
	const capacity = 10
	for _, n := range []int{0, 1, capacity, capacity + 1, 10*capacity + 3} {
		rec := &recorder{}
		items := seq(n)

		out, err := Sequential(context.Background(), items, capacity, rec.fn)
		require.NoError(t, err)

		assert.Len(t, rec.chunks, (n+capacity-1)/capacity, "invocations for n=%d", n)
		var seen []int
		for _, c := range rec.chunks {
			assert.LessOrEqual(t, len(c), capacity)
			seen = append(seen, c...)
		}
		if diff := cmp.Diff(items, append([]int{}, seen...)); diff != "" {
			t.Errorf("n=%d: chunks do not cover items exactly once (-want +got):\n%s", n, diff)
		}
		for i, v := range out {
			assert.Equal(t, items[i]*2, v)
		}
		assert.Len(t, out, n)
	}
}

func TestSequential_StopsAtFirstError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := Sequential(context.Background(), seq(25), 10, func(_ context.Context, chunk []int) ([]int, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return chunk, nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestSequential_ResultCountMismatch(t *testing.T) {
	_, err := Sequential(context.Background(), seq(3), 10, func(_ context.Context, chunk []int) ([]int, error) {
		return chunk[:1], nil
	})
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestCheckCeiling(t *testing.T) {
	assert.NoError(t, CheckCeiling(1000, 1000))
	assert.NoError(t, CheckCeiling(5000, 0))
	assert.ErrorIs(t, CheckCeiling(1001, 1000), domain.ErrValidation)
}

func TestRun_BelowThresholdRunsInline(t *testing.T) {
	rec := &recorder{}
	out, err := Run(context.Background(), Pool{Workers: 4, Threshold: 20}, seq(19), 10, rec.fn)
	require.NoError(t, err)
	assert.Len(t, out, 19)
	assert.Equal(t, [][]int{seq(10), seq(19)[10:]}, rec.chunks)
}

func TestRun_ParallelPreservesOrder(t *testing.T) {
	const n, capacity = 103, 10
	var inflight, peak atomic.Int32
	pool := Pool{Workers: 2, Threshold: 20}

	out, err := Run(context.Background(), pool, seq(n), capacity, func(_ context.Context, chunk []int) ([]int, error) {
		cur := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		// First worker is slower so completion order differs from range order.
		if chunk[0] < n/2 {
			time.Sleep(2 * time.Millisecond)
		}
		res := make([]int, len(chunk))
		for i, v := range chunk {
			res[i] = v * 2
		}
		return res, nil
	})
	require.NoError(t, err)

	require.Len(t, out, n)
	for i, v := range out {
		assert.Equal(t, i*2, v)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_ChunksNeverSpanWorkerRanges(t *testing.T) {
	rec := &recorder{}
	_, err := Run(context.Background(), Pool{Workers: 2, Threshold: 20}, seq(25), 10, rec.fn)
	require.NoError(t, err)

	// Ranges are [0,13) and [13,25): chunks 10+3 and 10+2.
	assert.Len(t, rec.chunks, 4)
	for _, c := range rec.chunks {
		inFirst := c[0] < 13
		for _, v := range c {
			assert.Equal(t, inFirst, v < 13, "chunk %v spans both ranges", c)
		}
	}
}

func TestRun_FailureIsDeferredUntilAllWorkersFinish(t *testing.T) {
	boom := errors.New("station lookup failed")
	var finished atomic.Int32
	pool := Pool{Workers: 3, Threshold: 20}

	_, err := Run(context.Background(), pool, seq(30), 10, func(_ context.Context, chunk []int) ([]int, error) {
		if chunk[0] == 0 {
			return nil, boom
		}
		time.Sleep(5 * time.Millisecond)
		finished.Add(1)
		return chunk, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), finished.Load(), "sibling workers must run to completion")
}
