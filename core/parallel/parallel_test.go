package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/YuminosukeSato/molpipe/pkg/errors"
)

func TestChunks(t *testing.T) {
	assert.Nil(t, Chunks(0, 4))
	assert.Equal(t, [][2]int{{0, 4}, {4, 8}, {8, 10}}, Chunks(10, 3))
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, Chunks(2, 8))
	assert.Equal(t, [][2]int{{0, 5}}, Chunks(5, 0))
}

func TestParallelizeCoversEveryRow(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000} {
		seen := make([]int32, items)
		ParallelizeWithThreshold(items, 4, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, c := range seen {
			require.EqualValues(t, 1, c, "items=%d index %d", items, i)
		}
	}
}

func TestParallelizeWithThresholdInline(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	assert.EqualValues(t, 1, calls)
}

func TestEach(t *testing.T) {
	var sum int64
	err := Each(context.Background(), 100, 3, "trees", func(_ context.Context, i int) error {
		atomic.AddInt64(&sum, int64(i))
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4950, sum)
}

func TestEachFirstErrorWins(t *testing.T) {
	boom := errors.New("tree 3 failed")
	err := Each(context.Background(), 10, 1, "trees", func(_ context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestEachRecoversPanic(t *testing.T) {
	err := Each(context.Background(), 4, 2, "trees", func(_ context.Context, i int) error {
		if i == 2 {
			var w []float64
			_ = w[i]
		}
		return nil
	})
	var pe *perrors.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "trees", pe.Operation)
}

func TestEachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	err := Each(ctx, 50, 2, "trees", func(context.Context, int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
}
