package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunksCoverRange(t *testing.T) {
	tests := []struct {
		n, workers int
		want       int
	}{
		{10, 3, 3},
		{10, 10, 10},
		{3, 8, 3},
		{1, 4, 1},
		{0, 4, 0},
	}

	for _, tt := range tests {
		chunks := Chunks(tt.n, tt.workers)
		assert.Len(t, chunks, tt.want, "n=%d workers=%d", tt.n, tt.workers)

		next := 0
		for _, c := range chunks {
			assert.Equal(t, next, c[0])
			assert.Greater(t, c[1], c[0])
			next = c[1]
		}
		assert.Equal(t, tt.n, next)
	}
}

func TestWorkersDefault(t *testing.T) {
	assert.Equal(t, 4, Workers(4))
	assert.Greater(t, Workers(0), 0)
}

func TestForEachRowVisitsEveryIndex(t *testing.T) {
	const n = 257
	seen := make([]int32, n)

	err := ForEachRow(context.Background(), n, 4, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	})
	require.NoError(t, err)

	for i, c := range seen {
		assert.Equal(t, int32(1), c, "index %d", i)
	}
}

func TestForEachRowCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := ForEachRow(ctx, 100, 2, func(int) { called = true })
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, called)
}

func TestForEachChunkPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEachChunk(context.Background(), 10, 5, func(_ context.Context, chunk, _, _ int) error {
		if chunk == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}
