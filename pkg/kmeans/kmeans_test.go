package kmeans

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"hyperspectral/pkg/models"
)

// createBlobs returns perCluster points around each centre with the given
// spread, cluster by cluster
func createBlobs(centres [][]float64, perCluster int, spread float64, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	d := len(centres[0])
	x := mat.NewDense(len(centres)*perCluster, d, nil)
	for c, centre := range centres {
		for i := 0; i < perCluster; i++ {
			row := x.RawRowView(c*perCluster + i)
			for j := range row {
				row[j] = centre[j] + spread*rng.NormFloat64()
			}
		}
	}
	return x
}

func TestClusterSeparatedBlobs(t *testing.T) {
	centres := [][]float64{{0.1, 0.1, 0.1}, {0.9, 0.1, 0.5}, {0.5, 0.9, 0.9}}
	x := createBlobs(centres, 40, 0.01, 1)

	// random starts can settle in a local optimum; keep the best of several
	var res *Result
	for seed := int64(0); seed < 20; seed++ {
		r, err := Cluster(context.Background(), x, Params{K: 3, MaxIterations: 50, Seed: seed, Workers: 4})
		require.NoError(t, err)
		require.True(t, r.Converged, "seed %d", seed)
		assert.Empty(t, r.Warnings)
		if res == nil || r.SSE < res.SSE {
			res = r
		}
	}

	// every blob lands in a single cluster and blobs do not share clusters
	seen := map[int]bool{}
	for c := range centres {
		label := res.Labels[c*40]
		for i := 0; i < 40; i++ {
			assert.Equal(t, label, res.Labels[c*40+i], "blob %d point %d", c, i)
		}
		assert.False(t, seen[label], "label %d reused", label)
		seen[label] = true

		got := mat.Row(nil, label, res.Centroids)
		for j := range got {
			assert.InDelta(t, centres[c][j], got[j], 0.01)
		}
	}
	assert.Equal(t, []int{40, 40, 40}, res.Sizes())
	assert.Less(t, res.SSE, 120*3*0.001)
}

// TestClusterPartition checks label count, label range and that no cluster
// is left empty, over many seeds
func TestClusterPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	x := mat.NewDense(64, 4, nil)
	for i := 0; i < 64; i++ {
		for j := 0; j < 4; j++ {
			x.Set(i, j, rng.Float64())
		}
	}

	for seed := int64(0); seed < 20; seed++ {
		res, err := Cluster(context.Background(), x, Params{K: 6, MaxIterations: 100, Seed: seed})
		require.NoError(t, err)
		require.Len(t, res.Labels, 64)

		for _, l := range res.Labels {
			assert.GreaterOrEqual(t, l, 0)
			assert.Less(t, l, 6)
		}
		for c, size := range res.Sizes() {
			assert.Positive(t, size, "seed %d cluster %d is empty", seed, c)
		}

		r, cols := res.Centroids.Dims()
		assert.Equal(t, 6, r)
		assert.Equal(t, 4, cols)
	}
}

func TestClusterDeterministic(t *testing.T) {
	x := createBlobs([][]float64{{0, 0}, {1, 1}, {0, 1}}, 20, 0.2, 3)

	a, err := Cluster(context.Background(), x, Params{K: 3, MaxIterations: 30, Seed: 7, Workers: 1})
	require.NoError(t, err)
	b, err := Cluster(context.Background(), x, Params{K: 3, MaxIterations: 30, Seed: 7, Workers: 8})
	require.NoError(t, err)

	assert.Equal(t, a.Labels, b.Labels)
	assert.True(t, mat.Equal(a.Centroids, b.Centroids))
	assert.Equal(t, a.Iterations, b.Iterations)
}

// TestClusterReseedsEmptyCluster uses identical points so that both initial
// centroids coincide and the second cluster starts empty
func TestClusterReseedsEmptyCluster(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		0.5, 0.5,
		0.5, 0.5,
		0.5, 0.5,
		0.5, 0.5,
	})

	res, err := Cluster(context.Background(), x, Params{K: 2, MaxIterations: 10, Seed: 1})
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Reseeded)
	// the first row is the lowest-index farthest point
	assert.Equal(t, []int{1, 0, 0, 0}, res.Labels)
	assert.Equal(t, []int{3, 1}, res.Sizes())
	assert.Zero(t, res.SSE)
}

// TestClusterIterationCap checks that hitting the cap is advisory
func TestClusterIterationCap(t *testing.T) {
	x := createBlobs([][]float64{{0, 0}, {1, 1}}, 10, 0.3, 5)

	res, err := Cluster(context.Background(), x, Params{K: 2, MaxIterations: 1, Seed: 2})
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, models.ConvergenceNotReached, res.Warnings[0].Kind)
	assert.ErrorIs(t, res.Warnings[0].Err(), models.ErrConvergenceNotReached)
	assert.Len(t, res.Labels, 20)
	for _, size := range res.Sizes() {
		assert.Positive(t, size)
	}
}

func TestClusterParamErrors(t *testing.T) {
	x := mat.NewDense(3, 2, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		p    Params
		want error
	}{
		{"zero k", Params{K: 0, MaxIterations: 5}, models.ErrInvalidParams},
		{"zero iterations", Params{K: 2, MaxIterations: 0}, models.ErrInvalidParams},
		{"k above n", Params{K: 4, MaxIterations: 5}, models.ErrTooFewSamples},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Cluster(ctx, x, tt.p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClusterCancelled(t *testing.T) {
	x := createBlobs([][]float64{{0, 0}, {1, 1}}, 50, 0.3, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Cluster(ctx, x, Params{K: 2, MaxIterations: 10})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClusterSingleCluster(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{1, 2, 6})

	res, err := Cluster(context.Background(), x, Params{K: 1, MaxIterations: 5})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, []int{0, 0, 0}, res.Labels)
	assert.InDelta(t, 3.0, res.Centroids.At(0, 0), 1e-12)
	assert.InDelta(t, 14.0, res.SSE, 1e-12)
}

// TestClusterRejectsNonFinite checks that a NaN row is reported instead of
// reaching the assignment step
func TestClusterRejectsNonFinite(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		0.1, 0.2,
		0.3, 0.4,
		math.NaN(), 0.5,
		0.6, 0.7,
	})

	var res *Result
	var err error
	require.NotPanics(t, func() {
		res, err = Cluster(context.Background(), x, Params{K: 2, MaxIterations: 10})
	})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, models.ErrInvalidParams)

	x.Set(2, 0, math.Inf(1))
	_, err = Cluster(context.Background(), x, Params{K: 2, MaxIterations: 10})
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}
