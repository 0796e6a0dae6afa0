// Package kmeans partitions spectral vectors with Lloyd's k-means algorithm.
//
// Initial centroids are K distinct input rows drawn with a seeded generator,
// so a run is reproducible for a given Params.Seed. The assignment step runs
// in parallel over contiguous blocks of rows; centroid recomputation is a
// sequential reduction.
package kmeans

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"hyperspectral/internal/parallel"
	"hyperspectral/pkg/models"
)

// Params holds the clustering parameters
type Params struct {
	// K is the number of clusters
	K int

	// MaxIterations caps the number of assignment passes
	MaxIterations int

	// Seed drives the choice of initial centroids
	Seed int64

	// Workers is the number of goroutines used for assignment.
	// Zero means one per CPU.
	Workers int
}

// Result is the outcome of a clustering run
type Result struct {
	// Labels holds the cluster index of every input row, in [0, K)
	Labels []int

	// Centroids holds one centroid per row
	Centroids *mat.Dense

	// Iterations is the number of assignment passes performed
	Iterations int

	// Converged is false when MaxIterations stopped the run
	Converged bool

	// Reseeded counts how many times an empty cluster was re-seeded
	Reseeded int

	// SSE is the sum of squared distances from each row to its centroid
	SSE float64

	// Warnings carries ConvergenceNotReached when Converged is false
	Warnings []models.Warning
}

// Sizes returns the member count of every cluster
func (r *Result) Sizes() []int {
	k, _ := r.Centroids.Dims()
	sizes := make([]int, k)
	for _, l := range r.Labels {
		sizes[l]++
	}
	return sizes
}

// Cluster runs k-means over the rows of x. A run that hits MaxIterations is
// returned with Converged false and a ConvergenceNotReached warning. A
// cancelled run returns no result. Rows holding NaN or infinite values are
// rejected with ErrInvalidParams.
func Cluster(ctx context.Context, x mat.Matrix, p Params) (*Result, error) {
	n, d := x.Dims()
	if p.K < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", models.ErrInvalidParams, p.K)
	}
	if p.MaxIterations < 1 {
		return nil, fmt.Errorf("%w: max iterations must be at least 1, got %d", models.ErrInvalidParams, p.MaxIterations)
	}
	if n < p.K {
		return nil, fmt.Errorf("%w: %d vectors for %d clusters", models.ErrTooFewSamples, n, p.K)
	}
	if err := models.CheckFinite(x); err != nil {
		return nil, fmt.Errorf("cannot cluster: %w", err)
	}

	km := &kmeans{
		points:    mat.DenseCopyOf(x),
		n:         n,
		d:         d,
		k:         p.K,
		workers:   parallel.Workers(p.Workers),
		labels:    make([]int, n),
		centroids: mat.NewDense(p.K, d, nil),
	}
	km.initialize(p.Seed)

	res := &Result{}
	for res.Iterations < p.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("clustering cancelled after %d iterations: %w", res.Iterations, err)
		}

		changed, err := km.assign(ctx)
		if err != nil {
			return nil, fmt.Errorf("clustering cancelled after %d iterations: %w", res.Iterations, err)
		}
		res.Iterations++

		if changed == 0 {
			res.Converged = true
			break
		}
		res.Reseeded += km.update()
	}

	res.Labels = km.labels
	res.Centroids = km.centroids
	res.SSE = km.sse()
	if !res.Converged {
		res.Warnings = append(res.Warnings, models.NewWarning(models.ConvergenceNotReached,
			"assignments still changing after %d iterations", res.Iterations))
	}
	return res, nil
}

type kmeans struct {
	points    *mat.Dense
	n, d, k   int
	workers   int
	labels    []int
	centroids *mat.Dense
}

// initialize picks K distinct rows as the starting centroids. Labels start at
// -1 so that the first assignment pass always reports changes.
func (km *kmeans) initialize(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for c, idx := range rng.Perm(km.n)[:km.k] {
		km.centroids.SetRow(c, km.points.RawRowView(idx))
	}
	for i := range km.labels {
		km.labels[i] = -1
	}
}

// nearest returns the closest centroid to row i and the squared distance.
// A tie keeps the current label when it is among the closest, otherwise the
// lowest centroid index wins.
func (km *kmeans) nearest(i int) (int, float64) {
	p := km.points.RawRowView(i)
	current := km.labels[i]

	best, bestDist := -1, math.Inf(1)
	for c := 0; c < km.k; c++ {
		dist := sqDist(p, km.centroids.RawRowView(c))
		if dist < bestDist || (dist == bestDist && c == current) {
			best, bestDist = c, dist
		}
	}
	return best, bestDist
}

// assign relabels every row and returns the number of labels that changed
func (km *kmeans) assign(ctx context.Context) (int, error) {
	chunks := parallel.Chunks(km.n, km.workers)
	changes := make([]int, len(chunks))

	err := parallel.ForEachChunk(ctx, km.n, km.workers, func(ctx context.Context, chunk, start, end int) error {
		for i := start; i < end; i++ {
			best, _ := km.nearest(i)
			if best != km.labels[i] {
				km.labels[i] = best
				changes[chunk]++
			}
		}
		return ctx.Err()
	})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, c := range changes {
		total += c
	}
	return total, nil
}

// update recomputes centroids as member means and re-seeds empty clusters.
// It returns the number of re-seeds.
func (km *kmeans) update() int {
	sums := mat.NewDense(km.k, km.d, nil)
	counts := make([]int, km.k)
	for i, l := range km.labels {
		floats.Add(sums.RawRowView(l), km.points.RawRowView(i))
		counts[l]++
	}
	for c := 0; c < km.k; c++ {
		if counts[c] > 0 {
			row := km.centroids.RawRowView(c)
			copy(row, sums.RawRowView(c))
			floats.Scale(1/float64(counts[c]), row)
		}
	}

	reseeded := 0
	for c := 0; c < km.k; c++ {
		if counts[c] > 0 {
			continue
		}
		donor := km.farthest(counts)
		from := km.labels[donor]
		p := km.points.RawRowView(donor)

		// remove the point from its cluster and recompute that mean
		floats.Sub(sums.RawRowView(from), p)
		counts[from]--
		row := km.centroids.RawRowView(from)
		copy(row, sums.RawRowView(from))
		floats.Scale(1/float64(counts[from]), row)

		km.labels[donor] = c
		floats.Add(sums.RawRowView(c), p)
		counts[c] = 1
		km.centroids.SetRow(c, p)
		reseeded++
	}
	return reseeded
}

// farthest returns the row with the largest distance to its own centroid,
// taken from clusters that keep at least one member after losing it. Ties go
// to the lowest row index.
func (km *kmeans) farthest(counts []int) int {
	best, bestDist := -1, -1.0
	for i, l := range km.labels {
		if counts[l] < 2 {
			continue
		}
		dist := sqDist(km.points.RawRowView(i), km.centroids.RawRowView(l))
		if dist > bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// sse returns the sum of squared distances to the assigned centroids
func (km *kmeans) sse() float64 {
	total := 0.0
	for i, l := range km.labels {
		total += sqDist(km.points.RawRowView(i), km.centroids.RawRowView(l))
	}
	return total
}

func sqDist(a, b []float64) float64 {
	dist := floats.Distance(a, b, 2)
	return dist * dist
}
