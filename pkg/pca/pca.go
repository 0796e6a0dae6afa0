// Package pca reduces pixel-by-band matrices to their leading principal
// components.
//
// Two solvers are available. SVD factorizes the centred data directly and is
// the default. Eigen decomposes the covariance matrix with a general
// eigensolver; its complex output is reduced to real components after a
// residue check against Options.ImagTolerance.
package pca

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"hyperspectral/pkg/models"
)

// DefaultCoverage is the explained-variance fraction used when none is given
const DefaultCoverage = 0.999

// DefaultImagTolerance bounds the imaginary residue accepted from the
// eigensolver without a warning
const DefaultImagTolerance = 1e-9

// Method selects the decomposition used by Fit
type Method int

const (
	SVD Method = iota
	Eigen
)

func (m Method) String() string {
	switch m {
	case SVD:
		return "svd"
	case Eigen:
		return "eigen"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod converts a configuration name into a Method
func ParseMethod(name string) (Method, error) {
	switch name {
	case "", "svd":
		return SVD, nil
	case "eigen":
		return Eigen, nil
	default:
		return 0, fmt.Errorf("%w: unknown PCA method %q", models.ErrInvalidParams, name)
	}
}

// Options controls Fit
type Options struct {
	Method Method

	// ImagTolerance is the largest imaginary magnitude tolerated in the
	// eigensolver output. Zero means DefaultImagTolerance.
	ImagTolerance float64
}

// Model is a fitted PCA basis with a retained component count
type Model struct {
	// mean is the per-band mean removed before projection
	mean []float64

	// vectors holds one component per column, ordered by descending variance
	vectors *mat.Dense

	// variances holds the variance explained by each column of vectors
	variances []float64

	// residues holds the largest imaginary magnitude seen per component
	residues []float64

	// collapsed counts eigenvectors lost during re-orthonormalization
	collapsed int

	tolerance float64
	retained  int
}

// Fit computes the principal components of x, an N pixels × B bands matrix.
// All components are retained; call Reduce to keep a prefix.
func Fit(x mat.Matrix, opts Options) (*Model, error) {
	n, d := x.Dims()
	if n < 2 {
		return nil, fmt.Errorf("%w: PCA needs at least 2 pixels, got %d", models.ErrTooFewSamples, n)
	}
	if d < 1 {
		return nil, fmt.Errorf("%w: PCA needs at least one band", models.ErrDimensionMismatch)
	}
	if err := models.CheckFinite(x); err != nil {
		return nil, fmt.Errorf("cannot fit PCA: %w", err)
	}
	if opts.ImagTolerance <= 0 {
		opts.ImagTolerance = DefaultImagTolerance
	}

	m := &Model{
		mean:      columnMeans(x),
		tolerance: opts.ImagTolerance,
	}

	var err error
	switch opts.Method {
	case SVD:
		err = m.fitSVD(x)
	case Eigen:
		err = m.fitEigen(x)
	default:
		err = fmt.Errorf("%w: unknown PCA method %v", models.ErrInvalidParams, opts.Method)
	}
	if err != nil {
		return nil, err
	}

	for i, v := range m.variances {
		if v < 0 {
			m.variances[i] = 0
		}
	}
	m.retained = len(m.variances)
	return m, nil
}

// fitSVD uses the SVD of the centred data
func (m *Model) fitSVD(x mat.Matrix) error {
	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return fmt.Errorf("PCA factorization failed")
	}
	m.vectors = &mat.Dense{}
	pc.VectorsTo(m.vectors)
	m.variances = pc.VarsTo(nil)
	m.residues = make([]float64, len(m.variances))
	return nil
}

// fitEigen decomposes the covariance matrix with the general eigensolver
func (m *Model) fitEigen(x mat.Matrix) error {
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)
	d := cov.SymmetricDim()

	var eig mat.Eigen
	if ok := eig.Factorize(&cov, mat.EigenRight); !ok {
		return fmt.Errorf("eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	order := make([]int, d)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return real(values[order[i]]) > real(values[order[j]])
	})

	m.vectors = mat.NewDense(d, d, nil)
	m.variances = make([]float64, d)
	m.residues = make([]float64, d)
	for col, src := range order {
		residue := math.Abs(imag(values[src]))
		for row := 0; row < d; row++ {
			v := vecs.At(row, src)
			residue = math.Max(residue, math.Abs(imag(v)))
			m.vectors.Set(row, col, real(v))
		}
		m.variances[col] = real(values[src])
		m.residues[col] = residue
	}

	m.collapsed = orthonormalize(m.vectors)
	return nil
}

// Reduce returns a model retaining the smallest prefix of components whose
// cumulative explained-variance fraction reaches coverage. coverage must be
// in (0, 1]. If the data has no variance at all one component is kept.
func (m *Model) Reduce(coverage float64) (*Model, error) {
	if !(coverage > 0 && coverage <= 1) {
		return nil, fmt.Errorf("%w: coverage fraction %v not in (0, 1]", models.ErrInvalidParams, coverage)
	}

	total := floats.Sum(m.variances)
	k := len(m.variances)
	if total <= 0 {
		k = 1
	} else {
		cum := 0.0
		for i, v := range m.variances {
			cum += v
			if cum/total >= coverage {
				k = i + 1
				break
			}
		}
	}

	r := *m
	r.retained = k
	return &r, nil
}

// Components returns the number of retained components
func (m *Model) Components() int { return m.retained }

// Bands returns the input dimensionality
func (m *Model) Bands() int { return len(m.mean) }

// Mean returns a copy of the per-band mean
func (m *Model) Mean() []float64 { return append([]float64(nil), m.mean...) }

// Variances returns the variance of every fitted component
func (m *Model) Variances() []float64 { return append([]float64(nil), m.variances...) }

// ExplainedVariance returns the fraction of total variance carried by each
// fitted component
func (m *Model) ExplainedVariance() []float64 {
	out := append([]float64(nil), m.variances...)
	total := floats.Sum(out)
	if total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}

// Basis returns the retained components as a bands×components matrix
func (m *Model) Basis() *mat.Dense {
	b := m.Bands()
	return mat.DenseCopyOf(m.vectors.Slice(0, b, 0, m.retained))
}

// Warnings returns the non-fatal conditions of the retained basis: an
// imaginary residue above tolerance, or eigenvectors that collapsed while the
// real basis was re-orthonormalized
func (m *Model) Warnings() []models.Warning {
	var out []models.Warning
	if worst := m.Residue(); worst > m.tolerance {
		out = append(out, models.NewWarning(models.NumericalInstability,
			"imaginary residue %.3g exceeds tolerance %.3g, real part used", worst, m.tolerance))
	}
	if m.collapsed > 0 {
		out = append(out, models.NewWarning(models.NumericalInstability,
			"%d eigenvectors collapsed during re-orthonormalization", m.collapsed))
	}
	return out
}

// Residue returns the largest imaginary magnitude over the retained
// components. It is always zero for the SVD solver.
func (m *Model) Residue() float64 {
	worst := 0.0
	for _, r := range m.residues[:m.retained] {
		worst = math.Max(worst, r)
	}
	return worst
}

// Transform projects the rows of x onto the retained components
func (m *Model) Transform(x mat.Matrix) (*mat.Dense, error) {
	n, d := x.Dims()
	if d != m.Bands() {
		return nil, fmt.Errorf("%w: input has %d bands, model has %d", models.ErrDimensionMismatch, d, m.Bands())
	}

	centered := mat.NewDense(n, d, nil)
	centered.Copy(x)
	for i := 0; i < n; i++ {
		floats.Sub(centered.RawRowView(i), m.mean)
	}

	out := mat.NewDense(n, m.retained, nil)
	out.Mul(centered, m.vectors.Slice(0, d, 0, m.retained))
	return out, nil
}

// InverseTransform maps reduced vectors back into band space
func (m *Model) InverseTransform(y mat.Matrix) (*mat.Dense, error) {
	n, k := y.Dims()
	if k != m.retained {
		return nil, fmt.Errorf("%w: input has %d components, model retains %d", models.ErrDimensionMismatch, k, m.retained)
	}

	out := mat.NewDense(n, m.Bands(), nil)
	out.Mul(y, m.vectors.Slice(0, m.Bands(), 0, k).T())
	for i := 0; i < n; i++ {
		floats.Add(out.RawRowView(i), m.mean)
	}
	return out, nil
}

// TransformGrid projects every pixel of a grid and returns the reduced grid
func (m *Model) TransformGrid(g *models.PixelGrid) (*models.PixelGrid, error) {
	out, err := m.Transform(g.Matrix())
	if err != nil {
		return nil, err
	}
	return &models.PixelGrid{
		Rows:  g.Rows,
		Cols:  g.Cols,
		Depth: m.retained,
		Data:  out.RawMatrix().Data,
	}, nil
}

// columnMeans returns the mean of every column of x
func columnMeans(x mat.Matrix) []float64 {
	n, d := x.Dims()
	means := make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		means[j] = stat.Mean(col, nil)
	}
	return means
}

// orthonormalize applies modified Gram-Schmidt to the columns of v in order
// and returns how many columns fell below numerical rank. Those columns are
// zeroed.
func orthonormalize(v *mat.Dense) int {
	r, c := v.Dims()
	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = mat.Col(nil, j, v)
	}

	degenerate := 0
	for j := range cols {
		for i := 0; i < j; i++ {
			proj := floats.Dot(cols[i], cols[j])
			floats.AddScaled(cols[j], -proj, cols[i])
		}
		norm := floats.Norm(cols[j], 2)
		if norm < 1e-12 {
			// a collapsed direction projects to 0 rather than onto noise
			clear(cols[j])
			degenerate++
			continue
		}
		floats.Scale(1/norm, cols[j])
	}

	for j, col := range cols {
		for i := 0; i < r; i++ {
			v.Set(i, j, col[i])
		}
	}
	return degenerate
}
