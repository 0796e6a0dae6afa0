// Package analysis runs the spectral analysis operations over a cube source.
//
// An Analyzer wraps a cube.Source with the parameters of a session and exposes
// one method per analysis: band reads, region and pixel spectra, k-means
// clustering with or without a PCA reduction, and the reference and
// neighbourhood spectral angle maps. Every call resets the warnings and
// metrics recorded by the previous one.
package analysis

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"gonum.org/v1/gonum/floats"

	"hyperspectral/pkg/config"
	"hyperspectral/pkg/cube"
	"hyperspectral/pkg/kmeans"
	"hyperspectral/pkg/models"
	"hyperspectral/pkg/pca"
	"hyperspectral/pkg/sam"
	"hyperspectral/pkg/statistics"
)

// ProgressCallback is a function that reports progress of an analysis.
// total is zero for informational messages.
type ProgressCallback func(completed, total int, message string)

// Params holds the analysis parameters of a session
type Params struct {
	// NumCores specifies how many goroutines parallel stages use.
	// Zero means one per CPU.
	NumCores int

	// CoverageFraction is the explained-variance fraction kept by the PCA
	// reduction of ClusterPCA and SpectralMap
	CoverageFraction float64

	// Method is the PCA solver
	Method pca.Method

	// ImagTolerance bounds the imaginary residue accepted from the eigen solver
	ImagTolerance float64

	// Clusters is the number of k-means clusters
	Clusters int

	// MaxIterations caps the number of k-means passes
	MaxIterations int

	// Seed drives the choice of initial centroids
	Seed int64

	// Border selects how SpectralMap treats the outer ring of the region
	Border sam.Border

	// Verbose logs stage messages when no progress callback is set
	Verbose bool
}

// DefaultParams returns the parameters used when none are given
func DefaultParams() *Params {
	return &Params{
		NumCores:         runtime.NumCPU(),
		CoverageFraction: pca.DefaultCoverage,
		Method:           pca.SVD,
		ImagTolerance:    pca.DefaultImagTolerance,
		Clusters:         5,
		MaxIterations:    100,
		Border:           sam.BorderUndefined,
	}
}

// ParamsFromConfig validates cfg and converts it into analysis parameters
func ParamsFromConfig(cfg *config.Config) (*Params, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method, err := pca.ParseMethod(cfg.PCA.Method)
	if err != nil {
		return nil, err
	}
	border, err := sam.ParseBorder(cfg.AngleMap.Border)
	if err != nil {
		return nil, err
	}

	return &Params{
		NumCores:         cfg.Processing.NumCores,
		CoverageFraction: cfg.PCA.CoverageFraction,
		Method:           method,
		ImagTolerance:    cfg.PCA.ImagTolerance,
		Clusters:         cfg.Clustering.Clusters,
		MaxIterations:    cfg.Clustering.MaxIterations,
		Seed:             cfg.Clustering.Seed,
		Border:           border,
		Verbose:          cfg.Processing.Verbose,
	}, nil
}

// Metrics describes the last operation run by an Analyzer
type Metrics struct {
	// Operation names the last call
	Operation string

	// Duration is the wall time of the last call
	Duration time.Duration

	// Pixels is the number of pixels processed
	Pixels int

	// Components and RetainedVariance describe the PCA reduction, when one ran.
	// RetainedVariance is the explained-variance fraction of the kept components.
	Components       int
	RetainedVariance float64

	// Clustering figures, when a clustering ran
	Iterations   int
	Converged    bool
	SSE          float64
	ClusterSizes []int

	// Map summarizes the angle map, when one was built
	Map *sam.Summary
}

// ClusterResult is a clustering of a region's pixels. Labels are row-major
// over the region.
type ClusterResult struct {
	*kmeans.Result

	// Rows and Cols are the region dimensions
	Rows, Cols int

	// Model is the reduction applied before clustering, nil for Cluster
	Model *pca.Model
}

// LabelAt returns the cluster of region pixel (y, x)
func (r *ClusterResult) LabelAt(y, x int) int {
	return r.Labels[y*r.Cols+x]
}

// Analyzer runs analyses over one cube source. It is not safe for concurrent
// use; the parallel stages run inside each call.
type Analyzer struct {
	// src provides the reflectance data
	src cube.Source

	// params stores the session configuration
	params *Params

	// progressCallback receives stage messages when set
	progressCallback ProgressCallback

	// logger receives stage messages when Verbose is set and no callback is
	logger *log.Logger

	// warnings and metrics describe the last call
	warnings []models.Warning
	metrics  Metrics
}

// NewAnalyzer creates an analyzer over src. A nil params means DefaultParams.
func NewAnalyzer(src cube.Source, params *Params) *Analyzer {
	if params == nil {
		params = DefaultParams()
	}
	return &Analyzer{
		src:    src,
		params: params,
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// SetProgressCallback sets a callback function for progress reporting
func (a *Analyzer) SetProgressCallback(callback ProgressCallback) {
	a.progressCallback = callback
}

// SetLogger replaces the logger used in verbose mode
func (a *Analyzer) SetLogger(logger *log.Logger) {
	a.logger = logger
}

// Warnings returns the non-fatal conditions raised by the last call
func (a *Analyzer) Warnings() []models.Warning {
	return append([]models.Warning(nil), a.warnings...)
}

// GetMetrics returns the metrics of the last call
func (a *Analyzer) GetMetrics() Metrics {
	return a.metrics
}

// Wavelengths returns the centre wavelength of every band
func (a *Analyzer) Wavelengths() []float64 {
	return a.src.Wavelengths()
}

// ReadCube returns the whole cube, clamped to [0, 1]
func (a *Analyzer) ReadCube() (*models.Cube, error) {
	start := a.begin("read cube")
	defer a.finish(start)

	c, err := a.src.ReadCube()
	if err != nil {
		return nil, fmt.Errorf("failed to read cube: %w", err)
	}
	a.metrics.Pixels = c.Rows * c.Cols
	return c, nil
}

// Layer returns one full band
func (a *Analyzer) Layer(index int) (*models.Band, error) {
	start := a.begin("read layer")
	defer a.finish(start)

	if err := cube.CheckBand(a.src, index); err != nil {
		return nil, err
	}
	band, err := a.src.ReadBand(index)
	if err != nil {
		return nil, fmt.Errorf("failed to read band %d: %w", index, err)
	}
	a.metrics.Pixels = band.Rows * band.Cols
	return band, nil
}

// CroppedLayer returns the part of one band covered by r
func (a *Analyzer) CroppedLayer(r models.Region, index int) (*models.Band, error) {
	start := a.begin("read cropped layer")
	defer a.finish(start)

	if err := cube.CheckBand(a.src, index); err != nil {
		return nil, err
	}
	if err := cube.CheckRegion(a.src, r); err != nil {
		return nil, err
	}
	band, err := a.src.ReadBand(index)
	if err != nil {
		return nil, fmt.Errorf("failed to read band %d: %w", index, err)
	}

	out := &models.Band{
		Index:      band.Index,
		Wavelength: band.Wavelength,
		Rows:       r.Height(),
		Cols:       r.Width(),
		Data:       make([]float32, r.Pixels()),
	}
	for y := 0; y < out.Rows; y++ {
		src := band.Data[(r.YStart+y)*band.Cols:]
		copy(out.Data[y*out.Cols:(y+1)*out.Cols], src[r.XStart:r.XEnd])
	}
	a.metrics.Pixels = r.Pixels()
	return out, nil
}

// RegionSpectrum returns the mean spectrum of r over in-range values
func (a *Analyzer) RegionSpectrum(r models.Region) (*statistics.Spectrum, error) {
	start := a.begin("region spectrum")
	defer a.finish(start)

	s, err := statistics.RegionMeanSpectrum(a.src, r)
	if err != nil {
		return nil, err
	}
	a.metrics.Pixels = r.Pixels()
	a.warn(s.Warnings...)
	return s, nil
}

// PixelSpectrum returns the spectrum of the pixel at column x, row y
func (a *Analyzer) PixelSpectrum(x, y int) (*statistics.Spectrum, error) {
	start := a.begin("pixel spectrum")
	defer a.finish(start)

	s, err := statistics.PixelSpectrum(a.src, x, y)
	if err != nil {
		return nil, err
	}
	a.metrics.Pixels = 1
	return s, nil
}

// Cluster partitions the pixels of r with k-means on their full spectra
func (a *Analyzer) Cluster(ctx context.Context, r models.Region) (*ClusterResult, error) {
	start := a.begin("cluster")
	defer a.finish(start)

	grid, err := a.readRegion(r)
	if err != nil {
		return nil, err
	}

	a.reportProgress(1, 2, fmt.Sprintf("Clustering %d pixels into %d clusters...", grid.Pixels(), a.params.Clusters))
	res, err := a.cluster(ctx, grid)
	if err != nil {
		return nil, err
	}
	a.reportProgress(2, 2, fmt.Sprintf("Clustering finished after %d iterations", res.Iterations))
	return &ClusterResult{Result: res, Rows: grid.Rows, Cols: grid.Cols}, nil
}

// ClusterPCA reduces the pixels of r to the principal components covering
// CoverageFraction of the variance, then clusters the reduced vectors
func (a *Analyzer) ClusterPCA(ctx context.Context, r models.Region) (*ClusterResult, error) {
	start := a.begin("cluster pca")
	defer a.finish(start)

	grid, err := a.readRegion(r)
	if err != nil {
		return nil, err
	}

	a.reportProgress(1, 3, "Computing principal components...")
	model, reduced, err := a.reduce(grid)
	if err != nil {
		return nil, err
	}

	a.reportProgress(2, 3, fmt.Sprintf("Clustering %d pixels on %d components...", reduced.Pixels(), reduced.Depth))
	res, err := a.cluster(ctx, reduced)
	if err != nil {
		return nil, err
	}
	a.reportProgress(3, 3, fmt.Sprintf("Clustering finished after %d iterations", res.Iterations))
	return &ClusterResult{Result: res, Rows: grid.Rows, Cols: grid.Cols, Model: model}, nil
}

// SpectralAngles maps every pixel of r to its spectral angle from the mean
// spectrum of r
func (a *Analyzer) SpectralAngles(ctx context.Context, r models.Region) (*sam.ReferenceResult, error) {
	start := a.begin("spectral angles")
	defer a.finish(start)

	a.reportProgress(0, 0, fmt.Sprintf("Computing spectral angles over %s...", r))
	res, err := sam.ReferenceAngleMap(ctx, a.src, r, a.params.NumCores)
	if err != nil {
		return nil, err
	}
	a.metrics.Pixels = r.Pixels()
	a.warn(res.Warnings...)
	a.summarize(res.Map)
	return res, nil
}

// SpectralMap reduces the pixels of r with PCA and maps every pixel to the
// mean spectral angle to its 8 neighbours
func (a *Analyzer) SpectralMap(ctx context.Context, r models.Region) (*sam.LocalResult, error) {
	start := a.begin("spectral map")
	defer a.finish(start)

	grid, err := a.readRegion(r)
	if err != nil {
		return nil, err
	}

	a.reportProgress(1, 3, "Computing principal components...")
	_, reduced, err := a.reduce(grid)
	if err != nil {
		return nil, err
	}

	a.reportProgress(2, 3, fmt.Sprintf("Computing neighbourhood angles on %d components...", reduced.Depth))
	res, err := sam.LocalAngleMap(ctx, reduced, sam.LocalOptions{Border: a.params.Border, Workers: a.params.NumCores})
	if err != nil {
		return nil, err
	}
	a.warn(res.Warnings...)
	a.summarize(res.Map)
	a.reportProgress(3, 3, "Spectral map complete")
	return res, nil
}

// readRegion validates r before reading any data
func (a *Analyzer) readRegion(r models.Region) (*models.PixelGrid, error) {
	if err := cube.CheckRegion(a.src, r); err != nil {
		return nil, err
	}
	a.reportProgress(0, 0, fmt.Sprintf("Reading region %s...", r))
	grid, err := a.src.ReadSubregion(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read region %s: %w", r, err)
	}
	a.metrics.Pixels = grid.Pixels()
	return grid, nil
}

// reduce fits PCA on grid, keeps CoverageFraction of the variance and
// projects the grid
func (a *Analyzer) reduce(grid *models.PixelGrid) (*pca.Model, *models.PixelGrid, error) {
	model, err := pca.Fit(grid.Matrix(), pca.Options{Method: a.params.Method, ImagTolerance: a.params.ImagTolerance})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fit principal components: %w", err)
	}
	model, err = model.Reduce(a.params.CoverageFraction)
	if err != nil {
		return nil, nil, err
	}
	a.warn(model.Warnings()...)

	reduced, err := model.TransformGrid(grid)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to project region: %w", err)
	}

	a.metrics.Components = model.Components()
	a.metrics.RetainedVariance = floats.Sum(model.ExplainedVariance()[:model.Components()])
	a.reportProgress(0, 0, fmt.Sprintf("Kept %d of %d components (%.4f of variance)",
		model.Components(), model.Bands(), a.metrics.RetainedVariance))
	return model, reduced, nil
}

func (a *Analyzer) cluster(ctx context.Context, grid *models.PixelGrid) (*kmeans.Result, error) {
	res, err := kmeans.Cluster(ctx, grid.Matrix(), kmeans.Params{
		K:             a.params.Clusters,
		MaxIterations: a.params.MaxIterations,
		Seed:          a.params.Seed,
		Workers:       a.params.NumCores,
	})
	if err != nil {
		return nil, err
	}
	a.warn(res.Warnings...)

	a.metrics.Iterations = res.Iterations
	a.metrics.Converged = res.Converged
	a.metrics.SSE = res.SSE
	a.metrics.ClusterSizes = res.Sizes()
	return res, nil
}

func (a *Analyzer) summarize(m *models.AngleMap) {
	s := sam.Summarize(m)
	a.metrics.Map = &s
}

// begin resets the warnings and metrics for a new call
func (a *Analyzer) begin(operation string) time.Time {
	a.warnings = nil
	a.metrics = Metrics{Operation: operation}
	return time.Now()
}

func (a *Analyzer) finish(start time.Time) {
	a.metrics.Duration = time.Since(start)
	for _, w := range a.warnings {
		a.reportProgress(0, 0, "Warning: "+w.String())
	}
}

func (a *Analyzer) warn(warnings ...models.Warning) {
	a.warnings = append(a.warnings, warnings...)
}

// reportProgress calls the progress callback if set, otherwise logs in
// verbose mode
func (a *Analyzer) reportProgress(completed, total int, message string) {
	if a.progressCallback != nil {
		a.progressCallback(completed, total, message)
		return
	}
	if !a.params.Verbose || a.logger == nil {
		return
	}
	if total > 0 {
		a.logger.Printf("[%d/%d] %s", completed, total, message)
	} else {
		a.logger.Println(message)
	}
}
