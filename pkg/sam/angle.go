// Package sam computes spectral angles between pixel vectors and builds
// angle maps over image regions.
//
// The spectral angle between a and b is the angle between their unit vectors
// â and b̂, evaluated as 2·atan2(‖â − b̂‖, ‖â + b̂‖). This equals
// acos(a·b / (‖a‖‖b‖)) without the cancellation of acos near ±1, and gives
// exactly 0 for identical vectors. It is undefined when either vector has zero
// norm; maps mark such cells with models.Undefined.
package sam

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"hyperspectral/internal/parallel"
	"hyperspectral/pkg/cube"
	"hyperspectral/pkg/models"
	"hyperspectral/pkg/statistics"
)

// Angle returns the spectral angle between a and b in radians
func Angle(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: vectors of length %d and %d", models.ErrDimensionMismatch, len(a), len(b))
	}
	ua, okA := unit(a)
	ub, okB := unit(b)
	if !okA || !okB {
		return 0, fmt.Errorf("%w: spectral angle of a zero-norm vector", models.ErrUndefinedStatistic)
	}
	return unitAngle(ua, ub, make([]float64, len(a))), nil
}

// unitAngle returns the angle between unit vectors u and v. sum is scratch
// space of the same length.
func unitAngle(u, v, sum []float64) float64 {
	floats.AddTo(sum, u, v)
	return 2 * math.Atan2(floats.Distance(u, v, 2), floats.Norm(sum, 2))
}

// Angles compares every pixel of g against ref. Pixels with zero norm get the
// undefined marker. A zero-norm reference leaves the whole map undefined.
func Angles(ctx context.Context, g *models.PixelGrid, ref []float64, workers int) (*models.AngleMap, error) {
	if len(ref) != g.Depth {
		return nil, fmt.Errorf("%w: reference of length %d for %d-deep grid", models.ErrDimensionMismatch, len(ref), g.Depth)
	}
	out := models.NewAngleMap(g.Rows, g.Cols)

	refUnit, ok := unit(ref)
	if !ok {
		return out, nil
	}

	err := parallel.ForEachRow(ctx, g.Rows, workers, func(y int) {
		u := make([]float64, g.Depth)
		sum := make([]float64, g.Depth)
		row := out.Row(y)
		for x := range row {
			v := g.Vector(y, x)
			n := floats.Norm(v, 2)
			if n == 0 || math.IsNaN(n) {
				continue
			}
			floats.ScaleTo(u, 1/n, v)
			row[x] = unitAngle(u, refUnit, sum)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("angle map cancelled: %w", err)
	}
	return out, nil
}

// ReferenceResult is a reference angle map with the reference it was built
// against
type ReferenceResult struct {
	Map       *models.AngleMap
	Reference *statistics.Spectrum
	Warnings  []models.Warning
}

// ReferenceAngleMap compares every pixel of r against the region's own mean
// spectrum, as computed by statistics.RegionMeanSpectrum. For non-negative
// reflectance all defined cells lie in [0, π/2].
func ReferenceAngleMap(ctx context.Context, src cube.Source, r models.Region, workers int) (*ReferenceResult, error) {
	ref, err := statistics.RegionMeanSpectrum(src, r)
	if err != nil {
		return nil, err
	}
	grid, err := src.ReadSubregion(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read region %s: %w", r, err)
	}

	res := &ReferenceResult{Reference: ref, Warnings: append([]models.Warning(nil), ref.Warnings...)}
	if !ref.Defined() {
		res.Map = models.NewAngleMap(grid.Rows, grid.Cols)
		res.Warnings = append(res.Warnings, models.NewWarning(models.UndefinedStatistic,
			"reference spectrum of %s is undefined, map left undefined", r))
		return res, nil
	}

	res.Map, err = Angles(ctx, grid, ref.Values, workers)
	if err != nil {
		return nil, err
	}
	if _, ok := unit(ref.Values); !ok {
		res.Warnings = append(res.Warnings, models.NewWarning(models.UndefinedStatistic,
			"reference spectrum of %s has zero norm, map left undefined", r))
	} else if n := res.Map.UndefinedCount(); n > 0 {
		res.Warnings = append(res.Warnings, models.NewWarning(models.UndefinedStatistic,
			"%d of %d pixels have a zero-norm spectrum", n, grid.Pixels()))
	}
	return res, nil
}

// unit returns v scaled to unit length, or false when v has zero norm
func unit(v []float64) ([]float64, bool) {
	n := floats.Norm(v, 2)
	if n == 0 || math.IsNaN(n) {
		return nil, false
	}
	out := make([]float64, len(v))
	floats.ScaleTo(out, 1/n, v)
	return out, true
}
