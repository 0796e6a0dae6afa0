// Package statistics derives mean region spectra and pixel spectra from a
// cube source.
package statistics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"hyperspectral/pkg/cube"
	"hyperspectral/pkg/models"
)

// Spectrum is a spectral vector with one value per band
type Spectrum struct {
	// Values holds one reflectance per band. Bands listed in Undefined hold
	// the undefined marker.
	Values []float64

	// Undefined lists the bands that had no valid contributing value
	Undefined []int

	// Warnings carries the non-fatal conditions met while computing Values
	Warnings []models.Warning
}

// Defined reports whether every band has a value
func (s *Spectrum) Defined() bool {
	return len(s.Undefined) == 0
}

// Row returns the spectrum as a 1×bands matrix
func (s *Spectrum) Row() *mat.Dense {
	return mat.NewDense(1, len(s.Values), append([]float64(nil), s.Values...))
}

// RegionMeanSpectrum returns the per-band mean over the pixels of r. Values
// outside [0, 1] and NaN samples are skipped. When src implements
// cube.RawReader the stored values are filtered; otherwise the clamped
// values are.
func RegionMeanSpectrum(src cube.Source, r models.Region) (*Spectrum, error) {
	if err := cube.CheckRegion(src, r); err != nil {
		return nil, err
	}
	var grid *models.PixelGrid
	var err error
	if raw, ok := src.(cube.RawReader); ok {
		grid, err = raw.ReadRawSubregion(r)
	} else {
		grid, err = src.ReadSubregion(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read region %s: %w", r, err)
	}
	return MeanSpectrum(grid), nil
}

// MeanSpectrum returns the filtered per-band mean of an already loaded grid
func MeanSpectrum(grid *models.PixelGrid) *Spectrum {
	s := &Spectrum{Values: make([]float64, grid.Depth)}
	valid := make([]float64, 0, grid.Pixels())

	for b := 0; b < grid.Depth; b++ {
		valid = valid[:0]
		for p := 0; p < grid.Pixels(); p++ {
			v := grid.Data[p*grid.Depth+b]
			if v >= 0 && v <= 1 {
				valid = append(valid, v)
			}
		}

		if len(valid) == 0 {
			s.Values[b] = models.Undefined()
			s.Undefined = append(s.Undefined, b)
			continue
		}
		s.Values[b] = stat.Mean(valid, nil)
	}

	if len(s.Undefined) > 0 {
		s.Warnings = append(s.Warnings, models.NewWarning(models.UndefinedStatistic,
			"%d of %d bands have no reflectance in [0, 1]", len(s.Undefined), grid.Depth))
	}
	return s
}

// PixelSpectrum returns the spectrum of pixel (x, y) as read from the source
func PixelSpectrum(src cube.Source, x, y int) (*Spectrum, error) {
	values, err := src.ReadPixel(y, x)
	if err != nil {
		return nil, err
	}
	return &Spectrum{Values: values}, nil
}
