// Package cube defines the read interface the analysis packages use to reach
// a hyperspectral cube, plus an in-memory implementation.
//
// Loading a cube from storage (header parsing, interleave handling) is done by
// whoever constructs the Source. Every Source read returns reflectance
// clamped to [0, 1], with NaN no-data samples read as 0. Sources that also
// implement RawReader let aggregations see the stored values and skip
// invalid ones instead.
package cube

import (
	"fmt"
	"math"

	"hyperspectral/pkg/models"
)

// Source gives read access to one loaded cube
type Source interface {
	// Wavelengths returns one centre wavelength per band
	Wavelengths() []float64

	// Dims returns the band count and the spatial extent
	Dims() (bands, rows, cols int)

	// ReadCube returns the whole cube in (band, row, column) order
	ReadCube() (*models.Cube, error)

	// ReadBand returns one layer
	ReadBand(index int) (*models.Band, error)

	// ReadSubregion returns the pixels of r in (row, column, band) order
	ReadSubregion(r models.Region) (*models.PixelGrid, error)

	// ReadPixel returns the spectrum of pixel (y, x)
	ReadPixel(y, x int) ([]float64, error)
}

// RawReader is implemented by sources that can return a subregion exactly as
// stored, without clamping
type RawReader interface {
	ReadRawSubregion(r models.Region) (*models.PixelGrid, error)
}

// Clamp limits a reflectance value to [0, 1]. NaN maps to 0.
func Clamp(v float32) float32 {
	if v < 0 || math.IsNaN(float64(v)) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CheckBand validates a band index against a source
func CheckBand(src Source, index int) error {
	bands, _, _ := src.Dims()
	if index < 0 || index >= bands {
		return fmt.Errorf("%w: %d not in [0, %d)", models.ErrBandIndexOutOfRange, index, bands)
	}
	return nil
}

// CheckRegion validates a region against a source's spatial extent
func CheckRegion(src Source, r models.Region) error {
	_, rows, cols := src.Dims()
	return r.Validate(rows, cols)
}
