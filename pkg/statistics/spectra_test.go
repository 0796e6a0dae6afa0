package statistics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperspectral/pkg/cube"
	"hyperspectral/pkg/models"
)

// createUniformCube returns a rows×cols cube where every pixel has spectrum v
func createUniformCube(t *testing.T, rows, cols int, v []float32) *cube.Memory {
	bands := len(v)
	data := make([]float32, bands*rows*cols)
	for b := 0; b < bands; b++ {
		for i := 0; i < rows*cols; i++ {
			data[b*rows*cols+i] = v[b]
		}
	}
	m, err := cube.NewMemory(data, bands, rows, cols, nil)
	require.NoError(t, err)
	return m
}

// TestRegionMeanOfUniformRegion verifies that the mean of identical spectra
// is the spectrum itself
func TestRegionMeanOfUniformRegion(t *testing.T) {
	v := []float32{0.1, 0.2, 0.3}
	src := createUniformCube(t, 6, 5, v)

	s, err := RegionMeanSpectrum(src, models.NewRegion(1, 1, 4, 5))
	require.NoError(t, err)
	require.True(t, s.Defined())
	require.Len(t, s.Values, 3)

	for b := range v {
		assert.InDelta(t, float64(v[b]), s.Values[b], 1e-12)
	}
	assert.Empty(t, s.Warnings)

	row := s.Row()
	r, c := row.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 3, c)
}

func TestRegionMeanAveragesPixels(t *testing.T) {
	// one band, 2x2, values 0, 0.5, 1 and an overflow
	src, err := cube.NewMemory([]float32{0, 0.5, 1, 3}, 1, 2, 2, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		src  cube.Source
		want float64
	}{
		// the stored overflow is skipped
		{"raw reader", src, 1.5 / 3},
		// only clamped reads are available, the overflow counts as 1
		{"clamped source", &countingSource{Source: src}, 2.5 / 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := RegionMeanSpectrum(tt.src, models.NewRegion(0, 0, 2, 2))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, s.Values[0], 1e-12)
		})
	}
}

// TestRegionMeanUndefinedBand checks that a band with no valid values is
// reported as undefined rather than zero
func TestRegionMeanUndefinedBand(t *testing.T) {
	nan := float32(math.NaN())
	// band 0 valid, band 1 entirely NaN
	data := []float32{0.2, 0.4, nan, nan}
	src, err := cube.NewMemory(data, 2, 1, 2, nil)
	require.NoError(t, err)

	s, err := RegionMeanSpectrum(src, models.NewRegion(0, 0, 2, 1))
	require.NoError(t, err)

	assert.False(t, s.Defined())
	assert.Equal(t, []int{1}, s.Undefined)
	assert.InDelta(t, 0.3, s.Values[0], 1e-6)
	assert.True(t, models.IsUndefined(s.Values[1]))
	require.Len(t, s.Warnings, 1)
	assert.Equal(t, models.UndefinedStatistic, s.Warnings[0].Kind)
}

// TestRegionMeanInvalidRegion checks that bad bounds fail before any read
func TestRegionMeanInvalidRegion(t *testing.T) {
	src := &countingSource{Source: createUniformCube(t, 4, 4, []float32{0.5})}

	tests := []models.Region{
		models.NewRegion(2, 0, 2, 4), // x_end == x_start
		models.NewRegion(3, 0, 1, 4), // x_end < x_start
		models.NewRegion(0, 3, 4, 3),
		models.NewRegion(0, 0, 5, 4),
	}
	for _, r := range tests {
		_, err := RegionMeanSpectrum(src, r)
		assert.ErrorIs(t, err, models.ErrInvalidRegion, r.String())
	}
	assert.Zero(t, src.reads)
}

func TestPixelSpectrum(t *testing.T) {
	src := createUniformCube(t, 3, 3, []float32{0.25, 0.75})

	s, err := PixelSpectrum(src, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75}, s.Values)

	_, err = PixelSpectrum(src, 3, 0)
	assert.ErrorIs(t, err, models.ErrInvalidRegion)
}

// countingSource records subregion reads
type countingSource struct {
	cube.Source
	reads int
}

func (c *countingSource) ReadSubregion(r models.Region) (*models.PixelGrid, error) {
	c.reads++
	return c.Source.ReadSubregion(r)
}
