package models

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// TestRegionValidate checks every rejection rule of Region.Validate
func TestRegionValidate(t *testing.T) {
	tests := []struct {
		name   string
		region Region
		ok     bool
	}{
		{"full extent", NewRegion(0, 0, 10, 8), true},
		{"single pixel", NewRegion(3, 4, 4, 5), true},
		{"x end equals start", NewRegion(5, 0, 5, 8), false},
		{"x end before start", NewRegion(6, 0, 2, 8), false},
		{"y end equals start", NewRegion(0, 3, 10, 3), false},
		{"negative start", NewRegion(-1, 0, 4, 4), false},
		{"x beyond cols", NewRegion(0, 0, 11, 8), false},
		{"y beyond rows", NewRegion(0, 0, 10, 9), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.region.Validate(8, 10)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidRegion), "expected ErrInvalidRegion, got %v", err)
		})
	}
}

func TestRegionSize(t *testing.T) {
	r := NewRegion(2, 1, 6, 4)
	assert.Equal(t, 4, r.Width())
	assert.Equal(t, 3, r.Height())
	assert.Equal(t, 12, r.Pixels())
}

// TestPixelGridMatrixView verifies that the matrix view shares storage and
// follows row-major pixel order
func TestPixelGridMatrixView(t *testing.T) {
	g := NewPixelGrid(2, 3, 2)
	for i := range g.Data {
		g.Data[i] = float64(i)
	}

	m := g.Matrix()
	r, c := m.Dims()
	require.Equal(t, 6, r)
	require.Equal(t, 2, c)

	// pixel (1, 2) is the sixth pixel
	assert.Equal(t, g.Vector(1, 2)[0], m.At(5, 0))
	assert.Equal(t, g.Vector(1, 2)[1], m.At(5, 1))

	m.Set(0, 0, 42)
	assert.Equal(t, 42.0, g.Vector(0, 0)[0])
}

func TestGridFromMatrix(t *testing.T) {
	m := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	g, err := GridFromMatrix(m, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, g.Vector(1, 0))

	_, err = GridFromMatrix(m, 3, 2)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestAngleMapUndefined(t *testing.T) {
	m := NewAngleMap(2, 2)
	assert.Equal(t, 4, m.UndefinedCount())

	m.Set(0, 1, 0)
	assert.True(t, m.Defined(0, 1))
	assert.False(t, m.Defined(1, 1))
	assert.Equal(t, 3, m.UndefinedCount())
}

func TestWarningErr(t *testing.T) {
	w := NewWarning(ConvergenceNotReached, "stopped after %d iterations", 5)
	assert.ErrorIs(t, w.Err(), ErrConvergenceNotReached)
	assert.Equal(t, "ConvergenceNotReached: stopped after 5 iterations", w.String())

	assert.ErrorIs(t, NewWarning(NumericalInstability, "x").Err(), ErrNumericalInstability)
	assert.ErrorIs(t, NewWarning(UndefinedStatistic, "x").Err(), ErrUndefinedStatistic)
}

func TestCheckFinite(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		ok    bool
	}{
		{"finite", 0.5, true},
		{"nan", math.NaN(), false},
		{"positive infinity", math.Inf(1), false},
		{"negative infinity", math.Inf(-1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := mat.NewDense(2, 2, []float64{0.1, 0.2, 0.3, tt.value})
			err := CheckFinite(x)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidParams)
			assert.Contains(t, err.Error(), "row 1, column 1")
		})
	}
}
