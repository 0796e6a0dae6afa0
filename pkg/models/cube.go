// Package models holds the data types shared by the spectral analysis packages.
package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Cube represents a full hyperspectral cube held in memory
type Cube struct {
	// Data is the reflectance data in (band, row, column) order
	Data []float32

	// Bands is the number of wavelength channels
	Bands int

	// Rows and Cols are the spatial dimensions of every band
	Rows, Cols int
}

// At returns the reflectance of band b at pixel (y, x)
func (c *Cube) At(b, y, x int) float32 {
	return c.Data[b*c.Rows*c.Cols+y*c.Cols+x]
}

// Band represents a single wavelength layer of a cube
type Band struct {
	// Index is the position of the band in the cube
	Index int

	// Wavelength is the centre wavelength of the band, 0 if unknown
	Wavelength float64

	// Rows and Cols are the dimensions of the layer
	Rows, Cols int

	// Data is the layer in row-major order
	Data []float32
}

// At returns the value at pixel (y, x)
func (b *Band) At(y, x int) float32 {
	return b.Data[y*b.Cols+x]
}

// Region is a rectangle of pixels. Both axes are half-open: the region covers
// columns [XStart, XEnd) and rows [YStart, YEnd).
type Region struct {
	XStart, YStart int
	XEnd, YEnd     int
}

// NewRegion creates a region from its corner coordinates
func NewRegion(xStart, yStart, xEnd, yEnd int) Region {
	return Region{XStart: xStart, YStart: yStart, XEnd: xEnd, YEnd: yEnd}
}

// Width returns the number of columns covered by the region
func (r Region) Width() int { return r.XEnd - r.XStart }

// Height returns the number of rows covered by the region
func (r Region) Height() int { return r.YEnd - r.YStart }

// Pixels returns the number of pixels covered by the region
func (r Region) Pixels() int { return r.Width() * r.Height() }

// Validate checks the region against a rows×cols extent.
// Every failure wraps ErrInvalidRegion.
func (r Region) Validate(rows, cols int) error {
	if r.XEnd <= r.XStart {
		return fmt.Errorf("%w: x_end %d <= x_start %d", ErrInvalidRegion, r.XEnd, r.XStart)
	}
	if r.YEnd <= r.YStart {
		return fmt.Errorf("%w: y_end %d <= y_start %d", ErrInvalidRegion, r.YEnd, r.YStart)
	}
	if r.XStart < 0 || r.YStart < 0 {
		return fmt.Errorf("%w: negative start (%d, %d)", ErrInvalidRegion, r.XStart, r.YStart)
	}
	if r.XEnd > cols || r.YEnd > rows {
		return fmt.Errorf("%w: end (%d, %d) exceeds extent %dx%d", ErrInvalidRegion, r.XEnd, r.YEnd, cols, rows)
	}
	return nil
}

func (r Region) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d]", r.YStart, r.YEnd, r.XStart, r.XEnd)
}

// PixelGrid is a rectangular block of pixel vectors in (row, column, depth)
// order. Depth is the band count for a subregion read and the retained
// component count for a reduced block.
type PixelGrid struct {
	Rows, Cols, Depth int

	// Data holds Rows*Cols vectors of length Depth back to back
	Data []float64
}

// NewPixelGrid allocates a zeroed grid
func NewPixelGrid(rows, cols, depth int) *PixelGrid {
	return &PixelGrid{
		Rows:  rows,
		Cols:  cols,
		Depth: depth,
		Data:  make([]float64, rows*cols*depth),
	}
}

// Vector returns the vector of pixel (y, x). The slice aliases the grid data.
func (g *PixelGrid) Vector(y, x int) []float64 {
	off := (y*g.Cols + x) * g.Depth
	return g.Data[off : off+g.Depth : off+g.Depth]
}

// Pixels returns Rows*Cols
func (g *PixelGrid) Pixels() int { return g.Rows * g.Cols }

// Matrix returns an N×Depth view of the grid, one row per pixel in row-major
// pixel order. The matrix shares storage with the grid.
func (g *PixelGrid) Matrix() *mat.Dense {
	return mat.NewDense(g.Pixels(), g.Depth, g.Data)
}

// GridFromMatrix reshapes an N×D matrix into a rows×cols grid. The matrix must
// have exactly rows*cols rows.
func GridFromMatrix(m mat.Matrix, rows, cols int) (*PixelGrid, error) {
	n, d := m.Dims()
	if n != rows*cols {
		return nil, fmt.Errorf("%w: %d rows cannot fill a %dx%d grid", ErrDimensionMismatch, n, rows, cols)
	}
	g := NewPixelGrid(rows, cols, d)
	for i := 0; i < n; i++ {
		row := g.Data[i*d : (i+1)*d]
		for j := range row {
			row[j] = m.At(i, j)
		}
	}
	return g, nil
}

// CheckFinite returns an error wrapping ErrInvalidParams when x holds a NaN or
// an infinite value
func CheckFinite(x mat.Matrix) error {
	rows, cols := x.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := x.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite value %v at row %d, column %d", ErrInvalidParams, v, i, j)
			}
		}
	}
	return nil
}
