package cube

import (
	"fmt"

	"hyperspectral/pkg/models"
)

// Interleave names the sample order of a flat cube buffer
type Interleave int

const (
	// BSQ is band sequential: (band, row, column)
	BSQ Interleave = iota
	// BIL is band interleaved by line: (row, band, column)
	BIL
	// BIP is band interleaved by pixel: (row, column, band)
	BIP
)

func (il Interleave) String() string {
	switch il {
	case BSQ:
		return "bsq"
	case BIL:
		return "bil"
	case BIP:
		return "bip"
	default:
		return fmt.Sprintf("Interleave(%d)", int(il))
	}
}

// Memory is a Source backed by a fully materialized cube. Raw values are kept
// as given and clamped on every read.
type Memory struct {
	// data is stored in BSQ order
	data        []float32
	bands       int
	rows        int
	cols        int
	wavelengths []float64
}

// NewMemory wraps a BSQ buffer. wavelengths may be nil; otherwise it needs one
// entry per band.
func NewMemory(data []float32, bands, rows, cols int, wavelengths []float64) (*Memory, error) {
	return NewMemoryInterleaved(data, BSQ, bands, rows, cols, wavelengths)
}

// NewMemoryInterleaved wraps a buffer in any of the ENVI interleave orders.
// Non-BSQ buffers are reordered into a private copy.
func NewMemoryInterleaved(data []float32, il Interleave, bands, rows, cols int, wavelengths []float64) (*Memory, error) {
	if bands <= 0 || rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: cube dimensions %dx%dx%d", models.ErrInvalidParams, bands, rows, cols)
	}
	if len(data) != bands*rows*cols {
		return nil, fmt.Errorf("%w: %d samples for a %dx%dx%d cube", models.ErrDimensionMismatch, len(data), bands, rows, cols)
	}
	if wavelengths != nil && len(wavelengths) != bands {
		return nil, fmt.Errorf("%w: %d wavelengths for %d bands", models.ErrDimensionMismatch, len(wavelengths), bands)
	}
	if wavelengths == nil {
		wavelengths = make([]float64, bands)
	}

	var bsq []float32
	switch il {
	case BSQ:
		bsq = data
	case BIL:
		bsq = make([]float32, len(data))
		for y := 0; y < rows; y++ {
			for b := 0; b < bands; b++ {
				src := data[(y*bands+b)*cols : (y*bands+b+1)*cols]
				copy(bsq[b*rows*cols+y*cols:], src)
			}
		}
	case BIP:
		bsq = make([]float32, len(data))
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				px := data[(y*cols+x)*bands : (y*cols+x+1)*bands]
				for b, v := range px {
					bsq[b*rows*cols+y*cols+x] = v
				}
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown interleave %v", models.ErrInvalidParams, il)
	}

	return &Memory{
		data:        bsq,
		bands:       bands,
		rows:        rows,
		cols:        cols,
		wavelengths: append([]float64(nil), wavelengths...),
	}, nil
}

// Wavelengths returns a copy of the band centre wavelengths
func (m *Memory) Wavelengths() []float64 {
	return append([]float64(nil), m.wavelengths...)
}

// Dims returns the band count and spatial extent
func (m *Memory) Dims() (bands, rows, cols int) {
	return m.bands, m.rows, m.cols
}

// ReadCube returns a clamped copy of the whole cube
func (m *Memory) ReadCube() (*models.Cube, error) {
	out := make([]float32, len(m.data))
	for i, v := range m.data {
		out[i] = Clamp(v)
	}
	return &models.Cube{Data: out, Bands: m.bands, Rows: m.rows, Cols: m.cols}, nil
}

// ReadBand returns a clamped copy of one layer
func (m *Memory) ReadBand(index int) (*models.Band, error) {
	if err := CheckBand(m, index); err != nil {
		return nil, err
	}
	plane := m.rows * m.cols
	out := make([]float32, plane)
	for i, v := range m.data[index*plane : (index+1)*plane] {
		out[i] = Clamp(v)
	}
	return &models.Band{
		Index:      index,
		Wavelength: m.wavelengths[index],
		Rows:       m.rows,
		Cols:       m.cols,
		Data:       out,
	}, nil
}

// ReadSubregion returns the clamped pixels of r in (row, column, band) order
func (m *Memory) ReadSubregion(r models.Region) (*models.PixelGrid, error) {
	return m.readSubregion(r, Clamp)
}

// ReadRawSubregion returns the pixels of r as stored, in (row, column, band)
// order
func (m *Memory) ReadRawSubregion(r models.Region) (*models.PixelGrid, error) {
	return m.readSubregion(r, func(v float32) float32 { return v })
}

func (m *Memory) readSubregion(r models.Region, conv func(float32) float32) (*models.PixelGrid, error) {
	if err := CheckRegion(m, r); err != nil {
		return nil, err
	}
	g := models.NewPixelGrid(r.Height(), r.Width(), m.bands)
	plane := m.rows * m.cols
	for b := 0; b < m.bands; b++ {
		layer := m.data[b*plane : (b+1)*plane]
		for y := 0; y < g.Rows; y++ {
			src := layer[(r.YStart+y)*m.cols+r.XStart:]
			for x := 0; x < g.Cols; x++ {
				g.Data[(y*g.Cols+x)*g.Depth+b] = float64(conv(src[x]))
			}
		}
	}
	return g, nil
}

// ReadPixel returns the clamped spectrum of pixel (y, x)
func (m *Memory) ReadPixel(y, x int) ([]float64, error) {
	if y < 0 || y >= m.rows || x < 0 || x >= m.cols {
		return nil, fmt.Errorf("%w: pixel (%d, %d) outside %dx%d", models.ErrInvalidRegion, x, y, m.cols, m.rows)
	}
	out := make([]float64, m.bands)
	plane := m.rows * m.cols
	for b := range out {
		out[b] = float64(Clamp(m.data[b*plane+y*m.cols+x]))
	}
	return out, nil
}
