package models

import "math"

// AngleMap holds one spectral angle in radians per pixel of a region.
// Cells without a defined angle hold NaN; use Defined rather than comparing
// values directly.
type AngleMap struct {
	Rows, Cols int

	// Data is the map in row-major order
	Data []float64
}

// Undefined returns the marker stored in cells that have no defined value
func Undefined() float64 { return math.NaN() }

// IsUndefined reports whether v is the undefined marker
func IsUndefined(v float64) bool { return math.IsNaN(v) }

// NewAngleMap allocates a map with every cell undefined
func NewAngleMap(rows, cols int) *AngleMap {
	m := &AngleMap{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
	for i := range m.Data {
		m.Data[i] = Undefined()
	}
	return m
}

// At returns the value at (y, x)
func (m *AngleMap) At(y, x int) float64 {
	return m.Data[y*m.Cols+x]
}

// Set stores v at (y, x)
func (m *AngleMap) Set(y, x int, v float64) {
	m.Data[y*m.Cols+x] = v
}

// Defined reports whether (y, x) holds a defined angle
func (m *AngleMap) Defined(y, x int) bool {
	return !IsUndefined(m.At(y, x))
}

// UndefinedCount returns the number of undefined cells
func (m *AngleMap) UndefinedCount() int {
	n := 0
	for _, v := range m.Data {
		if IsUndefined(v) {
			n++
		}
	}
	return n
}

// Row returns row y of the map. The slice aliases the map data.
func (m *AngleMap) Row(y int) []float64 {
	return m.Data[y*m.Cols : (y+1)*m.Cols]
}
