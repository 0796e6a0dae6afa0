package sam

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"hyperspectral/pkg/models"
)

// Summary describes the defined cells of an angle map. Statistics are NaN
// when no cell is defined.
type Summary struct {
	Defined   int
	Undefined int
	Mean      float64
	StdDev    float64
	Min       float64
	Max       float64
}

// Summarize computes a Summary over the defined cells of m
func Summarize(m *models.AngleMap) Summary {
	values := make([]float64, 0, len(m.Data))
	for _, v := range m.Data {
		if !models.IsUndefined(v) {
			values = append(values, v)
		}
	}

	s := Summary{Defined: len(values), Undefined: len(m.Data) - len(values)}
	switch len(values) {
	case 0:
		nan := models.Undefined()
		s.Mean, s.StdDev, s.Min, s.Max = nan, nan, nan, nan
	case 1:
		s.Mean, s.Min, s.Max = values[0], values[0], values[0]
	default:
		s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
		s.Min = floats.Min(values)
		s.Max = floats.Max(values)
	}
	return s
}

// Degrees converts an angle in radians to degrees, keeping the undefined
// marker
func Degrees(rad float64) float64 {
	if models.IsUndefined(rad) {
		return rad
	}
	return rad * 180 / math.Pi
}
