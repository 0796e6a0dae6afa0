package sam

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"hyperspectral/internal/parallel"
	"hyperspectral/pkg/models"
)

// Border selects how LocalAngleMap treats the outermost ring of pixels
type Border int

const (
	// BorderUndefined leaves the ring at the undefined marker
	BorderUndefined Border = iota

	// BorderReplicate clamps out-of-range neighbour coordinates into the
	// grid, so a ring pixel is compared with its nearest in-grid pixels
	BorderReplicate
)

func (b Border) String() string {
	switch b {
	case BorderUndefined:
		return "undefined"
	case BorderReplicate:
		return "replicate"
	default:
		return fmt.Sprintf("Border(%d)", int(b))
	}
}

// ParseBorder converts a configuration name into a Border
func ParseBorder(name string) (Border, error) {
	switch name {
	case "", "undefined":
		return BorderUndefined, nil
	case "replicate":
		return BorderReplicate, nil
	default:
		return 0, fmt.Errorf("%w: unknown border mode %q", models.ErrInvalidParams, name)
	}
}

// LocalOptions controls LocalAngleMap
type LocalOptions struct {
	Border Border

	// Workers is the number of goroutines; zero means one per CPU
	Workers int
}

// LocalResult is a neighbourhood angle map
type LocalResult struct {
	Map *models.AngleMap

	// Partial counts cells where some neighbours had zero norm and were left
	// out of the mean
	Partial int

	Warnings []models.Warning
}

// neighbours lists the 8 offsets (dy, dx) around a pixel
var neighbours = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// LocalAngleMap sets every pixel to the mean absolute spectral angle between
// its vector and those of its 8 neighbours. Unit vectors are computed once per
// pixel. Rows are processed in parallel and write disjoint cells.
//
// A pixel with zero norm, or with no neighbour of non-zero norm, stays
// undefined. With BorderUndefined the outer ring stays undefined as well.
func LocalAngleMap(ctx context.Context, g *models.PixelGrid, opts LocalOptions) (*LocalResult, error) {
	out := models.NewAngleMap(g.Rows, g.Cols)
	units, valid := unitGrid(g)

	y0, y1, x0, x1 := 0, g.Rows, 0, g.Cols
	if opts.Border == BorderUndefined {
		y0, y1, x0, x1 = 1, g.Rows-1, 1, g.Cols-1
	}

	rows := max(y1-y0, 0)
	partial := make([]int, g.Rows)
	err := parallel.ForEachRow(ctx, rows, opts.Workers, func(i int) {
		y := y0 + i
		row := out.Row(y)
		sum := make([]float64, g.Depth)
		for x := x0; x < x1; x++ {
			idx := y*g.Cols + x
			if !valid[idx] {
				continue
			}
			centre := units[idx*g.Depth : (idx+1)*g.Depth]

			total, count := 0.0, 0
			for _, off := range neighbours {
				ny := clampIndex(y+off[0], g.Rows)
				nx := clampIndex(x+off[1], g.Cols)
				nIdx := ny*g.Cols + nx
				if !valid[nIdx] {
					continue
				}
				total += math.Abs(unitAngle(centre, units[nIdx*g.Depth:(nIdx+1)*g.Depth], sum))
				count++
			}
			if count == 0 {
				continue
			}
			if count < len(neighbours) {
				partial[y]++
			}
			row[x] = total / float64(count)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("local angle map cancelled: %w", err)
	}

	res := &LocalResult{Map: out}
	for _, p := range partial {
		res.Partial += p
	}

	undefined := out.UndefinedCount()
	if opts.Border == BorderUndefined {
		undefined -= borderCells(g.Rows, g.Cols)
	}
	if undefined > 0 {
		res.Warnings = append(res.Warnings, models.NewWarning(models.UndefinedStatistic,
			"%d pixels have no defined neighbourhood angle", undefined))
	}
	if res.Partial > 0 {
		res.Warnings = append(res.Warnings, models.NewWarning(models.UndefinedStatistic,
			"%d pixels averaged over fewer than 8 neighbours", res.Partial))
	}
	return res, nil
}

// unitGrid normalizes every pixel vector. valid is false for zero-norm pixels.
func unitGrid(g *models.PixelGrid) (units []float64, valid []bool) {
	units = make([]float64, len(g.Data))
	valid = make([]bool, g.Pixels())
	for p := range valid {
		v := g.Data[p*g.Depth : (p+1)*g.Depth]
		n := floats.Norm(v, 2)
		if n == 0 || math.IsNaN(n) {
			continue
		}
		floats.ScaleTo(units[p*g.Depth:(p+1)*g.Depth], 1/n, v)
		valid[p] = true
	}
	return units, valid
}

// borderCells returns the size of the outer ring of a rows×cols grid
func borderCells(rows, cols int) int {
	if rows <= 2 || cols <= 2 {
		return rows * cols
	}
	return 2*cols + 2*(rows-2)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
