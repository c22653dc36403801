package raster

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics over the valid (non-NaN) cells.
type Summary struct {
	Cells  int     `json:"cells"`
	Valid  int     `json:"valid"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Describe computes a Summary. When no cell is valid, Valid is 0 and the
// statistics stay zero so the summary always encodes as JSON.
func Describe(g Grid) Summary {
	d := g.Data()
	valid := make([]float64, 0, len(d))
	for _, v := range d {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	s := Summary{Cells: len(d), Valid: len(valid)}
	if len(valid) == 0 {
		return s
	}
	s.Min, s.Max, _ = MinMax(g)
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	if len(valid) == 1 {
		s.StdDev = 0
	}
	return s
}
