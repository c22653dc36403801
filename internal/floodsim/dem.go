package floodsim

import (
	"math"

	"github.com/sells-group/flood-cli/internal/raster"
)

// SyntheticDEM builds a size×size surface in metres: a slope falling from
// 3 m on the first row to 0 m on the last, east-west sine ripples of 0.3 m
// and 0.2 m gaussian roughness.
func SyntheticDEM(size int, seed uint64) raster.Grid {
	src := raster.NewSource(seed)
	rough := src.Normal(size, size, 0, 0.2)
	dem := raster.New(size, size)
	for r := 0; r < size; r++ {
		slope := linspace(3, 0, size, r)
		for c := 0; c < size; c++ {
			wave := 0.3 * math.Sin(linspace(0, 6*math.Pi, size, c))
			dem.Set(r, c, slope+wave+rough.At(r, c))
		}
	}
	return dem
}

// linspace returns the i-th of n evenly spaced values over [start, stop].
func linspace(start, stop float64, n, i int) float64 {
	if n <= 1 {
		return start
	}
	return start + (stop-start)*float64(i)/float64(n-1)
}
