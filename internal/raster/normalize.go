package raster

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MinMax returns the smallest and largest non-NaN values. ok is false when
// every cell is NaN.
func MinMax(g Grid) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data() {
		if math.IsNaN(v) {
			continue
		}
		ok = true
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}

// NormalizeMinMax rescales g to [0,1] using its own extremes:
// (v - min) / (max - min). A constant layer maps to 0 everywhere; NaN cells
// stay NaN. The input is not modified.
func NormalizeMinMax(g Grid) Grid {
	lo, hi, ok := MinMax(g)
	if !ok {
		return g.Clone()
	}
	return scale(g, lo, hi)
}

// NormalizeRange rescales g against a fixed physical range and clamps into
// [0,1], e.g. slope against 0–30 degrees. A degenerate range maps to 0.
func NormalizeRange(g Grid, lo, hi float64) Grid {
	out := scale(g, lo, hi)
	d := out.Data()
	for i, v := range d {
		if math.IsNaN(v) {
			continue
		}
		d[i] = math.Max(0, math.Min(1, v))
	}
	return out
}

// Invert maps a normalized layer v → 1 - v so that high raw values become
// low scores. NaN is preserved.
func Invert(g Grid) Grid {
	out := g.Clone()
	d := out.Data()
	floats.Scale(-1, d)
	floats.AddConst(1, d)
	return out
}

func scale(g Grid, lo, hi float64) Grid {
	out := g.Clone()
	d := out.Data()
	if hi == lo {
		for i, v := range d {
			if !math.IsNaN(v) {
				d[i] = 0
			}
		}
		return out
	}
	floats.AddConst(-lo, d)
	floats.Scale(1/(hi-lo), d)
	return out
}
