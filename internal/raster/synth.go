package raster

import (
	"math"
	"math/rand/v2"
)

// Source is a seeded generator for synthetic demo layers. The same seed
// always yields the same grids.
type Source struct {
	rng *rand.Rand
}

// NewSource returns a deterministic generator.
func NewSource(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Normal fills a grid with N(mean, std) samples.
func (s *Source) Normal(rows, cols int, mean, std float64) Grid {
	g := New(rows, cols)
	d := g.Data()
	for i := range d {
		d[i] = mean + std*s.rng.NormFloat64()
	}
	return g
}

// Uniform fills a grid with samples from [lo, hi).
func (s *Source) Uniform(rows, cols int, lo, hi float64) Grid {
	g := New(rows, cols)
	d := g.Data()
	for i := range d {
		d[i] = lo + (hi-lo)*s.rng.Float64()
	}
	return g
}

// Float64 returns a single sample from [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// Between returns a single sample from [lo, hi).
func (s *Source) Between(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// NormFloat64 returns a single standard normal sample.
func (s *Source) NormFloat64() float64 {
	return s.rng.NormFloat64()
}

// Abs returns |g|.
func Abs(g Grid) Grid {
	return g.Map(math.Abs)
}

// Clip returns g with every cell clamped into [lo, hi]. NaN is preserved.
func Clip(g Grid, lo, hi float64) Grid {
	return g.Map(func(v float64) float64 {
		if math.IsNaN(v) {
			return v
		}
		return math.Max(lo, math.Min(hi, v))
	})
}
