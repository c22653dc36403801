// Package ndwi computes the Normalized Difference Water Index from green and
// near-infrared bands and thresholds it into a water mask.
package ndwi

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
)

// ZeroPolicy decides what happens where G + NIR == 0.
type ZeroPolicy string

const (
	// ZeroNaN marks the cell nodata.
	ZeroNaN ZeroPolicy = "nan"
	// ZeroZero writes 0.
	ZeroZero ZeroPolicy = "zero"
	// ZeroEpsilon adds Epsilon to every denominator, the classic scripting idiom.
	ZeroEpsilon ZeroPolicy = "epsilon"
)

// Epsilon is the denominator offset used by ZeroEpsilon.
const Epsilon = 1e-6

// DefaultThreshold flags a cell as water when NDWI exceeds it.
const DefaultThreshold = 0.25

// ParseZeroPolicy accepts "nan" (also the empty string), "zero" or "epsilon".
func ParseZeroPolicy(s string) (ZeroPolicy, error) {
	switch p := ZeroPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ZeroNaN, nil
	case ZeroNaN, ZeroZero, ZeroEpsilon:
		return p, nil
	}
	return "", eris.Errorf("ndwi: unknown zero policy %q (want nan, zero or epsilon)", s)
}

// Compute returns (G - NIR) / (G + NIR) per cell. Output values lie in
// [-1, 1] for non-negative reflectances; cells with a zero denominator follow
// policy. NaN inputs stay NaN.
func Compute(green, nir raster.Grid, policy ZeroPolicy) (raster.Grid, error) {
	if green.Empty() || nir.Empty() {
		return raster.Grid{}, eris.Wrap(model.ErrShapeMismatch, "ndwi: empty band")
	}
	if err := raster.SameShape(green, nir); err != nil {
		return raster.Grid{}, eris.Wrap(err, "ndwi: bands")
	}
	if policy == "" {
		policy = ZeroNaN
	}
	if _, err := ParseZeroPolicy(string(policy)); err != nil {
		return raster.Grid{}, err
	}

	rows, cols := green.Dims()
	out := raster.New(rows, cols)
	out.Georef = raster.FirstGeoref(green, nir)

	g, n, dst := green.Data(), nir.Data(), out.Data()
	for i := range dst {
		num := g[i] - n[i]
		den := g[i] + n[i]
		switch {
		case policy == ZeroEpsilon:
			den += Epsilon
		case den == 0 && policy == ZeroZero:
			dst[i] = 0
			continue
		case den == 0:
			dst[i] = math.NaN()
			continue
		}
		dst[i] = num / den
	}
	return out, nil
}

// Threshold flags cells with NDWI strictly greater than cutoff. NaN cells are
// never water.
func Threshold(index raster.Grid, cutoff float64) raster.Mask {
	rows, cols := index.Dims()
	m := raster.NewMask(rows, cols)
	m.Georef = index.Georef
	for i, v := range index.Data() {
		if v > cutoff {
			m.Data[i] = 1
		}
	}
	return m
}
