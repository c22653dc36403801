// Package susceptibility combines criterion rasters into a weighted-sum
// flood susceptibility index.
package susceptibility

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
)

// Method selects how a layer is brought into [0,1].
type Method string

// Normalization methods.
const (
	// MethodMinMax uses the layer's own extremes. A constant layer becomes 0.
	MethodMinMax Method = "minmax"
	// MethodRange uses a fixed physical range and clamps into [0,1].
	MethodRange Method = "range"
	// MethodNone passes values through; the layer is assumed to be in [0,1] already.
	MethodNone Method = "none"
)

// Normalization configures a layer's rescaling.
type Normalization struct {
	Method Method  `yaml:"method" json:"method"`
	Min    float64 `yaml:"min" json:"min"`
	Max    float64 `yaml:"max" json:"max"`
}

// Layer is one weighted criterion.
type Layer struct {
	Name          string
	Grid          raster.Grid
	Weight        float64
	Invert        bool
	Normalization Normalization
}

func (l Layer) checkNormalization() error {
	switch l.Normalization.Method {
	case "", MethodMinMax, MethodNone:
		return nil
	case MethodRange:
		if !(l.Normalization.Max > l.Normalization.Min) {
			return eris.Errorf("layer %q: range max %g must exceed min %g",
				l.Name, l.Normalization.Max, l.Normalization.Min)
		}
		return nil
	}
	return eris.Errorf("layer %q: unknown normalization %q", l.Name, l.Normalization.Method)
}

// Normalized returns the layer rescaled to [0,1] (and inverted if requested).
func (l Layer) Normalized() (raster.Grid, error) {
	if err := l.checkNormalization(); err != nil {
		return raster.Grid{}, err
	}
	var n raster.Grid
	switch l.Normalization.Method {
	case MethodRange:
		n = raster.NormalizeRange(l.Grid, l.Normalization.Min, l.Normalization.Max)
	case MethodNone:
		n = l.Grid.Clone()
	default:
		n = raster.NormalizeMinMax(l.Grid)
	}
	if l.Invert {
		n = raster.Invert(n)
	}
	return n, nil
}

// Combine computes Σ wᵢ·minmax(layerᵢ) cell by cell. Weights are used as
// given; with weights summing to 1 the result lies in [0,1]. NaN cells in
// any layer stay NaN in the output. All checks run before any arithmetic.
func Combine(layers []raster.Grid, weights []float64) (raster.Grid, error) {
	if len(layers) == 0 {
		return raster.Grid{}, eris.Wrap(model.ErrNoLayers, "susceptibility: combine")
	}
	if len(weights) != len(layers) {
		return raster.Grid{}, eris.Wrapf(model.ErrWeightLengthMismatch,
			"susceptibility: %d weights for %d layers", len(weights), len(layers))
	}
	ls := make([]Layer, len(layers))
	for i, g := range layers {
		ls[i] = Layer{Grid: g, Weight: weights[i]}
	}
	return CombineLayers(ls)
}

// CombineLayers applies each layer's own normalization, inversion and weight
// and sums the results. The output carries the first available georeference.
func CombineLayers(layers []Layer) (raster.Grid, error) {
	if len(layers) == 0 {
		return raster.Grid{}, eris.Wrap(model.ErrNoLayers, "susceptibility: combine")
	}

	grids := make([]raster.Grid, len(layers))
	for i, l := range layers {
		if math.IsNaN(l.Weight) || math.IsInf(l.Weight, 0) || l.Weight < 0 {
			return raster.Grid{}, eris.Wrapf(model.ErrInvalidWeight,
				"susceptibility: layer %d (%s) weight %g", i, l.Name, l.Weight)
		}
		if l.Grid.Empty() {
			return raster.Grid{}, eris.Wrapf(model.ErrShapeMismatch, "susceptibility: layer %d (%s) is empty", i, l.Name)
		}
		if err := l.checkNormalization(); err != nil {
			return raster.Grid{}, eris.Wrapf(err, "susceptibility: layer %d", i)
		}
		grids[i] = l.Grid
	}
	if err := raster.SameShape(grids...); err != nil {
		return raster.Grid{}, eris.Wrap(err, "susceptibility: layers")
	}

	rows, cols := grids[0].Dims()
	out := raster.New(rows, cols)
	dst := out.Data()
	for _, l := range layers {
		n, err := l.Normalized()
		if err != nil {
			return raster.Grid{}, err
		}
		floats.AddScaled(dst, l.Weight, n.Data())
	}
	out.Georef = raster.FirstGeoref(grids...)
	return out, nil
}

// Weights returns the weight of each layer in order.
func Weights(layers []Layer) []float64 {
	w := make([]float64, len(layers))
	for i, l := range layers {
		w[i] = l.Weight
	}
	return w
}
