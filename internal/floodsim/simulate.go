// Package floodsim runs a small cellular-automata model of rain water
// pooling and spreading over a digital elevation model.
package floodsim

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/flood-cli/internal/raster"
)

// Transfer coefficients per step.
const (
	moveFraction   = 0.2
	spreadFraction = 0.05
	edgeRetention  = 0.7
)

// Params controls a simulation.
type Params struct {
	// RainfallMM is the total rain added evenly over all steps.
	RainfallMM float64 `json:"rainfall_mm"`
	Steps      int     `json:"steps"`
	// InfiltrationM is the depth lost to soil per cell per step.
	InfiltrationM float64 `json:"infiltration_m"`
	// EdgeOutflow drains part of the water on border cells every step.
	EdgeOutflow bool `json:"edge_outflow"`
}

// DefaultParams returns the reference storm: 120 mm over 250 steps.
func DefaultParams() Params {
	return Params{RainfallMM: 120, Steps: 250, InfiltrationM: 0.002, EdgeOutflow: true}
}

// Validate rejects impossible parameters.
func (p Params) Validate() error {
	switch {
	case p.Steps <= 0:
		return eris.Errorf("floodsim: steps must be positive, got %d", p.Steps)
	case p.RainfallMM < 0 || math.IsNaN(p.RainfallMM):
		return eris.Errorf("floodsim: rainfall must be non-negative, got %v", p.RainfallMM)
	case p.InfiltrationM < 0 || math.IsNaN(p.InfiltrationM):
		return eris.Errorf("floodsim: infiltration must be non-negative, got %v", p.InfiltrationM)
	}
	return nil
}

// neighbours are the von Neumann offsets N, S, W, E.
var neighbours = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// Simulate returns the water depth in metres after p.Steps steps. The grid
// wraps toroidally when comparing neighbours. Water depth never goes
// negative. ctx is checked between steps.
func Simulate(ctx context.Context, dem raster.Grid, p Params) (raster.Grid, error) {
	if err := p.Validate(); err != nil {
		return raster.Grid{}, err
	}
	if dem.Empty() {
		return raster.Grid{}, eris.New("floodsim: empty elevation model")
	}
	rows, cols := dem.Dims()
	n := rows * cols
	elev := dem.Data()
	if floats.HasNaN(elev) {
		return raster.Grid{}, eris.New("floodsim: elevation model contains nodata cells")
	}

	rain := p.RainfallMM / 1000 / float64(p.Steps)
	water := make([]float64, n)
	surface := make([]float64, n)
	moved := make([]float64, n)

	for step := 0; step < p.Steps; step++ {
		if step%25 == 0 {
			if err := ctx.Err(); err != nil {
				return raster.Grid{}, eris.Wrapf(err, "floodsim: cancelled at step %d", step)
			}
		}

		floats.AddConst(rain, water)
		floats.AddTo(surface, elev, water)

		// Outflow is the sum of positive head differences to each neighbour.
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				h := surface[r*cols+c]
				var flux float64
				for _, d := range neighbours {
					nr := wrap(r-d[0], rows)
					nc := wrap(c-d[1], cols)
					if dh := h - surface[nr*cols+nc]; dh > 0 {
						flux += dh
					}
				}
				moved[r*cols+c] = moveFraction * flux
			}
		}
		for i := range water {
			water[i] = math.Max(water[i]-moved[i], 0)
		}

		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				var in float64
				for _, d := range neighbours {
					in += moved[wrap(r+d[0], rows)*cols+wrap(c+d[1], cols)]
				}
				water[r*cols+c] += spreadFraction * in
			}
		}

		for i := range water {
			water[i] = math.Max(water[i]-p.InfiltrationM, 0)
		}

		if p.EdgeOutflow {
			drainEdges(water, rows, cols)
		}
	}

	out, err := raster.FromData(rows, cols, water)
	if err != nil {
		return raster.Grid{}, err
	}
	return out.WithGeoref(dem.Georef), nil
}

// drainEdges damps the first and last rows, then the first and last columns.
// Corner cells are damped twice.
func drainEdges(water []float64, rows, cols int) {
	for c := 0; c < cols; c++ {
		water[c] *= edgeRetention
	}
	for c := 0; c < cols; c++ {
		water[(rows-1)*cols+c] *= edgeRetention
	}
	for r := 0; r < rows; r++ {
		water[r*cols] *= edgeRetention
	}
	for r := 0; r < rows; r++ {
		water[r*cols+cols-1] *= edgeRetention
	}
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
