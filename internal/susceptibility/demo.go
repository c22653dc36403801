package susceptibility

import (
	"github.com/sells-group/flood-cli/internal/raster"
)

// DemoTransform is the fake georeference of the synthetic layers.
var DemoTransform = raster.FromOrigin(30.0, 4.0, 0.001, 0.001)

// DemoLayers synthesizes the four criteria of the demo study area. Higher
// normalized values mean more susceptible: flatter slopes, cells closer to a
// river, impervious land cover and heavier rainfall.
func DemoLayers(size int, seed uint64) []Layer {
	src := raster.NewSource(seed)
	ref := raster.NewGeoref(DemoTransform, raster.DefaultEPSG)

	slope := raster.Abs(src.Normal(size, size, 5, 3)).WithGeoref(ref)
	distance := raster.Abs(src.Normal(size, size, 500, 200)).WithGeoref(ref)
	greenness := src.Uniform(size, size, 0, 1).WithGeoref(ref)
	rainfall := raster.Clip(src.Normal(size, size, 0.5, 0.2), 0, 1).WithGeoref(ref)

	return []Layer{
		{
			Name: "slope", Grid: slope, Weight: 0.25, Invert: true,
			Normalization: Normalization{Method: MethodRange, Min: 0, Max: 30},
		},
		{
			Name: "distance", Grid: distance, Weight: 0.35, Invert: true,
			Normalization: Normalization{Method: MethodRange, Min: 0, Max: 1000},
		},
		{
			Name: "landcover", Grid: greenness, Weight: 0.2, Invert: true,
			Normalization: Normalization{Method: MethodNone},
		},
		{
			Name: "rainfall", Grid: rainfall, Weight: 0.2,
			Normalization: Normalization{Method: MethodRange, Min: 0, Max: 1},
		},
	}
}
