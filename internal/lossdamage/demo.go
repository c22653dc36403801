package lossdamage

import (
	"math"
	"strconv"

	"github.com/sells-group/flood-cli/internal/raster"
)

// Demo scene parameters.
const (
	DemoDepthSize = 150
	DemoBuildings = 80
	DemoSeed      = 5
)

// DemoTransform places the demo depth raster west of Lake Victoria.
var DemoTransform = raster.FromOrigin(32.0, 1.0, 0.001, 0.001)

// DemoDepth builds a size×size gaussian "pond" peaking at 2 m near
// column 75, row 70.
func DemoDepth(size int) raster.Grid {
	g := raster.New(size, size)
	const sigma = 30.0
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			dx, dy := float64(c)-75, float64(r)-70
			g.Set(r, c, 2*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)))
		}
	}
	return g.WithGeoref(raster.NewGeoref(DemoTransform, raster.DefaultEPSG))
}

// GenerateBuildings scatters n buildings over the 0.15° square south-east
// of the demo origin with whole-dollar values in [10000, 200000).
func GenerateBuildings(n int, seed uint64) []Building {
	src := raster.NewSource(seed)
	out := make([]Building, n)
	for i := range out {
		lon := DemoTransform.OriginX + src.Between(0, 0.15)
		lat := DemoTransform.OriginY - src.Between(0, 0.15)
		value := math.Floor(src.Between(10000, 200000))
		out[i] = Building{
			ID:         strconv.Itoa(i),
			Lon:        lon,
			Lat:        lat,
			ValueUSD:   value,
			Properties: map[string]any{"id": i, PropValue: value},
		}
	}
	return out
}
