package ndwi

import (
	"math"

	"github.com/sells-group/flood-cli/internal/raster"
)

// Water patch of the synthetic scene: rows [80,180) × cols [60,200).
const (
	patchRow0, patchRow1 = 80, 180
	patchCol0, patchCol1 = 60, 200

	patchGreen = 3200
	patchNIR   = 400
)

// DemoBands synthesizes size×size green and NIR digital numbers drawn
// uniformly from [500, 3000) with a bright-green, dark-NIR rectangle standing
// in for open water. The patch is clipped to the scene for small sizes.
func DemoBands(size int, seed uint64) (green, nir raster.Grid) {
	src := raster.NewSource(seed)
	green = src.Uniform(size, size, 500, 3000).Map(math.Floor)
	nir = src.Uniform(size, size, 500, 3000).Map(math.Floor)

	for r := patchRow0; r < min(patchRow1, size); r++ {
		for c := patchCol0; c < min(patchCol1, size); c++ {
			green.Set(r, c, patchGreen)
			nir.Set(r, c, patchNIR)
		}
	}
	return green, nir
}

// DemoPatchCells is the number of water cells DemoBands plants in a size×size scene.
func DemoPatchCells(size int) int {
	h := max(0, min(patchRow1, size)-patchRow0)
	w := max(0, min(patchCol1, size)-patchCol0)
	return h * w
}
