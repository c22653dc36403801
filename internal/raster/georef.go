package raster

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
)

// DefaultEPSG is WGS-84 geographic coordinates.
const DefaultEPSG = 4326

// Transform is a north-up affine transform: cell (row, col) covers
// x in [OriginX + col*PixelWidth, OriginX + (col+1)*PixelWidth) and
// y in (OriginY - (row+1)*PixelHeight, OriginY - row*PixelHeight].
type Transform struct {
	OriginX     float64 `json:"origin_x" yaml:"origin_x"`
	OriginY     float64 `json:"origin_y" yaml:"origin_y"`
	PixelWidth  float64 `json:"pixel_width" yaml:"pixel_width"`
	PixelHeight float64 `json:"pixel_height" yaml:"pixel_height"`
}

// FromOrigin builds a transform from the upper-left corner and cell sizes.
func FromOrigin(west, north, xsize, ysize float64) Transform {
	return Transform{OriginX: west, OriginY: north, PixelWidth: xsize, PixelHeight: ysize}
}

// Georef ties a grid to geographic space.
type Georef struct {
	Transform Transform `json:"transform" yaml:"transform"`
	EPSG      int       `json:"epsg" yaml:"epsg"`
}

// NewGeoref returns a georeference in the given CRS; epsg 0 means DefaultEPSG.
func NewGeoref(t Transform, epsg int) *Georef {
	if epsg == 0 {
		epsg = DefaultEPSG
	}
	return &Georef{Transform: t, EPSG: epsg}
}

// CRS returns the authority string, e.g. "EPSG:4326".
func (g *Georef) CRS() string {
	if g == nil {
		return ""
	}
	return fmt.Sprintf("EPSG:%d", g.EPSG)
}

// Check asserts that two georeferences describe the same grid lattice.
// A nil side is treated as unknown and always passes.
func (g *Georef) Check(other *Georef) error {
	if g == nil || other == nil {
		return nil
	}
	if g.EPSG != other.EPSG {
		return eris.Wrapf(model.ErrGeorefMismatch, "crs %s vs %s", g.CRS(), other.CRS())
	}
	a, b := g.Transform, other.Transform
	if !near(a.OriginX, b.OriginX) || !near(a.OriginY, b.OriginY) ||
		!near(a.PixelWidth, b.PixelWidth) || !near(a.PixelHeight, b.PixelHeight) {
		return eris.Wrapf(model.ErrGeorefMismatch, "transform %+v vs %+v", a, b)
	}
	return nil
}

// CellCenter returns the x/y coordinate of the center of cell (row, col).
func (t Transform) CellCenter(row, col int) (x, y float64) {
	x = t.OriginX + (float64(col)+0.5)*t.PixelWidth
	y = t.OriginY - (float64(row)+0.5)*t.PixelHeight
	return x, y
}

// Index returns the cell containing x/y. ok is false when the point falls
// outside a rows×cols grid.
func (t Transform) Index(x, y float64, rows, cols int) (row, col int, ok bool) {
	if t.PixelWidth == 0 || t.PixelHeight == 0 {
		return 0, 0, false
	}
	col = int(math.Floor((x - t.OriginX) / t.PixelWidth))
	row = int(math.Floor((t.OriginY - y) / t.PixelHeight))
	if row < 0 || col < 0 || row >= rows || col >= cols {
		return 0, 0, false
	}
	return row, col, true
}

// Extent returns the bounding box of a rows×cols grid as west, south, east, north.
func (t Transform) Extent(rows, cols int) (west, south, east, north float64) {
	west = t.OriginX
	north = t.OriginY
	east = t.OriginX + float64(cols)*t.PixelWidth
	south = t.OriginY - float64(rows)*t.PixelHeight
	return west, south, east, north
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
