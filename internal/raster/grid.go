// Package raster provides the in-memory grid shared by the flood pipelines,
// its georeference, normalization helpers and GeoTIFF / NetCDF codecs.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/flood-cli/internal/model"
)

// Grid is a rows×cols array of float64 cells backed by a gonum dense matrix.
// NaN marks nodata. Georef is optional; synthetic grids usually carry one so
// that outputs land somewhere sensible in a GIS.
type Grid struct {
	data   *mat.Dense
	Georef *Georef
}

// New returns a zero-filled grid. rows and cols must be positive.
func New(rows, cols int) Grid {
	return Grid{data: mat.NewDense(rows, cols, nil)}
}

// FromData wraps a row-major slice of length rows*cols. The slice is not copied.
func FromData(rows, cols int, data []float64) (Grid, error) {
	if rows <= 0 || cols <= 0 {
		return Grid{}, eris.Wrapf(model.ErrShapeMismatch, "raster: invalid dimensions %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return Grid{}, eris.Wrapf(model.ErrShapeMismatch, "raster: %d values do not fill %dx%d", len(data), rows, cols)
	}
	return Grid{data: mat.NewDense(rows, cols, data)}, nil
}

// FromRows builds a grid from nested slices. Ragged input is a shape mismatch.
func FromRows(rows [][]float64) (Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Grid{}, eris.Wrap(model.ErrShapeMismatch, "raster: empty rows")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Grid{}, eris.Wrapf(model.ErrShapeMismatch, "raster: row %d has %d cells, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return FromData(len(rows), cols, data)
}

// Fill returns a grid with every cell set to v.
func Fill(rows, cols int, v float64) Grid {
	g := New(rows, cols)
	d := g.Data()
	for i := range d {
		d[i] = v
	}
	return g
}

// Dims returns the number of rows and columns. The zero Grid is 0×0.
func (g Grid) Dims() (rows, cols int) {
	if g.data == nil {
		return 0, 0
	}
	return g.data.Dims()
}

// Empty reports whether the grid has no cells.
func (g Grid) Empty() bool {
	return g.data == nil
}

// At returns the value at row r, column c.
func (g Grid) At(r, c int) float64 {
	return g.data.At(r, c)
}

// Set writes v at row r, column c.
func (g Grid) Set(r, c int, v float64) {
	g.data.Set(r, c, v)
}

// Data returns the row-major backing slice. Writes through it modify the grid.
func (g Grid) Data() []float64 {
	if g.data == nil {
		return nil
	}
	return g.data.RawMatrix().Data
}

// Dense exposes the underlying matrix for gonum operations.
func (g Grid) Dense() *mat.Dense {
	return g.data
}

// Clone returns a deep copy, including the georeference.
func (g Grid) Clone() Grid {
	if g.data == nil {
		return Grid{}
	}
	out := Grid{data: mat.DenseCopyOf(g.data)}
	if g.Georef != nil {
		ref := *g.Georef
		out.Georef = &ref
	}
	return out
}

// Rows returns a copy of the grid as nested slices.
func (g Grid) Rows() [][]float64 {
	rows, cols := g.Dims()
	out := make([][]float64, rows)
	d := g.Data()
	for r := range rows {
		out[r] = append([]float64(nil), d[r*cols:(r+1)*cols]...)
	}
	return out
}

// WithGeoref returns g carrying ref.
func (g Grid) WithGeoref(ref *Georef) Grid {
	g.Georef = ref
	return g
}

// Map returns a new grid with fn applied to every cell.
func (g Grid) Map(fn func(float64) float64) Grid {
	out := g.Clone()
	d := out.Data()
	for i, v := range d {
		d[i] = fn(v)
	}
	return out
}

// CountNaN returns the number of nodata cells.
func (g Grid) CountNaN() int {
	n := 0
	for _, v := range g.Data() {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// SameShape verifies that every grid has the dimensions of the first one.
// Georeferences are compared as well when both sides carry one.
func SameShape(grids ...Grid) error {
	if len(grids) < 2 {
		return nil
	}
	r0, c0 := grids[0].Dims()
	for i, g := range grids[1:] {
		r, c := g.Dims()
		if r != r0 || c != c0 {
			return eris.Wrapf(model.ErrShapeMismatch, "raster: grid %d is %dx%d, want %dx%d", i+1, r, c, r0, c0)
		}
		if err := grids[0].Georef.Check(g.Georef); err != nil {
			return eris.Wrapf(err, "raster: grid %d", i+1)
		}
	}
	return nil
}

// FirstGeoref returns the first non-nil georeference among grids.
func FirstGeoref(grids ...Grid) *Georef {
	for _, g := range grids {
		if g.Georef != nil {
			return g.Georef
		}
	}
	return nil
}
