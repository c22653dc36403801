package raster

import (
	"math"
	"slices"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
)

// ReadNetCDF reads a 2D variable (or the first time step of a 3D one) from
// a NetCDF file. Packed values are unpacked with scale_factor/add_offset and
// _FillValue / missing_value cells become NaN. When the file carries 1D
// coordinate variables for the grid dimensions a north-up Georef is derived.
func ReadNetCDF(path, variable string) (Grid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return Grid{}, eris.Wrapf(err, "netcdf: open %s", path)
	}
	defer nc.Close()

	vr, err := nc.GetVariable(variable)
	if err != nil {
		return Grid{}, eris.Wrapf(err, "netcdf: variable %q in %s", variable, path)
	}

	rows, cols, data, err := flattenValues(vr.Values)
	if err != nil {
		return Grid{}, eris.Wrapf(err, "netcdf: variable %q", variable)
	}

	unpack(data, vr.Attributes)

	g, err := FromData(rows, cols, data)
	if err != nil {
		return Grid{}, err
	}

	dims := vr.Dimensions
	if len(dims) >= 2 {
		ys := coordValues(nc, dims[len(dims)-2])
		xs := coordValues(nc, dims[len(dims)-1])
		if len(ys) == rows && len(xs) == cols && rows > 1 && cols > 1 {
			if ys[1] > ys[0] {
				g = flipRows(g)
				ys = reversed(ys)
			}
			dx := xs[1] - xs[0]
			dy := ys[0] - ys[1]
			g.Georef = NewGeoref(FromOrigin(xs[0]-dx/2, ys[0]+dy/2, dx, dy), 0)
		}
	}
	return g, nil
}

// WriteNetCDF writes g as a classic-format NetCDF file with a float32 (y, x)
// variable. Cell-center coordinate variables are added when g is georeferenced.
func WriteNetCDF(path, variable string, g Grid, globals map[string]any) error {
	rows, cols := g.Dims()
	if rows == 0 || cols == 0 {
		return eris.Wrap(model.ErrShapeMismatch, "netcdf: empty grid")
	}

	cw, err := netcdf.OpenWriter(path, netcdf.KindCDF)
	if err != nil {
		return eris.Wrapf(err, "netcdf: create %s", path)
	}

	values := make([][]float32, rows)
	d := g.Data()
	for r := range rows {
		values[r] = make([]float32, cols)
		for c := range cols {
			values[r][c] = float32(d[r*cols+c])
		}
	}

	if g.Georef != nil {
		t := g.Georef.Transform
		ys := make([]float64, rows)
		for r := range rows {
			_, ys[r] = t.CellCenter(r, 0)
		}
		xs := make([]float64, cols)
		for c := range cols {
			xs[c], _ = t.CellCenter(0, c)
		}
		if err := addVar(cw, "y", ys, []string{"y"}, map[string]any{"long_name": "y coordinate of cell center"}); err != nil {
			cw.Close()
			return err
		}
		if err := addVar(cw, "x", xs, []string{"x"}, map[string]any{"long_name": "x coordinate of cell center"}); err != nil {
			cw.Close()
			return err
		}
		if globals == nil {
			globals = map[string]any{}
		}
		globals["crs"] = g.Georef.CRS()
	}

	if err := addVar(cw, variable, values, []string{"y", "x"}, map[string]any{"long_name": variable}); err != nil {
		cw.Close()
		return err
	}

	if len(globals) > 0 {
		attrs, err := orderedAttrs(globals)
		if err != nil {
			cw.Close()
			return err
		}
		if err := cw.AddAttributes(attrs); err != nil {
			cw.Close()
			return eris.Wrap(err, "netcdf: global attributes")
		}
	}

	if err := cw.Close(); err != nil {
		return eris.Wrapf(err, "netcdf: close %s", path)
	}
	return nil
}

func addVar(cw api.Writer, name string, values any, dims []string, attrs map[string]any) error {
	am, err := orderedAttrs(attrs)
	if err != nil {
		return err
	}
	if err := cw.AddVar(name, api.Variable{Values: values, Dimensions: dims, Attributes: am}); err != nil {
		return eris.Wrapf(err, "netcdf: add variable %q", name)
	}
	return nil
}

func orderedAttrs(attrs map[string]any) (*util.OrderedMap, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	om, err := util.NewOrderedMap(keys, attrs)
	if err != nil {
		return nil, eris.Wrap(err, "netcdf: attributes")
	}
	return om, nil
}

func flattenValues(v any) (rows, cols int, data []float64, err error) {
	switch vals := v.(type) {
	case [][]float64:
		return flatten(vals)
	case [][]float32:
		return flatten(vals)
	case [][]int32:
		return flatten(vals)
	case [][]int16:
		return flatten(vals)
	case [][]int8:
		return flatten(vals)
	case [][][]float64:
		return firstSlice(vals)
	case [][][]float32:
		return firstSlice(vals)
	case [][][]int32:
		return firstSlice(vals)
	case [][][]int16:
		return firstSlice(vals)
	default:
		return 0, 0, nil, eris.Wrapf(model.ErrUnsupportedFormat, "values of type %T", v)
	}
}

type number interface {
	~int8 | ~int16 | ~int32 | ~float32 | ~float64
}

func flatten[T number](vals [][]T) (int, int, []float64, error) {
	if len(vals) == 0 || len(vals[0]) == 0 {
		return 0, 0, nil, eris.Wrap(model.ErrShapeMismatch, "empty variable")
	}
	cols := len(vals[0])
	data := make([]float64, 0, len(vals)*cols)
	for i, row := range vals {
		if len(row) != cols {
			return 0, 0, nil, eris.Wrapf(model.ErrShapeMismatch, "row %d has %d cells, want %d", i, len(row), cols)
		}
		for _, x := range row {
			data = append(data, float64(x))
		}
	}
	return len(vals), cols, data, nil
}

func firstSlice[T number](vals [][][]T) (int, int, []float64, error) {
	if len(vals) == 0 {
		return 0, 0, nil, eris.Wrap(model.ErrShapeMismatch, "empty variable")
	}
	return flatten(vals[0])
}

func unpack(data []float64, attrs api.AttributeMap) {
	if attrs == nil {
		return
	}
	fill, hasFill := attrFloat(attrs, "_FillValue")
	if !hasFill {
		fill, hasFill = attrFloat(attrs, "missing_value")
	}
	scaleFactor, hasScale := attrFloat(attrs, "scale_factor")
	offset, hasOffset := attrFloat(attrs, "add_offset")
	if !hasScale {
		scaleFactor = 1
	}
	if !hasOffset {
		offset = 0
	}
	for i, v := range data {
		if hasFill && v == fill {
			data[i] = math.NaN()
			continue
		}
		data[i] = v*scaleFactor + offset
	}
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case []float64:
		if len(x) > 0 {
			return x[0], true
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int16:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	}
	return 0, false
}

func coordValues(nc api.Group, name string) []float64 {
	vr, err := nc.GetVariable(name)
	if err != nil {
		return nil
	}
	switch vals := vr.Values.(type) {
	case []float64:
		return vals
	case []float32:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out
	case []int32:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out
	}
	return nil
}

func flipRows(g Grid) Grid {
	rows, cols := g.Dims()
	out := New(rows, cols)
	src, dst := g.Data(), out.Data()
	for r := range rows {
		copy(dst[(rows-1-r)*cols:(rows-r)*cols], src[r*cols:(r+1)*cols])
	}
	return out
}

func reversed(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[len(v)-1-i] = x
	}
	return out
}
