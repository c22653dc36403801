package location

import (
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

type shapeReader interface {
	Next() bool
	Shape() (int, shp.Shape)
	Fields() []shp.Field
	Attribute(i int) string
	Close() error
}

// ReadShapefile reads point, polyline or polygon features from a .shp file
// or a .zip holding exactly one shapefile. Attribute names match
// case-insensitively.
func ReadShapefile(path string) (*Collection, error) {
	var (
		reader shapeReader
		err    error
	)
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		reader, err = shp.OpenZip(path)
	} else {
		reader, err = shp.Open(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "location: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
	}

	c := &Collection{}
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()
		g := shapeGeom(shape)
		if g == nil {
			skipped++
			continue
		}
		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}
		f, err := newFeature(n, "", g, props)
		if err != nil {
			return nil, err
		}
		c.Features = append(c.Features, f)
	}

	if skipped > 0 {
		zap.L().Debug("location: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return c, nil
}

func shapeGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.PolyLine:
		mls := geom.NewMultiLineString(geom.XY).SetSRID(4326)
		for _, part := range parts(s.Parts, s.Points) {
			if err := mls.Push(geom.NewLineStringFlat(geom.XY, part)); err != nil {
				continue
			}
		}
		if mls.NumLineStrings() == 0 {
			return nil
		}
		return mls
	case *shp.Polygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
		for _, part := range parts(s.Parts, s.Points) {
			poly := geom.NewPolygon(geom.XY)
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, part)); err != nil {
				continue
			}
			if err := mp.Push(poly); err != nil {
				continue
			}
		}
		if mp.NumPolygons() == 0 {
			return nil
		}
		return mp
	}
	return nil
}

// parts splits shapefile points into flat XY coordinate slices per part.
func parts(starts []int32, pts []shp.Point) [][]float64 {
	if len(pts) == 0 {
		return nil
	}
	out := make([][]float64, 0, len(starts))
	for i, start := range starts {
		end := int32(len(pts))
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if start < 0 || start >= end || int(end) > len(pts) {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, p := range pts[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		out = append(out, flat)
	}
	return out
}
