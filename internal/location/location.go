// Package location loads the flood-prone location collection drawn on the
// dashboard map.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/model"
)

// Required feature properties.
const (
	PropName      = "name"
	PropRiskScore = "risk_score"
)

// Feature is a named location with a risk score.
type Feature struct {
	ID         string
	Name       string
	RiskScore  float64
	Geometry   geom.T
	Properties map[string]any
}

// Point returns the representative lon/lat of the feature: the point itself
// or the center of its bounding box.
func (f Feature) Point() (lon, lat float64) {
	b := f.Geometry.Bounds()
	return (b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2
}

// Collection is an ordered, read-only set of features.
type Collection struct {
	Source   string
	Features []Feature
}

// Len returns the feature count.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Features)
}

// Load reads a collection from a GeoJSON file, a shapefile (.shp) or a zipped
// shapefile (.zip). Remote sources are downloaded through the resolver first.
func Load(ctx context.Context, src string, resolver *fetcher.Resolver) (*Collection, error) {
	local := src
	if fetcher.IsRemote(src) || strings.HasPrefix(src, "file://") {
		if resolver == nil {
			return nil, eris.Errorf("location: no resolver for %s", src)
		}
		var err error
		if local, err = resolver.Resolve(ctx, src); err != nil {
			return nil, err
		}
	}

	var (
		c   *Collection
		err error
	)
	switch strings.ToLower(filepath.Ext(local)) {
	case ".geojson", ".json":
		var data []byte
		data, err = os.ReadFile(local)
		if err != nil {
			return nil, eris.Wrapf(err, "location: read %s", local)
		}
		c, err = ParseGeoJSON(data)
	case ".shp", ".zip":
		c, err = ReadShapefile(local)
	default:
		return nil, eris.Wrapf(model.ErrUnsupportedFormat, "location: %s", local)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "location: %s", local)
	}
	c.Source = src
	zap.L().Info("location: loaded collection", zap.String("source", src), zap.Int("features", c.Len()))
	return c, nil
}

// ParseGeoJSON decodes a FeatureCollection and checks every feature for a
// geometry, a name and a numeric risk score.
func ParseGeoJSON(data []byte) (*Collection, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "location: decode geojson")
	}
	c := &Collection{Features: make([]Feature, 0, len(fc.Features))}
	for i, gf := range fc.Features {
		f, err := newFeature(i, gf.ID, gf.Geometry, gf.Properties)
		if err != nil {
			return nil, err
		}
		c.Features = append(c.Features, f)
	}
	return c, nil
}

func newFeature(i int, id string, g geom.T, props map[string]any) (Feature, error) {
	if g == nil || g.Bounds().IsEmpty() {
		return Feature{}, eris.Wrapf(model.ErrSchemaMismatch, "location: feature %d has no geometry", i)
	}
	name, ok := props[PropName]
	if !ok || name == nil {
		return Feature{}, eris.Wrapf(model.ErrSchemaMismatch, "location: feature %d: missing %s", i, PropName)
	}
	raw, ok := props[PropRiskScore]
	if !ok || raw == nil {
		return Feature{}, eris.Wrapf(model.ErrSchemaMismatch, "location: feature %d: missing %s", i, PropRiskScore)
	}
	score, err := toFloat(raw)
	if err != nil {
		return Feature{}, eris.Wrapf(model.ErrSchemaMismatch, "location: feature %d: %s: %v", i, PropRiskScore, err)
	}
	if id == "" {
		id = strconv.Itoa(i)
	}
	return Feature{
		ID:         id,
		Name:       fmt.Sprint(name),
		RiskScore:  score,
		Geometry:   g,
		Properties: props,
	}, nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case json.Number:
		var err error
		if f, err = x.Float64(); err != nil {
			return 0, err
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(x), 64); err != nil {
			return 0, eris.Errorf("not a number: %q", x)
		}
	default:
		return 0, eris.Errorf("not a number: %v", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("not finite: %v", v)
	}
	return f, nil
}

// MarshalGeoJSON encodes the collection as a GeoJSON FeatureCollection.
func (c *Collection) MarshalGeoJSON() ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, c.Len())}
	if c != nil {
		for _, f := range c.Features {
			props := make(map[string]any, len(f.Properties)+2)
			for k, v := range f.Properties {
				props[k] = v
			}
			props[PropName] = f.Name
			props[PropRiskScore] = f.RiskScore
			fc.Features = append(fc.Features, &geojson.Feature{
				ID:         f.ID,
				Geometry:   f.Geometry,
				Properties: props,
			})
		}
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "location: encode geojson")
	}
	return data, nil
}
