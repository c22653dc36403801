package lossdamage

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/flood-cli/internal/model"
)

// Feature property names.
const (
	PropValue = "value_usd"
	PropDepth = "depth_m"
	PropLoss  = "loss_usd"
)

// ReadBuildings loads point features carrying a numeric value_usd.
func ReadBuildings(path string) ([]Building, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "lossdamage: read %s", path)
	}
	return ParseBuildings(data)
}

// ParseBuildings decodes a GeoJSON FeatureCollection of building points.
// Non-point geometries are reduced to the center of their bounds.
func ParseBuildings(data []byte) ([]Building, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "lossdamage: decode buildings")
	}
	out := make([]Building, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil || f.Geometry.Bounds().IsEmpty() {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "lossdamage: building %d has no geometry", i)
		}
		value, ok := number(f.Properties[PropValue])
		if !ok {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "lossdamage: building %d: missing or non-numeric %s", i, PropValue)
		}
		var lon, lat float64
		if p, isPoint := f.Geometry.(*geom.Point); isPoint {
			lon, lat = p.X(), p.Y()
		} else {
			b := f.Geometry.Bounds()
			lon, lat = (b.Min(0)+b.Max(0))/2, (b.Min(1)+b.Max(1))/2
		}
		id := f.ID
		if id == "" {
			if v, ok := f.Properties["id"]; ok {
				id = jsonString(v)
			} else {
				id = strconv.Itoa(i)
			}
		}
		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		out = append(out, Building{ID: id, Lon: lon, Lat: lat, ValueUSD: value, Properties: props})
	}
	return out, nil
}

// MarshalBuildings encodes buildings as GeoJSON points with depth_m and
// loss_usd added to the input properties.
func MarshalBuildings(buildings []Building) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(buildings))}
	for _, b := range buildings {
		props := make(map[string]any, len(b.Properties)+3)
		for k, v := range b.Properties {
			props[k] = v
		}
		props[PropValue] = b.ValueUSD
		props[PropDepth] = b.DepthM
		props[PropLoss] = b.LossUSD
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{b.Lon, b.Lat}),
			Properties: props,
		})
	}
	data, err := json.MarshalIndent(&fc, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "lossdamage: encode buildings")
	}
	return data, nil
}

// WriteBuildings writes MarshalBuildings output to path.
func WriteBuildings(path string, buildings []Building) error {
	data, err := MarshalBuildings(buildings)
	if err != nil {
		return err
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "lossdamage: write %s", path)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func jsonString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	data, _ := json.Marshal(v)
	return string(data)
}
