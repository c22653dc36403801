package location

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/model"
)

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "kampala",
     "geometry": {"type": "Point", "coordinates": [32.58, 0.34]},
     "properties": {"name": "Kampala", "risk_score": 0.8, "district": "central"}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[32.0, 0.0], [32.2, 0.0], [32.2, 0.2], [32.0, 0.2], [32.0, 0.0]]]},
     "properties": {"name": "Entebbe wetland", "risk_score": "0.55"}}
  ]
}`

func TestParseGeoJSON(t *testing.T) {
	c, err := ParseGeoJSON([]byte(sampleGeoJSON))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	assert.Equal(t, "kampala", c.Features[0].ID)
	assert.Equal(t, "Kampala", c.Features[0].Name)
	assert.Equal(t, 0.8, c.Features[0].RiskScore)
	assert.Equal(t, "central", c.Features[0].Properties["district"])

	assert.Equal(t, "1", c.Features[1].ID)
	assert.Equal(t, 0.55, c.Features[1].RiskScore)
	lon, lat := c.Features[1].Point()
	assert.InDelta(t, 32.1, lon, 1e-12)
	assert.InDelta(t, 0.1, lat, 1e-12)
}

func TestParseGeoJSON_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		feature string
	}{
		{"missing name", `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"risk_score":1}}`},
		{"missing risk", `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"name":"a"}}`},
		{"bad risk", `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"name":"a","risk_score":"high"}}`},
		{"no geometry", `{"type":"Feature","geometry":null,"properties":{"name":"a","risk_score":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGeoJSON([]byte(`{"type":"FeatureCollection","features":[` + tt.feature + `]}`))
			require.Error(t, err)
			assert.True(t, eris.Is(err, model.ErrSchemaMismatch), err.Error())
		})
	}
}

func TestParseGeoJSON_Malformed(t *testing.T) {
	_, err := ParseGeoJSON([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestMarshalGeoJSON_RoundTrip(t *testing.T) {
	c, err := ParseGeoJSON([]byte(sampleGeoJSON))
	require.NoError(t, err)

	data, err := c.MarshalGeoJSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "FeatureCollection", raw["type"])

	back, err := ParseGeoJSON(data)
	require.NoError(t, err)
	require.Equal(t, c.Len(), back.Len())
	assert.Equal(t, c.Features[1].Name, back.Features[1].Name)
	assert.Equal(t, c.Features[1].RiskScore, back.Features[1].RiskScore)
}

func TestMarshalGeoJSON_Empty(t *testing.T) {
	var c *Collection
	data, err := c.MarshalGeoJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}

func TestExtent(t *testing.T) {
	c, err := ParseGeoJSON([]byte(sampleGeoJSON))
	require.NoError(t, err)

	e, ok := c.Extent(0)
	require.True(t, ok)
	assert.InDelta(t, 32.1, e.MinLon, 1e-9)
	assert.InDelta(t, 32.58, e.MaxLon, 1e-9)
	assert.InDelta(t, 0.1, e.MinLat, 1e-9)
	assert.InDelta(t, 0.34, e.MaxLat, 1e-9)

	padded, ok := c.Extent(0.05)
	require.True(t, ok)
	assert.Less(t, padded.MinLon, e.MinLon)
	assert.Greater(t, padded.MaxLat, e.MaxLat)

	_, ok = (&Collection{}).Extent(0)
	assert.False(t, ok)
}

func TestLoad_GeoJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flood_prone.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleGeoJSON), 0o644))

	c, err := Load(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, c.Source)
	assert.Equal(t, 2, c.Len())
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.kml")
	require.NoError(t, os.WriteFile(path, []byte("<kml/>"), 0o644))
	_, err := Load(context.Background(), path, nil)
	assert.True(t, eris.Is(err, model.ErrUnsupportedFormat))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.geojson"), nil)
	assert.Error(t, err)
}
