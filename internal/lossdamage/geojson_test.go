package lossdamage

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

func TestParseBuildings(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"Point","coordinates":[32.01,0.99]},"properties":{"id":7,"value_usd":50000}},
	  {"type":"Feature","id":"hq","geometry":{"type":"Polygon","coordinates":[[[32,0.9],[32.02,0.9],[32.02,0.92],[32,0.92],[32,0.9]]]},"properties":{"value_usd":"120000","use":"office"}}
	]}`)
	b, err := ParseBuildings(data)
	require.NoError(t, err)
	require.Len(t, b, 2)

	assert.Equal(t, "7", b[0].ID)
	assert.Equal(t, 32.01, b[0].Lon)
	assert.Equal(t, 50000.0, b[0].ValueUSD)

	assert.Equal(t, "hq", b[1].ID)
	assert.InDelta(t, 32.01, b[1].Lon, 1e-12)
	assert.InDelta(t, 0.91, b[1].Lat, 1e-12)
	assert.Equal(t, 120000.0, b[1].ValueUSD)
}

func TestParseBuildings_MissingValue(t *testing.T) {
	_, err := ParseBuildings([]byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"id":1}}]}`))
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrSchemaMismatch))
}

func TestMarshalBuildings(t *testing.T) {
	b := []Building{{ID: "1", Lon: 32.1, Lat: 0.9, ValueUSD: 1000, DepthM: 0.512, LossUSD: 306.0, Properties: map[string]any{"id": 1}}}
	data, err := MarshalBuildings(b)
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Point", fc.Features[0].Geometry.Type)
	assert.Equal(t, []float64{32.1, 0.9}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, 0.512, fc.Features[0].Properties[PropDepth])
	assert.Equal(t, 306.0, fc.Features[0].Properties[PropLoss])
	assert.Equal(t, 1000.0, fc.Features[0].Properties[PropValue])
	assert.Equal(t, 1.0, fc.Features[0].Properties["id"])
}

func TestRun_Demo(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "losses.geojson")
	depthOut := filepath.Join(dir, "flood_depth.tif")

	res, err := Run(context.Background(), Options{Output: out, DepthOutput: depthOut, Seed: DemoSeed})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, res.Run.Status)
	assert.Equal(t, 80, res.Summary.Buildings)
	assert.ElementsMatch(t, []string{out, depthOut}, res.Run.Outputs)

	back, err := ReadBuildings(out)
	require.NoError(t, err)
	require.Len(t, back, 80)
	assert.Equal(t, res.Buildings[0].ValueUSD, back[0].ValueUSD)
	_, err = os.Stat(depthOut)
	assert.NoError(t, err)
}

func TestRun_MissingBuildings(t *testing.T) {
	res, err := Run(context.Background(), Options{Buildings: filepath.Join(t.TempDir(), "none.geojson")})
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, res.Run.Status)
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "1,234,567.89", FormatUSD(1234567.891))
	assert.Equal(t, "0.00", FormatUSD(0))
}
