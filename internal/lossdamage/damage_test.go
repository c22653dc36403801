package lossdamage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/raster"
)

func TestDamageFraction(t *testing.T) {
	tests := []struct {
		depth float64
		want  float64
	}{
		{-1, 0},
		{0, 0},
		{math.NaN(), 0},
		{0.1, 0.05},
		{0.2, 0.1},
		{0.6, 0.3},
		{1.0, 0.5},
		{1.5, 0.7},
		{1.999, 0.8996},
		{2.0, 0.95},
		{7.0, 0.95},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, DamageFraction(tt.depth), 1e-9, "depth %v", tt.depth)
	}
}

func TestDamageFraction_Monotonic(t *testing.T) {
	prev := 0.0
	for d := 0.0; d <= 3; d += 0.01 {
		f := DamageFraction(d)
		assert.GreaterOrEqual(t, f, prev, "depth %v", d)
		assert.LessOrEqual(t, f, 1.0)
		prev = f
	}
}

func TestEstimate(t *testing.T) {
	depth, err := raster.FromRows([][]float64{
		{0.5, 1.5},
		{math.NaN(), 3},
	})
	require.NoError(t, err)
	depth = depth.WithGeoref(raster.NewGeoref(raster.FromOrigin(10, 20, 1, 1), 0))

	buildings := []Building{
		{ID: "a", Lon: 10.5, Lat: 19.5, ValueUSD: 100000},  // 0.5 m
		{ID: "b", Lon: 11.2, Lat: 19.9, ValueUSD: 50000},   // 1.5 m
		{ID: "c", Lon: 10.5, Lat: 18.5, ValueUSD: 80000},   // nodata
		{ID: "d", Lon: 11.5, Lat: 18.5, ValueUSD: 1234.56}, // 3 m
		{ID: "e", Lon: 50, Lat: 50, ValueUSD: 90000},       // outside
	}
	s := Estimate(depth, buildings)

	assert.Equal(t, 5, s.Buildings)
	assert.Equal(t, 3, s.Flooded)
	assert.Equal(t, 0.5, buildings[0].DepthM)
	assert.Equal(t, 25000.0, buildings[0].LossUSD)
	assert.Equal(t, 35000.0, buildings[1].LossUSD)
	assert.Equal(t, 0.0, buildings[2].DepthM)
	assert.Equal(t, 0.0, buildings[2].LossUSD)
	assert.Equal(t, 1172.83, buildings[3].LossUSD)
	assert.Equal(t, 0.0, buildings[4].LossUSD)
	assert.InDelta(t, 25000+35000+1234.56*0.95, s.TotalLossUSD, 1e-6)
	assert.Equal(t, 3.0, s.MaxDepthM)
}

func TestEstimate_NoGeoref(t *testing.T) {
	b := []Building{{Lon: 0, Lat: 0, ValueUSD: 10}}
	s := Estimate(raster.Fill(2, 2, 1), b)
	assert.Equal(t, 0, s.Flooded)
	assert.Equal(t, 0.0, b[0].LossUSD)
}

func TestDemoDepth(t *testing.T) {
	g := DemoDepth(DemoDepthSize)
	rows, cols := g.Dims()
	require.Equal(t, 150, rows)
	require.Equal(t, 150, cols)
	assert.InDelta(t, 2.0, g.At(70, 75), 1e-12)
	assert.Less(t, g.At(0, 0), 0.2)
	require.NotNil(t, g.Georef)
	assert.Equal(t, 32.0, g.Georef.Transform.OriginX)
	assert.Equal(t, 1.0, g.Georef.Transform.OriginY)
}

func TestGenerateBuildings(t *testing.T) {
	a := GenerateBuildings(DemoBuildings, DemoSeed)
	b := GenerateBuildings(DemoBuildings, DemoSeed)
	require.Len(t, a, 80)
	assert.Equal(t, a, b)

	for _, bl := range a {
		assert.GreaterOrEqual(t, bl.Lon, 32.0)
		assert.Less(t, bl.Lon, 32.15)
		assert.LessOrEqual(t, bl.Lat, 1.0)
		assert.Greater(t, bl.Lat, 0.85)
		assert.GreaterOrEqual(t, bl.ValueUSD, 10000.0)
		assert.Less(t, bl.ValueUSD, 200000.0)
		assert.Equal(t, math.Floor(bl.ValueUSD), bl.ValueUSD)
	}

	s := Estimate(DemoDepth(DemoDepthSize), a)
	assert.Equal(t, 80, s.Flooded)
	assert.Greater(t, s.TotalLossUSD, 0.0)
}
