package ndwi

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
)

func TestRun_Demo(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Options{
		Threshold: DefaultThreshold,
		OutputDir: dir,
		Size:      256,
		Seed:      3,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, res.Run.Status)
	assert.Equal(t, ZeroNaN, res.Policy)
	assert.GreaterOrEqual(t, res.WaterCells, 14000)
	assert.InDelta(t, float64(res.WaterCells)/65536, res.WaterFraction, 1e-12)
	assert.Equal(t, 0, res.NodataCells)
	require.Len(t, res.Run.Outputs, 2)

	mask, err := raster.ReadGeoTIFF(filepath.Join(dir, MaskFile))
	require.NoError(t, err)
	assert.Equal(t, 1.0, mask.At(100, 100))

	index, err := raster.ReadGeoTIFF(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	assert.InDelta(t, 2800.0/3600.0, index.At(100, 100), 1e-6)
}

func TestRun_NoOutputDir(t *testing.T) {
	res, err := Run(context.Background(), Options{Threshold: 0.25, Size: 32, Seed: 1})
	require.NoError(t, err)
	assert.Empty(t, res.Run.Outputs)
	assert.Equal(t, 32*32, res.Stats.Cells)
}

func TestRun_FromFiles(t *testing.T) {
	dir := t.TempDir()
	ref := raster.NewGeoref(raster.FromOrigin(0, 0, 10, 10), 32636)
	green, err := raster.FromRows([][]float64{{0.5, 0}, {0.2, 0.3}})
	require.NoError(t, err)
	nir, err := raster.FromRows([][]float64{{0.1, 0}, {0.4, 0.3}})
	require.NoError(t, err)
	require.NoError(t, raster.WriteGeoTIFF(filepath.Join(dir, "b3.tif"), green.WithGeoref(ref), raster.TIFFOptions{}))
	require.NoError(t, raster.WriteGeoTIFF(filepath.Join(dir, "b8.tif"), nir.WithGeoref(ref), raster.TIFFOptions{}))

	res, err := Run(context.Background(), Options{
		Green:     filepath.Join(dir, "b3.tif"),
		NIR:       filepath.Join(dir, "b8.tif"),
		Policy:    ZeroZero,
		Threshold: 0,
		Resolver:  &fetcher.Resolver{},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.WaterCells)
	assert.Equal(t, 0, res.NodataCells)
	require.NotNil(t, res.Index.Georef)
	assert.Equal(t, 32636, res.Index.Georef.EPSG)
}

func TestRun_BandShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, raster.WriteGeoTIFF(filepath.Join(dir, "g.tif"), raster.Fill(2, 2, 1), raster.TIFFOptions{}))
	require.NoError(t, raster.WriteGeoTIFF(filepath.Join(dir, "n.tif"), raster.Fill(2, 3, 1), raster.TIFFOptions{}))

	res, err := Run(context.Background(), Options{
		Green:    filepath.Join(dir, "g.tif"),
		NIR:      filepath.Join(dir, "n.tif"),
		Resolver: &fetcher.Resolver{},
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrShapeMismatch))
	assert.Equal(t, model.RunStatusFailed, res.Run.Status)
}

func TestRun_HalfBands(t *testing.T) {
	_, err := Run(context.Background(), Options{Green: "g.tif", Resolver: &fetcher.Resolver{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both green and nir")
}
