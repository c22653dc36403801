package ndwi

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/observability"
	"github.com/sells-group/flood-cli/internal/raster"
)

// Output file names inside Options.OutputDir.
const (
	IndexFile = "ndwi.tif"
	MaskFile  = "water_mask.tif"
)

// Options configures an NDWI run. When Green and NIR are empty the demo
// scene is synthesized.
type Options struct {
	Green     string
	NIR       string
	GreenVar  string
	NIRVar    string
	Policy    ZeroPolicy
	Threshold float64
	// OutputDir receives ndwi.tif and water_mask.tif. Empty skips writing.
	OutputDir string
	Size      int
	Seed      uint64
	Resolver  *fetcher.Resolver
	Metrics   *observability.Metrics
}

// Result is the outcome of Run.
type Result struct {
	Run           model.RunSummary `json:"run"`
	Threshold     float64          `json:"threshold"`
	Policy        ZeroPolicy       `json:"zero_policy"`
	Stats         raster.Summary   `json:"stats"`
	WaterCells    int              `json:"water_cells"`
	WaterFraction float64          `json:"water_fraction"`
	NodataCells   int              `json:"nodata_cells"`
	Index         raster.Grid      `json:"-"`
	Mask          raster.Mask      `json:"-"`
}

// Run loads or synthesizes the bands, computes NDWI and the water mask and
// optionally writes both as GeoTIFFs.
func Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{Run: model.NewRun(model.PipelineNDWI), Threshold: opts.Threshold, Policy: opts.Policy}
	if res.Policy == "" {
		res.Policy = ZeroNaN
	}
	log := zap.L().With(zap.String("run_id", res.Run.ID), zap.String("pipeline", model.PipelineNDWI))

	err := run(ctx, opts, res, log)
	res.Run.Finish(err)
	opts.Metrics.ObserveRun(model.PipelineNDWI, string(res.Run.Status), res.Run.Duration, res.Stats.Cells)
	if err != nil {
		log.Error("ndwi: run failed", zap.Error(err))
		return res, err
	}
	log.Info("ndwi: run complete",
		zap.Int("water_cells", res.WaterCells),
		zap.Float64("water_fraction", res.WaterFraction),
		zap.Int("nodata_cells", res.NodataCells),
		zap.Strings("outputs", res.Run.Outputs),
	)
	return res, nil
}

func run(ctx context.Context, opts Options, res *Result, log *zap.Logger) error {
	green, nir, err := loadBands(ctx, opts, log)
	if err != nil {
		return err
	}

	index, err := Compute(green, nir, res.Policy)
	if err != nil {
		return err
	}
	mask := Threshold(index, opts.Threshold)

	res.Index = index
	res.Mask = mask
	res.Stats = raster.Describe(index)
	res.NodataCells = index.CountNaN()
	res.WaterCells = mask.Count()
	res.WaterFraction = mask.Fraction()

	if opts.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return eris.Wrapf(err, "ndwi: create %s", opts.OutputDir)
	}
	indexPath := filepath.Join(opts.OutputDir, IndexFile)
	if err := raster.WriteGeoTIFF(indexPath, index, raster.TIFFOptions{Description: "ndwi " + res.Run.ID}); err != nil {
		return eris.Wrap(err, "ndwi: write index")
	}
	maskPath := filepath.Join(opts.OutputDir, MaskFile)
	if err := raster.WriteMaskGeoTIFF(maskPath, mask, raster.TIFFOptions{Description: "water mask " + res.Run.ID}); err != nil {
		return eris.Wrap(err, "ndwi: write mask")
	}
	res.Run.Outputs = []string{indexPath, maskPath}
	return nil
}

func loadBands(ctx context.Context, opts Options, log *zap.Logger) (green, nir raster.Grid, err error) {
	if opts.Green == "" && opts.NIR == "" {
		size := opts.Size
		if size <= 0 {
			size = 256
		}
		log.Info("ndwi: synthesized demo bands", zap.Int("size", size), zap.Uint64("seed", opts.Seed))
		green, nir = DemoBands(size, opts.Seed)
		return green, nir, nil
	}
	if opts.Green == "" || opts.NIR == "" {
		return green, nir, eris.New("ndwi: both green and nir bands are required")
	}
	if opts.Resolver == nil {
		return green, nir, eris.New("ndwi: band inputs need an input resolver")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var lerr error
		green, lerr = loadBand(gctx, opts.Resolver, opts.Green, opts.GreenVar)
		return eris.Wrap(lerr, "ndwi: green band")
	})
	g.Go(func() error {
		var lerr error
		nir, lerr = loadBand(gctx, opts.Resolver, opts.NIR, opts.NIRVar)
		return eris.Wrap(lerr, "ndwi: nir band")
	})
	if err := g.Wait(); err != nil {
		return raster.Grid{}, raster.Grid{}, err
	}
	return green, nir, nil
}

func loadBand(ctx context.Context, res *fetcher.Resolver, src, variable string) (raster.Grid, error) {
	local, err := res.Resolve(ctx, src)
	if err != nil {
		return raster.Grid{}, err
	}
	return raster.Read(local, variable)
}
