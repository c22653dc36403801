package lossdamage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/observability"
	"github.com/sells-group/flood-cli/internal/raster"
)

// Options configures a loss run. Empty Depth or Buildings fall back to the
// demo pond and demo buildings.
type Options struct {
	Depth    string
	DepthVar string
	// Buildings is a GeoJSON FeatureCollection of points with value_usd.
	Buildings string
	// Output receives the losses GeoJSON. Empty skips writing.
	Output string
	// DepthOutput receives the demo depth GeoTIFF when Depth is empty.
	DepthOutput   string
	DemoBuildings int
	Seed          uint64
	Resolver      *fetcher.Resolver
	Metrics       *observability.Metrics
}

// Result is the outcome of Run.
type Result struct {
	Run       model.RunSummary `json:"run"`
	Summary   Summary          `json:"summary"`
	Buildings []Building       `json:"-"`
}

// FormatUSD renders an amount with thousands separators and two decimals.
func FormatUSD(v float64) string {
	return message.NewPrinter(language.English).Sprintf("%.2f", v)
}

// Run samples the depth raster at every building and writes the losses.
func Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{Run: model.NewRun(model.PipelineLoss)}
	log := zap.L().With(zap.String("run_id", res.Run.ID), zap.String("pipeline", model.PipelineLoss))

	err := run(ctx, opts, res, log)
	res.Run.Finish(err)
	opts.Metrics.ObserveRun(model.PipelineLoss, string(res.Run.Status), res.Run.Duration, res.Summary.Buildings)
	if err != nil {
		log.Error("lossdamage: run failed", zap.Error(err))
		return res, err
	}
	log.Info("lossdamage: run complete",
		zap.Int("buildings", res.Summary.Buildings),
		zap.Int("flooded", res.Summary.Flooded),
		zap.String("total_loss_usd", FormatUSD(res.Summary.TotalLossUSD)),
		zap.Strings("outputs", res.Run.Outputs),
	)
	return res, nil
}

func run(ctx context.Context, opts Options, res *Result, log *zap.Logger) error {
	var (
		depth     raster.Grid
		buildings []Building
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		depth, err = loadDepth(gctx, opts, res, log)
		return err
	})
	g.Go(func() error {
		var err error
		buildings, err = loadBuildings(gctx, opts, log)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if depth.Georef == nil {
		return eris.Wrap(model.ErrGeorefMismatch, "lossdamage: depth raster has no georeference")
	}

	res.Summary = Estimate(depth, buildings)
	res.Buildings = buildings

	if opts.Output == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return eris.Wrapf(err, "lossdamage: create %s", filepath.Dir(opts.Output))
	}
	if err := WriteBuildings(opts.Output, buildings); err != nil {
		return err
	}
	res.Run.Outputs = append(res.Run.Outputs, opts.Output)
	return nil
}

func loadDepth(ctx context.Context, opts Options, res *Result, log *zap.Logger) (raster.Grid, error) {
	if opts.Depth == "" {
		depth := DemoDepth(DemoDepthSize)
		log.Info("lossdamage: synthesized demo depth raster", zap.Int("size", DemoDepthSize))
		if opts.DepthOutput != "" {
			if err := raster.WriteGeoTIFF(opts.DepthOutput, depth, raster.TIFFOptions{Description: "flood depth (m)"}); err != nil {
				return raster.Grid{}, eris.Wrap(err, "lossdamage: write demo depth")
			}
			res.Run.Outputs = append(res.Run.Outputs, opts.DepthOutput)
		}
		return depth, nil
	}
	local, err := resolve(ctx, opts.Resolver, opts.Depth)
	if err != nil {
		return raster.Grid{}, err
	}
	variable := opts.DepthVar
	if variable == "" {
		variable = "depth"
	}
	depth, err := raster.Read(local, variable)
	return depth, eris.Wrap(err, "lossdamage: depth raster")
}

func loadBuildings(ctx context.Context, opts Options, log *zap.Logger) ([]Building, error) {
	if opts.Buildings == "" {
		n := opts.DemoBuildings
		if n <= 0 {
			n = DemoBuildings
		}
		log.Info("lossdamage: synthesized demo buildings", zap.Int("count", n), zap.Uint64("seed", opts.Seed))
		return GenerateBuildings(n, opts.Seed), nil
	}
	local, err := resolve(ctx, opts.Resolver, opts.Buildings)
	if err != nil {
		return nil, err
	}
	return ReadBuildings(local)
}

func resolve(ctx context.Context, r *fetcher.Resolver, src string) (string, error) {
	if r == nil {
		if fetcher.IsRemote(src) {
			return "", eris.Errorf("lossdamage: no resolver for %s", src)
		}
		return src, nil
	}
	return r.Resolve(ctx, src)
}
