package susceptibility

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/observability"
	"github.com/sells-group/flood-cli/internal/raster"
)

// Options configures a susceptibility run. Without a manifest the demo
// layers are synthesized.
type Options struct {
	Manifest string
	Output   string
	Format   string
	Size     int
	Seed     uint64
	Resolver *fetcher.Resolver
	Metrics  *observability.Metrics
}

// LayerInfo summarizes one input of a run.
type LayerInfo struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Invert bool    `json:"invert"`
	Method Method  `json:"method"`
}

// Result is the outcome of Run.
type Result struct {
	Run    model.RunSummary `json:"run"`
	Layers []LayerInfo      `json:"layers"`
	Stats  raster.Summary   `json:"stats"`
	Index  raster.Grid      `json:"-"`
}

// Run loads (or synthesizes) the layers, combines them and writes exactly
// one output raster.
func Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{Run: model.NewRun(model.PipelineSusceptibility)}
	log := zap.L().With(zap.String("run_id", res.Run.ID), zap.String("pipeline", model.PipelineSusceptibility))

	err := run(ctx, opts, res, log)
	res.Run.Finish(err)
	cells := 0
	if err == nil {
		cells = res.Stats.Cells
	}
	opts.Metrics.ObserveRun(model.PipelineSusceptibility, string(res.Run.Status), res.Run.Duration, cells)
	if err != nil {
		log.Error("susceptibility: run failed", zap.Error(err))
		return res, err
	}
	log.Info("susceptibility: run complete",
		zap.Strings("outputs", res.Run.Outputs),
		zap.Float64("min", res.Stats.Min),
		zap.Float64("max", res.Stats.Max),
		zap.Float64("mean", res.Stats.Mean),
		zap.Duration("duration", res.Run.Duration),
	)
	return res, nil
}

func run(ctx context.Context, opts Options, res *Result, log *zap.Logger) error {
	output, format := opts.Output, opts.Format

	var layers []Layer
	if opts.Manifest != "" {
		if opts.Resolver == nil {
			return eris.New("susceptibility: manifest runs need an input resolver")
		}
		m, err := LoadManifest(opts.Manifest)
		if err != nil {
			return err
		}
		if output == "" {
			output = m.Output
		}
		if format == "" {
			format = m.Format
		}
		layers, err = m.Load(ctx, opts.Resolver)
		if err != nil {
			return eris.Wrap(err, "susceptibility: load layers")
		}
		log.Info("susceptibility: loaded manifest", zap.String("manifest", opts.Manifest), zap.Int("layers", len(layers)))
	} else {
		size := opts.Size
		if size <= 0 {
			size = 200
		}
		layers = DemoLayers(size, opts.Seed)
		log.Info("susceptibility: synthesized demo layers", zap.Int("size", size), zap.Uint64("seed", opts.Seed))
	}

	if output == "" {
		return eris.New("susceptibility: no output path")
	}
	f, err := outputFormat(output, format)
	if err != nil {
		return err
	}

	index, err := CombineLayers(layers)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "susceptibility: cancelled")
	}

	if err := raster.Write(output, f, "susceptibility", index); err != nil {
		return eris.Wrap(err, "susceptibility: write output")
	}

	res.Index = index
	res.Stats = raster.Describe(index)
	res.Run.Outputs = []string{output}
	for _, l := range layers {
		method := l.Normalization.Method
		if method == "" {
			method = MethodMinMax
		}
		res.Layers = append(res.Layers, LayerInfo{Name: l.Name, Weight: l.Weight, Invert: l.Invert, Method: method})
	}
	return nil
}

// outputFormat honours an explicit format, else the output extension, else GeoTIFF.
func outputFormat(output, format string) (raster.Format, error) {
	if format != "" {
		return raster.ParseFormat(format)
	}
	if f, err := raster.FormatFor(output); err == nil {
		return f, nil
	}
	return raster.FormatGeoTIFF, nil
}
