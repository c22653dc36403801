package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/flood-cli/internal/ndwi"
)

var (
	ndwiGreen     string
	ndwiNIR       string
	ndwiPolicy    string
	ndwiThreshold float64
	ndwiOutDir    string
	ndwiSize      int
	ndwiSeed      uint64
)

var ndwiCmd = &cobra.Command{
	Use:   "ndwi",
	Short: "Detect surface water from green and near-infrared bands",
	RunE: func(cmd *cobra.Command, args []string) error {
		nc := &cfg.NDWI
		flags := cmd.Flags()
		if flags.Changed("green") {
			nc.Green = ndwiGreen
		}
		if flags.Changed("nir") {
			nc.NIR = ndwiNIR
		}
		if flags.Changed("zero-policy") {
			nc.ZeroPolicy = ndwiPolicy
		}
		if flags.Changed("threshold") {
			nc.Threshold = ndwiThreshold
		}
		if flags.Changed("output-dir") {
			nc.OutputDir = ndwiOutDir
		}
		if flags.Changed("size") {
			nc.Size = ndwiSize
		}
		if flags.Changed("seed") {
			nc.Seed = ndwiSeed
		}
		if err := cfg.Validate("ndwi"); err != nil {
			return err
		}
		policy, err := ndwi.ParseZeroPolicy(nc.ZeroPolicy)
		if err != nil {
			return err
		}

		resolver := newResolver(cfg.Fetch)
		defer closeResolver(resolver)
		metrics, flush := runMetrics()
		defer flush()

		res, err := ndwi.Run(cmd.Context(), ndwi.Options{
			Green:     nc.Green,
			NIR:       nc.NIR,
			GreenVar:  nc.GreenVar,
			NIRVar:    nc.NIRVar,
			Policy:    policy,
			Threshold: nc.Threshold,
			OutputDir: nc.OutputDir,
			Size:      nc.Size,
			Seed:      nc.Seed,
			Resolver:  resolver,
			Metrics:   metrics,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	f := ndwiCmd.Flags()
	f.StringVar(&ndwiGreen, "green", "", "green band raster (default: synthetic scene)")
	f.StringVar(&ndwiNIR, "nir", "", "near-infrared band raster")
	f.StringVar(&ndwiPolicy, "zero-policy", "", "zero denominator handling: nan, zero or epsilon")
	f.Float64Var(&ndwiThreshold, "threshold", 0, "water threshold, cells strictly above are water")
	f.StringVar(&ndwiOutDir, "output-dir", "", "directory for ndwi.tif and water_mask.tif")
	f.IntVar(&ndwiSize, "size", 0, "demo scene size")
	f.Uint64Var(&ndwiSeed, "seed", 0, "demo random seed")
	rootCmd.AddCommand(ndwiCmd)
}
