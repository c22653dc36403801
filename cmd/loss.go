package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/flood-cli/internal/lossdamage"
)

var (
	lossDepth     string
	lossBuildings string
	lossOutput    string
	lossSeed      uint64
	lossJSON      bool
)

var lossCmd = &cobra.Command{
	Use:   "loss",
	Short: "Estimate building losses from a flood depth raster",
	RunE: func(cmd *cobra.Command, args []string) error {
		lc := &cfg.Loss
		flags := cmd.Flags()
		if flags.Changed("depth") {
			lc.Depth = lossDepth
		}
		if flags.Changed("buildings") {
			lc.Buildings = lossBuildings
		}
		if flags.Changed("output") {
			lc.Output = lossOutput
		}
		if flags.Changed("seed") {
			lc.Seed = lossSeed
		}
		if err := cfg.Validate("loss"); err != nil {
			return err
		}

		resolver := newResolver(cfg.Fetch)
		defer closeResolver(resolver)
		metrics, flush := runMetrics()
		defer flush()

		res, err := lossdamage.Run(cmd.Context(), lossdamage.Options{
			Depth:         lc.Depth,
			DepthVar:      lc.DepthVar,
			Buildings:     lc.Buildings,
			Output:        lc.Output,
			DepthOutput:   lc.DepthOutput,
			DemoBuildings: lc.DemoBuildings,
			Seed:          lc.Seed,
			Resolver:      resolver,
			Metrics:       metrics,
		})
		if err != nil {
			return err
		}
		if lossJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Estimated total loss (USD): %s\n", lossdamage.FormatUSD(res.Summary.TotalLossUSD))
		fmt.Fprintf(out, "Flooded buildings: %d of %d\n", res.Summary.Flooded, res.Summary.Buildings)
		for _, p := range res.Run.Outputs {
			fmt.Fprintf(out, "Wrote: %s\n", p)
		}
		return nil
	},
}

func init() {
	f := lossCmd.Flags()
	f.StringVar(&lossDepth, "depth", "", "flood depth raster in metres (default: synthetic pond)")
	f.StringVar(&lossBuildings, "buildings", "", "building points GeoJSON with value_usd (default: synthetic)")
	f.StringVarP(&lossOutput, "output", "o", "", "losses GeoJSON path (default from config)")
	f.Uint64Var(&lossSeed, "seed", 0, "demo buildings random seed")
	f.BoolVar(&lossJSON, "json", false, "print the run summary as JSON")
	rootCmd.AddCommand(lossCmd)
}
