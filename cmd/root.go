package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/flood-cli/internal/config"
	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/observability"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "flood-cli",
	Short: "Flood risk geospatial toolkit",
	Long:  "Builds flood susceptibility and surface-water rasters, estimates building losses, simulates flood spread and serves a rainfall/discharge dashboard.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// newResolver builds the input resolver from the fetch settings.
func newResolver(fc config.FetchConfig) *fetcher.Resolver {
	timeout := time.Duration(fc.TimeoutSecs) * time.Second
	return fetcher.NewResolver(
		fetcher.HTTPOptions{
			UserAgent:   fc.UserAgent,
			Timeout:     timeout,
			MaxAttempts: fc.MaxAttempts,
			RatePerHost: rate.Limit(fc.RatePerHost),
		},
		fetcher.FTPOptions{Timeout: timeout},
		fc.TempDir,
	)
}

func closeResolver(r *fetcher.Resolver) {
	if err := r.Cleanup(); err != nil {
		zap.L().Warn("cleanup downloads", zap.Error(err))
	}
}

// runMetrics returns metrics for one batch run and a flush that writes them
// to metrics.textfile. Without a textfile both are no-ops.
func runMetrics() (*observability.Metrics, func()) {
	path := cfg.Metrics.Textfile
	if path == "" {
		return nil, func() {}
	}
	m := observability.NewRunMetrics()
	return m, func() {
		if err := m.WriteTextfile(path); err != nil {
			zap.L().Warn("write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
