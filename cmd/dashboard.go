package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/flood-cli/internal/dashboard"
	"github.com/sells-group/flood-cli/internal/observability"
)

var (
	dashAddr      string
	dashTable     string
	dashSheet     string
	dashLocations string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the rainfall/discharge dashboard and flood-prone location map",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dc := &cfg.Dashboard
		flags := cmd.Flags()
		if flags.Changed("addr") {
			dc.Addr = dashAddr
		}
		if flags.Changed("table") {
			dc.Table = dashTable
		}
		if flags.Changed("sheet") {
			dc.Sheet = dashSheet
		}
		if flags.Changed("locations") {
			dc.Locations = dashLocations
		}
		if err := cfg.Validate("dashboard"); err != nil {
			return err
		}

		resolver := newResolver(cfg.Fetch)
		defer closeResolver(resolver)

		data, err := dashboard.Load(ctx, dashboard.LoadOptions{
			Table:     dc.Table,
			Sheet:     dc.Sheet,
			Locations: dc.Locations,
			Resolver:  resolver,
		})
		if err != nil {
			return err
		}

		srv := dashboard.NewServer(data, dashboard.Config{
			Addr:            dc.Addr,
			RateLimit:       dc.RateLimit,
			RateBurst:       dc.RateBurst,
			CORSOrigins:     dc.CORSOrigins,
			CacheEntries:    dc.CacheEntries,
			CacheTTL:        time.Duration(dc.CacheTTL) * time.Second,
			ShutdownTimeout: time.Duration(dc.ShutdownTimeout) * time.Second,
		}, observability.NewMetrics())
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	f := dashboardCmd.Flags()
	f.StringVar(&dashAddr, "addr", "", "listen address (default from config)")
	f.StringVar(&dashTable, "table", "", "time-series source: csv, xlsx, sqlite:// or postgres://")
	f.StringVar(&dashSheet, "sheet", "", "worksheet name for xlsx tables")
	f.StringVar(&dashLocations, "locations", "", "flood-prone locations: geojson, shp or zip; empty shows a placeholder map")
	rootCmd.AddCommand(dashboardCmd)
}
