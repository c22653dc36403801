// Package dashboard serves a small read-only web view of rainfall and
// discharge history together with a map of flood-prone locations.
package dashboard

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/location"
	"github.com/sells-group/flood-cli/internal/timeseries"
)

// Data is everything the dashboard shows. It is loaded once and never mutated.
type Data struct {
	Table *timeseries.Table
	// Locations is nil when no collection is configured.
	Locations *location.Collection
}

// LoadOptions names the dashboard inputs.
type LoadOptions struct {
	Table     string
	Sheet     string
	Locations string
	Resolver  *fetcher.Resolver
}

// Load reads the table and the location collection concurrently. An empty
// Locations source leaves Data.Locations nil.
func Load(ctx context.Context, opts LoadOptions) (*Data, error) {
	var d Data
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := timeseries.Load(gctx, opts.Table, timeseries.LoadOptions{Sheet: opts.Sheet, Resolver: opts.Resolver})
		if err != nil {
			return err
		}
		d.Table = t
		return nil
	})
	if opts.Locations != "" {
		g.Go(func() error {
			c, err := location.Load(gctx, opts.Locations, opts.Resolver)
			if err != nil {
				return err
			}
			d.Locations = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	zap.L().Info("dashboard: data loaded",
		zap.Int("records", d.Table.Len()),
		zap.Int("locations", d.Locations.Len()),
	)
	return &d, nil
}
