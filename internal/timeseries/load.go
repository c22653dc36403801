package timeseries

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/model"
)

// DefaultTable is the table name read from database sources without ?table=.
const DefaultTable = "rainfall_discharge"

// LoadOptions configures Load.
type LoadOptions struct {
	// Sheet selects an XLSX worksheet by name; the first sheet by default.
	Sheet    string
	Resolver *fetcher.Resolver
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Load reads a table from src:
//
//	path/to/file.csv            CSV with a header row
//	path/to/file.xlsx           first (or LoadOptions.Sheet) worksheet
//	sqlite://path/to.db?table=  SQLite table (default rainfall_discharge)
//	postgres://...?table=       Postgres table
//
// File paths may also be http(s):// or ftp:// URLs.
func Load(ctx context.Context, src string, opts LoadOptions) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch {
	case strings.HasPrefix(src, "sqlite://"):
		t, err = loadSQLite(ctx, src)
	case strings.HasPrefix(src, "postgres://"), strings.HasPrefix(src, "postgresql://"):
		t, err = loadPostgres(ctx, src)
	default:
		t, err = loadFile(ctx, src, opts)
	}
	if err != nil {
		return nil, err
	}
	t.Source = src
	zap.L().Info("timeseries: loaded table", zap.String("source", redact(src)), zap.Int("records", t.Len()))
	return t, nil
}

func loadFile(ctx context.Context, src string, opts LoadOptions) (*Table, error) {
	local := src
	if fetcher.IsRemote(src) || strings.HasPrefix(src, "file://") {
		if opts.Resolver == nil {
			return nil, eris.Errorf("timeseries: no resolver for %s", src)
		}
		var err error
		local, err = opts.Resolver.Resolve(ctx, src)
		if err != nil {
			return nil, err
		}
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(local)) {
	case ".xlsx":
		var err error
		rows, err = fetcher.ReadXLSX(local, fetcher.XLSXOptions{Sheet: opts.Sheet})
		if err != nil {
			return nil, eris.Wrapf(err, "timeseries: %s", local)
		}
	case ".csv", ".txt", "":
		f, err := os.Open(local)
		if err != nil {
			return nil, eris.Wrapf(err, "timeseries: open %s", local)
		}
		defer f.Close() //nolint:errcheck
		rows, err = fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true, Comment: '#'})
		if err != nil {
			return nil, eris.Wrapf(err, "timeseries: %s", local)
		}
	default:
		return nil, eris.Wrapf(model.ErrUnsupportedFormat, "timeseries: table file %s", local)
	}

	t, err := FromRows(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "timeseries: %s", local)
	}
	return t, nil
}

// tableParam strips ?table= from a database URL and validates the identifier.
func tableParam(raw string) (dsn, table string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", eris.Wrap(err, "timeseries: parse source url")
	}
	q := u.Query()
	table = q.Get("table")
	q.Del("table")
	u.RawQuery = q.Encode()
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return "", "", eris.Errorf("timeseries: invalid table name %q", table)
	}
	return u.String(), table, nil
}

func redact(src string) string {
	u, err := url.Parse(src)
	if err != nil || u.User == nil {
		return src
	}
	return u.Redacted()
}
