package timeseries

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Querier is the subset of pgxpool.Pool used for reading tables.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func selectSQL(table string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(Columns, ", "), table, ColDate)
}

func loadSQLite(ctx context.Context, src string) (*Table, error) {
	dsn, table, err := tableParam(src)
	if err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(dsn, "sqlite://")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	defer conn.Close() //nolint:errcheck
	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return nil, eris.Wrap(err, "sqlite: exec PRAGMA busy_timeout")
	}
	return QuerySQL(ctx, conn, table)
}

// QuerySQL reads table through database/sql.
func QuerySQL(ctx context.Context, conn *sql.DB, table string) (*Table, error) {
	if !identRe.MatchString(table) {
		return nil, eris.Errorf("timeseries: invalid table name %q", table)
	}
	rows, err := conn.QueryContext(ctx, selectSQL(table))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", table)
	}
	defer rows.Close() //nolint:errcheck

	out := [][]string{Columns}
	for rows.Next() {
		vals := make([]any, len(Columns))
		ptrs := make([]any, len(Columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		out = append(out, cellStrings(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: iterate %s", table)
	}
	return FromRows(out)
}

func loadPostgres(ctx context.Context, src string) (*Table, error) {
	dsn, table, err := tableParam(src)
	if err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	defer pool.Close()
	return QueryPostgres(ctx, pool, table)
}

// QueryPostgres reads table through a pgx pool.
func QueryPostgres(ctx context.Context, q Querier, table string) (*Table, error) {
	if !identRe.MatchString(table) {
		return nil, eris.Errorf("timeseries: invalid table name %q", table)
	}
	rows, err := q.Query(ctx, selectSQL(table))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", table)
	}
	defer rows.Close()

	out := [][]string{Columns}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		out = append(out, cellStrings(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: iterate %s", table)
	}
	return FromRows(out)
}

func cellStrings(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = cellString(v)
	}
	return out
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case pgtype.Numeric:
		if !x.Valid {
			return ""
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return numericString(x)
		}
		return strconv.FormatFloat(f.Float64, 'f', -1, 64)
	case pgtype.Date:
		if !x.Valid {
			return ""
		}
		return x.Time.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}

func numericString(n pgtype.Numeric) string {
	if n.Int == nil {
		return ""
	}
	r := new(big.Rat).SetInt(n.Int)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(n.Exp))), nil)
	if n.Exp < 0 {
		r.Quo(r, new(big.Rat).SetInt(scale))
	} else {
		r.Mul(r, new(big.Rat).SetInt(scale))
	}
	return r.FloatString(6)
}

func abs(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
