// Package timeseries loads the daily rainfall / river discharge table shown
// by the dashboard.
package timeseries

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
)

// Required columns.
const (
	ColDate      = "date"
	ColRainfall  = "rainfall_mm"
	ColDischarge = "discharge_cms"
)

// Columns lists the required columns in display order.
var Columns = []string{ColDate, ColRainfall, ColDischarge}

// Variable names a plottable column.
type Variable string

// Plottable variables.
const (
	Rainfall  Variable = ColRainfall
	Discharge Variable = ColDischarge
)

// ParseVariable accepts "rainfall_mm" or "discharge_cms". Empty means rainfall.
func ParseVariable(s string) (Variable, error) {
	switch Variable(s) {
	case "", Rainfall:
		return Rainfall, nil
	case Discharge:
		return Discharge, nil
	}
	return "", eris.Errorf("timeseries: unknown variable %q", s)
}

// Title is the chart and axis label for v.
func (v Variable) Title() string {
	if v == Discharge {
		return "Discharge (m³/s)"
	}
	return "Rainfall (mm)"
}

// Record is one row of the table.
type Record struct {
	Date         time.Time `json:"date"`
	RainfallMM   float64   `json:"rainfall_mm"`
	DischargeCMS float64   `json:"discharge_cms"`
}

// Value returns the field named by v.
func (r Record) Value(v Variable) float64 {
	if v == Discharge {
		return r.DischargeCMS
	}
	return r.RainfallMM
}

// Point is one sample of a single variable.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Table is an immutable, date-sorted set of records.
type Table struct {
	Source  string
	Records []Record
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"01-02-06",
}

// ParseDate accepts ISO dates, RFC 3339 timestamps and a few common spreadsheet layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognized date %q", s)
}

// FromRows builds a table from string rows. The first row is the header;
// extra columns are ignored and column order is free. Missing required
// columns and unparseable cells are schema mismatches.
func FromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, eris.Wrap(model.ErrSchemaMismatch, "timeseries: empty table, no header row")
	}
	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	var missing []string
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Wrapf(model.ErrSchemaMismatch, "timeseries: missing column(s) %s", strings.Join(missing, ", "))
	}

	records := make([]Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		cell := func(col string) (string, error) {
			i := idx[col]
			if i >= len(row) {
				return "", eris.Wrapf(model.ErrSchemaMismatch, "timeseries: row %d: column %s is missing", line, col)
			}
			return strings.TrimSpace(row[i]), nil
		}

		ds, err := cell(ColDate)
		if err != nil {
			return nil, err
		}
		date, err := ParseDate(ds)
		if err != nil {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "timeseries: row %d: column %s: %v", line, ColDate, err)
		}
		rec := Record{Date: date}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{ColRainfall, &rec.RainfallMM},
			{ColDischarge, &rec.DischargeCMS},
		} {
			s, err := cell(f.col)
			if err != nil {
				return nil, err
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, eris.Wrapf(model.ErrSchemaMismatch, "timeseries: row %d: column %s: not a number: %q", line, f.col, s)
			}
			*f.dst = v
		}
		records = append(records, rec)
	}
	return New(records), nil
}

// New sorts records by date (stable) and wraps them.
func New(records []Record) *Table {
	slices.SortStableFunc(records, func(a, b Record) int { return a.Date.Compare(b.Date) })
	return &Table{Records: records}
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// Range returns the first and last dates. ok is false for an empty table.
func (t *Table) Range() (first, last time.Time, ok bool) {
	if len(t.Records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.Records[0].Date, t.Records[len(t.Records)-1].Date, true
}

// Filter returns the records with start <= date <= end. A zero bound is open.
func (t *Table) Filter(start, end time.Time) []Record {
	out := make([]Record, 0, len(t.Records))
	for _, r := range t.Records {
		if !start.IsZero() && r.Date.Before(start) {
			continue
		}
		if !end.IsZero() && r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Series extracts one variable over the inclusive date range.
func (t *Table) Series(v Variable, start, end time.Time) []Point {
	recs := t.Filter(start, end)
	pts := make([]Point, len(recs))
	for i, r := range recs {
		pts[i] = Point{Date: r.Date, Value: r.Value(v)}
	}
	return pts
}
