package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the worksheet to read. Sheet is matched
// case-insensitively; empty means the first sheet with any data.
type XLSXOptions struct {
	Sheet    string
	SkipRows int
}

// ReadXLSX returns the rows of one worksheet as strings. Date-formatted
// numeric cells come back as YYYY-MM-DD so they parse the same way as
// CSV input. Trailing empty cells are trimmed and blank rows dropped.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	book, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	sheet, err := pickSheet(book, opts.Sheet)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows || row == nil {
			continue
		}
		record := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			record = append(record, cellText(cell, book.Date1904))
		}
		for len(record) > 0 && record[len(record)-1] == "" {
			record = record[:len(record)-1]
		}
		if len(record) == 0 {
			continue
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func pickSheet(book *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name == "" {
		for _, s := range book.Sheets {
			if len(s.Rows) > 0 {
				return s, nil
			}
		}
		return nil, eris.New("xlsx: workbook has no data")
	}
	for _, s := range book.Sheets {
		if strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(name)) {
			return s, nil
		}
	}
	names := make([]string, len(book.Sheets))
	for i, s := range book.Sheets {
		names[i] = s.Name
	}
	return nil, eris.Errorf("xlsx: sheet %q not found (have %s)", name, strings.Join(names, ", "))
}

func cellText(cell *xlsx.Cell, date1904 bool) string {
	if cell.Type() == xlsx.CellTypeNumeric && isDateFormat(cell.GetNumberFormat()) {
		if serial, err := cell.Float(); err == nil {
			return xlsx.TimeFromExcelTime(serial, date1904).Format("2006-01-02")
		}
	}
	return strings.TrimSpace(cell.String())
}

// isDateFormat reports whether an Excel number format renders a date.
// Literal sections in quotes are ignored.
func isDateFormat(format string) bool {
	var b strings.Builder
	quoted := false
	for _, r := range strings.ToLower(format) {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			b.WriteRune(r)
		}
	}
	f := b.String()
	return strings.Contains(f, "yy") || strings.Contains(f, "dd") || strings.Contains(f, "mmm")
}
