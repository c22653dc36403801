package fetcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

type sheetSpec struct {
	name string
	rows [][]string
}

func writeWorkbook(t *testing.T, sheets ...sheetSpec) string {
	t.Helper()
	book := xlsx.NewFile()
	for _, ws := range sheets {
		sheet, err := book.AddSheet(ws.name)
		require.NoError(t, err)
		for _, values := range ws.rows {
			row := sheet.AddRow()
			for _, v := range values {
				row.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "gauges.xlsx")
	require.NoError(t, book.Save(path))
	return path
}

func TestReadXLSX_FirstSheetWithData(t *testing.T) {
	path := writeWorkbook(t,
		sheetSpec{name: "Notes"},
		sheetSpec{name: "Daily", rows: [][]string{
			{"date", "rainfall_mm", "discharge_cms"},
			{"2024-01-01", "1.5", "20"},
		}},
	)

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"date", "rainfall_mm", "discharge_cms"}, rows[0])
}

func TestReadXLSX_SheetCaseInsensitive(t *testing.T) {
	path := writeWorkbook(t,
		sheetSpec{name: "Summary", rows: [][]string{{"total", "12"}}},
		sheetSpec{name: "Daily", rows: [][]string{{"date", "rainfall_mm"}, {"2024-01-02", "0"}}},
	)

	rows, err := ReadXLSX(path, XLSXOptions{Sheet: " daily "})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-01-02", "0"}, rows[1])
}

func TestReadXLSX_SheetNotFound(t *testing.T) {
	path := writeWorkbook(t, sheetSpec{name: "Daily", rows: [][]string{{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{Sheet: "Hourly"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Hourly" not found`)
	assert.Contains(t, err.Error(), "Daily")
}

func TestReadXLSX_EmptyWorkbook(t *testing.T) {
	path := writeWorkbook(t, sheetSpec{name: "Empty"})

	_, err := ReadXLSX(path, XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data")
}

func TestReadXLSX_SkipRowsAndBlanks(t *testing.T) {
	path := writeWorkbook(t, sheetSpec{name: "Daily", rows: [][]string{
		{"Kampala gauge export"},
		{"date", "rainfall_mm", ""},
		{"", ""},
		{"2024-01-01", "3.2", ""},
	}})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"date", "rainfall_mm"}, rows[0])
	assert.Equal(t, []string{"2024-01-01", "3.2"}, rows[1])
}

func TestReadXLSX_DateCells(t *testing.T) {
	book := xlsx.NewFile()
	sheet, err := book.AddSheet("Daily")
	require.NoError(t, err)
	header := sheet.AddRow()
	header.AddCell().SetString("date")
	header.AddCell().SetString("rainfall_mm")
	row := sheet.AddRow()
	row.AddCell().SetDate(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	row.AddCell().SetFloat(4.5)
	path := filepath.Join(t.TempDir(), "dates.xlsx")
	require.NoError(t, book.Save(path))

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-03-15", rows[1][0])
	assert.Equal(t, "4.5", rows[1][1])
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open")
}

func TestIsDateFormat(t *testing.T) {
	assert.True(t, isDateFormat("mm-dd-yy"))
	assert.True(t, isDateFormat("d-mmm-yy"))
	assert.True(t, isDateFormat("yyyy-mm-dd hh:mm"))
	assert.False(t, isDateFormat("0.00"))
	assert.False(t, isDateFormat("General"))
	assert.False(t, isDateFormat(`0.0 "mm/dd"`))
}
