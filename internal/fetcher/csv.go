package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"iter"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures CSVRows and ReadCSV.
type CSVOptions struct {
	// Delimiter is the field separator. Zero sniffs ',', ';' or tab from
	// the first line, which covers gauge exports from European agencies.
	Delimiter rune
	Comment   rune // lines starting with Comment are skipped (0 = none)
	TrimSpace bool
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cancelCheckRows is how often CSVRows polls the context.
const cancelCheckRows = 1024

// CSVRows yields the records of r in order, header included. A leading
// UTF-8 byte order mark is dropped. Iteration stops at the first error,
// which is yielded with a nil record.
func CSVRows(ctx context.Context, r io.Reader, opts CSVOptions) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		br := bufio.NewReader(r)
		if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = br.Discard(len(utf8BOM))
		}

		reader := csv.NewReader(br)
		reader.Comma = opts.Delimiter
		if reader.Comma == 0 {
			reader.Comma = sniffDelimiter(br)
		}
		reader.Comment = opts.Comment
		reader.FieldsPerRecord = -1

		for n := 0; ; n++ {
			if n%cancelCheckRows == 0 {
				if err := ctx.Err(); err != nil {
					yield(nil, eris.Wrap(err, "csv: context cancelled"))
					return
				}
			}
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, eris.Wrap(err, "csv: read row"))
				return
			}
			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

// ReadCSV collects every record of r, header included.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	var rows [][]string
	for record, err := range CSVRows(ctx, r, opts) {
		if err != nil {
			return rows, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// sniffDelimiter picks the most frequent of ',', ';' and tab on the first
// line. Ties and empty input fall back to ','.
func sniffDelimiter(br *bufio.Reader) rune {
	head, _ := br.Peek(4096)
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestN := ',', bytes.Count(head, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(head, []byte{byte(d)}); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
