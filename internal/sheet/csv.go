package sheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// csvSheetName is the single sheet a delimited file produces.
const csvSheetName = "Sheet1"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type csvParser struct{}

func (csvParser) Format() Format { return FormatCSV }

// Detect accepts anything without NUL bytes. Text that is not UTF-8 is
// decoded as Windows-1252 when parsed.
func (csvParser) Detect(head []byte, _ string) bool {
	return bytes.IndexByte(head, 0) < 0
}

func (csvParser) Parse(ctx context.Context, path string) ([]Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		// Excel exports delimited text in the ANSI code page; 1252 is a
		// superset of Latin-1.
		if data, err = charmap.Windows1252.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("decode csv: %w", err)
		}
	}
	head := data[:min(len(data), sniffLen)]

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = sniffDelimiter(path, head)

	var grid [][]CellValue
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(grid)+1, err)
		}
		row := make([]CellValue, len(rec))
		for i, raw := range rec {
			row[i] = InferCell(raw)
		}
		grid = append(grid, trimTrailingNulls(row))
	}
	return []Sheet{{Name: csvSheetName, Grid: trimEmptyRows(grid)}}, nil
}

// sniffDelimiter picks the most frequent of ',', ';' and tab on the first
// line. A .tsv extension always means tab.
func sniffDelimiter(path string, head []byte) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	line := head
	if i := bytes.IndexAny(head, "\r\n"); i >= 0 {
		line = head[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if c := bytes.Count(line, []byte(string(d))); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

func trimTrailingNulls(row []CellValue) []CellValue {
	n := len(row)
	for n > 0 && row[n-1].IsNull() {
		n--
	}
	return row[:n]
}

// trimEmptyRows drops blank rows before the first and after the last row
// holding a value, so the header is the first row of sheet data.
func trimEmptyRows(grid [][]CellValue) [][]CellValue {
	start := 0
	for start < len(grid) && len(grid[start]) == 0 {
		start++
	}
	end := len(grid)
	for end > start && len(grid[end-1]) == 0 {
		end--
	}
	return grid[start:end]
}
