package sheet

import (
	"fmt"
	"strconv"
)

// PreviewLimit caps SheetSummary.PreviewRows.
const PreviewLimit = 50

// emptyHeader names data columns whose header cell is blank.
const emptyHeader = "__EMPTY"

// Sheet is one worksheet as a raw grid, header row first. Rows keep their
// source length: trailing empty cells are absent rather than null-filled.
type Sheet struct {
	Name string
	Grid [][]CellValue
}

// Workbook holds every sheet of a parsed file in source order.
type Workbook struct {
	Name   string
	Format Format
	Sheets []Sheet
}

// SheetSummary describes a worksheet for display and persistence.
type SheetSummary struct {
	Name        string        `json:"name"`
	Columns     []string      `json:"columns"`
	RowCount    int           `json:"rowCount"`
	PreviewRows [][]CellValue `json:"previewRows"`
}

// Row is one data record keyed by header name. A missing key is an absent cell.
type Row map[string]CellValue

// Summary builds the display summary. PreviewRows are raw rows and include
// the header row.
func (s *Sheet) Summary() SheetSummary {
	sum := SheetSummary{Name: s.Name, Columns: []string{}, PreviewRows: [][]CellValue{}}
	if len(s.Grid) == 0 {
		return sum
	}
	for _, c := range s.Grid[0] {
		sum.Columns = append(sum.Columns, c.ToText())
	}
	sum.RowCount = len(s.Grid) - 1
	n := min(PreviewLimit, len(s.Grid))
	for _, raw := range s.Grid[:n] {
		cp := make([]CellValue, len(raw))
		copy(cp, raw)
		sum.PreviewRows = append(sum.PreviewRows, cp)
	}
	return sum
}

// Columns returns the header as text, or nil for an empty sheet.
func (s *Sheet) Columns() []string {
	if len(s.Grid) == 0 {
		return nil
	}
	cols := make([]string, len(s.Grid[0]))
	for i, c := range s.Grid[0] {
		cols[i] = c.ToText()
	}
	return cols
}

// Records maps data rows onto header keys. Null cells are left out of the
// record and rows with no values at all are skipped.
func (s *Sheet) Records() []Row {
	if len(s.Grid) < 2 {
		return nil
	}
	keys := RecordKeys(s.Columns())
	out := make([]Row, 0, len(s.Grid)-1)
	for _, raw := range s.Grid[1:] {
		r := make(Row, len(keys))
		for i, v := range raw {
			if i >= len(keys) || v.IsNull() {
				continue
			}
			r[keys[i]] = v
		}
		if len(r) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RecordKeys turns header cells into unique record keys. Blank headers become
// "__EMPTY" and repeats get "_1", "_2", ... suffixes in encounter order.
func RecordKeys(header []string) []string {
	keys := make([]string, len(header))
	used := make(map[string]bool, len(header))
	counts := make(map[string]int, len(header))
	for i, h := range header {
		base := h
		if base == "" {
			base = emptyHeader
		}
		name := base
		for used[name] {
			counts[base]++
			name = base + "_" + strconv.Itoa(counts[base])
		}
		used[name] = true
		keys[i] = name
	}
	return keys
}

// Sheet looks up a sheet by exact name.
func (w *Workbook) Sheet(name string) (*Sheet, bool) {
	for i := range w.Sheets {
		if w.Sheets[i].Name == name {
			return &w.Sheets[i], true
		}
	}
	return nil, false
}

// SheetNames lists sheet names in source order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// Summaries returns one SheetSummary per sheet in source order.
func (w *Workbook) Summaries() []SheetSummary {
	out := make([]SheetSummary, len(w.Sheets))
	for i := range w.Sheets {
		out[i] = w.Sheets[i].Summary()
	}
	return out
}

// Rows returns the header-keyed records of the named sheet.
func (w *Workbook) Rows(name string) ([]Row, error) {
	s, ok := w.Sheet(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return s.Records(), nil
}
