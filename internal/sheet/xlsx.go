package sheet

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

var zipMagic = []byte("PK\x03\x04")

type xlsxParser struct{}

func (xlsxParser) Format() Format { return FormatXLSX }

func (xlsxParser) Detect(head []byte, _ string) bool {
	return bytes.HasPrefix(head, zipMagic)
}

func (xlsxParser) Parse(ctx context.Context, path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Raw values keep numbers (and date serials) unformatted.
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		grid := make([][]CellValue, len(rows))
		for r, row := range rows {
			cells := make([]CellValue, len(row))
			for c, raw := range row {
				cells[c] = xlsxCell(f, name, c+1, r+1, raw)
			}
			grid[r] = trimTrailingNulls(cells)
		}
		sheets = append(sheets, Sheet{Name: name, Grid: trimEmptyRows(grid)})
	}
	return sheets, nil
}

// xlsxCell types a raw cell using the stored cell type. Formula cells carry
// their cached result and are inferred like delimited text.
func xlsxCell(f *excelize.File, sheetName string, col, row int, raw string) CellValue {
	if raw == "" {
		return Null()
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return InferCell(raw)
	}
	typ, err := f.GetCellType(sheetName, ref)
	if err != nil {
		return InferCell(raw)
	}
	switch typ {
	case excelize.CellTypeBool:
		return Bool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeNumber, excelize.CellTypeDate, excelize.CellTypeUnset:
		if n, ok := parseNumber(raw); ok {
			return Number(n)
		}
		return Text(raw)
	case excelize.CellTypeFormula:
		return InferCell(raw)
	default:
		return Text(raw)
	}
}
