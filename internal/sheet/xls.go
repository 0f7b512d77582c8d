package sheet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/extrame/xls"
)

// OLE2 compound document signature used by BIFF workbooks.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

type xlsParser struct{}

func (xlsParser) Format() Format { return FormatXLS }

func (xlsParser) Detect(head []byte, _ string) bool {
	return bytes.HasPrefix(head, oleMagic)
}

func (xlsParser) Parse(ctx context.Context, path string) (sheets []Sheet, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	// The BIFF reader panics on some truncated or inconsistent streams.
	defer func() {
		if r := recover(); r != nil {
			sheets = nil
			err = fmt.Errorf("corrupt workbook: %v", r)
		}
	}()
	wb, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if wb == nil {
		return nil, errors.New("open workbook: no workbook stream")
	}

	for i := 0; i < wb.NumSheets(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		var grid [][]CellValue
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := xlsRow(ws, r)
			if row == nil {
				grid = append(grid, nil)
				continue
			}
			cells := make([]CellValue, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = InferCell(row.Col(c))
			}
			grid = append(grid, trimTrailingNulls(cells))
		}
		sheets = append(sheets, Sheet{Name: ws.Name, Grid: trimEmptyRows(grid)})
	}
	return sheets, nil
}

// xlsRow returns row i, or nil when the sheet has no record for it. The
// reader dereferences missing rows instead of reporting them.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}
