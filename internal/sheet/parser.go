package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Format names a spreadsheet container format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// sniffLen is how many leading bytes format detection looks at.
const sniffLen = 4096

// FormatParser reads one spreadsheet format.
type FormatParser interface {
	Format() Format
	// Detect reports whether the leading bytes of a file belong to this format.
	Detect(head []byte, name string) bool
	Parse(ctx context.Context, path string) ([]Sheet, error)
}

var registry []FormatParser

// Register adds a format parser. Parsers are tried in registration order.
func Register(p FormatParser) {
	registry = append(registry, p)
}

func init() {
	// Binary containers first; delimited text is the fallback.
	Register(xlsxParser{})
	Register(xlsParser{})
	Register(csvParser{})
}

// Parse reads the spreadsheet at path, picking the format from its content.
// Any failure is returned as *ParseError with no partial workbook.
func Parse(ctx context.Context, path string) (*Workbook, error) {
	head, err := readHead(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	p := detect(head, path)
	if p == nil {
		return nil, &ParseError{Path: path, Err: ErrUnsupported}
	}
	sheets, err := p.Parse(ctx, path)
	if err != nil {
		return nil, &ParseError{Path: path, Format: p.Format(), Err: err}
	}
	return &Workbook{Name: filepath.Base(path), Format: p.Format(), Sheets: sheets}, nil
}

// ParseReader spools r to a temporary file and parses it. name is used for
// error messages and as the workbook name.
func ParseReader(ctx context.Context, name string, r io.Reader) (*Workbook, error) {
	tmp, err := os.CreateTemp("", "excelytics-*"+filepath.Ext(name))
	if err != nil {
		return nil, &ParseError{Path: name, Err: fmt.Errorf("spool upload: %w", err)}
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return nil, &ParseError{Path: name, Err: fmt.Errorf("spool upload: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return nil, &ParseError{Path: name, Err: fmt.Errorf("spool upload: %w", err)}
	}
	wb, err := Parse(ctx, tmp.Name())
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = name
		}
		return nil, err
	}
	wb.Name = filepath.Base(name)
	return wb, nil
}

func detect(head []byte, name string) FormatParser {
	for _, p := range registry {
		if p.Detect(head, name) {
			return p
		}
	}
	return nil
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return buf[:n], nil
}
