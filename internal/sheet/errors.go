package sheet

import (
	"errors"
	"fmt"
)

// ErrUnsupported indicates the content is not a recognized spreadsheet format.
var ErrUnsupported = errors.New("unrecognized spreadsheet format")

// ErrSheetNotFound indicates a requested sheet name is absent from the workbook.
var ErrSheetNotFound = errors.New("sheet not found")

// ParseError reports a spreadsheet that could not be opened or read.
type ParseError struct {
	Path   string
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("parse spreadsheet %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("parse spreadsheet %q (%s): %v", e.Path, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
