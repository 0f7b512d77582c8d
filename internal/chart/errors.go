package chart

import "fmt"

// ErrorKind classifies transform failures.
type ErrorKind string

const (
	KindSheetNotFound  ErrorKind = "sheet_not_found"
	KindColumnNotFound ErrorKind = "column_not_found"
	KindInvalidSpec    ErrorKind = "invalid_specification"
)

// TransformError reports a chart specification that cannot be applied.
type TransformError struct {
	Kind   ErrorKind
	Sheet  string
	Column string
	Err    error
}

func (e *TransformError) Error() string {
	switch e.Kind {
	case KindSheetNotFound:
		return fmt.Sprintf("sheet %q not found", e.Sheet)
	case KindColumnNotFound:
		return fmt.Sprintf("column %q not found in sheet %q", e.Column, e.Sheet)
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid chart specification: %v", e.Err)
	}
	return "invalid chart specification"
}

func (e *TransformError) Unwrap() error { return e.Err }
