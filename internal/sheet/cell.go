package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a CellValue holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "boolean"
	default:
		return "null"
	}
}

// CellValue is a single spreadsheet cell: a number, text, boolean, or null.
// The zero value is Null.
type CellValue struct {
	kind Kind
	num  float64
	text string
	flag bool
}

func Null() CellValue { return CellValue{} }
func Number(f float64) CellValue { return CellValue{kind: KindNumber, num: f} }
func Text(s string) CellValue { return CellValue{kind: KindText, text: s} }
func Bool(b bool) CellValue { return CellValue{kind: KindBool, flag: b} }
func (v CellValue) Kind() Kind { return v.kind }
func (v CellValue) IsNull() bool { return v.kind == KindNull }

// ToNumber coerces the value to a float. Numbers pass through and text is
// parsed after trimming surrounding whitespace; anything else reports false.
func (v CellValue) ToNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		return parseNumber(v.text)
	default:
		return 0, false
	}
}

// NumberOrZero is ToNumber with the failure case mapped to 0.
func (v CellValue) NumberOrZero() float64 {
	f, ok := v.ToNumber()
	if !ok {
		return 0
	}
	return f
}

// ToText renders the value as a string. Null renders as "".
func (v CellValue) ToText() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		return ""
	}
}

// Equal reports strict, type-sensitive equality: Number(1) != Text("1").
func (v CellValue) Equal(o CellValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	case KindBool:
		return v.flag == o.flag
	default:
		return true
	}
}

func (v CellValue) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return v.ToText()
}

func (v CellValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindBool:
		return json.Marshal(v.flag)
	default:
		return []byte("null"), nil
	}
}

func (v *CellValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = Null()
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Text(s)
	case 't', 'f':
		var flag bool
		if err := json.Unmarshal(b, &flag); err != nil {
			return err
		}
		*v = Bool(flag)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("cell value must be a number, string, boolean or null: %w", err)
		}
		*v = Number(f)
	}
	return nil
}

// InferCell types a raw textual cell the way delimited sources are read:
// empty is null, numeric text is a number, TRUE/FALSE is a boolean.
func InferCell(raw string) CellValue {
	if raw == "" {
		return Null()
	}
	if f, ok := parseNumber(raw); ok {
		return Number(f)
	}
	switch {
	case strings.EqualFold(raw, "true"):
		return Bool(true)
	case strings.EqualFold(raw, "false"):
		return Bool(false)
	}
	return Text(raw)
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
