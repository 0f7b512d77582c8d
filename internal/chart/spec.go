package chart

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/excelytics/internal/sheet"
)

// Type selects the transformation strategy.
type Type int

const (
	TypeBar Type = iota
	TypeLine
	TypePie
	TypeScatter
	TypeThreeD
)

var typeTags = map[Type]string{
	TypeBar:     "bar",
	TypeLine:    "line",
	TypePie:     "pie",
	TypeScatter: "scatter",
	TypeThreeD:  "3d",
}

func (t Type) String() string {
	if s, ok := typeTags[t]; ok {
		return s
	}
	return "bar"
}

// ParseType maps a chart type tag to its strategy. Unrecognized tags fall
// back to TypeBar and report false.
func ParseType(tag string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "bar":
		return TypeBar, true
	case "line":
		return TypeLine, true
	case "pie":
		return TypePie, true
	case "scatter":
		return TypeScatter, true
	case "3d":
		return TypeThreeD, true
	}
	return TypeBar, false
}

// Aggregation reduces the values that share a group key.
type Aggregation string

const (
	AggSum     Aggregation = "sum"
	AggAverage Aggregation = "average"
	AggCount   Aggregation = "count"
)

// Resolve returns the aggregation to apply; unknown or empty means sum.
func (a Aggregation) Resolve() Aggregation {
	switch a {
	case AggAverage, AggCount:
		return a
	default:
		return AggSum
	}
}

// Operator compares a cell against a filter value.
type Operator string

const (
	OpEquals   Operator = "equals"
	OpContains Operator = "contains"
	OpGreater  Operator = "greater"
	OpLess     Operator = "less"
)

// Filter keeps rows whose Column cell satisfies Operator against Value.
type Filter struct {
	Column   string          `json:"column"`
	Operator Operator        `json:"operator"`
	Value    sheet.CellValue `json:"value"`
}

// Specification describes how to turn one sheet's rows into chart data.
// It holds instructions only, never data.
type Specification struct {
	Sheet       string      `json:"sheet"`
	ChartType   string      `json:"chartType"`
	XAxis       string      `json:"xAxis"`
	YAxis       string      `json:"yAxis"`
	ZAxis       string      `json:"zAxis,omitempty"`
	Aggregation Aggregation `json:"aggregation,omitempty"`
	Filters     []Filter    `json:"filters,omitempty"`
	Title       string      `json:"title,omitempty"`
}

// Type resolves ChartType to a strategy.
func (s Specification) Type() Type {
	t, _ := ParseType(s.ChartType)
	return t
}

// tag is the chart type reported back to callers: the requested tag, or the
// resolved strategy's name when none was given.
func (s Specification) tag() string {
	if strings.TrimSpace(s.ChartType) == "" {
		return s.Type().String()
	}
	return s.ChartType
}

// Normalize fills the aggregation and title defaults.
func (s Specification) Normalize() Specification {
	s.Aggregation = s.Aggregation.Resolve()
	if s.Type() != TypeThreeD {
		s.ZAxis = ""
	}
	if strings.TrimSpace(s.Title) == "" {
		s.Title = fmt.Sprintf("%s chart of %s vs %s", s.tag(), s.XAxis, s.YAxis)
	}
	return s
}

// Axes lists the axis columns the chart reads.
func (s Specification) Axes() []string {
	axes := []string{s.XAxis, s.YAxis}
	if s.Type() == TypeThreeD {
		axes = append(axes, s.ZAxis)
	}
	return axes
}

// checkRequired verifies the required axis fields are set.
func (s Specification) checkRequired() error {
	if s.XAxis == "" || s.YAxis == "" {
		return &TransformError{Kind: KindInvalidSpec, Sheet: s.Sheet, Err: fmt.Errorf("xAxis and yAxis are required")}
	}
	if s.Type() == TypeThreeD && s.ZAxis == "" {
		return &TransformError{Kind: KindInvalidSpec, Sheet: s.Sheet, Err: fmt.Errorf("zAxis is required for 3d charts")}
	}
	return nil
}

// Validate checks the specification against a sheet header. Axis names refer
// to record keys, so duplicate or blank headers are matched by their
// generated names. Filter columns are not checked.
func (s Specification) Validate(columns []string) error {
	if err := s.checkRequired(); err != nil {
		return err
	}
	known := make(map[string]bool, len(columns))
	for _, k := range sheet.RecordKeys(columns) {
		known[k] = true
	}
	for _, axis := range s.Axes() {
		if !known[axis] {
			return &TransformError{Kind: KindColumnNotFound, Sheet: s.Sheet, Column: axis}
		}
	}
	return nil
}

// Config is the resolved configuration echoed with every result and stored
// with saved charts.
type Config struct {
	Sheet       string      `json:"sheet"`
	XAxis       string      `json:"xAxis"`
	YAxis       string      `json:"yAxis"`
	ZAxis       string      `json:"zAxis,omitempty"`
	Aggregation Aggregation `json:"aggregation"`
	Filters     []Filter    `json:"filters"`
}

func (s Specification) config() Config {
	filters := s.Filters
	if filters == nil {
		filters = []Filter{}
	}
	return Config{
		Sheet:       s.Sheet,
		XAxis:       s.XAxis,
		YAxis:       s.YAxis,
		ZAxis:       s.ZAxis,
		Aggregation: s.Aggregation,
		Filters:     filters,
	}
}
