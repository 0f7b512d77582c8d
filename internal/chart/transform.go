package chart

import (
	"fmt"

	"github.com/KaramelBytes/excelytics/internal/sheet"
)

// MissingLabel is the group label for rows with no x value.
const MissingLabel = "undefined"

// Generate resolves the sheet named by spec inside wb, validates the axes
// against its header and transforms its rows.
func Generate(wb *sheet.Workbook, spec Specification) (*Result, error) {
	spec = spec.Normalize()
	s, ok := wb.Sheet(spec.Sheet)
	if !ok {
		return nil, &TransformError{Kind: KindSheetNotFound, Sheet: spec.Sheet, Err: sheet.ErrSheetNotFound}
	}
	if err := spec.Validate(s.Columns()); err != nil {
		return nil, err
	}
	return Transform(s.Records(), spec)
}

// Transform filters rows and reshapes them for spec's chart type. It does no
// I/O and returns the same result for the same input.
func Transform(rows []sheet.Row, spec Specification) (*Result, error) {
	spec = spec.Normalize()
	if err := spec.checkRequired(); err != nil {
		return nil, err
	}
	kept := Apply(rows, spec.Filters)

	var data Data
	switch spec.Type() {
	case TypeScatter:
		data = scatterPoints(kept, spec)
	case TypeThreeD:
		data = spacePoints(kept, spec)
	case TypePie, TypeBar, TypeLine:
		data = groupAggregate(kept, spec)
	default:
		return nil, &TransformError{Kind: KindInvalidSpec, Sheet: spec.Sheet, Err: fmt.Errorf("unhandled chart type %v", spec.Type())}
	}
	return &Result{Type: spec.tag(), Title: spec.Title, Data: data, Config: spec.config()}, nil
}

// groupAcc accumulates one group. Count is rows in the group, including rows
// whose value did not coerce to a number.
type groupAcc struct {
	sum   float64
	count int
}

func groupAggregate(rows []sheet.Row, spec Specification) Categorical {
	out := Categorical{Labels: []string{}, Values: []float64{}}
	groups := make(map[string]*groupAcc)
	for _, r := range rows {
		key := label(r, spec.XAxis)
		g, ok := groups[key]
		if !ok {
			g = &groupAcc{}
			groups[key] = g
			out.Labels = append(out.Labels, key)
		}
		g.count++
		g.sum += r[spec.YAxis].NumberOrZero()
	}
	agg := spec.Aggregation.Resolve()
	for _, key := range out.Labels {
		g := groups[key]
		switch agg {
		case AggCount:
			out.Values = append(out.Values, float64(g.count))
		case AggAverage:
			out.Values = append(out.Values, g.sum/float64(g.count))
		default:
			out.Values = append(out.Values, g.sum)
		}
	}
	return out
}

func scatterPoints(rows []sheet.Row, spec Specification) Scatter {
	pts := make(Scatter, 0, len(rows))
	for _, r := range rows {
		pts = append(pts, Point{X: r[spec.XAxis].NumberOrZero(), Y: r[spec.YAxis].NumberOrZero()})
	}
	return pts
}

func spacePoints(rows []sheet.Row, spec Specification) Space {
	sp := Space{
		X: make([]float64, 0, len(rows)),
		Y: make([]float64, 0, len(rows)),
		Z: make([]float64, 0, len(rows)),
	}
	for _, r := range rows {
		sp.X = append(sp.X, r[spec.XAxis].NumberOrZero())
		sp.Y = append(sp.Y, r[spec.YAxis].NumberOrZero())
		sp.Z = append(sp.Z, r[spec.ZAxis].NumberOrZero())
	}
	return sp
}

func label(r sheet.Row, column string) string {
	v, ok := r[column]
	if !ok {
		return MissingLabel
	}
	return v.ToText()
}
