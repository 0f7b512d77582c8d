package chart

import (
	"strings"

	"github.com/KaramelBytes/excelytics/internal/sheet"
)

// Match reports whether r passes the filter. Absent cells read as null.
// Unknown operators pass every row.
func (f Filter) Match(r sheet.Row) bool {
	cell, ok := r[f.Column]
	switch f.Operator {
	case OpEquals:
		return ok && cell.Equal(f.Value)
	case OpContains:
		return strings.Contains(cell.ToText(), f.Value.ToText())
	case OpGreater, OpLess:
		a, okA := cell.ToNumber()
		b, okB := f.Value.ToNumber()
		if !okA || !okB {
			return false
		}
		if f.Operator == OpGreater {
			return a > b
		}
		return a < b
	default:
		return true
	}
}

// Apply keeps the rows that pass every filter, preserving order.
func Apply(rows []sheet.Row, filters []Filter) []sheet.Row {
	if len(filters) == 0 {
		return rows
	}
	out := make([]sheet.Row, 0, len(rows))
	for _, r := range rows {
		if matchAll(r, filters) {
			out = append(out, r)
		}
	}
	return out
}

func matchAll(r sheet.Row, filters []Filter) bool {
	for _, f := range filters {
		if !f.Match(r) {
			return false
		}
	}
	return true
}
