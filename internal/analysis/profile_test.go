package analysis

import (
	"math"
	"testing"

	"github.com/KaramelBytes/excelytics/internal/sheet"
)

func fixture() *sheet.Sheet {
	n, tx, b := sheet.Number, sheet.Text, sheet.Bool
	return &sheet.Sheet{Name: "S", Grid: [][]sheet.CellValue{
		{tx("Region"), tx("Sales"), tx("Active"), tx("Note")},
		{tx("North"), n(10), b(true), tx("a")},
		{tx("South"), n(11), b(false), n(1)},
		{tx("North"), n(9), b(true)},
		{tx("East"), n(10), b(true), tx("a")},
		{tx("North"), n(500), b(false)},
	}}
}

func byName(ps []ColumnProfile) map[string]ColumnProfile {
	m := map[string]ColumnProfile{}
	for _, p := range ps {
		m[p.Name] = p
	}
	return m
}

func TestProfileKindsAndCounts(t *testing.T) {
	ps := byName(Profile(fixture(), DefaultOptions()))
	cases := map[string]struct {
		kind             string
		nonNull, missing int
	}{
		"Region": {KindText, 5, 0},
		"Sales":  {KindNumeric, 5, 0},
		"Active": {KindBoolean, 5, 0},
		"Note":   {KindMixed, 3, 2},
	}
	for name, want := range cases {
		p, ok := ps[name]
		if !ok {
			t.Fatalf("missing profile %q", name)
		}
		if p.Kind != want.kind || p.NonNull != want.nonNull || p.Missing != want.missing {
			t.Errorf("%s: got kind=%s nonNull=%d missing=%d", name, p.Kind, p.NonNull, p.Missing)
		}
	}
}

func TestProfileNumericStats(t *testing.T) {
	p := byName(Profile(fixture(), DefaultOptions()))["Sales"]
	if p.Min == nil || *p.Min != 9 || *p.Max != 500 {
		t.Fatalf("min/max = %v/%v", p.Min, p.Max)
	}
	if math.Abs(*p.Mean-108) > 1e-9 {
		t.Fatalf("mean = %v", *p.Mean)
	}
	if *p.Median != 10 {
		t.Fatalf("median = %v", *p.Median)
	}
	if p.Outliers != 1 {
		t.Fatalf("outliers = %d, want 1", p.Outliers)
	}
	if p.TopValues != nil {
		t.Fatalf("numeric columns carry no top values")
	}
}

func TestProfileTopValuesOrder(t *testing.T) {
	p := byName(Profile(fixture(), Options{TopValues: 2}))["Region"]
	if len(p.TopValues) != 2 {
		t.Fatalf("top = %v", p.TopValues)
	}
	if p.TopValues[0] != (CategoryCount{"North", 3}) || p.TopValues[1] != (CategoryCount{"South", 1}) {
		t.Fatalf("top = %v", p.TopValues)
	}
	if p.Unique != 3 {
		t.Fatalf("unique = %d", p.Unique)
	}
}

func TestProfileEmptySheet(t *testing.T) {
	s := &sheet.Sheet{Name: "E", Grid: [][]sheet.CellValue{{sheet.Text("a")}}}
	ps := Profile(s, DefaultOptions())
	if len(ps) != 1 || ps[0].Kind != KindEmpty || ps[0].Mean != nil {
		t.Fatalf("profiles = %+v", ps)
	}
}
