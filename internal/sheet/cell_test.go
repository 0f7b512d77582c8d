package sheet

import (
	"encoding/json"
	"testing"
)

func TestCellValueCoercion(t *testing.T) {
	tests := []struct {
		name   string
		in     CellValue
		num    float64
		numOK  bool
		asText string
	}{
		{"number", Number(2.5), 2.5, true, "2.5"},
		{"integer number", Number(4), 4, true, "4"},
		{"numeric text", Text(" 12 "), 12, true, " 12 "},
		{"plain text", Text("not-a-number"), 0, false, "not-a-number"},
		{"bool", Bool(true), 0, false, "true"},
		{"null", Null(), 0, false, ""},
		{"nan text", Text("NaN"), 0, false, "NaN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.ToNumber()
			if ok != tt.numOK || got != tt.num {
				t.Fatalf("ToNumber() = %v, %v; want %v, %v", got, ok, tt.num, tt.numOK)
			}
			if s := tt.in.ToText(); s != tt.asText {
				t.Fatalf("ToText() = %q, want %q", s, tt.asText)
			}
		})
	}
	if Text("abc").NumberOrZero() != 0 {
		t.Fatalf("NumberOrZero should map failures to 0")
	}
}

func TestCellValueEqualIsTypeSensitive(t *testing.T) {
	if Number(1).Equal(Text("1")) {
		t.Fatalf("number and text must not compare equal")
	}
	if !Text("a").Equal(Text("a")) || !Number(3).Equal(Number(3)) || !Null().Equal(Null()) {
		t.Fatalf("same-kind values should compare equal")
	}
	if Bool(true).Equal(Bool(false)) {
		t.Fatalf("different booleans compared equal")
	}
}

func TestInferCell(t *testing.T) {
	cases := map[string]CellValue{
		"":      Null(),
		"42":    Number(42),
		"-1.5":  Number(-1.5),
		"TRUE":  Bool(true),
		"false": Bool(false),
		"Alpha": Text("Alpha"),
		"12abc": Text("12abc"),
	}
	for raw, want := range cases {
		if got := InferCell(raw); !got.Equal(want) {
			t.Errorf("InferCell(%q) = %v (%s), want %v (%s)", raw, got, got.Kind(), want, want.Kind())
		}
	}
}

func TestCellValueJSON(t *testing.T) {
	in := []CellValue{Number(1.5), Text("x"), Bool(false), Null()}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `[1.5,"x",false,null]` {
		t.Fatalf("unexpected json: %s", b)
	}
	var out []CellValue
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for i := range in {
		if !in[i].Equal(out[i]) {
			t.Fatalf("value %d: got %v want %v", i, out[i], in[i])
		}
	}
	var bad CellValue
	if err := json.Unmarshal([]byte(`{"a":1}`), &bad); err == nil {
		t.Fatalf("expected error for object cell value")
	}
}
