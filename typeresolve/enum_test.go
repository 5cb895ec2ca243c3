package typeresolve

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-digitaltwin/go-thingmodel"
	"github.com/google/go-cmp/cmp"
)

func TestEnumCases(t *testing.T) {
	tests := []struct {
		Name   string
		Schema string
		Names  []string
		Base   Primitive
	}{
		{
			Name:   "Strings",
			Schema: `{"type": "string", "enum": ["eco", "boost-mode", "eco!", "", "3d"]}`,
			Names:  []string{"Eco", "BoostMode", "Eco2", "Case4", "V3d"},
			Base:   PrimitiveString,
		},
		{
			Name:   "Integers",
			Schema: `{"type": "integer", "enum": [0, 1, -2]}`,
			Names:  []string{"Value0", "Value1", "Minus2"},
			Base:   PrimitiveInteger,
		},
		{
			Name:   "Numbers",
			Schema: `{"enum": [0.5, 1]}`,
			Names:  []string{"Value0_5", "Value1"},
			Base:   PrimitiveNumber,
		},
		{
			Name:   "Nullable",
			Schema: `{"type": "integer", "enum": [null, 1, 2]}`,
			Names:  []string{"Null", "Value1", "Value2"},
			Base:   PrimitiveInteger,
		},
		{
			Name:   "NullOnly",
			Schema: `{"enum": [null]}`,
			Names:  []string{"Null"},
			Base:   PrimitiveNull,
		},
		{
			Name:   "LabelledConstants",
			Schema: `{"oneOf": [{"title": "off", "const": 0}, {"title": "on", "const": 1}, {"const": 2}]}`,
			Names:  []string{"Off", "On", "Value2"},
			Base:   PrimitiveNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			var s thingmodel.DataSchema
			if err := json.Unmarshal([]byte(tt.Schema), &s); err != nil {
				t.Fatal(err)
			}
			cases, base, err := enumCases(&s, enumValues(&s))
			if err != nil {
				t.Fatal(err)
			}
			var names []string
			for _, c := range cases {
				names = append(names, c.Name)
			}
			if diff := cmp.Diff(tt.Names, names); diff != "" {
				t.Errorf("case names mismatch (-want +got):\n%s", diff)
			}
			if base != tt.Base {
				t.Errorf("base = %v, want %v", base, tt.Base)
			}
		})
	}
}

func TestEnumCases_Mixed(t *testing.T) {
	s := &thingmodel.DataSchema{Enum: []any{"a", nil, 1.0}}
	if _, _, err := enumCases(s, enumValues(s)); !errors.Is(err, ErrMixedEnum) {
		t.Errorf("enumCases() error = %v, want %v", err, ErrMixedEnum)
	}
}

func TestEnumValues_NotAnEnum(t *testing.T) {
	// A oneOf is an enumeration only if every alternative is a constant.
	s := &thingmodel.DataSchema{OneOf: []*thingmodel.DataSchema{{Const: "a"}, {Type: thingmodel.KindString}}}
	if values := enumValues(s); values != nil {
		t.Errorf("enumValues() = %v, want none", values)
	}
}

func TestDescriptor_Match(t *testing.T) {
	d := &Descriptor{
		Kind: KindEnum,
		Cases: []EnumCase{
			{Name: "Red", Fields: map[string]any{"r": 255.0, "g": 0.0, "b": 0.0}},
			{Name: "Yellow", Fields: map[string]any{"r": 255.0, "g": 255.0, "b": 0.0}},
		},
	}

	tests := []struct {
		Name     string
		Observed map[string]any
		Want     string
		OK       bool
	}{
		{"Exact", map[string]any{"r": 255.0, "g": 255.0, "b": 0.0}, "Yellow", true},
		{"IntegersCompareNumerically", map[string]any{"r": 255, "g": int64(0), "b": json.Number("0")}, "Red", true},
		{"ExtraKeysIgnored", map[string]any{"r": 255, "g": 0, "b": 0, "alpha": 1}, "Red", true},
		{"PartialMatchIsNoMatch", map[string]any{"r": 255, "g": 0}, "", false},
		{"DifferentValue", map[string]any{"r": 255, "g": 128, "b": 0}, "", false},
		{"Empty", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			c, ok := d.Match(tt.Observed)
			if ok != tt.OK || c.Name != tt.Want {
				t.Errorf("Match(%v) = %q, %v; want %q, %v", tt.Observed, c.Name, ok, tt.Want, tt.OK)
			}
		})
	}
}

func TestDescriptor_MatchValue(t *testing.T) {
	var s thingmodel.DataSchema
	if err := json.Unmarshal([]byte(`{"type": "integer", "enum": [1, 2, 3]}`), &s); err != nil {
		t.Fatal(err)
	}
	cases, base, err := enumCases(&s, enumValues(&s))
	if err != nil {
		t.Fatal(err)
	}
	d := &Descriptor{Kind: KindEnum, Cases: cases, Base: base}

	if c, ok := d.MatchValue(2); !ok || c.Name != "Value2" {
		t.Errorf("MatchValue(2) = %q, %v", c.Name, ok)
	}
	if _, ok := d.MatchValue("2"); ok {
		t.Error("MatchValue matched a string against a number")
	}
	if _, ok := d.MatchValue(4); ok {
		t.Error("MatchValue matched a value outside the enumeration")
	}
}
