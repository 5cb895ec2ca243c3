package typeresolve

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-digitaltwin/go-thingmodel"
)

// Match returns the first case whose every declared field equals the observed
// value under the same key. Numbers compare by value regardless of their Go
// type; observed keys a case does not declare are ignored. A value set no case
// satisfies is not an error: enumerations may be open.
func (d *Descriptor) Match(observed map[string]any) (EnumCase, bool) {
	for _, c := range d.Cases {
		if c.matches(observed) {
			return c, true
		}
	}
	return EnumCase{}, false
}

// MatchValue is Match for primitive enumerations.
func (d *Descriptor) MatchValue(v any) (EnumCase, bool) {
	return d.Match(map[string]any{ValueKey: v})
}

func (c EnumCase) matches(observed map[string]any) bool {
	if len(c.Fields) == 0 {
		return len(observed) == 0
	}
	for key, want := range c.Fields {
		got, ok := observed[key]
		if !ok || !reflect.DeepEqual(normalize(want), normalize(got)) {
			return false
		}
	}
	return true
}

// normalize converts numbers to float64, recursively, so that values decoded
// from JSON compare equal to Go literals.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

type enumValue struct {
	title string
	value any
}

// enumValues returns the values of an enumerated schema: its "enum" values,
// or the constants of its "oneOf" alternatives when every alternative has one.
func enumValues(s *thingmodel.DataSchema) []enumValue {
	if len(s.Enum) > 0 {
		values := make([]enumValue, len(s.Enum))
		for i, v := range s.Enum {
			values[i] = enumValue{value: v}
		}
		return values
	}
	if len(s.OneOf) == 0 {
		return nil
	}
	values := make([]enumValue, 0, len(s.OneOf))
	for _, alt := range s.OneOf {
		if alt == nil || alt.Const == nil {
			return nil
		}
		values = append(values, enumValue{title: alt.Title, value: alt.Const})
	}
	return values
}

// enumCases builds the cases of an enumerated schema together with the
// primitive type of its values.
func enumCases(s *thingmodel.DataSchema, values []enumValue) ([]EnumCase, Primitive, error) {
	base, err := enumBase(s, values)
	if err != nil {
		return nil, 0, err
	}

	cases := make([]EnumCase, 0, len(values))
	taken := make(map[string]bool)
	for i, v := range values {
		name := identifier(v.title)
		if name == "" {
			name = caseName(v.value, i)
		}
		name = uniqueName(name, taken)
		taken[name] = true

		c := EnumCase{Name: name, Title: v.title}
		if obj, ok := v.value.(map[string]any); ok {
			c.Fields = obj
		} else {
			c.Fields = map[string]any{ValueKey: v.value}
		}
		cases = append(cases, c)
	}
	return cases, base, nil
}

// enumBase returns the common primitive of the non-null values, failing on
// values of mixed kinds. Integers are numbers; declared integer enumerations
// stay integer. Enumerations of null alone have the null base.
func enumBase(s *thingmodel.DataSchema, values []enumValue) (Primitive, error) {
	base := PrimitiveNull
	for _, v := range values {
		p := primitiveOfValue(v.value)
		switch {
		case p == PrimitiveNull:
			// Null makes an enumeration nullable without changing its base.
		case base == PrimitiveNull:
			base = p
		case p != base:
			return 0, fmt.Errorf("%w: %v and %v", ErrMixedEnum, base, p)
		}
	}
	if base == PrimitiveNumber && s.Type == thingmodel.KindInteger {
		base = PrimitiveInteger
	}
	return base, nil
}

func primitiveOfValue(v any) Primitive {
	switch normalize(v).(type) {
	case string:
		return PrimitiveString
	case float64:
		return PrimitiveNumber
	case bool:
		return PrimitiveBoolean
	case nil:
		return PrimitiveNull
	default:
		return PrimitiveAny
	}
}

// caseName derives a case name from a case value.
func caseName(v any, index int) string {
	switch x := normalize(v).(type) {
	case string:
		if name := identifier(x); name != "" {
			return name
		}
	case float64:
		text := strconv.FormatFloat(math.Abs(x), 'f', -1, 64)
		text = strings.ReplaceAll(text, ".", "_")
		if x < 0 {
			return "Minus" + text
		}
		return "Value" + text
	case bool:
		if x {
			return "True"
		}
		return "False"
	case nil:
		return "Null"
	}
	return "Case" + strconv.Itoa(index+1)
}
