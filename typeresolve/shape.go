package typeresolve

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"maps"
	"slices"

	"github.com/go-digitaltwin/go-thingmodel"
)

// A ShapeHash is a consistent hash over the structure of a schema: its kind,
// its enumerated values, its properties (by name, with their own shapes and
// titles), its required properties and its items. Two schemas with the same
// ShapeHash declare the same type, up to the name of the type itself.
//
// Descriptions, units, bounds and other annotations never change a schema's
// shape.
type ShapeHash [sha1.Size]byte

// ShapeOf computes the ShapeHash of the given schema. The root title is not
// part of the shape; nested titles are, because they name nested types.
func ShapeOf(s *thingmodel.DataSchema) ShapeHash {
	h := sha1.New()
	digestSchema(h, s, true)
	return ShapeHash(h.Sum(nil))
}

func digestSchema(h hash.Hash, s *thingmodel.DataSchema, root bool) {
	if s == nil {
		writeString(h, "nil")
		return
	}
	writeString(h, string(inferKind(s)))
	if !root {
		writeString(h, s.Title)
	}

	if cases := enumValues(s); len(cases) > 0 {
		writeString(h, "enum")
		for _, c := range cases {
			writeString(h, c.title)
			writeValue(h, c.value)
		}
	} else if len(s.OneOf) > 0 {
		writeString(h, "oneOf")
		writeLen(h, len(s.OneOf))
		for _, alt := range s.OneOf {
			digestSchema(h, alt, false)
		}
	}

	// Sorted names keep the hash independent of the document's key order.
	names := slices.Sorted(maps.Keys(s.Properties))
	writeLen(h, len(names))
	for _, name := range names {
		writeString(h, name)
		digestSchema(h, s.Properties[name], false)
	}

	required := slices.Sorted(slices.Values(s.Required))
	writeLen(h, len(required))
	for _, name := range required {
		writeString(h, name)
	}

	if s.Items != nil {
		writeString(h, "items")
		digestSchema(h, s.Items, false)
	}
}

// writeString writes a length-prefixed string, so that adjacent strings never
// hash the same as their concatenation.
func writeString(h hash.Hash, s string) {
	writeLen(h, len(s))
	h.Write([]byte(s))
}

func writeLen(h hash.Hash, n int) {
	buf := make([]byte, binary.MaxVarintLen64)
	h.Write(buf[:binary.PutUvarint(buf, uint64(n))])
}

// writeValue writes the canonical JSON of v; encoding/json sorts map keys.
func writeValue(h hash.Hash, v any) {
	b, err := json.Marshal(normalize(v))
	if err != nil {
		// Values decoded from JSON always marshal.
		panic(fmt.Sprintf("typeresolve: unhashable enum value %v: %v", v, err))
	}
	writeString(h, string(b))
}

func (h ShapeHash) MarshalText() ([]byte, error) {
	text := make([]byte, hex.EncodedLen(len(h)))
	hex.Encode(text, h[:])
	return text, nil
}

func (h *ShapeHash) UnmarshalText(text []byte) error {
	n, err := hex.Decode(h[:], text)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	if n != len(h) {
		return fmt.Errorf("not enough bytes: %w", io.ErrUnexpectedEOF)
	}
	return nil
}

func (h ShapeHash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the zero value of the type.
func (h ShapeHash) IsZero() bool { return h == ShapeHash{} }
