package twinpath

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// A Path addresses a sub-resource of a digital twin. It is an immutable,
// ordered sequence of segments that follows exactly one Shape.
//
// The zero Path is invalid; obtain paths from Parse, ParseSuffix, New or
// Compose. Paths are safe for concurrent use.
type Path struct {
	shape Shape
	segs  []Segment
}

var (
	// ErrUnknownShape is returned by New when the given segments do not follow
	// any shape of the addressing grammar.
	ErrUnknownShape = errors.New("segments do not form a known path shape")
	// ErrIncompatibleShapes is returned by Compose for any pair of shapes outside
	// the composition table.
	ErrIncompatibleShapes = errors.New("incompatible path shapes")
)

// New returns the Path formed by the given segments, validating them against
// the shape table.
func New(segments ...Segment) (Path, error) {
	for _, s := range segments {
		if err := s.validate(); err != nil {
			return Path{}, err
		}
	}
	if len(segments) == 0 {
		return Path{}, fmt.Errorf("%w: no segments", ErrUnknownShape)
	}
	for _, g := range absoluteGrammars {
		if g.accepts(segments) {
			return Path{shape: g.shape, segs: slices.Clone(segments)}, nil
		}
	}
	if suffixGrammar.accepts(segments) {
		return Path{shape: ShapeProperty, segs: slices.Clone(segments)}, nil
	}

	kinds := make([]string, len(segments))
	for i, s := range segments {
		kinds[i] = s.kind.String()
	}
	return Path{}, fmt.Errorf("%w: [%s]", ErrUnknownShape, strings.Join(kinds, " "))
}

// MustNew is like New but panics if the segments do not form a valid path. It
// simplifies the construction of constant paths.
func MustNew(segments ...Segment) Path {
	p, err := New(segments...)
	if err != nil {
		panic("twinpath: " + err.Error())
	}
	return p
}

// Parse parses an absolute path. It returns ok == false, and never panics, for
// any text that does not match one of the absolute shapes: text without a
// leading slash, empty elements (including a trailing slash), unknown marker
// tokens, or a reserved token where a free-form name is expected.
//
// Shapes are attempted from the most specific to the least specific, so text
// matching several grammars resolves deterministically. Elements following a
// matched shape form the literal sub-path.
func Parse(text string) (p Path, ok bool) {
	elems := strings.Split(text, "/")
	if len(elems) < 2 || elems[0] != "" {
		return Path{}, false
	}
	return parseElements(elems[1:], absoluteGrammars...)
}

// ParseSuffix parses the relative "{propertyId}[/{subpath...}]" grammar used as
// the suffix operand of Compose.
func ParseSuffix(text string) (p Path, ok bool) {
	if text == "" {
		return Path{}, false
	}
	return parseElements(strings.Split(text, "/"), suffixGrammar)
}

func parseElements(elems []string, grammars ...grammar) (Path, bool) {
	for _, e := range elems {
		if e == "" {
			return Path{}, false
		}
	}
	for _, g := range grammars {
		if segs, ok := g.match(elems); ok {
			return Path{shape: g.shape, segs: segs}, true
		}
	}
	return Path{}, false
}

// Compose combines a coarser prefix with a finer suffix into a more specific
// path, e.g. "/status" with "speed" into "/status/speed".
//
// Composition is defined only for the closed table of shape pairs documented in
// this package; any other pair is rejected with ErrIncompatibleShapes. The
// desired-versus-actual marker is preserved from whichever operand carries it.
func Compose(prefix, suffix Path) (Path, error) {
	shape, ok := compositions[[2]Shape{prefix.shape, suffix.shape}]
	if !ok {
		return Path{}, fmt.Errorf("%w: %v with %v", ErrIncompatibleShapes, prefix.shape, suffix.shape)
	}
	segs := make([]Segment, 0, len(prefix.segs)+len(suffix.segs))
	segs = append(segs, prefix.segs...)
	segs = append(segs, suffix.segs...)
	return Path{shape: shape, segs: segs}, nil
}

// MustCompose is like Compose but panics on an incompatible pair of shapes,
// which is always a programming error.
func MustCompose(prefix, suffix Path) Path {
	p, err := Compose(prefix, suffix)
	if err != nil {
		panic("twinpath: " + err.Error())
	}
	return p
}

func (p Path) Shape() Shape { return p.shape }

// IsZero reports whether p is the zero (invalid) Path.
func (p Path) IsZero() bool { return p.shape == ShapeInvalid }

// Segments returns a copy of the path's segments.
func (p Path) Segments() []Segment { return slices.Clone(p.segs) }

// Feature returns the feature identifier addressed by p, if any.
func (p Path) Feature() (string, bool) { return p.text(KindFeature) }

// Category returns the property category addressed by p, if any.
func (p Path) Category() (string, bool) { return p.text(KindCategory) }

// Property returns the property identifier addressed by p, if any.
func (p Path) Property() (string, bool) { return p.text(KindProperty) }

// Desired reports whether p addresses the desired (rather than the actual)
// properties. Paths without the marker are never desired.
func (p Path) Desired() bool {
	for _, s := range p.segs {
		if s.kind == KindProperties {
			return s.desired
		}
	}
	return false
}

// Subpath returns the literal elements trailing the property identifier.
func (p Path) Subpath() []string {
	var sub []string
	for _, s := range p.segs {
		if s.kind == KindLiteral {
			sub = append(sub, s.text)
		}
	}
	return sub
}

func (p Path) text(kind SegmentKind) (string, bool) {
	for _, s := range p.segs {
		if s.kind == kind {
			return s.text, true
		}
	}
	return "", false
}

// Equal reports whether p and q have the same shape and segments.
func (p Path) Equal(q Path) bool {
	return p.shape == q.shape && slices.Equal(p.segs, q.segs)
}

// String returns the canonical serialisation of p; the zero Path serialises to
// the empty string.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p.segs {
		if i > 0 || p.shape != ShapeProperty {
			b.WriteByte('/')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

func (p Path) MarshalText() ([]byte, error) {
	if p.IsZero() {
		return nil, errors.New("twinpath: marshal zero path")
	}
	return []byte(p.String()), nil
}

func (p *Path) UnmarshalText(text []byte) error {
	s := string(text)
	if parsed, ok := Parse(s); ok {
		*p = parsed
		return nil
	}
	if parsed, ok := ParseSuffix(s); ok {
		*p = parsed
		return nil
	}
	return fmt.Errorf("twinpath: unknown path %q", s)
}
