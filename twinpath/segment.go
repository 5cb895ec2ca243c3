package twinpath

import (
	"errors"
	"fmt"
	"strings"
)

// SegmentKind tags the variant held by a Segment.
type SegmentKind int

const (
	// KindFeature addresses a single feature of a twin by its identifier. It is
	// serialised as two path elements: "features/{featureId}".
	KindFeature SegmentKind = iota + 1
	// KindProperties is the desired-versus-actual marker. It is serialised as
	// either "properties" or "desiredProperties".
	KindProperties
	// KindAttributes addresses the thing-level attributes of a twin.
	KindAttributes
	// KindCategory names a property category (WoT "ditto:category").
	KindCategory
	// KindProperty names a property (or attribute) identifier.
	KindProperty
	// KindLiteral is a free-form element of a trailing sub-path.
	KindLiteral
)

func (k SegmentKind) String() string {
	switch k {
	case KindFeature:
		return "feature"
	case KindProperties:
		return "properties"
	case KindAttributes:
		return "attributes"
	case KindCategory:
		return "category"
	case KindProperty:
		return "property"
	case KindLiteral:
		return "literal"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// Reserved path tokens of the twin addressing grammar.
const (
	featuresToken          = "features"
	attributesToken        = "attributes"
	propertiesToken        = "properties"
	desiredPropertiesToken = "desiredProperties"
)

// reserved reports whether s collides with a marker token and therefore cannot
// start an absolute path as a free-form name.
func reserved(s string) bool {
	switch s {
	case featuresToken, attributesToken, propertiesToken, desiredPropertiesToken:
		return true
	}
	return false
}

// A Segment is one immutable element of a Path. Construct segments with
// Feature, Properties, Attributes, Category, Property and Literal; the zero
// Segment is invalid.
type Segment struct {
	kind    SegmentKind
	text    string
	desired bool
}

// Feature returns a segment addressing the feature with the given identifier.
func Feature(id string) Segment { return Segment{kind: KindFeature, text: id} }

// Properties returns the desired-versus-actual marker segment.
func Properties(desired bool) Segment { return Segment{kind: KindProperties, desired: desired} }

// Attributes returns the thing-level attributes marker segment.
func Attributes() Segment { return Segment{kind: KindAttributes} }

// Category returns a segment naming a property category.
func Category(name string) Segment { return Segment{kind: KindCategory, text: name} }

// Property returns a segment naming a property identifier.
func Property(id string) Segment { return Segment{kind: KindProperty, text: id} }

// Literal returns a sub-path segment.
func Literal(text string) Segment { return Segment{kind: KindLiteral, text: text} }

func (s Segment) Kind() SegmentKind { return s.kind }

// Text returns the identifier carried by the segment; marker segments carry
// none.
func (s Segment) Text() string { return s.text }

// Desired reports whether a KindProperties segment marks the desired state.
func (s Segment) Desired() bool { return s.desired }

func (s Segment) String() string {
	switch s.kind {
	case KindFeature:
		return featuresToken + "/" + s.text
	case KindProperties:
		if s.desired {
			return desiredPropertiesToken
		}
		return propertiesToken
	case KindAttributes:
		return attributesToken
	default:
		return s.text
	}
}

// ErrInvalidSegment is returned when a segment carries an empty identifier, an
// identifier containing a slash, or an unknown kind.
var ErrInvalidSegment = errors.New("invalid path segment")

func (s Segment) validate() error {
	switch s.kind {
	case KindProperties, KindAttributes:
		return nil
	case KindFeature, KindCategory, KindProperty, KindLiteral:
		if s.text == "" {
			return fmt.Errorf("%w: empty %v", ErrInvalidSegment, s.kind)
		}
		if strings.Contains(s.text, "/") {
			return fmt.Errorf("%w: %v %q contains a slash", ErrInvalidSegment, s.kind, s.text)
		}
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSegment, s.kind)
	}
}
