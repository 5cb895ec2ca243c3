package twinpath

import "fmt"

// Shape identifies which concrete path grammar a Path follows. Every Path has
// exactly one shape, and every shape has exactly one canonical serialisation.
type Shape int

const (
	ShapeInvalid Shape = iota
	// ShapeCategory is "/{category}".
	ShapeCategory
	// ShapeCategoryProperty is "/{category}/{propertyId}[/{subpath...}]".
	ShapeCategoryProperty
	// ShapeProperty is the relative suffix "{propertyId}[/{subpath...}]".
	ShapeProperty
	// ShapeAttributes is "/attributes".
	ShapeAttributes
	// ShapeAttributesCategory is "/attributes/{category}".
	ShapeAttributesCategory
	// ShapeAttributeLeaf is "/attributes/{category}/{propertyId}[/{subpath...}]".
	ShapeAttributeLeaf
	// ShapeProperties is "/properties" or "/desiredProperties".
	ShapeProperties
	// ShapePropertiesCategory is "/[desiredP|p]roperties/{category}".
	ShapePropertiesCategory
	// ShapePropertiesLeaf is "/[desiredP|p]roperties/{category}/{propertyId}[/{subpath...}]".
	ShapePropertiesLeaf
	// ShapeFeature is "/features/{featureId}".
	ShapeFeature
	// ShapeFeatureProperties is "/features/{featureId}/[desiredP|p]roperties".
	ShapeFeatureProperties
	// ShapeFeaturePropertiesCategory is "/features/{featureId}/[desiredP|p]roperties/{category}".
	ShapeFeaturePropertiesCategory
	// ShapeFeaturePropertiesLeaf is
	// "/features/{featureId}/[desiredP|p]roperties/{category}/{propertyId}[/{subpath...}]".
	ShapeFeaturePropertiesLeaf
)

var shapeNames = [...]string{
	ShapeInvalid:                   "invalid",
	ShapeCategory:                  "category",
	ShapeCategoryProperty:          "category-property",
	ShapeProperty:                  "property",
	ShapeAttributes:                "attributes",
	ShapeAttributesCategory:        "attributes-category",
	ShapeAttributeLeaf:             "attribute-leaf",
	ShapeProperties:                "properties",
	ShapePropertiesCategory:        "properties-category",
	ShapePropertiesLeaf:            "properties-leaf",
	ShapeFeature:                   "feature",
	ShapeFeatureProperties:         "feature-properties",
	ShapeFeaturePropertiesCategory: "feature-properties-category",
	ShapeFeaturePropertiesLeaf:     "feature-properties-leaf",
}

func (s Shape) String() string {
	if s >= 0 && int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// A grammar describes the leading segment kinds of a shape, and whether the
// shape accepts a trailing sub-path of literal segments.
type grammar struct {
	shape    Shape
	kinds    []SegmentKind
	subpath  bool
	relative bool
}

// absoluteGrammars lists the absolute shapes in parse precedence order, from the
// most specific to the least specific.
var absoluteGrammars = []grammar{
	{shape: ShapeFeaturePropertiesLeaf, kinds: []SegmentKind{KindFeature, KindProperties, KindCategory, KindProperty}, subpath: true},
	{shape: ShapeFeaturePropertiesCategory, kinds: []SegmentKind{KindFeature, KindProperties, KindCategory}},
	{shape: ShapeFeatureProperties, kinds: []SegmentKind{KindFeature, KindProperties}},
	{shape: ShapeFeature, kinds: []SegmentKind{KindFeature}},
	{shape: ShapeAttributeLeaf, kinds: []SegmentKind{KindAttributes, KindCategory, KindProperty}, subpath: true},
	{shape: ShapeAttributesCategory, kinds: []SegmentKind{KindAttributes, KindCategory}},
	{shape: ShapeAttributes, kinds: []SegmentKind{KindAttributes}},
	{shape: ShapePropertiesLeaf, kinds: []SegmentKind{KindProperties, KindCategory, KindProperty}, subpath: true},
	{shape: ShapePropertiesCategory, kinds: []SegmentKind{KindProperties, KindCategory}},
	{shape: ShapeProperties, kinds: []SegmentKind{KindProperties}},
	{shape: ShapeCategoryProperty, kinds: []SegmentKind{KindCategory, KindProperty}, subpath: true},
	{shape: ShapeCategory, kinds: []SegmentKind{KindCategory}},
}

var suffixGrammar = grammar{shape: ShapeProperty, kinds: []SegmentKind{KindProperty}, subpath: true, relative: true}

// match consumes the given path elements according to g. Elements are known to
// be non-empty.
func (g grammar) match(elems []string) ([]Segment, bool) {
	segs := make([]Segment, 0, len(elems))
	i := 0
	for _, kind := range g.kinds {
		if i >= len(elems) {
			return nil, false
		}
		switch kind {
		case KindFeature:
			if elems[i] != featuresToken || i+1 >= len(elems) {
				return nil, false
			}
			segs = append(segs, Feature(elems[i+1]))
			i += 2
		case KindProperties:
			switch elems[i] {
			case propertiesToken:
				segs = append(segs, Properties(false))
			case desiredPropertiesToken:
				segs = append(segs, Properties(true))
			default:
				return nil, false
			}
			i++
		case KindAttributes:
			if elems[i] != attributesToken {
				return nil, false
			}
			segs = append(segs, Attributes())
			i++
		case KindCategory:
			if i == 0 && !g.relative && reserved(elems[i]) {
				return nil, false
			}
			segs = append(segs, Category(elems[i]))
			i++
		case KindProperty:
			segs = append(segs, Property(elems[i]))
			i++
		default:
			return nil, false
		}
	}
	if i < len(elems) {
		if !g.subpath {
			return nil, false
		}
		for _, e := range elems[i:] {
			segs = append(segs, Literal(e))
		}
	}
	return segs, true
}

// accepts reports whether the already-validated segments follow g.
func (g grammar) accepts(segs []Segment) bool {
	if len(segs) < len(g.kinds) {
		return false
	}
	for i, kind := range g.kinds {
		if segs[i].kind != kind {
			return false
		}
	}
	if g.kinds[0] == KindCategory && !g.relative && reserved(segs[0].text) {
		return false
	}
	rest := segs[len(g.kinds):]
	if len(rest) > 0 && !g.subpath {
		return false
	}
	for _, s := range rest {
		if s.kind != KindLiteral {
			return false
		}
	}
	return true
}

// compositions is the closed table of legal (prefix, suffix) shape pairs.
var compositions = map[[2]Shape]Shape{
	{ShapeCategory, ShapeProperty}:                  ShapeCategoryProperty,
	{ShapeAttributes, ShapeCategory}:                ShapeAttributesCategory,
	{ShapeAttributes, ShapeCategoryProperty}:        ShapeAttributeLeaf,
	{ShapeAttributesCategory, ShapeProperty}:        ShapeAttributeLeaf,
	{ShapeProperties, ShapeCategory}:                ShapePropertiesCategory,
	{ShapeProperties, ShapeCategoryProperty}:        ShapePropertiesLeaf,
	{ShapePropertiesCategory, ShapeProperty}:        ShapePropertiesLeaf,
	{ShapeFeature, ShapeProperties}:                 ShapeFeatureProperties,
	{ShapeFeature, ShapePropertiesCategory}:         ShapeFeaturePropertiesCategory,
	{ShapeFeature, ShapePropertiesLeaf}:             ShapeFeaturePropertiesLeaf,
	{ShapeFeatureProperties, ShapeCategory}:         ShapeFeaturePropertiesCategory,
	{ShapeFeatureProperties, ShapeCategoryProperty}: ShapeFeaturePropertiesLeaf,
	{ShapeFeaturePropertiesCategory, ShapeProperty}: ShapeFeaturePropertiesLeaf,
}
