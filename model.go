package thingmodel

import (
	"encoding/json"
	"fmt"
)

// Kind is the JSON-Schema type of a DataSchema node. The empty Kind denotes an
// untyped node whose kind is inferred from its structure.
type Kind string

const (
	KindObject  Kind = "object"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindNull    Kind = "null"
)

func (k *Kind) UnmarshalText(text []byte) error {
	switch v := Kind(text); v {
	case KindObject, KindString, KindNumber, KindInteger, KindBoolean, KindArray, KindNull:
		*k = v
		return nil
	default:
		return fmt.Errorf("unknown data schema type %q", text)
	}
}

// A DataSchema is a node of a Thing Model's schema tree. Only the subset of the
// JSON-Schema vocabulary that WoT Thing Models use is understood; other keys are
// ignored on decoding.
type DataSchema struct {
	Type        Kind     `json:"type,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Format      string   `json:"format,omitempty"`
	Enum        []any    `json:"enum,omitempty"`
	Const       any      `json:"const,omitempty"`
	Default     any      `json:"default,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	ReadOnly    bool     `json:"readOnly,omitempty"`
	WriteOnly   bool     `json:"writeOnly,omitempty"`
	Observable  bool     `json:"observable,omitempty"`

	// OneOf lists labelled alternatives. When every alternative carries a Const,
	// the node is an enumeration whose case names are the alternatives' titles.
	OneOf []*DataSchema `json:"oneOf,omitempty"`

	Properties map[string]*DataSchema `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
	Items      *DataSchema            `json:"items,omitempty"`

	// Category groups a property under a twin property category, which becomes
	// the category segment of the property's twin path.
	Category string `json:"ditto:category,omitempty"`
	// Ref points to a definition in this or another Thing Model that this node
	// overlays, e.g. "base.tm.json#/properties/speed".
	Ref string `json:"tm:ref,omitempty"`
}

// An Action is an interaction affordance invoking a function of the thing.
type Action struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Input       *DataSchema `json:"input,omitempty"`
	Output      *DataSchema `json:"output,omitempty"`
	Safe        bool        `json:"safe,omitempty"`
	Idempotent  bool        `json:"idempotent,omitempty"`
	Ref         string      `json:"tm:ref,omitempty"`
}

// An Event is an interaction affordance through which the thing pushes data.
type Event struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Data        *DataSchema `json:"data,omitempty"`
	Ref         string      `json:"tm:ref,omitempty"`
}

// Affordances are the named interaction affordances of a model.
type Affordances struct {
	Properties map[string]*DataSchema `json:"properties,omitempty"`
	Actions    map[string]*Action     `json:"actions,omitempty"`
	Events     map[string]*Event      `json:"events,omitempty"`
}

// Version carries the semantic versions of a model.
type Version struct {
	Model    string `json:"model,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// A ThingModel is a single, unresolved Thing Model document.
type ThingModel struct {
	Context     json.RawMessage `json:"@context,omitempty"`
	Type        json.RawMessage `json:"@type,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Version     Version         `json:"version,omitempty"`
	Links       []Link          `json:"links,omitempty"`
	// Optional lists JSON pointers of affordances an instance may leave out,
	// e.g. "/properties/brightness".
	Optional []string `json:"tm:optional,omitempty"`

	Affordances
}

// Decode parses a raw Thing Model document.
func Decode(data []byte) (*ThingModel, error) {
	var tm ThingModel
	if err := json.Unmarshal(data, &tm); err != nil {
		return nil, fmt.Errorf("decode thing model: %w", err)
	}
	return &tm, nil
}

// A Link is a typed reference from one Thing Model to another resource.
type Link struct {
	Rel  string `json:"rel,omitempty"`
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
	// InstanceName names the feature a submodel is mounted as.
	InstanceName string `json:"instanceName,omitempty"`
}

// Relation classifies the link's relation type.
func (l Link) Relation() LinkRelation { return ClassifyRelation(l.Rel) }

// LinkRelation classifies a link for model composition.
type LinkRelation int

const (
	// RelationUnknown links are ignored by model composition.
	RelationUnknown LinkRelation = iota
	// RelationExtends links name a base model that the linking model inherits
	// from and may override.
	RelationExtends
	// RelationSubmodel links mount another model as a named feature.
	RelationSubmodel
)

// ClassifyRelation matches rel against the fixed link relation vocabulary.
func ClassifyRelation(rel string) LinkRelation {
	switch rel {
	case "tm:extends":
		return RelationExtends
	case "tm:submodel":
		return RelationSubmodel
	default:
		return RelationUnknown
	}
}

func (r LinkRelation) String() string {
	switch r {
	case RelationExtends:
		return "tm:extends"
	case RelationSubmodel:
		return "tm:submodel"
	default:
		return "unknown"
	}
}
