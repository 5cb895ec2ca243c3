package typeresolve

import (
	"fmt"

	"github.com/go-digitaltwin/go-thingmodel"
)

// Primitive is a type that maps directly to a fixed representation and never
// needs a declaration.
type Primitive int

const (
	PrimitiveAny Primitive = iota
	PrimitiveString
	PrimitiveNumber
	PrimitiveInteger
	PrimitiveBoolean
	PrimitiveNull
)

func (p Primitive) String() string {
	switch p {
	case PrimitiveAny:
		return "any"
	case PrimitiveString:
		return "string"
	case PrimitiveNumber:
		return "number"
	case PrimitiveInteger:
		return "integer"
	case PrimitiveBoolean:
		return "boolean"
	case PrimitiveNull:
		return "null"
	default:
		return fmt.Sprintf("Primitive(%d)", int(p))
	}
}

// A TypeRef is the type of a schema node: a primitive, an array of some
// element type, or a named type declared in the Registry. Exactly one of
// Elem and Named is set for arrays and named types respectively.
type TypeRef struct {
	Primitive Primitive
	Elem      *TypeRef
	Named     *Descriptor
}

func (t TypeRef) String() string {
	switch {
	case t.Named != nil:
		return t.Named.QualifiedName()
	case t.Elem != nil:
		return "[]" + t.Elem.String()
	default:
		return t.Primitive.String()
	}
}

// DescriptorKind distinguishes the named types.
type DescriptorKind int

const (
	KindObject DescriptorKind = iota + 1
	KindEnum
)

func (k DescriptorKind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("DescriptorKind(%d)", int(k))
	}
}

// A Descriptor is the canonical identity of a named type within one run.
type Descriptor struct {
	Name string
	// Scope is the qualified name of the declaring context; it is empty for
	// types declared in the shared top-level namespace.
	Scope string
	Kind  DescriptorKind
	Shape ShapeHash

	// Fields of an object, in lexical order.
	Fields []Field
	// Cases of an enum, in declaration order, and the primitive type of their
	// values (PrimitiveAny for object-valued cases).
	Cases []EnumCase
	Base  Primitive

	// Schema is the first schema the descriptor was declared for.
	Schema *thingmodel.DataSchema
}

// QualifiedName returns the name prefixed with the declaring scope.
func (d *Descriptor) QualifiedName() string {
	if d.Scope == "" {
		return d.Name
	}
	return d.Scope + "." + d.Name
}

// A Field is a property of an object type.
type Field struct {
	Name     string
	Type     TypeRef
	Required bool
	ReadOnly bool
}

// ValueKey is the field under which the cases of primitive enumerations hold
// their value.
const ValueKey = "value"

// An EnumCase is a symbolic case of an enumeration. Fields is the explicit
// mapping from observed keys to the values the case requires: the single
// ValueKey for primitive enumerations, or the members of an object-valued
// constant.
type EnumCase struct {
	Name   string
	Title  string
	Fields map[string]any
}
