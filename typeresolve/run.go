package typeresolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/danielorbach/go-component"
	"github.com/go-digitaltwin/go-thingmodel"
	"github.com/go-digitaltwin/go-thingmodel/twinpath"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrMixedEnum is reported for enumerations whose values are of different
// kinds, e.g. strings and numbers.
var ErrMixedEnum = errors.New("enumeration of mixed value kinds")

// ErrUnknownStrategy is returned by Run for strategies other than Inline and
// Separate.
var ErrUnknownStrategy = errors.New("unknown type strategy")

// Result is the outcome of one type resolution run.
type Result struct {
	// Registry holds every named type declared during the run.
	Registry   *Registry
	Properties []ResolvedProperty
	Actions    []ResolvedAction
	Events     []ResolvedEvent
}

// A ResolvedProperty is a property of the thing (Feature is empty) or of one
// of its features.
type ResolvedProperty struct {
	Feature string
	Name    string
	// Path is "/{category}/{name}" for categorized properties, and the relative
	// "{name}" otherwise.
	Path   twinpath.Path
	Type   TypeRef
	Schema *thingmodel.DataSchema
}

// Address returns the absolute twin path of the property. Properties of the
// thing are twin attributes, which have no desired state; properties of a
// feature address either their desired or their actual state. Properties
// without a category have no absolute address.
func (p ResolvedProperty) Address(desired bool) (twinpath.Path, bool) {
	if p.Path.Shape() != twinpath.ShapeCategoryProperty {
		return twinpath.Path{}, false
	}
	if p.Feature == "" {
		return twinpath.MustCompose(twinpath.MustNew(twinpath.Attributes()), p.Path), true
	}
	props := twinpath.MustNew(twinpath.Properties(desired))
	feature := twinpath.MustNew(twinpath.Feature(p.Feature))
	return twinpath.MustCompose(feature, twinpath.MustCompose(props, p.Path)), true
}

// A ResolvedAction holds the types of an action's input and output; either is
// nil when the action declares none.
type ResolvedAction struct {
	Feature       string
	Name          string
	Input, Output *TypeRef
}

// A ResolvedEvent holds the type of an event's data, if any.
type ResolvedEvent struct {
	Feature string
	Name    string
	Data    *TypeRef
}

// Run assigns types to every property, action input and output, and event data
// schema of the model and of its features, declaring named types in a Registry
// created for this run only.
//
// Schemas that enumerate values (with "enum", or "oneOf" constants) and object
// schemas get named types; arrays are arrays of their item type and every
// other schema maps to a primitive. Untyped schemas are classified by their
// structure.
func Run(ctx context.Context, model *thingmodel.Effective, strategy Strategy) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "typeresolve.Run", trace.WithAttributes(
		attribute.String(modelRefKey, model.Ref),
		attribute.String(strategyKey, strategy.String()),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	switch strategy {
	case Inline, Separate:
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownStrategy, strategy)
	}

	logger := component.Logger(ctx).With(slog.String(modelRefKey, model.Ref), slog.Any(strategyKey, strategy))

	w := &walker{registry: NewRegistry(strategy)}
	res = &Result{Registry: w.registry}

	owner := identifier(model.Title)
	if owner == "" {
		owner = "Thing"
	}
	if err := w.affordances(res, "", owner, model.Affordances); err != nil {
		return nil, err
	}
	for _, name := range model.FeatureNames() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		featureOwner := identifier(name)
		if featureOwner == "" {
			featureOwner = "Feature"
		}
		if err := w.affordances(res, name, featureOwner, model.Features[name].Affordances); err != nil {
			return nil, fmt.Errorf("feature %s: %w", name, err)
		}
	}

	decls := len(w.registry.decls)
	declaredTypes.Record(ctx, int64(decls), metric.WithAttributeSet(attribute.NewSet(
		attribute.String(strategyKey, strategy.String()),
	)))
	logger.Debug("Resolved types",
		slog.Int("declarations", decls),
		slog.Int("properties", len(res.Properties)),
	)
	return res, nil
}

type walker struct {
	registry *Registry
}

func (w *walker) affordances(res *Result, feature, owner string, a thingmodel.Affordances) error {
	for _, name := range a.PropertyNames() {
		s := a.Properties[name]
		t, err := w.typeOf(owner+"."+name, identifier(name), s)
		if err != nil {
			return fmt.Errorf("property %s: %w", name, err)
		}
		res.Properties = append(res.Properties, ResolvedProperty{
			Feature: feature,
			Name:    name,
			Path:    propertyPath(name, s),
			Type:    t,
			Schema:  s,
		})
	}

	for _, name := range a.ActionNames() {
		act := a.Actions[name]
		ra := ResolvedAction{Feature: feature, Name: name}
		if act != nil && act.Input != nil {
			t, err := w.typeOf(owner+"."+name, identifier(name)+"Input", act.Input)
			if err != nil {
				return fmt.Errorf("action %s input: %w", name, err)
			}
			ra.Input = &t
		}
		if act != nil && act.Output != nil {
			t, err := w.typeOf(owner+"."+name, identifier(name)+"Output", act.Output)
			if err != nil {
				return fmt.Errorf("action %s output: %w", name, err)
			}
			ra.Output = &t
		}
		res.Actions = append(res.Actions, ra)
	}

	for _, name := range a.EventNames() {
		ev := a.Events[name]
		re := ResolvedEvent{Feature: feature, Name: name}
		if ev != nil && ev.Data != nil {
			t, err := w.typeOf(owner+"."+name, identifier(name)+"Data", ev.Data)
			if err != nil {
				return fmt.Errorf("event %s data: %w", name, err)
			}
			re.Data = &t
		}
		res.Events = append(res.Events, re)
	}
	return nil
}

// propertyPath returns the twin path of a property relative to its properties
// (or attributes) root. Names that are not valid path segments fall back to the
// zero Path.
func propertyPath(name string, s *thingmodel.DataSchema) twinpath.Path {
	var segs []twinpath.Segment
	if s != nil && s.Category != "" {
		segs = append(segs, twinpath.Category(s.Category))
	}
	segs = append(segs, twinpath.Property(name))
	p, err := twinpath.New(segs...)
	if err != nil {
		return twinpath.Path{}
	}
	return p
}

// typeOf classifies a schema, declaring the named types it needs. The scope is
// the declaring context and name the type's contextual name, used when the
// schema has no title.
func (w *walker) typeOf(scope, name string, s *thingmodel.DataSchema) (TypeRef, error) {
	if s == nil {
		return TypeRef{Primitive: PrimitiveAny}, nil
	}
	title := identifier(s.Title)
	if name == "" {
		name = "Type"
	}

	if values := enumValues(s); len(values) > 0 {
		cases, base, err := enumCases(s, values)
		if err != nil {
			return TypeRef{}, err
		}
		d, created := w.registry.Declare(scope, title, name, KindEnum, ShapeOf(s))
		if created {
			d.Cases, d.Base, d.Schema = cases, base, s
		}
		return TypeRef{Named: d}, nil
	}

	switch inferKind(s) {
	case thingmodel.KindObject:
		d, created := w.registry.Declare(scope, title, name, KindObject, ShapeOf(s))
		if !created {
			return TypeRef{Named: d}, nil
		}
		d.Schema = s
		for _, field := range slices.Sorted(maps.Keys(s.Properties)) {
			t, err := w.typeOf(d.QualifiedName(), identifier(field), s.Properties[field])
			if err != nil {
				return TypeRef{}, fmt.Errorf("%s: %w", field, err)
			}
			child := s.Properties[field]
			d.Fields = append(d.Fields, Field{
				Name:     field,
				Type:     t,
				Required: slices.Contains(s.Required, field),
				ReadOnly: child != nil && child.ReadOnly,
			})
		}
		return TypeRef{Named: d}, nil
	case thingmodel.KindArray:
		owner := name
		if title != "" {
			owner = title
		}
		elem, err := w.typeOf(scope, owner+"Item", s.Items)
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Elem: &elem}, nil
	case thingmodel.KindString:
		return TypeRef{Primitive: PrimitiveString}, nil
	case thingmodel.KindNumber:
		return TypeRef{Primitive: PrimitiveNumber}, nil
	case thingmodel.KindInteger:
		return TypeRef{Primitive: PrimitiveInteger}, nil
	case thingmodel.KindBoolean:
		return TypeRef{Primitive: PrimitiveBoolean}, nil
	case thingmodel.KindNull:
		return TypeRef{Primitive: PrimitiveNull}, nil
	default:
		return TypeRef{Primitive: PrimitiveAny}, nil
	}
}

// inferKind returns the declared kind of a schema, or infers one from its
// structure: properties make an object, items an array and a constant the kind
// of its value. Schemas with nothing to go by are the empty Kind.
func inferKind(s *thingmodel.DataSchema) thingmodel.Kind {
	switch {
	case s.Type != "":
		return s.Type
	case len(s.Properties) > 0:
		return thingmodel.KindObject
	case s.Items != nil:
		return thingmodel.KindArray
	case s.Const != nil:
		switch normalize(s.Const).(type) {
		case string:
			return thingmodel.KindString
		case float64:
			return thingmodel.KindNumber
		case bool:
			return thingmodel.KindBoolean
		case map[string]any:
			return thingmodel.KindObject
		case []any:
			return thingmodel.KindArray
		}
	}
	return ""
}
