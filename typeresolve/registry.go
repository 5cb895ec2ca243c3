package typeresolve

import (
	"fmt"
	"slices"
)

// Strategy selects where named types are declared. It changes placement and
// naming only; which schemas get a named type never depends on it.
type Strategy int

const (
	// Inline declares each type nested inside its referencing context. Names
	// only need to be unique within that context.
	Inline Strategy = iota + 1
	// Separate hoists every type into one shared namespace. Identical shapes
	// declared under the same name share one declaration; other name collisions
	// are resolved with a numeric suffix.
	Separate
)

func (s Strategy) String() string {
	switch s {
	case Inline:
		return "inline"
	case Separate:
		return "separate"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses the textual form of a Strategy.
func ParseStrategy(text string) (Strategy, error) {
	switch text {
	case "inline":
		return Inline, nil
	case "separate":
		return Separate, nil
	default:
		return 0, fmt.Errorf("unknown type strategy %q", text)
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	switch s {
	case Inline, Separate:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown type strategy %d", int(s))
	}
}

func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// A Registry interns the named types of one generation run. It is not safe for
// concurrent use, and must be Reset (or replaced) before it serves another run.
type Registry struct {
	strategy Strategy
	byKey    map[registryKey]*Descriptor
	taken    map[string]map[string]bool // scope -> names
	decls    []*Descriptor
}

type registryKey struct {
	scope string
	shape ShapeHash
	title string
}

// NewRegistry returns an empty Registry applying the given strategy. It panics
// on an unknown strategy.
func NewRegistry(strategy Strategy) *Registry {
	switch strategy {
	case Inline, Separate:
	default:
		panic(fmt.Sprintf("typeresolve: unknown strategy %v", strategy))
	}
	r := &Registry{strategy: strategy}
	r.Reset()
	return r
}

func (r *Registry) Strategy() Strategy { return r.strategy }

// Reset forgets every declaration.
func (r *Registry) Reset() {
	r.byKey = make(map[registryKey]*Descriptor)
	r.taken = make(map[string]map[string]bool)
	r.decls = nil
}

// Declare interns a named type with the given shape, requested by the context
// scope. Title is the identifier form of the schema's title, empty when it has
// none; untitled types are named after name instead. Declare returns the
// existing declaration, and false, when the strategy considers it a duplicate;
// otherwise it declares a new type under a name unique within its scope.
//
// Inline declarations are keyed by (scope, shape). Separate declarations live
// in the top-level scope and are keyed by (shape, title), so structurally
// identical untitled types are shared whatever their contextual names.
func (r *Registry) Declare(scope, title, name string, kind DescriptorKind, shape ShapeHash) (*Descriptor, bool) {
	if title != "" {
		name = title
	}
	var key registryKey
	switch r.strategy {
	case Inline:
		key = registryKey{scope: scope, shape: shape}
	case Separate:
		key = registryKey{shape: shape, title: title}
		scope = ""
	default:
		panic(fmt.Sprintf("typeresolve: unknown strategy %v", r.strategy))
	}
	if d, ok := r.byKey[key]; ok {
		return d, false
	}

	taken := r.taken[scope]
	if taken == nil {
		taken = make(map[string]bool)
		r.taken[scope] = taken
	}
	d := &Descriptor{
		Name:  uniqueName(name, taken),
		Scope: scope,
		Kind:  kind,
		Shape: shape,
	}
	taken[d.Name] = true
	r.byKey[key] = d
	r.decls = append(r.decls, d)
	return d, true
}

// Declarations returns every declared type in declaration order.
func (r *Registry) Declarations() []*Descriptor { return slices.Clone(r.decls) }

// Lookup returns the type declared under name in scope.
func (r *Registry) Lookup(scope, name string) (*Descriptor, bool) {
	for _, d := range r.decls {
		if d.Scope == scope && d.Name == name {
			return d, true
		}
	}
	return nil, false
}
