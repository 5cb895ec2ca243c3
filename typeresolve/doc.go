// Package typeresolve assigns types to the schemas of an effective Thing
// Model, the way a code generator declares them.
//
// Enumerations and objects get named types, interned in a Registry scoped to a
// single Run; arrays and primitives need no declaration. The Strategy of a run
// decides where named types live: Inline nests each type inside the context
// that references it, while Separate hoists all of them into one namespace
// where structurally identical schemas of the same name share a declaration.
//
// Enumerated types carry their cases with an explicit field-to-value mapping,
// so observed twin values can be matched back to a symbolic case with
// Descriptor.Match.
package typeresolve
