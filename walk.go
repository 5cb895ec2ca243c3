package thingmodel

import (
	"maps"
	"slices"
	"strconv"
)

// A Visitor defines a Visit method invoked for each schema node encountered by
// Walk. The name is the node's contextual name: its property name, "items" for
// array items, or the index of a oneOf alternative. If the result visitor w is
// not nil, Walk visits each child of the node with the visitor w, followed by a
// call of w.Visit("", nil).
type Visitor interface {
	Visit(name string, node *DataSchema) (w Visitor)
}

// Walk traverses a schema tree in depth-first order: It starts by calling
// v.Visit(name, node); node must not be nil. Object properties are visited in
// lexical order, then array items, then oneOf alternatives.
func Walk(v Visitor, name string, node *DataSchema) {
	if v = v.Visit(name, node); v == nil {
		return
	}
	for _, key := range slices.Sorted(maps.Keys(node.Properties)) {
		if child := node.Properties[key]; child != nil {
			Walk(v, key, child)
		}
	}
	if node.Items != nil {
		Walk(v, "items", node.Items)
	}
	for i, alt := range node.OneOf {
		if alt != nil {
			Walk(v, strconv.Itoa(i), alt)
		}
	}
	v.Visit("", nil)
}

type inspector func(name string, node *DataSchema) bool

func (f inspector) Visit(name string, node *DataSchema) Visitor {
	if f(name, node) {
		return f
	}
	return nil
}

// Inspect traverses a schema tree in depth-first order: It starts by calling
// f(name, node); node must not be nil. If f returns true, Inspect invokes f
// recursively for each child of node, followed by a call of f("", nil).
func Inspect(name string, node *DataSchema, f func(name string, node *DataSchema) bool) {
	Walk(inspector(f), name, node)
}

// schemasOf returns the top-level schemas of every affordance, keyed by a
// pointer-like location, e.g. "/actions/toggle/input".
func schemasOf(a Affordances) map[string]*DataSchema {
	out := make(map[string]*DataSchema)
	for name, p := range a.Properties {
		if p != nil {
			out["/properties/"+name] = p
		}
	}
	for name, act := range a.Actions {
		if act == nil {
			continue
		}
		if act.Input != nil {
			out["/actions/"+name+"/input"] = act.Input
		}
		if act.Output != nil {
			out["/actions/"+name+"/output"] = act.Output
		}
	}
	for name, ev := range a.Events {
		if ev != nil && ev.Data != nil {
			out["/events/"+name+"/data"] = ev.Data
		}
	}
	return out
}
