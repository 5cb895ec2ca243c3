package thingmodel

import (
	"maps"
	"slices"
)

// Effective is a fully resolved Thing Model: all tm:extends ancestors are
// flattened into it and all tm:submodel children are mounted as features. It
// holds no links and is never modified after Resolve returns it.
type Effective struct {
	// Ref is the reference of the root document.
	Ref         string
	Title       string
	Description string
	Version     Version
	Affordances
	// Optional holds the tm:optional pointers of the root and its ancestors.
	Optional []string
	// Features maps instance names to mounted submodels, including the features
	// of nested submodels which are hoisted to the root.
	Features map[string]*Feature
	// Lineage lists every link edge followed during resolution, in the order
	// they were first resolved.
	Lineage []Edge
}

// A Feature is a resolved submodel mounted under its instance name.
type Feature struct {
	Name        string
	Ref         string
	Title       string
	Description string
	Affordances
	Optional []string
}

// FeatureNames returns the names of all features in lexical order.
func (e *Effective) FeatureNames() []string {
	return slices.Sorted(maps.Keys(e.Features))
}

// An Edge is a resolved link between two models.
type Edge struct {
	From, To     string
	Relation     LinkRelation
	InstanceName string
}

func (a Affordances) clone() Affordances {
	return Affordances{
		Properties: maps.Clone(a.Properties),
		Actions:    maps.Clone(a.Actions),
		Events:     maps.Clone(a.Events),
	}
}

// PropertyNames returns the names of all properties in lexical order. The same
// holds for ActionNames and EventNames.
func (a Affordances) PropertyNames() []string { return slices.Sorted(maps.Keys(a.Properties)) }

func (a Affordances) ActionNames() []string { return slices.Sorted(maps.Keys(a.Actions)) }

func (a Affordances) EventNames() []string { return slices.Sorted(maps.Keys(a.Events)) }
