package thingmodel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// documents is an in-memory Fetcher counting the fetches of each reference.
type documents struct {
	docs    map[string]string
	fetched map[string]int
}

func newDocuments(docs map[string]string) *documents {
	return &documents{docs: docs, fetched: make(map[string]int)}
}

func (d *documents) Fetch(_ context.Context, ref string) ([]byte, error) {
	d.fetched[ref]++
	doc, ok := d.docs[ref]
	if !ok {
		return nil, fmt.Errorf("no such document")
	}
	return []byte(doc), nil
}

func resolve(t *testing.T, r *Resolver, ref string) *Effective {
	t.Helper()
	eff, err := r.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", ref, err)
	}
	return eff
}

func TestResolve_Extends(t *testing.T) {
	docs := newDocuments(map[string]string{
		"mem://models/base.tm.json": `{
			"title": "Base",
			"properties": {
				"A": {"type": "string", "title": "base A"},
				"C": {"type": "boolean"}
			},
			"actions": {"reset": {}}
		}`,
		"mem://models/derived.tm.json": `{
			"title": "Derived",
			"links": [{"rel": "tm:extends", "href": "base.tm.json"}],
			"properties": {
				"A": {"type": "integer"},
				"B": {"type": "number"}
			}
		}`,
	})

	eff := resolve(t, &Resolver{Fetcher: docs}, "mem://models/derived.tm.json")

	if diff := cmp.Diff([]string{"A", "B", "C"}, eff.PropertyNames()); diff != "" {
		t.Errorf("PropertyNames() mismatch (-want +got):\n%s", diff)
	}
	// The derived entry wins entirely; no field of the base entry survives.
	if diff := cmp.Diff(&DataSchema{Type: KindInteger}, eff.Properties["A"]); diff != "" {
		t.Errorf("Properties[A] mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"reset"}, eff.ActionNames()); diff != "" {
		t.Errorf("ActionNames() mismatch (-want +got):\n%s", diff)
	}
	if eff.Title != "Derived" {
		t.Errorf("Title = %q, want %q", eff.Title, "Derived")
	}
	want := []Edge{{From: "mem://models/derived.tm.json", To: "mem://models/base.tm.json", Relation: RelationExtends}}
	if diff := cmp.Diff(want, eff.Lineage); diff != "" {
		t.Errorf("Lineage mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_ExtendsChainAndOrder(t *testing.T) {
	docs := newDocuments(map[string]string{
		"root":  `{"properties": {"x": {"type": "string"}}}`,
		"left":  `{"links": [{"rel": "tm:extends", "href": "root"}], "properties": {"y": {"title": "left"}}}`,
		"right": `{"properties": {"y": {"title": "right"}, "x": {"type": "number"}}}`,
		"leaf": `{"links": [
			{"rel": "tm:extends", "href": "left"},
			{"rel": "tm:extends", "href": "right"},
			{"rel": "alternate", "href": "ignored"}
		]}`,
	})

	eff := resolve(t, &Resolver{Fetcher: docs}, "leaf")

	// Extends links apply in declared order: the later one overrides.
	if got := eff.Properties["y"].Title; got != "right" {
		t.Errorf("y.title = %q, want %q", got, "right")
	}
	if got := eff.Properties["x"].Type; got != KindNumber {
		t.Errorf("x.type = %q, want %q", got, KindNumber)
	}
	if docs.fetched["ignored"] != 0 {
		t.Error("links of unknown relation were fetched")
	}
}

func TestResolve_Cycle(t *testing.T) {
	docs := newDocuments(map[string]string{
		"M1": `{"links": [{"rel": "tm:extends", "href": "M2"}]}`,
		"M2": `{"links": [{"rel": "tm:extends", "href": "M1"}]}`,
	})

	_, err := (&Resolver{Fetcher: docs}).Resolve(context.Background(), "M1")
	if !errors.Is(err, ErrCyclicModel) {
		t.Fatalf("Resolve() error = %v, want %v", err, ErrCyclicModel)
	}
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Resolve() error = %T, want *CycleError", err)
	}
	if diff := cmp.Diff([]string{"M1", "M2", "M1"}, cycle.Chain); diff != "" {
		t.Errorf("Chain mismatch (-want +got):\n%s", diff)
	}
	if cycle.Ref() != "M1" {
		t.Errorf("Ref() = %q, want %q", cycle.Ref(), "M1")
	}
}

func TestResolve_SubmodelCycle(t *testing.T) {
	docs := newDocuments(map[string]string{
		"self": `{"links": [{"rel": "tm:submodel", "href": "self", "instanceName": "again"}]}`,
	})
	_, err := (&Resolver{Fetcher: docs}).Resolve(context.Background(), "self")
	if !errors.Is(err, ErrCyclicModel) {
		t.Fatalf("Resolve() error = %v, want %v", err, ErrCyclicModel)
	}
}

func TestResolve_DisjointBranches(t *testing.T) {
	// A diamond: both features extend the same base, which is not a cycle.
	docs := newDocuments(map[string]string{
		"base":  `{"properties": {"on": {"type": "boolean"}}}`,
		"lamp":  `{"links": [{"rel": "tm:extends", "href": "base"}]}`,
		"fan":   `{"links": [{"rel": "tm:extends", "href": "base"}], "properties": {"speed": {"type": "integer"}}}`,
		"house": `{"links": [{"rel": "tm:submodel", "href": "lamp", "instanceName": "lamp"}, {"rel": "tm:submodel", "href": "fan", "instanceName": "fan"}]}`,
	})

	eff := resolve(t, &Resolver{Fetcher: docs}, "house")

	if diff := cmp.Diff([]string{"fan", "lamp"}, eff.FeatureNames()); diff != "" {
		t.Errorf("FeatureNames() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"on", "speed"}, eff.Features["fan"].PropertyNames()); diff != "" {
		t.Errorf("fan properties mismatch (-want +got):\n%s", diff)
	}
	if n := docs.fetched["base"]; n != 1 {
		t.Errorf("base fetched %d times, want 1", n)
	}
	if len(eff.Properties) != 0 {
		t.Errorf("submodel properties leaked into the root: %v", eff.PropertyNames())
	}
}

func TestResolve_FetchFailure(t *testing.T) {
	docs := newDocuments(map[string]string{
		"root": `{"links": [{"rel": "tm:extends", "href": "missing"}]}`,
	})

	_, err := (&Resolver{Fetcher: docs}).Resolve(context.Background(), "root")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Resolve() error = %v, want *FetchError", err)
	}
	if fetchErr.Ref != "missing" {
		t.Errorf("FetchError.Ref = %q, want %q", fetchErr.Ref, "missing")
	}
}

func TestResolve_SubmodelFeatures(t *testing.T) {
	docs := newDocuments(map[string]string{
		"https://models.example/house.tm.json": `{
			"title": "House",
			"properties": {"address": {"type": "string"}},
			"links": [
				{"rel": "tm:submodel", "href": "rooms/kitchen.tm.json", "instanceName": "kitchen"}
			]
		}`,
		"https://models.example/rooms/kitchen.tm.json": `{
			"title": "Kitchen",
			"properties": {"temperature": {"type": "number", "ditto:category": "status"}},
			"links": [
				{"rel": "tm:submodel", "href": "../devices/oven.tm.json#ignored", "instanceName": "oven"}
			]
		}`,
		"https://models.example/devices/oven.tm.json": `{
			"title": "Oven",
			"properties": {"heat": {"type": "integer"}}
		}`,
	})

	eff := resolve(t, &Resolver{Fetcher: docs}, "https://models.example/house.tm.json")

	// Nested submodels are hoisted to the root feature map.
	if diff := cmp.Diff([]string{"kitchen", "oven"}, eff.FeatureNames()); diff != "" {
		t.Fatalf("FeatureNames() mismatch (-want +got):\n%s", diff)
	}
	kitchen := eff.Features["kitchen"]
	if kitchen.Title != "Kitchen" || kitchen.Ref != "https://models.example/rooms/kitchen.tm.json" {
		t.Errorf("kitchen = %q from %q", kitchen.Title, kitchen.Ref)
	}
	if got := kitchen.Properties["temperature"].Category; got != "status" {
		t.Errorf("temperature category = %q", got)
	}
	if got := eff.Features["oven"].Ref; got != "https://models.example/devices/oven.tm.json" {
		t.Errorf("oven resolved from %q", got)
	}
	wantEdges := []Edge{
		{From: "https://models.example/rooms/kitchen.tm.json", To: "https://models.example/devices/oven.tm.json", Relation: RelationSubmodel, InstanceName: "oven"},
		{From: "https://models.example/house.tm.json", To: "https://models.example/rooms/kitchen.tm.json", Relation: RelationSubmodel, InstanceName: "kitchen"},
	}
	if diff := cmp.Diff(wantEdges, eff.Lineage); diff != "" {
		t.Errorf("Lineage mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_FeatureConflict(t *testing.T) {
	docs := newDocuments(map[string]string{
		"a":     `{"links": [{"rel": "tm:submodel", "href": "leaf1", "instanceName": "x"}]}`,
		"b":     `{"links": [{"rel": "tm:submodel", "href": "leaf2", "instanceName": "x"}]}`,
		"leaf1": `{}`,
		"leaf2": `{}`,
		"root": `{"links": [
			{"rel": "tm:submodel", "href": "a", "instanceName": "a"},
			{"rel": "tm:submodel", "href": "b", "instanceName": "b"}
		]}`,
	})

	_, err := (&Resolver{Fetcher: docs}).Resolve(context.Background(), "root")
	if !errors.Is(err, ErrFeatureConflict) {
		t.Fatalf("Resolve() error = %v, want %v", err, ErrFeatureConflict)
	}
	var modelErr *ModelError
	if !errors.As(err, &modelErr) || modelErr.Ref != "root" {
		t.Errorf("Resolve() error = %v, want a ModelError naming root", err)
	}
}

func TestResolve_SharedSubmodel(t *testing.T) {
	// Both branches mount one document under one name, which is not a conflict.
	docs := newDocuments(map[string]string{
		"a":    `{"links": [{"rel": "tm:submodel", "href": "leaf", "instanceName": "x"}]}`,
		"b":    `{"links": [{"rel": "tm:submodel", "href": "leaf", "instanceName": "x"}]}`,
		"leaf": `{"title": "Leaf", "properties": {"on": {"type": "boolean"}}}`,
		"root": `{"links": [
			{"rel": "tm:submodel", "href": "a", "instanceName": "a"},
			{"rel": "tm:submodel", "href": "b", "instanceName": "b"}
		]}`,
	})

	eff := resolve(t, &Resolver{Fetcher: docs}, "root")
	if diff := cmp.Diff([]string{"a", "b", "x"}, eff.FeatureNames()); diff != "" {
		t.Errorf("FeatureNames() mismatch (-want +got):\n%s", diff)
	}
	if x := eff.Features["x"]; x.Ref != "leaf" || x.Title != "Leaf" {
		t.Errorf("x = %q from %q, want Leaf from leaf", x.Title, x.Ref)
	}
	if n := docs.fetched["leaf"]; n != 1 {
		t.Errorf("leaf fetched %d times, want 1", n)
	}
}

func TestResolve_InheritedFeatureOverride(t *testing.T) {
	docs := newDocuments(map[string]string{
		"v1":   `{"title": "v1"}`,
		"v2":   `{"title": "v2"}`,
		"base": `{"links": [{"rel": "tm:submodel", "href": "v1", "instanceName": "motor"}]}`,
		"derived": `{"links": [
			{"rel": "tm:extends", "href": "base"},
			{"rel": "tm:submodel", "href": "v2", "instanceName": "motor"}
		]}`,
	})

	eff := resolve(t, &Resolver{Fetcher: docs}, "derived")
	if got := eff.Features["motor"].Title; got != "v2" {
		t.Errorf("motor = %q, want the derived submodel", got)
	}
}

func TestResolve_MissingInstanceName(t *testing.T) {
	docs := newDocuments(map[string]string{
		"root": `{"links": [{"rel": "tm:submodel", "href": "leaf"}]}`,
		"leaf": `{}`,
	})
	_, err := (&Resolver{Fetcher: docs}).Resolve(context.Background(), "root")
	if !errors.Is(err, ErrMissingInstanceName) {
		t.Fatalf("Resolve() error = %v, want %v", err, ErrMissingInstanceName)
	}
}

func TestResolve_StrictOverrides(t *testing.T) {
	docs := newDocuments(map[string]string{
		"base":    `{"properties": {"speed": {"type": "integer"}}}`,
		"derived": `{"links": [{"rel": "tm:extends", "href": "base"}], "properties": {"speed": {"type": "string"}}}`,
	})

	// Lenient resolution lets the derived type win.
	eff := resolve(t, &Resolver{Fetcher: docs}, "derived")
	if got := eff.Properties["speed"].Type; got != KindString {
		t.Errorf("speed.type = %q, want %q", got, KindString)
	}

	_, err := (&Resolver{Fetcher: docs, StrictOverrides: true}).Resolve(context.Background(), "derived")
	if !errors.Is(err, ErrOverrideConflict) {
		t.Fatalf("Resolve() error = %v, want %v", err, ErrOverrideConflict)
	}
}

func TestResolve_Refs(t *testing.T) {
	docs := newDocuments(map[string]string{
		"lib": `{
			"properties": {"level": {"type": "integer", "minimum": 0, "maximum": 100, "title": "Level"}},
			"events": {"overheated": {"data": {"type": "number"}}}
		}`,
		"root": `{
			"properties": {
				"brightness": {"tm:ref": "lib#/properties/level", "title": "Brightness"},
				"dim": {"tm:ref": "#/properties/brightness"}
			},
			"events": {"alarm": {"tm:ref": "lib#/events/overheated", "description": "too hot"}}
		}`,
	})

	_, err := (&Resolver{Fetcher: docs}).Resolve(context.Background(), "root")
	// "dim" points to a definition that is itself a reference.
	if !errors.Is(err, ErrUnsupportedRef) {
		t.Fatalf("Resolve() error = %v, want %v", err, ErrUnsupportedRef)
	}

	docs = newDocuments(map[string]string{
		"lib": docs.docs["lib"],
		"root": `{
		"properties": {
			"brightness": {"tm:ref": "lib#/properties/level", "title": "Brightness"},
			"raw": {"type": "string"},
			"copy": {"tm:ref": "#/properties/raw", "readOnly": true}
		},
		"events": {"alarm": {"tm:ref": "lib#/events/overheated", "description": "too hot"}}
	}`,
	})
	eff := resolve(t, &Resolver{Fetcher: docs}, "root")

	lo, hi := 0.0, 100.0
	want := &DataSchema{Type: KindInteger, Title: "Brightness", Minimum: &lo, Maximum: &hi}
	if diff := cmp.Diff(want, eff.Properties["brightness"]); diff != "" {
		t.Errorf("brightness mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&DataSchema{Type: KindString, ReadOnly: true}, eff.Properties["copy"]); diff != "" {
		t.Errorf("copy mismatch (-want +got):\n%s", diff)
	}
	wantEvent := &Event{Description: "too hot", Data: &DataSchema{Type: KindNumber}}
	if diff := cmp.Diff(wantEvent, eff.Events["alarm"]); diff != "" {
		t.Errorf("alarm mismatch (-want +got):\n%s", diff)
	}
	if n := docs.fetched["lib"]; n != 1 {
		t.Errorf("lib fetched %d times, want 1", n)
	}
	// Lineage only records composition links.
	if len(eff.Lineage) != 0 {
		t.Errorf("Lineage = %v, want none", eff.Lineage)
	}
}

func TestResolve_UnsupportedRef(t *testing.T) {
	for _, ref := range []string{"lib", "lib#/definitions/level", "lib#/properties/level/type", "lib#/properties/none"} {
		docs := newDocuments(map[string]string{
			"lib":  `{"properties": {"level": {"type": "integer"}}}`,
			"root": fmt.Sprintf(`{"properties": {"p": {"tm:ref": %q}}}`, ref),
		})
		_, err := (&Resolver{Fetcher: docs}).Resolve(context.Background(), "root")
		if !errors.Is(err, ErrUnsupportedRef) {
			t.Errorf("tm:ref %q: Resolve() error = %v, want %v", ref, err, ErrUnsupportedRef)
		}
	}
}

func TestResolve_Placeholders(t *testing.T) {
	docs := newDocuments(map[string]string{
		"root": `{
			"title": "{{MODEL}} \"Thing\"",
			"properties": {"serial": {"type": "string", "const": "{{SERIAL}}", "description": "{{UNKNOWN}}"}}
		}`,
	})
	r := &Resolver{Fetcher: docs, Placeholders: map[string]string{"MODEL": `X"1`, "SERIAL": "ab-12"}}

	eff := resolve(t, r, "root")
	if eff.Title != `X"1 "Thing"` {
		t.Errorf("Title = %q", eff.Title)
	}
	p := eff.Properties["serial"]
	if p.Const != "ab-12" || p.Description != "{{UNKNOWN}}" {
		t.Errorf("serial = const %v, description %q", p.Const, p.Description)
	}
}

func TestResolve_Optional(t *testing.T) {
	docs := newDocuments(map[string]string{
		"base":    `{"tm:optional": ["/properties/a"], "properties": {"a": {}}}`,
		"derived": `{"links": [{"rel": "tm:extends", "href": "base"}], "tm:optional": ["/properties/b", "/properties/a"], "properties": {"b": {}}}`,
	})
	eff := resolve(t, &Resolver{Fetcher: docs}, "derived")
	got := slices.Clone(eff.Optional)
	slices.Sort(got)
	if diff := cmp.Diff([]string{"/properties/a", "/properties/b"}, got); diff != "" {
		t.Errorf("Optional mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_DecodeFailure(t *testing.T) {
	docs := newDocuments(map[string]string{
		"root": `{"properties": {"p": {"type": "strin"}}}`,
	})
	_, err := (&Resolver{Fetcher: docs}).Resolve(context.Background(), "root")
	var modelErr *ModelError
	if !errors.As(err, &modelErr) || modelErr.Ref != "root" {
		t.Fatalf("Resolve() error = %v, want a ModelError naming root", err)
	}
}

func TestThingModel_Dependencies(t *testing.T) {
	tm, err := Decode([]byte(`{
		"links": [
			{"rel": "tm:submodel", "href": "parts/dimmer.tm.json", "instanceName": "dimmer"},
			{"rel": "icon", "href": "lamp.png"},
			{"rel": "tm:extends", "href": "../base.tm.json"}
		],
		"properties": {
			"b": {"tm:ref": "../base.tm.json#/properties/on"},
			"a": {"tm:ref": "lib.tm.json#/properties/level"},
			"self": {"tm:ref": "#/properties/a"}
		}
	}`))
	if err != nil {
		t.Fatal("Decode:", err)
	}

	got, err := tm.Dependencies("mem://models/lamps/lamp.tm.json")
	if err != nil {
		t.Fatal("Dependencies:", err)
	}
	want := []string{
		"mem://models/lamps/parts/dimmer.tm.json",
		"mem://models/base.tm.json",
		"mem://models/lamps/lib.tm.json",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveReference(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"M1", "M2", "M2"},
		{"M1", "M2#/properties/on", "M2"},
		{"models/lamp.json", "base.json", "models/base.json"},
		{"models/lamp.json", "../parts/dimmer.json", "parts/dimmer.json"},
		{"lamp.json", "/abs/base.json", "/abs/base.json"},
		{"lamp.json", "", "lamp.json"},
		{"/srv/lamp.json", "base.json", "/srv/base.json"},
		{"mem://models/lamp.json", "base.json", "mem://models/base.json"},
		{"mem://models/lamps/lamp.json", "../base.json", "mem://models/base.json"},
		{"M1", "https://models.example/base.json", "https://models.example/base.json"},
	}
	for _, tt := range tests {
		got, err := ResolveReference(tt.base, tt.href)
		if err != nil {
			t.Errorf("ResolveReference(%q, %q): %v", tt.base, tt.href, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveReference(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
		}
	}
}
