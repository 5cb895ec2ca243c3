package thingmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielorbach/go-component"
)

// applyRefs returns the document's own affordances with every top-level tm:ref
// overlaid onto the definition it points to. Fields present in the local
// definition win over those of the referenced one. The decoded document itself
// is left untouched.
func (res *resolution) applyRefs(ctx context.Context, ref string, doc *ThingModel) (Affordances, error) {
	own := doc.Affordances.clone()
	for name, p := range own.Properties {
		if p == nil || p.Ref == "" {
			continue
		}
		base, err := res.lookupRef(ctx, ref, p.Ref, "properties")
		if err != nil {
			return Affordances{}, err
		}
		if own.Properties[name], err = overlay(base.Properties[refName(p.Ref)], p); err != nil {
			return Affordances{}, &ModelError{Ref: ref, Err: err}
		}
	}
	for name, a := range own.Actions {
		if a == nil || a.Ref == "" {
			continue
		}
		base, err := res.lookupRef(ctx, ref, a.Ref, "actions")
		if err != nil {
			return Affordances{}, err
		}
		if own.Actions[name], err = overlay(base.Actions[refName(a.Ref)], a); err != nil {
			return Affordances{}, &ModelError{Ref: ref, Err: err}
		}
	}
	for name, e := range own.Events {
		if e == nil || e.Ref == "" {
			continue
		}
		base, err := res.lookupRef(ctx, ref, e.Ref, "events")
		if err != nil {
			return Affordances{}, err
		}
		if own.Events[name], err = overlay(base.Events[refName(e.Ref)], e); err != nil {
			return Affordances{}, &ModelError{Ref: ref, Err: err}
		}
	}
	return own, nil
}

// lookupRef loads the document a tm:ref points into and checks that the
// pointer names an existing, non-referencing definition of the given kind.
func (res *resolution) lookupRef(ctx context.Context, ref, tmRef, kind string) (Affordances, error) {
	href, pointer, _ := strings.Cut(tmRef, "#")
	parts := strings.Split(pointer, "/")
	if len(parts) != 3 || parts[0] != "" || parts[1] != kind || parts[2] == "" {
		return Affordances{}, &ModelError{Ref: ref, Err: fmt.Errorf("%w: %q", ErrUnsupportedRef, tmRef)}
	}

	target := ref
	if href != "" {
		var err error
		if target, err = ResolveReference(ref, href); err != nil {
			return Affordances{}, &ModelError{Ref: ref, Err: err}
		}
	}
	doc, err := res.load(ctx, target)
	if err != nil {
		return Affordances{}, err
	}

	name := parts[2]
	var found, chained bool
	switch kind {
	case "properties":
		p, ok := doc.Properties[name]
		found, chained = ok && p != nil, ok && p != nil && p.Ref != ""
	case "actions":
		a, ok := doc.Actions[name]
		found, chained = ok && a != nil, ok && a != nil && a.Ref != ""
	case "events":
		e, ok := doc.Events[name]
		found, chained = ok && e != nil, ok && e != nil && e.Ref != ""
	}
	switch {
	case !found:
		return Affordances{}, &ModelError{Ref: ref, Err: fmt.Errorf("%w: %q names no definition in %s", ErrUnsupportedRef, tmRef, target)}
	case chained:
		return Affordances{}, &ModelError{Ref: ref, Err: fmt.Errorf("%w: %q points to another reference", ErrUnsupportedRef, tmRef)}
	}
	return doc.Affordances, nil
}

func refName(tmRef string) string {
	return tmRef[strings.LastIndex(tmRef, "/")+1:]
}

// overlay merges the JSON fields of local over those of base, dropping the
// tm:ref that linked them.
func overlay[T any](base, local *T) (*T, error) {
	merged := make(map[string]json.RawMessage)
	for _, v := range []*T{base, local} {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("overlay tm:ref: %w", err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("overlay tm:ref: %w", err)
		}
		for k, f := range fields {
			merged[k] = f
		}
	}
	delete(merged, "tm:ref")

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("overlay tm:ref: %w", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("overlay tm:ref: %w", err)
	}
	return &out, nil
}

// warnNestedRefs logs tm:ref pointers below the affordance level, which are
// kept as-is.
func warnNestedRefs(ctx context.Context, ref string, own Affordances) {
	logger := component.Logger(ctx)
	for loc, schema := range schemasOf(own) {
		Inspect("", schema, func(name string, node *DataSchema) bool {
			if node == nil {
				return false
			}
			if node != schema && node.Ref != "" {
				logger.Warn("Nested tm:ref is not resolved",
					slog.String("ref", ref),
					slog.String("location", loc),
					slog.String("property", name),
					slog.String("tm:ref", node.Ref),
				)
			}
			return true
		})
	}
}
