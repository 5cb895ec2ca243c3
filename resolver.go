package thingmodel

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// A Fetcher retrieves raw Thing Model documents by reference. Fetch is the
// only blocking call of a resolution; any error it returns aborts the
// resolution in progress.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, ref string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, ref string) ([]byte, error) { return f(ctx, ref) }

// A Resolver flattens a Thing Model and everything it links to into one
// Effective model.
//
// A Resolver holds no state between calls to Resolve and may be used
// concurrently, provided its Fetcher may.
type Resolver struct {
	Fetcher Fetcher
	// Placeholders substitutes "{{NAME}}" in every fetched document before it
	// is decoded. Placeholders without a value are left untouched.
	Placeholders map[string]string
	// StrictOverrides rejects derived affordances that change the schema type
	// of the base affordance they override.
	StrictOverrides bool
}

// Resolve fetches the document named by ref and resolves its links:
//
//   - tm:extends targets are resolved first and merged in declared order; an
//     affordance of the derived model replaces the base affordance of the same
//     name entirely.
//   - tm:submodel targets are resolved and mounted as features named by the
//     link's instance name; their own features are hoisted to the root.
//
// Relative link targets resolve against the reference of the linking
// document. A document reached through two unrelated branches is resolved only
// once; a document reaching itself fails with a *CycleError.
func (r *Resolver) Resolve(ctx context.Context, ref string) (eff *Effective, err error) {
	ctx, span := tracer.Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String(rootRefKey, ref),
	))
	defer span.End()

	logger := component.Logger(ctx).With(slog.String(rootRefKey, ref))
	ctx = component.InjectLogger(ctx, logger) // Inject for further logs down the call-stack.

	defer func(start time.Time) {
		measureResolution(ctx, ref, err == nil, time.Since(start))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}(time.Now())

	root := stripFragment(ref)
	res := &resolution{
		resolver: r,
		active:   make(map[string]bool),
		done:     make(map[string]*resolved),
		docs:     make(map[string]*ThingModel),
	}
	m, err := res.resolve(ctx, root)
	if err != nil {
		return nil, err
	}

	logger.Debug("Resolved thing model",
		slog.Int("documents", len(res.done)),
		slog.Int("properties", len(m.aff.Properties)),
		slog.Int("features", len(m.features)),
	)
	return &Effective{
		Ref:         root,
		Title:       m.doc.Title,
		Description: m.doc.Description,
		Version:     m.doc.Version,
		Affordances: m.aff.clone(),
		Optional:    slices.Clone(m.optional),
		Features:    maps.Clone(m.features),
		Lineage:     res.lineage,
	}, nil
}

// resolution is the state of a single Resolve call.
type resolution struct {
	resolver *Resolver
	// active holds the documents on the current resolution path, and stack
	// their order for error reports.
	active map[string]bool
	stack  []string
	// done memoizes resolved documents, docs decoded ones.
	done    map[string]*resolved
	docs    map[string]*ThingModel
	lineage []Edge
}

// resolved is a document with its links applied.
type resolved struct {
	doc      *ThingModel
	aff      Affordances
	optional []string
	features map[string]*Feature
}

func (res *resolution) resolve(ctx context.Context, ref string) (*resolved, error) {
	// The cycle check must precede the memo: a document on the active path is
	// never done.
	if res.active[ref] {
		chain := append(slices.Clone(res.stack), ref)
		cyclesDetected.Add(ctx, 1)
		return nil, &CycleError{Chain: chain}
	}
	if m, ok := res.done[ref]; ok {
		return m, nil
	}

	res.active[ref] = true
	res.stack = append(res.stack, ref)
	defer func() {
		delete(res.active, ref)
		res.stack = res.stack[:len(res.stack)-1]
	}()

	doc, err := res.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	own, err := res.applyRefs(ctx, ref, doc)
	if err != nil {
		return nil, err
	}
	warnNestedRefs(ctx, ref, own)

	m := &resolved{
		doc:      doc,
		aff:      Affordances{Properties: map[string]*DataSchema{}, Actions: map[string]*Action{}, Events: map[string]*Event{}},
		features: make(map[string]*Feature),
	}

	var submodels []Link
	for _, link := range doc.Links {
		switch link.Relation() {
		case RelationExtends:
			if err := res.extend(ctx, ref, link, m); err != nil {
				return nil, err
			}
		case RelationSubmodel:
			submodels = append(submodels, link)
		}
	}

	if err := res.override(ref, m, own); err != nil {
		return nil, err
	}
	m.optional = appendUnique(m.optional, doc.Optional...)

	// Features mounted by this document may replace inherited ones, but never
	// each other with a different document.
	mounted := make(map[string]string)
	for _, link := range submodels {
		if err := res.mount(ctx, ref, link, m, mounted); err != nil {
			return nil, err
		}
	}

	res.done[ref] = m
	return m, nil
}

// extend merges the resolved base model named by link into m.
func (res *resolution) extend(ctx context.Context, ref string, link Link, m *resolved) error {
	target, err := ResolveReference(ref, link.Href)
	if err != nil {
		return &ModelError{Ref: ref, Err: err}
	}
	base, err := res.resolve(ctx, target)
	if err != nil {
		return err
	}
	res.edge(ref, target, link)

	maps.Copy(m.aff.Properties, base.aff.Properties)
	maps.Copy(m.aff.Actions, base.aff.Actions)
	maps.Copy(m.aff.Events, base.aff.Events)
	maps.Copy(m.features, base.features)
	m.optional = appendUnique(m.optional, base.optional...)
	return nil
}

// override applies the document's own affordances over the inherited ones.
func (res *resolution) override(ref string, m *resolved, own Affordances) error {
	if res.resolver.StrictOverrides {
		for name, p := range own.Properties {
			if err := checkOverride(ref, "/properties/"+name, m.aff.Properties[name], p); err != nil {
				return err
			}
		}
		for name, a := range own.Actions {
			if base, ok := m.aff.Actions[name]; ok && base != nil && a != nil {
				if err := checkOverride(ref, "/actions/"+name+"/input", base.Input, a.Input); err != nil {
					return err
				}
				if err := checkOverride(ref, "/actions/"+name+"/output", base.Output, a.Output); err != nil {
					return err
				}
			}
		}
		for name, e := range own.Events {
			if base, ok := m.aff.Events[name]; ok && base != nil && e != nil {
				if err := checkOverride(ref, "/events/"+name+"/data", base.Data, e.Data); err != nil {
					return err
				}
			}
		}
	}

	maps.Copy(m.aff.Properties, own.Properties)
	maps.Copy(m.aff.Actions, own.Actions)
	maps.Copy(m.aff.Events, own.Events)
	return nil
}

func checkOverride(ref, pointer string, base, derived *DataSchema) error {
	if base == nil || derived == nil || base.Type == "" || derived.Type == "" {
		return nil
	}
	if base.Type != derived.Type {
		return &ModelError{Ref: ref, Err: fmt.Errorf("%w: %s from %s to %s", ErrOverrideConflict, pointer, base.Type, derived.Type)}
	}
	return nil
}

// mount resolves the submodel named by link and mounts it as a feature of m,
// hoisting the submodel's own features alongside it.
func (res *resolution) mount(ctx context.Context, ref string, link Link, m *resolved, mounted map[string]string) error {
	if link.InstanceName == "" {
		return &ModelError{Ref: ref, Err: fmt.Errorf("%w: %s", ErrMissingInstanceName, link.Href)}
	}
	target, err := ResolveReference(ref, link.Href)
	if err != nil {
		return &ModelError{Ref: ref, Err: err}
	}
	sub, err := res.resolve(ctx, target)
	if err != nil {
		return err
	}
	res.edge(ref, target, link)

	// One document reached through disjoint branches mounts the same feature
	// twice; only distinct documents under one name conflict.
	claim := func(name, from string) error {
		if prev, ok := mounted[name]; ok && prev != from {
			return &ModelError{Ref: ref, Err: fmt.Errorf("%w: %q mounted from %s and %s", ErrFeatureConflict, name, prev, from)}
		}
		mounted[name] = from
		return nil
	}

	if err := claim(link.InstanceName, target); err != nil {
		return err
	}
	m.features[link.InstanceName] = &Feature{
		Name:        link.InstanceName,
		Ref:         target,
		Title:       sub.doc.Title,
		Description: sub.doc.Description,
		Affordances: sub.aff.clone(),
		Optional:    slices.Clone(sub.optional),
	}
	for _, name := range slices.Sorted(maps.Keys(sub.features)) {
		if err := claim(name, sub.features[name].Ref); err != nil {
			return err
		}
		m.features[name] = sub.features[name]
	}
	return nil
}

func (res *resolution) edge(from, to string, link Link) {
	res.lineage = append(res.lineage, Edge{
		From:         from,
		To:           to,
		Relation:     link.Relation(),
		InstanceName: link.InstanceName,
	})
}

// load fetches and decodes a document, at most once per resolution.
func (res *resolution) load(ctx context.Context, ref string) (*ThingModel, error) {
	if doc, ok := res.docs[ref]; ok {
		return doc, nil
	}

	logger := component.Logger(ctx)
	logger.Debug("Fetching thing model", slog.String("ref", ref))
	data, err := res.resolver.Fetcher.Fetch(ctx, ref)
	if err != nil {
		fetchFailures.Add(ctx, 1)
		return nil, &FetchError{Ref: ref, Err: err}
	}
	data = substitute(data, res.resolver.Placeholders)

	doc, err := Decode(data)
	if err != nil {
		return nil, &ModelError{Ref: ref, Err: err}
	}
	res.docs[ref] = doc
	return doc, nil
}

// ResolveReference resolves a link target against the reference of the
// linking document. Fragments are dropped; they never name a distinct
// document.
func ResolveReference(base, href string) (string, error) {
	h, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", href, err)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", base, err)
	}
	if h.IsAbs() || h.Host != "" || strings.HasPrefix(h.Path, "/") || b.IsAbs() || b.Host != "" || strings.HasPrefix(b.Path, "/") {
		u := b.ResolveReference(h)
		u.Fragment = ""
		return u.String(), nil
	}

	// Both references are relative paths, such as bare document names. URL
	// resolution would root them at "/", so they are joined as paths instead.
	u := &url.URL{Path: b.Path, RawQuery: b.RawQuery}
	if h.Path != "" {
		u.Path = path.Join(path.Dir(b.Path), h.Path)
		u.RawQuery = h.RawQuery
	} else if h.RawQuery != "" {
		u.RawQuery = h.RawQuery
	}
	return u.String(), nil
}

func stripFragment(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	u.Fragment = ""
	return u.String()
}

func appendUnique(dst []string, src ...string) []string {
	for _, s := range src {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}

// Dependencies returns the references of every document the given document,
// fetched from ref, needs for its resolution: the targets of its tm:extends and
// tm:submodel links, and of its affordance-level tm:ref pointers. Each
// reference is listed once, in document order.
func (tm *ThingModel) Dependencies(ref string) ([]string, error) {
	var deps []string
	add := func(href string) error {
		target, err := ResolveReference(ref, href)
		if err != nil {
			return err
		}
		deps = appendUnique(deps, target)
		return nil
	}

	for _, link := range tm.Links {
		if link.Relation() == RelationUnknown {
			continue
		}
		if err := add(link.Href); err != nil {
			return nil, err
		}
	}

	var pointers []string
	for _, name := range tm.PropertyNames() {
		if p := tm.Properties[name]; p != nil {
			pointers = append(pointers, p.Ref)
		}
	}
	for _, name := range tm.ActionNames() {
		if a := tm.Actions[name]; a != nil {
			pointers = append(pointers, a.Ref)
		}
	}
	for _, name := range tm.EventNames() {
		if e := tm.Events[name]; e != nil {
			pointers = append(pointers, e.Ref)
		}
	}
	for _, p := range pointers {
		if href, _, _ := strings.Cut(p, "#"); href != "" {
			if err := add(href); err != nil {
				return nil, err
			}
		}
	}
	return deps, nil
}
