package main

import (
	"github.com/go-digitaltwin/go-thingmodel"
	"github.com/go-digitaltwin/go-thingmodel/typeresolve"
)

type report struct {
	Ref        string           `json:"ref"`
	Title      string           `json:"title,omitempty"`
	Strategy   string           `json:"strategy"`
	Features   []string         `json:"features"`
	Lineage    []reportEdge     `json:"lineage"`
	Types      []reportType     `json:"types"`
	Properties []reportProperty `json:"properties"`
	Actions    []reportAction   `json:"actions,omitempty"`
	Events     []reportEvent    `json:"events,omitempty"`
}

type reportEdge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relation     string `json:"relation"`
	InstanceName string `json:"instanceName,omitempty"`
}

type reportType struct {
	Name   string        `json:"name"`
	Kind   string        `json:"kind"`
	Base   string        `json:"base,omitempty"`
	Fields []reportField `json:"fields,omitempty"`
	Cases  []string      `json:"cases,omitempty"`
}

type reportField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

type reportProperty struct {
	Feature string `json:"feature,omitempty"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Type    string `json:"type"`
	Actual  string `json:"actual,omitempty"`
	Desired string `json:"desired,omitempty"`
}

type reportAction struct {
	Feature string `json:"feature,omitempty"`
	Name    string `json:"name"`
	Input   string `json:"input,omitempty"`
	Output  string `json:"output,omitempty"`
}

type reportEvent struct {
	Feature string `json:"feature,omitempty"`
	Name    string `json:"name"`
	Data    string `json:"data,omitempty"`
}

func newReport(eff *thingmodel.Effective, res *typeresolve.Result) report {
	r := report{
		Ref:        eff.Ref,
		Title:      eff.Title,
		Strategy:   res.Registry.Strategy().String(),
		Features:   eff.FeatureNames(),
		Lineage:    []reportEdge{},
		Types:      []reportType{},
		Properties: []reportProperty{},
	}
	for _, e := range eff.Lineage {
		r.Lineage = append(r.Lineage, reportEdge{From: e.From, To: e.To, Relation: e.Relation.String(), InstanceName: e.InstanceName})
	}
	for _, d := range res.Registry.Declarations() {
		t := reportType{Name: d.QualifiedName(), Kind: d.Kind.String()}
		switch d.Kind {
		case typeresolve.KindEnum:
			t.Base = d.Base.String()
			for _, c := range d.Cases {
				t.Cases = append(t.Cases, c.Name)
			}
		case typeresolve.KindObject:
			for _, f := range d.Fields {
				t.Fields = append(t.Fields, reportField{Name: f.Name, Type: f.Type.String(), Required: f.Required})
			}
		}
		r.Types = append(r.Types, t)
	}
	for _, p := range res.Properties {
		rp := reportProperty{Feature: p.Feature, Name: p.Name, Path: p.Path.String(), Type: p.Type.String()}
		if actual, ok := p.Address(false); ok {
			rp.Actual = actual.String()
			if p.Feature != "" {
				desired, _ := p.Address(true)
				rp.Desired = desired.String()
			}
		}
		r.Properties = append(r.Properties, rp)
	}
	for _, a := range res.Actions {
		r.Actions = append(r.Actions, reportAction{Feature: a.Feature, Name: a.Name, Input: typeName(a.Input), Output: typeName(a.Output)})
	}
	for _, e := range res.Events {
		r.Events = append(r.Events, reportEvent{Feature: e.Feature, Name: e.Name, Data: typeName(e.Data)})
	}
	return r
}

func typeName(t *typeresolve.TypeRef) string {
	if t == nil {
		return ""
	}
	return t.String()
}
