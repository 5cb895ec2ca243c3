package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func setup(t *testing.T, extra string) string {
	t.Helper()
	models := t.TempDir()
	writeFiles(t, models, map[string]string{
		"lamps/switchable.tm.json": `{
			"title": "Switchable",
			"properties": {"on": {"type": "boolean", "ditto:category": "status"}},
			"actions": {"toggle": {}}
		}`,
		"lamps/lamp.tm.json": `{
			"title": "Lamp",
			"links": [
				{"rel": "tm:extends", "href": "switchable.tm.json"},
				{"rel": "tm:submodel", "href": "../parts/dimmer.tm.json", "instanceName": "dimmer"}
			],
			"properties": {"vendor": {"type": "string", "const": "{{VENDOR}}"}}
		}`,
		"parts/dimmer.tm.json": `{
			"title": "Dimmer",
			"properties": {
				"mode": {"title": "Mode", "enum": ["eco", "boost"], "ditto:category": "configuration"}
			}
		}`,
	})

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFiles(t, filepath.Dir(configPath), map[string]string{
		"config.yaml": "source:\n  bucket_url: \"file://" + filepath.ToSlash(models) + "\"\n" +
			"resolver:\n  placeholders:\n    VENDOR: acme\n" + extra,
	})
	return configPath
}

func TestRun(t *testing.T) {
	configPath := setup(t, "")

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-config", configPath, "lamps/lamp.tm.json"}, &stdout, io.Discard)
	if err != nil {
		t.Fatal("run:", err)
	}

	var got report
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("output is not a report: %v\n%s", err, stdout.String())
	}

	want := report{
		Ref:      "bucket:///lamps/lamp.tm.json",
		Title:    "Lamp",
		Strategy: "separate",
		Features: []string{"dimmer"},
		Lineage: []reportEdge{
			{From: "bucket:///lamps/lamp.tm.json", To: "bucket:///lamps/switchable.tm.json", Relation: "tm:extends"},
			{From: "bucket:///lamps/lamp.tm.json", To: "bucket:///parts/dimmer.tm.json", Relation: "tm:submodel", InstanceName: "dimmer"},
		},
		Types: []reportType{
			{Name: "Mode", Kind: "enum", Base: "string", Cases: []string{"Eco", "Boost"}},
		},
		Properties: []reportProperty{
			{Name: "on", Path: "/status/on", Type: "boolean", Actual: "/attributes/status/on"},
			{Name: "vendor", Path: "vendor", Type: "string"},
			{
				Feature: "dimmer", Name: "mode", Path: "/configuration/mode", Type: "Mode",
				Actual:  "/features/dimmer/properties/configuration/mode",
				Desired: "/features/dimmer/desiredProperties/configuration/mode",
			},
		},
		Actions: []reportAction{{Name: "toggle"}},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_StrategyOverride(t *testing.T) {
	configPath := setup(t, "")
	tests := []struct {
		name string
		env  string
		args []string
		want string
	}{
		{name: "configuration", want: "separate"},
		{name: "flag", args: []string{"-generation-strategy", "inline"}, want: "inline"},
		{name: "environment", env: "inline", want: "inline"},
		{name: "flag over environment", env: "inline", args: []string{"-generation-strategy", "separate"}, want: "separate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("TMRESOLVE_GENERATION_STRATEGY", tt.env)
			}
			// The environment is read once, through the flags.
			t.Setenv("TMRESOLVE_STRATEGY", "shared")

			args := append([]string{"-config", configPath}, tt.args...)
			args = append(args, "lamps/lamp.tm.json")
			var stdout bytes.Buffer
			if err := run(context.Background(), args, &stdout, io.Discard); err != nil {
				t.Fatal("run:", err)
			}
			var got report
			if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Strategy != tt.want {
				t.Errorf("Strategy = %q, want %q", got.Strategy, tt.want)
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	configPath := setup(t, "")
	tests := []struct {
		name string
		args []string
	}{
		{"no reference", []string{"-config", configPath}},
		{"unknown strategy", []string{"-config", configPath, "-generation-strategy", "shared", "lamps/lamp.tm.json"}},
		{"unknown flag", []string{"-config", configPath, "-strategy", "inline", "lamps/lamp.tm.json"}},
		{"missing model", []string{"-config", configPath, "lamps/missing.tm.json"}},
		{"missing config", []string{"-config", filepath.Join(t.TempDir(), "none.yaml"), "lamps/lamp.tm.json"}},
	}
	for _, tt := range tests {
		if err := run(context.Background(), tt.args, io.Discard, io.Discard); err == nil {
			t.Errorf("%s: run succeeded", tt.name)
		}
	}
}
