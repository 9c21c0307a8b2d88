package suite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/tent/pkg/catalog"
)

func testRegistry() *catalog.Registry {
	nop := func(context.Context, map[string]any) (any, error) { return nil, nil }
	r := catalog.New()
	r.RegisterModule(catalog.ModuleMeta{Name: "api", Invocables: []*catalog.Invocable{
		{Name: "create", Params: []catalog.Param{catalog.Required("name", "string", "")}, Func: nop},
		{Name: "get", Params: []catalog.Param{catalog.Required("id", "", ""), catalog.Optional("verbose", "bool", false, "")}, Func: nop},
	}})
	r.RegisterModule(catalog.ModuleMeta{Name: "ping", Invocables: []*catalog.Invocable{
		{Name: "run", Params: []catalog.Param{catalog.Optional("x", "int", 5, "")}, Func: nop},
	}})
	r.Freeze()
	return r
}

const listSuite = `
- title: create then get
  steps:
    - id: create
      module: api
      invocable: create
      parameters: {name: widget}
    - module: api.get
      chain: create
- title: ping
  steps:
    - module: ping
- title: by index
  steps:
    - module: api.create
      parameters: {name: a}
    - module: api.get
      chain: 0
      parameters: {verbose: "yes"}
`

func mustLoad(t *testing.T, doc string) *Suite {
	t.Helper()
	s, err := Load(strings.NewReader(doc), testRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func collect(s *Suite) []*TestCase {
	var out []*TestCase
	for tc := range s.Cases() {
		out = append(out, tc)
	}
	return out
}

func TestLoad_ListDocument(t *testing.T) {
	s := mustLoad(t, listSuite)

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	if diff := cmp.Diff([]string{"create then get", "ping", "by index"}, s.Titles()); diff != "" {
		t.Errorf("titles (-want +got):\n%s", diff)
	}

	cases := collect(s)
	if len(cases) != 3 {
		t.Fatalf("ranged %d cases, want 3", len(cases))
	}

	first := cases[0]
	if got := first.Steps[1].Ref(); got != "api.get" {
		t.Errorf("shorthand ref = %q", got)
	}
	if first.Steps[1].Chain == nil || *first.Steps[1].Chain != 0 {
		t.Errorf("chain by id = %v, want 0", first.Steps[1].Chain)
	}
	if got := cases[1].Steps[0].Ref(); got != "ping.run" {
		t.Errorf("sole invocable ref = %q", got)
	}
	if cases[2].Steps[1].Chain == nil || *cases[2].Steps[1].Chain != 0 {
		t.Errorf("chain by index = %v", cases[2].Steps[1].Chain)
	}
}

func TestLoad_MappingDocument(t *testing.T) {
	s := mustLoad(t, `
name: smoke
description: quick checks
cases:
  - title: ping
    steps:
      - module: ping.run
        parameters: {x: 7}
`)
	if s.Name != "smoke" || s.Description != "quick checks" {
		t.Errorf("name/description = %q/%q", s.Name, s.Description)
	}
	tc, err := s.Case(0)
	if err != nil {
		t.Fatal(err)
	}
	if tc.Steps[0].Parameters["x"] != 7 {
		t.Errorf("parameters = %v", tc.Steps[0].Parameters)
	}
	if _, err := s.Case(1); !errors.Is(err, ErrNoSuchCase) {
		t.Errorf("Case(1) err = %v", err)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	a := collect(mustLoad(t, listSuite))
	b := collect(mustLoad(t, listSuite))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("loads differ (-first +second):\n%s", diff)
	}
}

func TestCases_Restartable(t *testing.T) {
	s := mustLoad(t, listSuite)
	first := collect(s)
	first[2].Steps[0].Parameters["name"] = "mutated"
	first[0].Title = "mutated"

	second := collect(s)
	if second[2].Steps[0].Parameters["name"] != "a" || second[0].Title != "create then get" {
		t.Error("mutating a yielded case leaked into the suite")
	}

	// Early break stops the sequence.
	n := 0
	for range s.Cases() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("n = %d", n)
	}
}

func TestLoad_UnknownModuleFailsBeforeExecution(t *testing.T) {
	_, err := Load(strings.NewReader(`
- title: missing module
  steps:
    - module: nope
`), testRegistry())
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var le *LoadError
	if !errors.As(err, &le) || le.Errors[0].Path != "cases[0].steps[0].module" {
		t.Errorf("load error = %#v", err)
	}
}

func TestLoad_ChainReferences(t *testing.T) {
	tests := []struct {
		name  string
		chain string
	}{
		{"self by index", "1"},
		{"forward by index", "2"},
		{"negative", "-1"},
		{"self by id", "second"},
		{"forward by id", "third"},
		{"unknown id", "nobody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `
- title: chains
  steps:
    - id: first
      module: api.create
      parameters: {name: a}
    - id: second
      module: api.get
      chain: ` + tt.chain + `
    - id: third
      module: api.get
      parameters: {id: x}
`
			_, err := Load(strings.NewReader(doc), testRegistry())
			if !errors.Is(err, ErrInvalidChainReference) {
				t.Errorf("err = %v, want ErrInvalidChainReference", err)
			}
		})
	}
}

func TestLoad_UnknownParameter(t *testing.T) {
	_, err := Load(strings.NewReader(`
- title: extra
  steps:
    - module: ping
      parameters: {x: 1, y: 2}
`), testRegistry())
	if !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("err = %v, want ErrUnknownParameter", err)
	}
	if !strings.Contains(err.Error(), `"y"`) {
		t.Errorf("err = %v, want mention of y", err)
	}
}

func TestLoad_AggregatesErrors(t *testing.T) {
	_, err := Load(strings.NewReader(`
- title: many problems
  steps:
    - module: nope
    - module: ping
      parameters: {bad: 1}
    - module: ping
      chain: 5
`), testRegistry())
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v", err)
	}
	if len(le.Errors) != 3 {
		t.Errorf("got %d errors, want 3:\n%v", len(le.Errors), err)
	}
	for _, target := range []error{catalog.ErrNotFound, ErrUnknownParameter, ErrInvalidChainReference} {
		if !errors.Is(err, target) {
			t.Errorf("errors.Is(err, %v) = false", target)
		}
	}
}

func TestLoad_Structural(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown step field", "- title: x\n  steps:\n    - module: ping\n      colour: red\n"},
		{"unknown top-level field", "cases: []\nowner: me\n"},
		{"scalar document", "just a string\n"},
		{"empty document", ""},
		{"bad yaml", "- title: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc), testRegistry())
			if !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("err = %v, want ErrInvalidDocument", err)
			}
			var le *LoadError
			if errors.As(err, &le) && le.Errors[0].Phase != "structural" {
				t.Errorf("phase = %q, want structural", le.Errors[0].Phase)
			}
		})
	}
}

func TestLoad_Semantic(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing steps", "- title: no steps\n"},
		{"empty steps", "- title: empty\n  steps: []\n"},
		{"empty title", "- title: \"\"\n  steps:\n    - module: ping\n"},
		{"missing cases", "name: nothing\n"},
		{"chain list", "- title: x\n  steps:\n    - module: ping\n    - module: ping\n      chain: [0]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc), testRegistry())
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("err = %v, want LoadError", err)
			}
			if le.Errors[0].Phase != "semantic" {
				t.Errorf("phase = %q, want semantic (%v)", le.Errors[0].Phase, err)
			}
		})
	}
}

func TestValidate_EmptySuiteWarns(t *testing.T) {
	findings := Validate(strings.NewReader("[]\n"), testRegistry())
	if len(findings) != 1 || findings[0].Severity != "warning" {
		t.Errorf("findings = %v", findings)
	}
	s := mustLoad(t, "[]\n")
	if s.Len() != 0 || len(s.Warnings) != 1 {
		t.Errorf("len=%d warnings=%v", s.Len(), s.Warnings)
	}
}

func TestLoadFile_DefaultsName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smoke.yaml")
	if err := os.WriteFile(path, []byte(listSuite), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadFile(path, testRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "smoke" || s.Source != path {
		t.Errorf("name=%q source=%q", s.Name, s.Source)
	}

	_, err = LoadFile(filepath.Join(dir, "nope.yaml"), testRegistry())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestSingle(t *testing.T) {
	tc, err := Single(testRegistry(), "ping")
	if err != nil {
		t.Fatal(err)
	}
	if tc.Title != "[module] ping" || len(tc.Steps) != 1 || tc.Steps[0].Ref() != "ping.run" {
		t.Errorf("tc = %+v", tc)
	}
	if tc.Steps[0].Chain != nil || len(tc.Steps[0].Parameters) != 0 {
		t.Errorf("step = %+v", tc.Steps[0])
	}

	tc, err = Single(testRegistry(), "api.get")
	if err != nil || tc.Steps[0].Ref() != "api.get" {
		t.Errorf("api.get: %v, %v", tc, err)
	}

	if _, err := Single(testRegistry(), "api"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("ambiguous module err = %v", err)
	}
	if _, err := Single(testRegistry(), "nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("missing module err = %v", err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yaml", "a.yaml.log", "http" + catalog.ManifestSuffix, "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Discover = %v", got)
	}
	if got, err := Discover(filepath.Join(dir, "missing")); err != nil || got != nil {
		t.Errorf("missing dir = %v, %v", got, err)
	}
	if p := PathFor(dir, "a"); p != filepath.Join(dir, "a.yaml") {
		t.Errorf("PathFor = %q", p)
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"CaseEntry"`, `"StepEntry"`, `"chain"`, `"2020-12`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema missing %s", want)
		}
	}
}
