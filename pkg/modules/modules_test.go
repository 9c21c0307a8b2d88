package modules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewRegistry_CoreOnly(t *testing.T) {
	r, err := NewRegistry("", filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, m := range r.Catalog() {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"assert", "env", "http", "util"}, names); diff != "" {
		t.Errorf("modules (-want +got):\n%s", diff)
	}
	if _, err := r.ResolveRef("http.get"); err != nil {
		t.Error(err)
	}
}

func TestNewRegistry_WithManifests(t *testing.T) {
	dir := t.TempDir()
	manifest := `apiVersion: module/v0
meta:
  name: tool
invocables:
  - name: version
    argv: ["tool", "--version"]
`
	if err := os.WriteFile(filepath.Join(dir, "tool.module.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.ResolveRef("tool.version"); err != nil {
		t.Error(err)
	}
}

func TestNewRegistry_ManifestCollision(t *testing.T) {
	dir := t.TempDir()
	manifest := `apiVersion: module/v0
meta:
  name: http
invocables:
  - name: get
    argv: ["curl"]
`
	if err := os.WriteFile(filepath.Join(dir, "http.module.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRegistry(dir); err == nil {
		t.Error("expected duplicate module error")
	}
}
