package catalog

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

const greetManifest = `apiVersion: module/v0
meta:
  name: greet
  description: Greets via the shell
invocables:
  - name: hello
    argv: ["sh", "-c", "echo hello {{ .who }}"]
    params:
      - name: who
        type: string
        default: world
  - name: version
    argv: ["sh", "-c", "echo 'tool v1.4.2'"]
    extract:
      version:
        from: stdout
        pattern: 'v(\d+\.\d+\.\d+)'
  - name: broken
    argv: ["sh", "-c", "echo oops >&2; exit 3"]
`

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestLoadManifest_RejectsUnknownFields(t *testing.T) {
	_, err := LoadManifest(strings.NewReader("apiVersion: module/v0\nmeta:\n  name: x\n  colour: red\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateManifest(t *testing.T) {
	m := &Manifest{
		APIVersion: "module/v9",
		Invocables: []ManifestInvocable{
			{Name: "a", Argv: []string{"true"}},
			{Name: "a"},
			{Name: "b", Argv: []string{"x"}, Extract: map[string]Extract{"v": {From: "socket"}}},
		},
	}
	errs := ValidateManifest(m)

	var joined []string
	for _, e := range errs {
		joined = append(joined, e.Error())
	}
	all := strings.Join(joined, "\n")
	for _, want := range []string{"apiVersion", "meta.name", "duplicate invocable", "argv: required", "invalid source"} {
		if !strings.Contains(all, want) {
			t.Errorf("missing %q in:\n%s", want, all)
		}
	}
}

func TestManifest_Module(t *testing.T) {
	requireShell(t)

	m, err := LoadManifest(strings.NewReader(greetManifest))
	if err != nil {
		t.Fatal(err)
	}
	if errs := ValidateManifest(m); len(errs) > 0 {
		t.Fatalf("validate: %v", errs)
	}

	r := New()
	if err := r.Add(m.Module()); err != nil {
		t.Fatal(err)
	}

	inv, err := r.Resolve("greet", "hello")
	if err != nil {
		t.Fatal(err)
	}
	p, ok := inv.Param("who")
	if !ok || !p.HasDefault || p.Default != "world" {
		t.Errorf("param who = %+v", p)
	}

	got, err := r.Invoke(context.Background(), inv, map[string]any{"who": "tent"})
	if err != nil {
		t.Fatal(err)
	}
	out := got.(map[string]any)
	if out["stdout"] != "hello tent" || out["exit_code"] != 0 {
		t.Errorf("result = %v", out)
	}

	inv, _ = r.Resolve("greet", "version")
	got, err = r.Invoke(context.Background(), inv, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := got.(map[string]any)["version"]; v != "1.4.2" {
		t.Errorf("version = %v, want 1.4.2", v)
	}

	inv, _ = r.Resolve("greet", "broken")
	_, err = r.Invoke(context.Background(), inv, nil)
	if !IsAssertion(err) {
		t.Fatalf("err = %v, want assertion", err)
	}
	if !strings.Contains(err.Error(), "exit code 3, want 0: oops") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadManifests(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "greet"+ManifestSuffix), []byte(greetManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.yaml"), []byte("ignored: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	if err := r.LoadManifests(dir); err != nil {
		t.Fatal(err)
	}
	cat := r.Catalog()
	if len(cat) != 1 || cat[0].Name != "greet" || len(cat[0].Invocables) != 3 {
		t.Errorf("catalog = %+v", cat)
	}

	if err := New().LoadManifests(filepath.Join(dir, "missing")); err != nil {
		t.Errorf("missing dir: %v", err)
	}
}

func TestLoadManifests_InvalidFileNamesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad"+ManifestSuffix)
	if err := os.WriteFile(path, []byte("apiVersion: module/v0\nmeta:\n  name: bad\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := New().LoadManifests(dir)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("err = %v, want path %s", err, path)
	}
}

func TestApplyExtract(t *testing.T) {
	out, err := applyExtract(map[string]Extract{
		"id":    {From: "json", Path: "data.id"},
		"warn":  {From: "stderr"},
		"whole": {From: "stdout", Pattern: `ok`},
	}, `{"data":{"id":"abc"}}`, "  careful \n")
	if err != nil {
		t.Fatal(err)
	}
	if out["id"] != "abc" || out["warn"] != "careful" {
		t.Errorf("out = %v", out)
	}
	if _, ok := out["whole"]; ok {
		t.Errorf("whole should not match: %v", out["whole"])
	}

	if _, err := applyExtract(map[string]Extract{"x": {From: "json"}}, "not json", ""); err == nil {
		t.Error("expected json parse error")
	}
}
