package eval

import "testing"

func TestResolve_Literal(t *testing.T) {
	got, err := Resolve("plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "plain" {
		t.Errorf("got %q", got)
	}
}

func TestResolve_Vars(t *testing.T) {
	got, err := Resolve("https://{{ .host }}:{{ .port }}/", map[string]any{"host": "srv1", "port": 8080})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://srv1:8080/" {
		t.Errorf("got %q", got)
	}
}

func TestResolve_MissingKeyIsEmpty(t *testing.T) {
	got, err := Resolve("[{{ .nope }}]", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "[]" {
		t.Errorf("got %q, want []", got)
	}
}

func TestResolve_Funcs(t *testing.T) {
	vars := map[string]any{"name": "", "obj": map[string]any{"a": 1}}
	got, err := Resolve(`{{ default "anon" .name }} {{ json .obj }} {{ upper "x" }}`, vars)
	if err != nil {
		t.Fatal(err)
	}
	if got != `anon {"a":1} X` {
		t.Errorf("got %q", got)
	}
}

func TestResolve_ParseError(t *testing.T) {
	if _, err := Resolve("{{ .broken", nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResolveAll(t *testing.T) {
	got, err := ResolveAll([]string{"echo", "{{ .msg }}"}, map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != "hi" {
		t.Errorf("got %v", got)
	}
}
