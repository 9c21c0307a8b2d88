// Package eval renders Go text/template expressions used in module manifests,
// e.g. argv entries such as "--id={{ .id }}".
package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Resolve evaluates a template string against a variable scope.
// Example: Resolve("https://{{ .host }}/healthz", {"host": "srv1"}) → "https://srv1/healthz"
func Resolve(tmpl string, vars map[string]any) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Option("missingkey=zero").Funcs(builtinFuncs()).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("template parse: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("template eval: %w", err)
	}
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

// ResolveAll resolves every entry of a string slice.
func ResolveAll(tmpls []string, vars map[string]any) ([]string, error) {
	out := make([]string, len(tmpls))
	for i, t := range tmpls {
		s, err := Resolve(t, vars)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"eq": func(a, b any) bool {
			return fmt.Sprint(a) == fmt.Sprint(b)
		},
		"ne": func(a, b any) bool {
			return fmt.Sprint(a) != fmt.Sprint(b)
		},
		"contains": func(s, substr any) bool {
			return strings.Contains(fmt.Sprint(s), fmt.Sprint(substr))
		},
		"default": func(def, val any) any {
			if val == nil || fmt.Sprint(val) == "" {
				return def
			}
			return val
		},
		"join": func(sep string, items []any) string {
			parts := make([]string, len(items))
			for i, it := range items {
				parts[i] = fmt.Sprint(it)
			}
			return strings.Join(parts, sep)
		},
		"json": func(v any) (string, error) {
			data, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}
}
