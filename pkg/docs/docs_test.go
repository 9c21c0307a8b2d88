package docs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/ormasoftchile/tent/pkg/catalog"
)

func testCatalog() []catalog.ModuleMeta {
	return []catalog.ModuleMeta{
		{
			Name:        "api",
			Description: "Target API",
			Invocables: []*catalog.Invocable{
				{Module: "api", Name: "create", Description: "Create a record.", Params: []catalog.Param{
					catalog.Required("name", "string", "Record name."),
				}},
				{Module: "api", Name: "get", Params: []catalog.Param{
					catalog.Required("id", "", ""),
					catalog.Optional("verbose", "bool", false, "Include details."),
					catalog.Optional("tags", "list", nil, ""),
				}},
			},
		},
		{
			Name: "ping",
			Invocables: []*catalog.Invocable{
				{Module: "ping", Name: "run", Description: "Ping the target."},
			},
		},
	}
}

func TestWritePlain(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePlain(&buf, testCatalog()); err != nil {
		t.Fatal(err)
	}
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "plain", buf.Bytes())
}

func TestMarkdown(t *testing.T) {
	md := Markdown(testCatalog())
	for _, want := range []string{
		"## api", "Target API", "### `api.get`", "- `id` *Undocumented*",
		"- `verbose` *bool* Include details. Default value: `false`",
		"- `tags` *list* Default value: `null`", "*No parameters.*",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if !strings.Contains(Markdown(nil), "No modules registered.") {
		t.Error("empty catalog not reported")
	}
}

func TestHTML(t *testing.T) {
	out, err := HTML(testCatalog())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<h2>api</h2>", "<h3><code>api.create</code></h3>", "<em>Undocumented</em>"} {
		if !strings.Contains(out, want) {
			t.Errorf("html missing %q:\n%s", want, out)
		}
	}
}

func TestTerminal(t *testing.T) {
	out, err := Terminal(testCatalog(), 80)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "api.create") {
		t.Errorf("terminal output missing invocable:\n%s", out)
	}
}

func TestRepr(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"world", `"world"`},
		{5, "5"},
		{nil, "null"},
		{[]string{"a"}, `["a"]`},
		{func() {}, "func"},
	}
	for _, tt := range tests {
		got := Repr(tt.in)
		if tt.want == "func" {
			if got == "" {
				t.Error("Repr(func) is empty")
			}
			continue
		}
		if got != tt.want {
			t.Errorf("Repr(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
