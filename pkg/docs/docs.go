// Package docs renders the module catalog for people: a plain listing for
// the terminal, Markdown for rich terminals, and HTML for the web front end.
package docs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"

	"github.com/ormasoftchile/tent/pkg/catalog"
)

// Undocumented is shown for parameters without a type annotation.
const Undocumented = "Undocumented"

// WritePlain writes the catalog as an indented text listing:
//
//	http : HTTP requests
//	- get : Send a GET request.
//	  * url : string
//	  * timeout : duration
//	    default value: "10s"
func WritePlain(w io.Writer, mods []catalog.ModuleMeta) error {
	var b strings.Builder
	for _, m := range mods {
		b.WriteString(labelled(m.Name, m.Description))
		b.WriteByte('\n')
		for _, inv := range m.Invocables {
			b.WriteString("- " + labelled(inv.Name, inv.Description) + "\n")
			for _, p := range inv.Params {
				fmt.Fprintf(&b, "  * %s : %s\n", p.Name, annotation(p))
				if p.HasDefault {
					fmt.Fprintf(&b, "    default value: %s\n", Repr(p.Default))
				}
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Markdown renders the catalog as a Markdown document.
func Markdown(mods []catalog.ModuleMeta) string {
	var b strings.Builder
	b.WriteString("# Modules\n\n")
	if len(mods) == 0 {
		b.WriteString("No modules registered.\n")
		return b.String()
	}
	for _, m := range mods {
		fmt.Fprintf(&b, "## %s\n\n", m.Name)
		if m.Description != "" {
			b.WriteString(m.Description + "\n\n")
		}
		for _, inv := range m.Invocables {
			fmt.Fprintf(&b, "### `%s`\n\n", inv.Ref())
			if inv.Description != "" {
				b.WriteString(inv.Description + "\n\n")
			}
			if len(inv.Params) == 0 {
				b.WriteString("*No parameters.*\n\n")
				continue
			}
			for _, p := range inv.Params {
				fmt.Fprintf(&b, "- `%s` *%s*", p.Name, annotation(p))
				if p.Description != "" {
					b.WriteString(" " + p.Description)
				}
				if p.HasDefault {
					fmt.Fprintf(&b, " Default value: `%s`", Repr(p.Default))
				}
				b.WriteByte('\n')
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Terminal renders the Markdown catalog with glamour. width <= 0 disables
// word wrap.
func Terminal(mods []catalog.ModuleMeta, width int) (string, error) {
	if width < 0 {
		width = 0
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(Markdown(mods))
	if err != nil {
		return "", fmt.Errorf("render modules: %w", err)
	}
	return out, nil
}

// HTML converts the Markdown catalog to an HTML fragment.
func HTML(mods []catalog.ModuleMeta) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(mods)), &buf); err != nil {
		return "", fmt.Errorf("convert modules: %w", err)
	}
	return buf.String(), nil
}

// Repr renders a default value the way it would be written in a suite.
func Repr(v any) string {
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func labelled(name, doc string) string {
	if doc == "" {
		return name
	}
	return name + " : " + doc
}

func annotation(p catalog.Param) string {
	if p.Type == "" {
		return Undocumented
	}
	return p.Type
}
