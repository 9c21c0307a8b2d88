// Package catalog is the module registry: it discovers test-action modules,
// exposes their invocables and parameter metadata as a read-only catalog, and
// dispatches invocations by name.
package catalog

import (
	"context"
	"slices"
	"strings"
)

// Func is the callable behind an invocable. params holds the bound parameter
// values keyed by declared name. Returning an *AssertionError (see Failf)
// marks the step as failed rather than errored.
type Func func(ctx context.Context, params map[string]any) (any, error)

// Param declares one parameter of an invocable.
type Param struct {
	Name        string `yaml:"name"                  json:"name"`
	Type        string `yaml:"type,omitempty"        json:"type,omitempty"`
	Default     any    `yaml:"default,omitempty"     json:"default,omitempty"`
	HasDefault  bool   `yaml:"-"                     json:"has_default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Required declares a parameter without a default value.
func Required(name, typ, description string) Param {
	return Param{Name: name, Type: typ, Description: description}
}

// Optional declares a parameter with a default value.
func Optional(name, typ string, def any, description string) Param {
	return Param{Name: name, Type: typ, Default: def, HasDefault: true, Description: description}
}

// Invocable is one callable test action exposed by a module.
// Invocables are immutable once registered.
type Invocable struct {
	Module      string  `json:"module"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Params      []Param `json:"params,omitempty"`
	Func        Func    `json:"-"`
}

// Ref returns the "module.invocable" reference of the invocable.
func (inv *Invocable) Ref() string {
	return inv.Module + "." + inv.Name
}

// Param looks up a declared parameter by name.
func (inv *Invocable) Param(name string) (Param, bool) {
	for _, p := range inv.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// ModuleMeta describes one module and its invocables in declaration order.
type ModuleMeta struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Invocables  []*Invocable `json:"invocables"`
}

// clone returns a deep copy so catalog readers cannot reach registry state.
func (m *ModuleMeta) clone() ModuleMeta {
	out := ModuleMeta{Name: m.Name, Description: m.Description}
	out.Invocables = make([]*Invocable, len(m.Invocables))
	for i, inv := range m.Invocables {
		c := *inv
		c.Params = slices.Clone(inv.Params)
		out.Invocables[i] = &c
	}
	return out
}

// ParseRef splits a "module.invocable" reference at its last dot.
// A reference without a dot yields an empty invocable name.
func ParseRef(ref string) (module, invocable string) {
	ref = strings.TrimSpace(ref)
	i := strings.LastIndex(ref, ".")
	if i < 0 {
		return ref, ""
	}
	return ref[:i], ref[i+1:]
}
