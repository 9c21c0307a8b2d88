package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Module is implemented by every Go test-action module so it can add itself
// to a registry.
type Module interface {
	Register(r *Registry)
}

// Registry holds the discovered modules for the lifetime of the process.
// Registration happens during start-up; after Freeze the catalog never
// changes and Resolve/Invoke are safe from many goroutines.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*ModuleMeta
	frozen  bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{modules: make(map[string]*ModuleMeta)}
}

// Discover registers every given Go module and returns the registry.
func (r *Registry) Discover(mods ...Module) *Registry {
	for _, m := range mods {
		m.Register(r)
	}
	return r
}

// RegisterModule adds a module. It panics on invalid or duplicate
// definitions, which are programmer errors in Go-registered modules.
func (r *Registry) RegisterModule(m ModuleMeta) {
	if err := r.Add(m); err != nil {
		panic(err)
	}
}

// Add validates and adds a module.
func (r *Registry) Add(m ModuleMeta) error {
	if err := checkModule(&m); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("module %q: registry is frozen", m.Name)
	}
	if _, exists := r.modules[m.Name]; exists {
		return fmt.Errorf("module %q already registered", m.Name)
	}

	stored := m.clone()
	for _, inv := range stored.Invocables {
		inv.Module = m.Name
	}
	r.modules[m.Name] = &stored
	slog.Debug("Registered module.", "module", m.Name, "invocables", len(stored.Invocables))
	return nil
}

func checkModule(m *ModuleMeta) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("module name is required")
	}
	if strings.ContainsAny(m.Name, " \t\n") {
		return fmt.Errorf("module %q: name must not contain whitespace", m.Name)
	}
	seen := make(map[string]bool, len(m.Invocables))
	for i, inv := range m.Invocables {
		if inv == nil || inv.Name == "" {
			return fmt.Errorf("module %q: invocable %d has no name", m.Name, i)
		}
		if strings.Contains(inv.Name, ".") {
			return fmt.Errorf("module %q: invocable name %q must not contain '.'", m.Name, inv.Name)
		}
		if seen[inv.Name] {
			return fmt.Errorf("module %q: duplicate invocable %q", m.Name, inv.Name)
		}
		seen[inv.Name] = true
		if inv.Func == nil {
			return fmt.Errorf("module %q: invocable %q has no function", m.Name, inv.Name)
		}
		params := make(map[string]bool, len(inv.Params))
		for _, p := range inv.Params {
			if p.Name == "" {
				return fmt.Errorf("%s.%s: parameter without a name", m.Name, inv.Name)
			}
			if params[p.Name] {
				return fmt.Errorf("%s.%s: duplicate parameter %q", m.Name, inv.Name, p.Name)
			}
			params[p.Name] = true
		}
	}
	return nil
}

// Freeze ends registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Catalog returns a copy of every module, sorted by name.
func (r *Registry) Catalog() []ModuleMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModuleMeta, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m.clone())
	}
	slices.SortFunc(out, func(a, b ModuleMeta) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Resolve finds an invocable by module and name. An empty name resolves to
// the module's only invocable. The returned value must not be modified.
func (r *Registry) Resolve(module, name string) (*Invocable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[module]
	if !ok {
		return nil, fmt.Errorf("module %q: %w", module, ErrNotFound)
	}
	if name == "" {
		if len(m.Invocables) == 1 {
			return m.Invocables[0], nil
		}
		return nil, fmt.Errorf("module %q has %d invocables, name one of them: %w", module, len(m.Invocables), ErrNotFound)
	}
	for _, inv := range m.Invocables {
		if inv.Name == name {
			return inv, nil
		}
	}
	return nil, fmt.Errorf("invocable %s.%s: %w", module, name, ErrNotFound)
}

// ResolveRef resolves a "module.invocable" reference. A bare module name is
// tried first so module names containing dots keep working.
func (r *Registry) ResolveRef(ref string) (*Invocable, error) {
	if inv, err := r.Resolve(strings.TrimSpace(ref), ""); err == nil {
		return inv, nil
	}
	module, name := ParseRef(ref)
	return r.Resolve(module, name)
}

// Invoke calls the invocable with already-bound parameters. Any failure,
// including a panic inside the action, is returned as *InvocationError.
func (r *Registry) Invoke(ctx context.Context, inv *Invocable, params map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &InvocationError{Ref: inv.Ref(), Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if params == nil {
		params = map[string]any{}
	}
	result, err = inv.Func(ctx, params)
	if err != nil {
		return nil, &InvocationError{Ref: inv.Ref(), Err: err}
	}
	return result, nil
}
