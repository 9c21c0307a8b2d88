package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// APIVersionModule is the apiVersion of module manifests.
const APIVersionModule = "module/v0"

// ManifestSuffix is the file suffix LoadManifests looks for.
const ManifestSuffix = ".module.yaml"

// Manifest is a .module.yaml document declaring a module whose invocables
// run an external binary.
type Manifest struct {
	APIVersion string              `yaml:"apiVersion"`
	Meta       ManifestMeta        `yaml:"meta"`
	Invocables []ManifestInvocable `yaml:"invocables"`
}

// ManifestMeta holds the module identity and the binary used for execution.
type ManifestMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Binary      string `yaml:"binary,omitempty"`
}

// ManifestInvocable defines one invocable backed by a process invocation.
type ManifestInvocable struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Argv        []string           `yaml:"argv"`
	Params      []ManifestParam    `yaml:"params,omitempty"`
	Extract     map[string]Extract `yaml:"extract,omitempty"`
	ExpectExit  int                `yaml:"expect_exit,omitempty"`
}

// ManifestParam declares a parameter. A missing default means required.
type ManifestParam struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type,omitempty"`
	Default     any    `yaml:"default,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Extract maps process output to a named result value.
type Extract struct {
	From    string `yaml:"from"`              // stdout, stderr, json
	Pattern string `yaml:"pattern,omitempty"` // first capture group wins
	Path    string `yaml:"path,omitempty"`    // dot path, for json
}

// LoadManifestFile reads and structurally decodes a manifest file.
func LoadManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open module manifest: %w", err)
	}
	defer f.Close()
	return LoadManifest(f)
}

// LoadManifest decodes a manifest with strict unknown-field rejection.
func LoadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode module manifest: %w", err)
	}
	return &m, nil
}

// ValidateManifest performs domain-level validation of a decoded manifest.
func ValidateManifest(m *Manifest) []error {
	var errs []error

	if m.APIVersion != APIVersionModule {
		errs = append(errs, fmt.Errorf("apiVersion: unrecognized %q, expected %q", m.APIVersion, APIVersionModule))
	}
	if m.Meta.Name == "" {
		errs = append(errs, errors.New("meta.name: required"))
	}
	if len(m.Invocables) == 0 {
		errs = append(errs, errors.New("invocables: at least one invocable is required"))
	}

	seen := make(map[string]bool)
	for i, inv := range m.Invocables {
		prefix := fmt.Sprintf("invocables[%d]", i)
		if inv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name: required", prefix))
		} else if seen[inv.Name] {
			errs = append(errs, fmt.Errorf("%s.name: duplicate invocable %q", prefix, inv.Name))
		}
		seen[inv.Name] = true

		if len(inv.Argv) == 0 {
			errs = append(errs, fmt.Errorf("%s.argv: required", prefix))
		}

		params := make(map[string]bool)
		for j, p := range inv.Params {
			if p.Name == "" {
				errs = append(errs, fmt.Errorf("%s.params[%d].name: required", prefix, j))
				continue
			}
			if params[p.Name] {
				errs = append(errs, fmt.Errorf("%s.params[%d]: duplicate parameter %q", prefix, j, p.Name))
			}
			params[p.Name] = true
		}

		for name, ext := range inv.Extract {
			switch ext.From {
			case "stdout", "stderr", "json", "":
			default:
				errs = append(errs, fmt.Errorf("%s.extract.%s.from: invalid source %q: must be stdout, stderr, or json", prefix, name, ext.From))
			}
			if ext.Pattern != "" {
				if _, err := regexp.Compile(ext.Pattern); err != nil {
					errs = append(errs, fmt.Errorf("%s.extract.%s.pattern: %v", prefix, name, err))
				}
			}
		}
	}
	return errs
}

// Module converts the manifest into registry metadata.
func (m *Manifest) Module() ModuleMeta {
	meta := ModuleMeta{Name: m.Meta.Name, Description: m.Meta.Description}
	for i := range m.Invocables {
		mi := &m.Invocables[i]
		inv := &Invocable{
			Name:        mi.Name,
			Description: mi.Description,
			Func: func(ctx context.Context, params map[string]any) (any, error) {
				return runProcess(ctx, m.Meta.Binary, mi, params)
			},
		}
		for _, p := range mi.Params {
			inv.Params = append(inv.Params, Param{
				Name:        p.Name,
				Type:        p.Type,
				Default:     p.Default,
				HasDefault:  p.Default != nil,
				Description: p.Description,
			})
		}
		meta.Invocables = append(meta.Invocables, inv)
	}
	return meta
}

// LoadManifests registers every *.module.yaml in dir. A missing directory is
// not an error.
func (r *Registry) LoadManifests(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read modules directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ManifestSuffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		m, err := LoadManifestFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if errs := ValidateManifest(m); len(errs) > 0 {
			return fmt.Errorf("%s: %w", path, errors.Join(errs...))
		}
		if err := r.Add(m.Module()); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
