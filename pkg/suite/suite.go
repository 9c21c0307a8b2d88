package suite

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ormasoftchile/tent/pkg/catalog"
)

// ErrNoSuchCase is returned by Case for an out of range index.
var ErrNoSuchCase = errors.New("no such test case")

// Suite is a validated suite document. It hands out fresh TestCase values
// on every iteration; callers may modify what they receive.
type Suite struct {
	Name        string
	Description string
	Source      string
	Warnings    []*ValidationError

	cases []TestCase
}

// Cases returns the test cases in document order. The sequence is finite,
// restartable and yields the same cases every time it is ranged.
func (s *Suite) Cases() iter.Seq[*TestCase] {
	return func(yield func(*TestCase) bool) {
		for i := range s.cases {
			if !yield(s.cases[i].clone()) {
				return
			}
		}
	}
}

// Len returns the number of test cases.
func (s *Suite) Len() int { return len(s.cases) }

// Titles returns the case titles in document order.
func (s *Suite) Titles() []string {
	titles := make([]string, len(s.cases))
	for i, tc := range s.cases {
		titles[i] = tc.Title
	}
	return titles
}

// Case returns the i-th test case.
func (s *Suite) Case(i int) (*TestCase, error) {
	if i < 0 || i >= len(s.cases) {
		return nil, fmt.Errorf("case %d of %d: %w", i, len(s.cases), ErrNoSuchCase)
	}
	return s.cases[i].clone(), nil
}

// Single synthesizes a one-step test case for an ad-hoc, parameterless run
// of ref ("module" or "module.invocable"). Only module resolution is checked.
func Single(res Resolver, ref string) (*TestCase, error) {
	inv, err := resolveTarget(res, ref, "")
	if err != nil {
		return nil, err
	}
	return &TestCase{
		Title: "[module] " + ref,
		Steps: []*Step{{Index: 0, Module: inv.Module, Invocable: inv.Name}},
	}, nil
}

// Discover lists the suite names (file names without .yaml) in dir, sorted.
// Module manifests are skipped. A missing directory yields no suites.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read suites directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, catalog.ManifestSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".yaml"))
	}
	slices.Sort(names)
	return names, nil
}

// PathFor returns the file path of a named suite in dir.
func PathFor(dir, name string) string {
	return filepath.Join(dir, name+".yaml")
}

func (tc *TestCase) clone() *TestCase {
	out := &TestCase{Title: tc.Title, Steps: make([]*Step, len(tc.Steps))}
	for i, s := range tc.Steps {
		c := *s
		if s.Chain != nil {
			idx := *s.Chain
			c.Chain = &idx
		}
		if s.Parameters != nil {
			c.Parameters = cloneMap(s.Parameters)
		}
		out.Steps[i] = &c
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
