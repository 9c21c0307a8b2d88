package suite

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/tent/pkg/catalog"
)

// Resolver resolves step targets. *catalog.Registry implements it.
type Resolver interface {
	Resolve(module, name string) (*catalog.Invocable, error)
}

// LoadFile reads, validates and compiles a suite file. The suite name
// defaults to the file name without its extension.
func LoadFile(path string, res Resolver) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open suite: %w", err)
	}
	s, err := load(data, path, res)
	if err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Load reads, validates and compiles a suite document. Any error is a
// *LoadError and no part of the suite is usable.
func Load(r io.Reader, res Resolver) (*Suite, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	return load(data, "", res)
}

func load(data []byte, source string, res Resolver) (*Suite, error) {
	doc, cases, findings := validate(data, res)
	if hasErrors(findings) {
		var errs []*ValidationError
		for _, f := range findings {
			if f.Severity == "error" {
				errs = append(errs, f)
			}
		}
		return nil, &LoadError{Source: source, Errors: errs}
	}
	return &Suite{
		Name:        doc.Name,
		Description: doc.Description,
		Source:      source,
		Warnings:    findings,
		cases:       cases,
	}, nil
}

// Validate runs the full pipeline and returns every finding, warnings
// included, without building a suite.
func Validate(r io.Reader, res Resolver) []*ValidationError {
	data, err := io.ReadAll(r)
	if err != nil {
		return []*ValidationError{errorf("structural", "", err, "read suite: %v", err)}
	}
	_, _, findings := validate(data, res)
	return findings
}

// validate runs structural → semantic → domain. Later phases only run when
// the earlier ones found no errors.
func validate(data []byte, res Resolver) (*Document, []TestCase, []*ValidationError) {
	doc, err := decode(data)
	if err != nil {
		return nil, nil, []*ValidationError{errorf("structural", "", errors.Join(ErrInvalidDocument, err), "%v", err)}
	}

	errs := validateSemantic(doc)
	if hasErrors(errs) {
		return doc, nil, errs
	}

	cases, domainErrs := validateDomain(doc, res)
	return doc, cases, append(errs, domainErrs...)
}

// decode strictly decodes either document shape.
func decode(data []byte) (*Document, error) {
	var probe yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	root := &probe
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	switch root.Kind {
	case yaml.SequenceNode:
		if err := dec.Decode(&doc.Cases); err != nil {
			return nil, fmt.Errorf("structural decode: %w", err)
		}
		if doc.Cases == nil {
			doc.Cases = []CaseEntry{}
		}
	case yaml.MappingNode:
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("structural decode: %w", err)
		}
	case 0:
		return nil, errors.New("document is empty")
	default:
		return nil, fmt.Errorf("line %d: top level must be a list of test cases or a mapping with cases", root.Line)
	}
	return &doc, nil
}

// validateDomain resolves every step and checks chain and parameter rules.
// It returns the compiled test cases alongside the findings.
func validateDomain(doc *Document, res Resolver) ([]TestCase, []*ValidationError) {
	var errs []*ValidationError
	cases := make([]TestCase, 0, len(doc.Cases))

	if len(doc.Cases) == 0 {
		errs = append(errs, warningf("domain", "cases", "suite has no test cases"))
	}

	for ci, ce := range doc.Cases {
		path := fmt.Sprintf("cases[%d]", ci)
		if strings.TrimSpace(ce.Title) == "" {
			errs = append(errs, errorf("domain", path+".title", ErrInvalidDocument, "title is required"))
		}
		if len(ce.Steps) == 0 {
			errs = append(errs, errorf("domain", path+".steps", ErrInvalidDocument, "at least one step is required"))
		}

		tc := TestCase{Title: ce.Title, Steps: make([]*Step, 0, len(ce.Steps))}
		ids := make(map[string]int)
		for si, se := range ce.Steps {
			sp := fmt.Sprintf("%s.steps[%d]", path, si)
			step := &Step{Index: si, ID: se.ID, Module: se.Module, Invocable: se.Invocable, Parameters: se.Parameters}

			inv, err := resolveTarget(res, se.Module, se.Invocable)
			if err != nil {
				errs = append(errs, errorf("domain", sp+".module", err, "%v", err))
			} else {
				step.Module, step.Invocable = inv.Module, inv.Name
				for _, name := range slices.Sorted(maps.Keys(se.Parameters)) {
					if _, ok := inv.Param(name); !ok {
						errs = append(errs, errorf("domain", sp+".parameters."+name, ErrUnknownParameter,
							"%s does not declare parameter %q", inv.Ref(), name))
					}
				}
			}

			if se.Chain != nil {
				idx, msg := chainIndex(se.Chain, si, ids)
				if msg != "" {
					errs = append(errs, errorf("domain", sp+".chain", ErrInvalidChainReference, "%s", msg))
				} else {
					step.Chain = &idx
				}
			}

			if se.ID != "" {
				if prev, dup := ids[se.ID]; dup {
					errs = append(errs, errorf("domain", sp+".id", ErrInvalidDocument,
						"duplicate step id %q (first at %s.steps[%d])", se.ID, path, prev))
				} else {
					ids[se.ID] = si
				}
			}
			tc.Steps = append(tc.Steps, step)
		}
		cases = append(cases, tc)
	}
	return cases, errs
}

// chainIndex resolves a chain reference to a step index. Ids are looked up
// among the steps seen so far, so only earlier steps can match.
func chainIndex(ref any, current int, ids map[string]int) (int, string) {
	var idx int
	switch v := ref.(type) {
	case int:
		idx = v
	case string:
		i, ok := ids[v]
		if !ok {
			return 0, fmt.Sprintf("no earlier step with id %q", v)
		}
		idx = i
	default:
		return 0, fmt.Sprintf("chain must be a step index or step id, got %T", ref)
	}
	if idx < 0 || idx >= current {
		return 0, fmt.Sprintf("step %d cannot chain from step %d: the source must be an earlier step", current, idx)
	}
	return idx, ""
}

// resolveTarget resolves a module and optional invocable name. With no
// invocable the module field may be a bare module or "module.invocable".
func resolveTarget(res Resolver, module, invocable string) (*catalog.Invocable, error) {
	module = strings.TrimSpace(module)
	if invocable != "" {
		return res.Resolve(module, invocable)
	}
	inv, err := res.Resolve(module, "")
	if err == nil {
		return inv, nil
	}
	if m, name := catalog.ParseRef(module); name != "" {
		return res.Resolve(m, name)
	}
	return nil, err
}
