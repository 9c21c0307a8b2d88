// Package suite loads declarative suite documents into ordered test cases.
//
// A suite document is YAML. Its top level is either a list of case entries
// or a mapping with optional name and description plus a cases list:
//
//	- title: create and read back
//	  steps:
//	    - id: create
//	      module: http.request
//	      parameters: {method: POST, url: "http://localhost:8080/items"}
//	    - module: http.get
//	      chain: create
//
// Loading is fail fast: every step must resolve, every chain reference must
// point to a strictly earlier step, and no step may supply a parameter the
// invocable does not declare.
package suite

import "fmt"

// Document is the decoded form of a suite file.
type Document struct {
	Name        string      `yaml:"name,omitempty"        json:"name,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Cases       []CaseEntry `yaml:"cases"                 json:"cases"`
}

// CaseEntry is one test case as written in the document.
type CaseEntry struct {
	Title string      `yaml:"title" json:"title" jsonschema:"minLength=1"`
	Steps []StepEntry `yaml:"steps" json:"steps" jsonschema:"minItems=1"`
}

// StepEntry is one step as written in the document. Module may carry the
// "module.invocable" shorthand when Invocable is empty. Chain is either a
// 0-based step index or the id of an earlier step.
type StepEntry struct {
	ID         string         `yaml:"id,omitempty"         json:"id,omitempty"`
	Module     string         `yaml:"module"               json:"module" jsonschema:"minLength=1"`
	Invocable  string         `yaml:"invocable,omitempty"  json:"invocable,omitempty"`
	Chain      any            `yaml:"chain,omitempty"      json:"chain,omitempty" jsonschema:"oneof_type=integer;string"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Step is one executable step of a test case with its target resolved.
type Step struct {
	Index      int            `json:"index"`
	ID         string         `json:"id,omitempty"`
	Module     string         `json:"module"`
	Invocable  string         `json:"invocable"`
	Chain      *int           `json:"chain,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Ref returns the "module.invocable" reference of the step target.
func (s *Step) Ref() string {
	return s.Module + "." + s.Invocable
}

func (s *Step) String() string {
	if s.ID != "" {
		return fmt.Sprintf("%d (%s) %s", s.Index, s.ID, s.Ref())
	}
	return fmt.Sprintf("%d %s", s.Index, s.Ref())
}

// TestCase is an ordered, non-empty sequence of steps.
type TestCase struct {
	Title string  `json:"title"`
	Steps []*Step `json:"steps"`
}
