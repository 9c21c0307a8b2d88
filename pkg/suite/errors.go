package suite

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownParameter is returned when a step supplies a parameter the
	// target invocable does not declare.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrInvalidChainReference is returned when a chain reference does not
	// point to a strictly earlier step of the same test case.
	ErrInvalidChainReference = errors.New("invalid chain reference")

	// ErrInvalidDocument covers structural and schema violations.
	ErrInvalidDocument = errors.New("invalid suite document")
)

// ValidationError is one finding of the validation pipeline.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // e.g. cases[0].steps[1].chain
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
	Err      error  `json:"-"`
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s at %s", e.Phase, e.Message, e.Path)
	}
	return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func errorf(phase, path string, err error, msg string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    phase,
		Path:     path,
		Message:  fmt.Sprintf(msg, args...),
		Severity: "error",
		Err:      err,
	}
}

func warningf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    phase,
		Path:     path,
		Message:  fmt.Sprintf(msg, args...),
		Severity: "warning",
	}
}

func hasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// LoadError aggregates every error found while loading a suite. It matches
// errors.Is against the sentinel of each finding.
type LoadError struct {
	Source string
	Errors []*ValidationError
}

func (e *LoadError) Error() string {
	var b strings.Builder
	src := e.Source
	if src == "" {
		src = "suite"
	}
	if len(e.Errors) == 1 {
		fmt.Fprintf(&b, "load %s: %s", src, e.Errors[0])
		return b.String()
	}
	fmt.Fprintf(&b, "load %s: %d errors", src, len(e.Errors))
	for _, ve := range e.Errors {
		fmt.Fprintf(&b, "\n  - %s", ve)
	}
	return b.String()
}

func (e *LoadError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, ve := range e.Errors {
		out[i] = ve
	}
	return out
}
