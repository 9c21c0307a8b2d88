// Package report holds the outcome model produced by executing test cases:
// step outcomes, test case outcomes and the suite report written to the log.
package report

import (
	"fmt"
	"time"
)

// Status is the outcome status of a step or test case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
)

// Label is the upper-case form used in logs and on the console.
func (s Status) Label() string {
	switch s {
	case StatusPassed:
		return "PASSED"
	case StatusFailed:
		return "FAILED"
	case StatusErrored:
		return "ERRORED"
	}
	return "UNKNOWN"
}

// ParseLabel is the inverse of Label.
func ParseLabel(label string) (Status, bool) {
	switch label {
	case "PASSED":
		return StatusPassed, true
	case "FAILED":
		return StatusFailed, true
	case "ERRORED":
		return StatusErrored, true
	}
	return "", false
}

// Failure kinds recorded in step outcomes.
const (
	KindAssertion         = "assertion"
	KindNotFound          = "not_found"
	KindMissingParameter  = "missing_parameter"
	KindCoercion          = "coercion"
	KindChainSourceFailed = "chain_source_failed"
	KindInvocation        = "invocation"
	KindTimeout           = "timeout"
)

// Failure describes why a step failed or errored.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (f *Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// StepOutcome is the result of executing one step. Result is set only when
// the step passed; Failure only when it did not.
type StepOutcome struct {
	Index    int            `json:"index"`
	Ref      string         `json:"ref"`
	Status   Status         `json:"status"`
	Result   any            `json:"result,omitempty"`
	Failure  *Failure       `json:"failure,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Passed reports whether the step passed.
func (o StepOutcome) Passed() bool { return o.Status == StatusPassed }

// TestCaseOutcome aggregates the step outcomes of one test case.
type TestCaseOutcome struct {
	Title    string        `json:"title"`
	Steps    []StepOutcome `json:"steps"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
}

// CaseStatus computes the overall status of a sequence of step outcomes:
// passed iff every step passed, errored if any step errored, failed otherwise.
func CaseStatus(steps []StepOutcome) Status {
	status := StatusPassed
	for _, s := range steps {
		switch s.Status {
		case StatusErrored:
			return StatusErrored
		case StatusFailed:
			status = StatusFailed
		case StatusPassed:
		default:
			return StatusErrored
		}
	}
	return status
}

// SuiteReport is the aggregated outcome of one suite run.
type SuiteReport struct {
	Suite     string            `json:"suite"`
	RunID     string            `json:"run_id"`
	Timestamp time.Time         `json:"timestamp"`
	Cases     []TestCaseOutcome `json:"cases"`
}

// Summary counts test cases per status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// Summary returns the per-status case counts.
func (r *SuiteReport) Summary() Summary {
	s := Summary{Total: len(r.Cases)}
	for _, c := range r.Cases {
		switch c.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		default:
			s.Errored++
		}
	}
	return s
}

// Passed reports whether every test case passed.
func (r *SuiteReport) Passed() bool {
	s := r.Summary()
	return s.Passed == s.Total
}

func (s Summary) String() string {
	return fmt.Sprintf("%d passed, %d failed, %d errored (%d total)", s.Passed, s.Failed, s.Errored, s.Total)
}
