// Package bind resolves the parameter values of a step against the target
// invocable's declared parameters.
//
// For each declared parameter, in declaration order, the value comes from
// the step's literal mapping, then from the chained step's result, then from
// the declared default. Literal and chained values are coerced per the
// parameter's type annotation; defaults are used as declared.
package bind

import (
	"errors"
	"fmt"

	"github.com/ormasoftchile/tent/pkg/catalog"
	"github.com/ormasoftchile/tent/pkg/chain"
	"github.com/ormasoftchile/tent/pkg/report"
	"github.com/ormasoftchile/tent/pkg/suite"
)

// ErrMissingParameter is returned when a required parameter has no value.
var ErrMissingParameter = errors.New("missing parameter")

// CoercionError reports a value that cannot satisfy a parameter's annotation.
type CoercionError struct {
	Param string
	Type  string
	Value any
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("parameter %q: cannot coerce %v (%T) to %s: %v", e.Param, e.Value, e.Value, e.Type, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// Bind resolves step parameters using the default coercion rules.
func Bind(step *suite.Step, inv *catalog.Invocable, prior []report.StepOutcome) (map[string]any, error) {
	return Default.Bind(step, inv, prior)
}

// Bind resolves step parameters. prior holds the outcomes of the steps that
// ran before this one in the same test case, indexed by step position.
func (c *Coercers) Bind(step *suite.Step, inv *catalog.Invocable, prior []report.StepOutcome) (map[string]any, error) {
	var chained map[string]any
	if step.Chain != nil {
		src := *step.Chain
		if src < 0 || src >= len(prior) || src >= step.Index {
			return nil, fmt.Errorf("step %d chains from step %d, which has not run: %w", step.Index, src, chain.ErrChainSourceFailed)
		}
		values, err := chain.Extract(prior[src])
		if err != nil {
			return nil, err
		}
		chained = values.Supply(inv.Params, step.Parameters)
	}

	bound := make(map[string]any, len(inv.Params))
	for _, p := range inv.Params {
		if raw, ok := step.Parameters[p.Name]; ok {
			v, err := c.coerceParam(p, raw)
			if err != nil {
				return nil, err
			}
			bound[p.Name] = v
			continue
		}
		if raw, ok := chained[p.Name]; ok {
			v, err := c.coerceParam(p, raw)
			if err != nil {
				return nil, err
			}
			bound[p.Name] = v
			continue
		}
		if p.HasDefault {
			bound[p.Name] = p.Default
			continue
		}
		return nil, fmt.Errorf("%s: parameter %q: %w", inv.Ref(), p.Name, ErrMissingParameter)
	}
	return bound, nil
}

func (c *Coercers) coerceParam(p catalog.Param, raw any) (any, error) {
	v, err := c.Coerce(p.Type, raw)
	if err != nil {
		return nil, &CoercionError{Param: p.Name, Type: p.Type, Value: raw, Err: err}
	}
	return v, nil
}
