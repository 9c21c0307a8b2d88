// Package engine executes test cases: steps run strictly in declared order,
// each one bound, chained and invoked, and every outcome classified as
// passed, failed or errored.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ormasoftchile/tent/pkg/bind"
	"github.com/ormasoftchile/tent/pkg/catalog"
	"github.com/ormasoftchile/tent/pkg/chain"
	"github.com/ormasoftchile/tent/pkg/ctxlog"
	"github.com/ormasoftchile/tent/pkg/report"
	"github.com/ormasoftchile/tent/pkg/suite"
	"github.com/ormasoftchile/tent/pkg/trace"
)

// Dispatcher resolves and invokes step targets. *catalog.Registry
// implements it.
type Dispatcher interface {
	Resolve(module, name string) (*catalog.Invocable, error)
	Invoke(ctx context.Context, inv *catalog.Invocable, params map[string]any) (any, error)
}

// Executor runs test cases against a dispatcher.
type Executor struct {
	Registry    Dispatcher
	Coercers    *bind.Coercers // nil uses bind.Default
	Trace       *trace.Writer
	StepTimeout time.Duration // zero means no limit
}

// New creates an executor with the default coercion rules.
func New(reg Dispatcher) *Executor {
	return &Executor{Registry: reg}
}

// RunTestCase executes every step of tc in order. It never stops early: a
// step whose chain source did not pass is errored without being invoked,
// and every independent step still runs.
func (e *Executor) RunTestCase(ctx context.Context, tc *suite.TestCase) report.TestCaseOutcome {
	log := ctxlog.FromContext(ctx)
	start := time.Now()
	e.Trace.EmitCaseStart(tc.Title, len(tc.Steps))

	outcomes := make([]report.StepOutcome, 0, len(tc.Steps))
	for _, step := range tc.Steps {
		e.Trace.EmitStepStart(tc.Title, step.Index, step.Ref())
		o := e.runStep(ctx, step, outcomes)
		outcomes = append(outcomes, o)
		if err := e.Trace.EmitStepComplete(tc.Title, o); err != nil {
			log.Debug("Trace write failed.", "error", err)
		}
		log.Debug("Step finished.", "case", tc.Title, "step", step.Index, "ref", o.Ref, "status", o.Status, "duration", o.Duration)
	}

	out := report.TestCaseOutcome{
		Title:    tc.Title,
		Steps:    outcomes,
		Status:   report.CaseStatus(outcomes),
		Duration: time.Since(start),
	}
	e.Trace.EmitCaseComplete(out)
	return out
}

func (e *Executor) runStep(ctx context.Context, step *suite.Step, prior []report.StepOutcome) report.StepOutcome {
	start := time.Now()
	o := report.StepOutcome{Index: step.Index, Ref: step.Ref()}
	finish := func(status report.Status, kind string, err error) report.StepOutcome {
		o.Status = status
		if err != nil {
			o.Failure = &report.Failure{Kind: kind, Message: err.Error()}
		}
		o.Duration = time.Since(start)
		return o
	}

	if step.Chain != nil {
		src := *step.Chain
		if src < 0 || src >= len(prior) {
			return finish(report.StatusErrored, report.KindChainSourceFailed,
				fmt.Errorf("step %d has not run: %w", src, chain.ErrChainSourceFailed))
		}
		if !prior[src].Passed() {
			return finish(report.StatusErrored, report.KindChainSourceFailed,
				fmt.Errorf("step %d (%s) is %s: %w", src, prior[src].Ref, prior[src].Status, chain.ErrChainSourceFailed))
		}
	}

	inv, err := e.Registry.Resolve(step.Module, step.Invocable)
	if err != nil {
		return finish(report.StatusErrored, report.KindNotFound, err)
	}
	o.Ref = inv.Ref()

	coercers := e.Coercers
	if coercers == nil {
		coercers = bind.Default
	}
	params, err := coercers.Bind(step, inv, prior)
	if err != nil {
		return finish(report.StatusErrored, bindKind(err), err)
	}
	o.Params = params

	result, err := e.invoke(ctx, inv, params)
	switch {
	case err == nil:
		o.Result = result
		return finish(report.StatusPassed, "", nil)
	case catalog.IsAssertion(err):
		var ae *catalog.AssertionError
		errors.As(err, &ae)
		return finish(report.StatusFailed, report.KindAssertion, ae)
	case errors.Is(err, context.DeadlineExceeded):
		return finish(report.StatusErrored, report.KindTimeout, err)
	default:
		return finish(report.StatusErrored, report.KindInvocation, err)
	}
}

// invoke calls the action, bounded by StepTimeout when set. An action that
// ignores its context is abandoned once the deadline passes.
func (e *Executor) invoke(ctx context.Context, inv *catalog.Invocable, params map[string]any) (any, error) {
	if e.StepTimeout <= 0 {
		return e.Registry.Invoke(ctx, inv, params)
	}

	ctx, cancel := context.WithTimeout(ctx, e.StepTimeout)
	defer cancel()

	type reply struct {
		result any
		err    error
	}
	done := make(chan reply, 1)
	go func() {
		result, err := e.Registry.Invoke(ctx, inv, params)
		done <- reply{result, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil && !catalog.IsAssertion(r.err) {
			return nil, fmt.Errorf("%s exceeded %s: %w", inv.Ref(), e.StepTimeout, ctx.Err())
		}
		return r.result, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s exceeded %s: %w", inv.Ref(), e.StepTimeout, ctx.Err())
	}
}

func bindKind(err error) string {
	var ce *bind.CoercionError
	switch {
	case errors.As(err, &ce):
		return report.KindCoercion
	case errors.Is(err, bind.ErrMissingParameter):
		return report.KindMissingParameter
	case errors.Is(err, chain.ErrChainSourceFailed):
		return report.KindChainSourceFailed
	}
	return report.KindInvocation
}
