// Package runner drives whole suite runs: it executes test cases one at a
// time, mirrors progress to a console and appends one record per run to the
// suite's log.
package runner

import (
	"context"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/tent/pkg/ctxlog"
	"github.com/ormasoftchile/tent/pkg/engine"
	"github.com/ormasoftchile/tent/pkg/report"
	"github.com/ormasoftchile/tent/pkg/runlog"
	"github.com/ormasoftchile/tent/pkg/suite"
	"github.com/ormasoftchile/tent/pkg/trace"
)

// Runner executes suites sequentially.
type Runner struct {
	Executor *engine.Executor
	Console  io.Writer // nil disables progress output
	Quiet    bool

	// AbortOnError stops a run after the first errored test case. The
	// default is to run every case.
	AbortOnError bool

	Trace      *trace.Writer
	TitleWidth int
	Now        func() time.Time
}

// New creates a runner around an executor.
func New(exec *engine.Executor, console io.Writer) *Runner {
	return &Runner{Executor: exec, Console: console}
}

// RunSuite executes every case in order and, when sink is non-nil, appends
// the run record to it once the run is complete. The report is returned even
// when writing the log fails.
func (r *Runner) RunSuite(ctx context.Context, name string, cases iter.Seq[*suite.TestCase], sink runlog.Sink) (*report.SuiteReport, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	start := now()
	rep := &report.SuiteReport{
		Suite:     name,
		RunID:     uuid.NewString(),
		Timestamp: start.UTC(),
	}

	log := ctxlog.FromContext(ctx).With("suite", name, "run_id", rep.RunID)
	ctx = ctxlog.WithLogger(ctx, log)

	tw := r.Trace.ForRun(rep.RunID)
	exec := *r.Executor
	if tw != nil {
		exec.Trace = tw
	}

	var con *console
	if r.Console != nil && !r.Quiet {
		con = newConsole(r.Console, r.TitleWidth)
		con.start(name)
	}

	log.Info("Suite run started.")
	tw.EmitRunStart(name)

	i := 0
	for tc := range cases {
		out := exec.RunTestCase(ctx, tc)
		rep.Cases = append(rep.Cases, out)
		if con != nil {
			con.caseLine(i, out)
		}
		i++
		if r.AbortOnError && out.Status == report.StatusErrored {
			log.Warn("Aborting suite run after errored test case.", "case", out.Title)
			break
		}
	}

	elapsed := now().Sub(start)
	summary := rep.Summary()
	tw.EmitRunComplete(summary, elapsed)
	if con != nil {
		con.summary(rep, elapsed)
	}
	log.Info("Suite run finished.", "total", summary.Total, "passed", summary.Passed,
		"failed", summary.Failed, "errored", summary.Errored, "duration", elapsed)

	if sink != nil {
		if err := sink.Append(runlog.Format(rep)); err != nil {
			return rep, fmt.Errorf("write run log: %w", err)
		}
	}
	return rep, nil
}

// RunCase executes a single test case without writing a log record.
func (r *Runner) RunCase(ctx context.Context, tc *suite.TestCase) *report.SuiteReport {
	rep, _ := r.RunSuite(ctx, tc.Title, func(yield func(*suite.TestCase) bool) { yield(tc) }, nil)
	return rep
}
