package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/tent/pkg/report"
	"github.com/ormasoftchile/tent/pkg/runlog"
	"github.com/ormasoftchile/tent/pkg/runner"
	"github.com/ormasoftchile/tent/pkg/suite"
	"github.com/ormasoftchile/tent/pkg/trace"
)

// --- run ---

var (
	runCase  int
	runPick  bool
	runQuiet bool
	runTrace string
)

var runCmd = &cobra.Command{
	Use:   "run <suite>",
	Short: "Run a test suite, or a single test case of it",
	Long: `Run every test case of a suite and append the run to <suite>.yaml.log.
With --case or --pick only one test case runs and no log is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	if runPick && cmd.Flags().Changed("case") {
		return fmt.Errorf("--case and --pick are mutually exclusive")
	}
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	st, name, path, err := ws.loadSuite(cmd, args[0])
	if err != nil {
		return err
	}
	r, closeTrace, err := ws.configuredRunner(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeTrace()

	ctx, cancel := ws.context()
	defer cancel()

	if runPick || cmd.Flags().Changed("case") {
		idx := runCase
		if runPick {
			printCases(cmd, name, st)
			if idx, err = pickCase(cmd.InOrStdin(), cmd.OutOrStdout(), st.Len()); err != nil {
				return err
			}
		}
		tc, err := st.Case(idx)
		if err != nil {
			return fmt.Errorf("invalid test case specification: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Running single test.")
		return passed(r.RunCase(ctx, tc))
	}

	rep, err := r.RunSuite(ctx, name, st.Cases(), runlog.NewFileSink(runlog.PathFor(path)))
	if err != nil {
		return err
	}
	return passed(rep)
}

// configuredRunner applies the run flags to the workspace runner. The
// returned func closes the trace file, if any.
func (w *workspace) configuredRunner(console io.Writer) (*runner.Runner, func(), error) {
	r, err := w.runner(console)
	if err != nil {
		return nil, nil, err
	}
	r.Quiet = runQuiet
	if runTrace == "" {
		return r, func() {}, nil
	}
	tw, err := trace.NewFileWriter(runTrace, "")
	if err != nil {
		return nil, nil, err
	}
	tw.SetSecrets(w.cfg.Trace.RedactEnv)
	r.Trace = tw
	return r, func() { tw.Close() }, nil
}

// pickCase prompts for a 0-based test case index.
func pickCase(in io.Reader, out io.Writer, n int) (int, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "Execute which test? ",
		Stdin:           io.NopCloser(in),
		Stdout:          out,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return 0, fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("no test case selected")
		}
		return 0, err
	}
	return parseCaseIndex(line, n)
}

func parseCaseIndex(s string, n int) (int, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || idx < 0 || idx >= n {
		return 0, fmt.Errorf("invalid test case specification %q", strings.TrimSpace(s))
	}
	return idx, nil
}

func passed(rep *report.SuiteReport) error {
	if rep == nil || !rep.Passed() {
		return errNotPassed
	}
	return nil
}

// --- runmod ---

var runmodCmd = &cobra.Command{
	Use:   "runmod <module[.invocable]>",
	Short: "Run a single, parameterless module invocable",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunmod,
}

func runRunmod(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	tc, err := suite.Single(ws.reg, args[0])
	if err != nil {
		return err
	}
	r, closeTrace, err := ws.configuredRunner(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeTrace()

	ctx, cancel := ws.context()
	defer cancel()
	rep := r.RunCase(ctx, tc)
	if !runQuiet {
		for _, c := range rep.Cases {
			for _, s := range c.Steps {
				if s.Passed() && s.Result != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "result: %v\n", s.Result)
				}
			}
		}
	}
	return passed(rep)
}

func init() {
	runCmd.Flags().IntVar(&runCase, "case", 0, "run only the test case at this 0-based index")
	runCmd.Flags().BoolVar(&runPick, "pick", false, "list the test cases and prompt for one to run")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress progress output")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "append a JSONL execution trace to this file")

	runmodCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress progress output")
	runmodCmd.Flags().StringVar(&runTrace, "trace", "", "append a JSONL execution trace to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runmodCmd)
}
