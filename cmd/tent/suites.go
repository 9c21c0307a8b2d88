package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/tent/pkg/runlog"
	"github.com/ormasoftchile/tent/pkg/suite"
)

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list [suite]",
	Short: "List suites, or the test cases of one suite",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		names, err := suite.Discover(ws.cfg.SuitesDir())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintf(out, "No test suites in %s\n", ws.cfg.SuitesDir())
			return nil
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	}

	st, name, _, err := ws.loadSuite(cmd, args[0])
	if err != nil {
		return err
	}
	printCases(cmd, name, st)
	return nil
}

func printCases(cmd *cobra.Command, name string, st *suite.Suite) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Available test cases in `%s`\n", name)
	for i, title := range st.Titles() {
		fmt.Fprintf(out, "[%2d] %s\n", i, title)
	}
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate <suite>",
	Short: "Validate a suite against the module catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	name, path, err := ws.suiteFile(args[0])
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	errOut := cmd.ErrOrStderr()
	var failures []*suite.ValidationError
	for _, e := range suite.Validate(f, ws.reg) {
		if e.Severity == "warning" {
			fmt.Fprintf(errOut, "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(errOut, "    at: %s\n", e.Path)
			}
			continue
		}
		failures = append(failures, e)
	}
	if len(failures) > 0 {
		fmt.Fprintf(errOut, "Validation failed: %d error(s)\n\n", len(failures))
		for i, e := range failures {
			fmt.Fprintf(errOut, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(errOut, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(failures))
	}

	st, err := suiteLen(ws, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d test cases)\n", name, st)
	return nil
}

func suiteLen(ws *workspace, path string) (int, error) {
	st, err := suite.LoadFile(path, ws.reg)
	if err != nil {
		return 0, err
	}
	return st.Len(), nil
}

// --- log ---

var logCmd = &cobra.Command{
	Use:   "log <suite>",
	Short: "Show the most recent logged run of a suite",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	name, path, err := ws.suiteFile(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	rec, err := runlog.LatestFile(runlog.PathFor(path))
	if errors.Is(err, runlog.ErrNoRecords) {
		fmt.Fprintln(out, "No logs found.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Last execution of `%s`: %s\n", name, rec.Stamp)
	fmt.Fprintln(out, rec.Text())
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of suite documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := suite.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(schemaCmd)
}
