package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/tent/pkg/modules"
	"github.com/ormasoftchile/tent/pkg/runlog"
	"github.com/ormasoftchile/tent/pkg/suite"
	"github.com/ormasoftchile/tent/pkg/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <suite>",
	Short: "Run a suite, then run it again whenever it or a module manifest changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	name, path, err := ws.suiteFile(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	runOnce := func(ctx context.Context) {
		// Manifests may have changed, so the catalog is rebuilt every time.
		reg, err := modules.NewRegistry(ws.cfg.ModulesDir())
		if err != nil {
			fmt.Fprintf(out, "%s  ! %v\n", time.Now().Format("15:04:05"), err)
			return
		}
		ws.reg = reg
		st, err := suite.LoadFile(path, reg)
		if err != nil {
			fmt.Fprintf(out, "%s  ! %v\n", time.Now().Format("15:04:05"), err)
			return
		}
		r, closeTrace, err := ws.configuredRunner(out)
		if err != nil {
			fmt.Fprintf(out, "%s  ! %v\n", time.Now().Format("15:04:05"), err)
			return
		}
		defer closeTrace()
		if _, err := r.RunSuite(ctx, name, st.Cases(), runlog.NewFileSink(runlog.PathFor(path))); err != nil {
			fmt.Fprintf(out, "%s  ! %v\n", time.Now().Format("15:04:05"), err)
		}
	}

	w, err := watch.New([]string{path, ws.cfg.ModulesDir()}, watchDebounce, func(ctx context.Context, changed []string) {
		fmt.Fprintf(out, "\nChanged: %v\n", changed)
		runOnce(ctx)
	})
	if err != nil {
		return err
	}

	ctx, cancel := ws.context()
	defer cancel()
	runOnce(ctx)
	fmt.Fprintln(out, "Watching for changes, press Ctrl+C to stop.")
	return w.Run(ctx)
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-running")
	watchCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress progress output")
	watchCmd.Flags().StringVar(&runTrace, "trace", "", "append a JSONL execution trace to this file")
	rootCmd.AddCommand(watchCmd)
}
