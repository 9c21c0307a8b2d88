package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/tent/pkg/catalog"
	"github.com/ormasoftchile/tent/pkg/config"
	"github.com/ormasoftchile/tent/pkg/ctxlog"
	"github.com/ormasoftchile/tent/pkg/engine"
	"github.com/ormasoftchile/tent/pkg/modules"
	"github.com/ormasoftchile/tent/pkg/runner"
	"github.com/ormasoftchile/tent/pkg/suite"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// errNotPassed makes the process exit 1 after a run that did not fully
// pass. The run output already tells the user why.
var errNotPassed = errors.New("not every test case passed")

func main() {
	loadDotEnv(".env")
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotPassed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// loadDotEnv reads KEY=VALUE lines from path and sets the variables that
// are not already set. Comments (#) and blank lines are skipped.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, val)
		}
	}
}

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "tent",
	Short:         "Conformance test harness",
	Long:          "tent runs YAML test suites whose steps invoke registered test modules, and keeps a log of every run.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tent version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tent %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "diagnostic log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "diagnostic log format: text or json (overrides config)")
	rootCmd.AddCommand(versionCmd)
}

// workspace is what every command needs: configuration, a logger and the
// frozen module catalog.
type workspace struct {
	cfg *config.Config
	log *slog.Logger
	reg *catalog.Registry
}

func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}

	level, format := cfg.Log.Level, cfg.Log.Format
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	if level == "" {
		level = "warn"
	}
	log := ctxlog.New(level, format, cmd.ErrOrStderr())
	slog.SetDefault(log)

	reg, err := modules.NewRegistry(cfg.ModulesDir())
	if err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}
	log.Debug("Workspace opened.", "root", cfg.Root, "suites", cfg.SuitesDir(), "modules", len(reg.Catalog()))
	return &workspace{cfg: cfg, log: log, reg: reg}, nil
}

// context returns a context carrying the logger, cancelled on interrupt.
func (w *workspace) context() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	return ctxlog.WithLogger(ctx, w.log), cancel
}

// runner builds a runner from the configured run policy.
func (w *workspace) runner(console io.Writer) (*runner.Runner, error) {
	timeout, err := w.cfg.StepTimeout()
	if err != nil {
		return nil, err
	}
	exec := engine.New(w.reg)
	exec.StepTimeout = timeout
	r := runner.New(exec, console)
	r.AbortOnError = w.cfg.AbortOnError()
	return r, nil
}

// suiteFile maps a command argument to a suite name and file. An existing
// file path is used as is; anything else names a suite in the suites
// directory.
func (w *workspace) suiteFile(arg string) (name, path string, err error) {
	if info, statErr := os.Stat(arg); statErr == nil && !info.IsDir() {
		return strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg)), arg, nil
	}
	path = suite.PathFor(w.cfg.SuitesDir(), strings.TrimSuffix(arg, ".yaml"))
	if _, statErr := os.Stat(path); statErr != nil {
		return "", "", fmt.Errorf("no test suite %q (looked in %s)", arg, w.cfg.SuitesDir())
	}
	return strings.TrimSuffix(arg, ".yaml"), path, nil
}

// loadSuite resolves and loads a suite, printing validation warnings.
func (w *workspace) loadSuite(cmd *cobra.Command, arg string) (st *suite.Suite, name, path string, err error) {
	name, path, err = w.suiteFile(arg)
	if err != nil {
		return nil, "", "", err
	}
	st, err = suite.LoadFile(path, w.reg)
	if err != nil {
		return nil, "", "", err
	}
	for _, warn := range st.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "  ⚠ [%s] %s\n", warn.Phase, warn.Message)
	}
	return st, name, path, nil
}
