// Package config loads config.yaml, the single configuration surface of a
// tent workspace: where suites and module manifests live, logging, run
// policy and the web front end.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up when none is named.
const DefaultFile = "config.yaml"

// DefaultPort is the web front end port.
const DefaultPort = 8080

// Config mirrors config.yaml. Zero values fall back to the defaults exposed
// by the accessor methods.
type Config struct {
	Suites  string      `yaml:"suites,omitempty"`
	Modules string      `yaml:"modules,omitempty"`
	Log     LogConfig   `yaml:"log,omitempty"`
	Run     RunConfig   `yaml:"run,omitempty"`
	Serve   ServeConfig `yaml:"serve,omitempty"`
	Trace   TraceConfig `yaml:"trace,omitempty"`

	// Root is the directory relative paths are resolved against. Set after
	// loading, not from YAML.
	Root string `yaml:"-"`
}

// LogConfig selects the diagnostic logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text, json
}

// RunConfig holds suite run policy.
type RunConfig struct {
	ContinueOnError *bool  `yaml:"continue_on_error,omitempty"`
	StepTimeout     string `yaml:"step_timeout,omitempty"`
}

// ServeConfig configures `tent serve`.
type ServeConfig struct {
	Port        int   `yaml:"port,omitempty"`
	OpenBrowser *bool `yaml:"open_browser,omitempty"`
}

// TraceConfig configures JSONL traces.
type TraceConfig struct {
	// RedactEnv names environment variables whose values are masked in traces.
	RedactEnv []string `yaml:"redact_env,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return &Config{Root: wd}
}

// Load reads the configuration at path. When explicit is false and the file
// does not exist, defaults are returned; a missing file that was named
// explicitly is an error.
func Load(path string, explicit bool) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg.Root = abs
	return cfg, nil
}

// Parse decodes and validates a configuration document. Unknown fields are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("yaml decode: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if _, err := c.StepTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve.port: %d out of range", c.Serve.Port))
	}
	return errors.Join(errs...)
}

// SuitesDir returns the absolute suites directory (default "suites").
func (c *Config) SuitesDir() string {
	return c.resolve(c.Suites, "suites")
}

// ModulesDir returns the absolute manifest directory (default "modules").
func (c *Config) ModulesDir() string {
	return c.resolve(c.Modules, "modules")
}

func (c *Config) resolve(p, def string) string {
	if p == "" {
		p = def
	}
	if filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// AbortOnError reports whether a run stops after the first errored case.
func (c *Config) AbortOnError() bool {
	return c.Run.ContinueOnError != nil && !*c.Run.ContinueOnError
}

// StepTimeout returns the per-step deadline; zero means none.
func (c *Config) StepTimeout() (time.Duration, error) {
	if c.Run.StepTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Run.StepTimeout)
	if err != nil {
		return 0, fmt.Errorf("run.step_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("run.step_timeout: must not be negative")
	}
	return d, nil
}

// Port returns the web port (default 8080).
func (c *Config) Port() int {
	if c.Serve.Port == 0 {
		return DefaultPort
	}
	return c.Serve.Port
}

// OpenBrowser reports whether `tent serve` opens a browser (default true).
func (c *Config) OpenBrowser() bool {
	return c.Serve.OpenBrowser == nil || *c.Serve.OpenBrowser
}
