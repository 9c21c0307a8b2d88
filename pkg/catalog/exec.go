package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/ormasoftchile/tent/pkg/eval"
)

// runProcess executes a manifest invocable by spawning its binary. With no
// extract rules the result is {stdout, stderr, exit_code}; otherwise it is
// the map of extracted values. An unexpected exit code is an assertion
// failure of the target, not a harness error.
func runProcess(ctx context.Context, binary string, inv *ManifestInvocable, params map[string]any) (any, error) {
	argv, err := eval.ResolveAll(inv.Argv, params)
	if err != nil {
		return nil, fmt.Errorf("argv template: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("invocable %q has no argv", inv.Name)
	}

	name := argv[0]
	if binary != "" {
		name = binary
	}

	cmd := exec.CommandContext(ctx, name, argv[1:]...) //#nosec G204 -- argv comes from a module manifest authored by the suite owner
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("exec %q: %w", name, err)
		}
		exitCode = exitErr.ExitCode()
	}

	out := normalizeLineEndings(stdout.String())
	errOut := normalizeLineEndings(stderr.String())

	if exitCode != inv.ExpectExit {
		msg := fmt.Sprintf("exit code %d, want %d", exitCode, inv.ExpectExit)
		if s := strings.TrimSpace(errOut); s != "" {
			msg += ": " + s
		}
		return nil, &AssertionError{Message: msg}
	}

	if len(inv.Extract) == 0 {
		return map[string]any{
			"stdout":    strings.TrimSpace(out),
			"stderr":    strings.TrimSpace(errOut),
			"exit_code": exitCode,
		}, nil
	}
	return applyExtract(inv.Extract, out, errOut)
}

// applyExtract maps process output to named values using extract rules.
func applyExtract(extracts map[string]Extract, stdout, stderr string) (map[string]any, error) {
	outputs := make(map[string]any, len(extracts))
	var parsed map[string]any

	for name, ext := range extracts {
		source := stdout
		switch ext.From {
		case "stderr":
			source = stderr
		case "json":
			if parsed == nil {
				if err := json.Unmarshal([]byte(stdout), &parsed); err != nil {
					return nil, fmt.Errorf("extract %q: json parse: %w", name, err)
				}
			}
			outputs[name] = jsonPath(parsed, ext.Path)
			continue
		}

		if ext.Pattern == "" {
			outputs[name] = strings.TrimSpace(source)
			continue
		}
		re, err := regexp.Compile(ext.Pattern)
		if err != nil {
			return nil, fmt.Errorf("extract %q: invalid pattern: %w", name, err)
		}
		match := re.FindStringSubmatch(strings.TrimSpace(source))
		switch {
		case len(match) > 1:
			outputs[name] = match[1]
		case len(match) == 1:
			outputs[name] = match[0]
		}
	}
	return outputs, nil
}

// jsonPath does a simple dot-path traversal of a JSON object.
func jsonPath(obj map[string]any, path string) any {
	if path == "" {
		return obj
	}
	var current any = obj
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
