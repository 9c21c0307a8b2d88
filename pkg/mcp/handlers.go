package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/tent/pkg/catalog"
	"github.com/ormasoftchile/tent/pkg/docs"
	"github.com/ormasoftchile/tent/pkg/report"
	"github.com/ormasoftchile/tent/pkg/runlog"
	"github.com/ormasoftchile/tent/pkg/runner"
	"github.com/ormasoftchile/tent/pkg/suite"
)

// Tools holds what the tool handlers need. Runner console output is never
// written; MCP owns stdout.
type Tools struct {
	Registry  *catalog.Registry
	Runner    *runner.Runner
	SuitesDir string
}

// NewTools builds the handler set around a copy of run without a console.
func NewTools(reg *catalog.Registry, run *runner.Runner, suitesDir string) *Tools {
	headless := *run
	headless.Console = nil
	return &Tools{Registry: reg, Runner: &headless, SuitesDir: suitesDir}
}

// HandleModules implements tent/modules.
func (t *Tools) HandleModules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	if err := docs.WritePlain(&buf, t.Registry.Catalog()); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(buf.String()), nil
}

// HandleList implements tent/list.
func (t *Tools) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := req.GetArguments()["suite"].(string)
	if name == "" {
		names, err := suite.Discover(t.SuitesDir)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		if len(names) == 0 {
			return textResult("no suites in " + t.SuitesDir), nil
		}
		return textResult(strings.Join(names, "\n")), nil
	}

	st, res := t.load(name)
	if res != nil {
		return res, nil
	}
	var b strings.Builder
	for i, title := range st.Titles() {
		fmt.Fprintf(&b, "[%2d] %s\n", i, title)
	}
	return textResult(b.String()), nil
}

// HandleValidate implements tent/validate.
func (t *Tools) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := req.GetArguments()["suite"].(string)
	if name == "" {
		return errorResult("suite argument is required"), nil
	}
	st, res := t.load(name)
	if res != nil {
		return res, nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d test cases)", name, st.Len())
	for _, w := range st.Warnings {
		msg += "\n" + w.Error()
	}
	return textResult(msg), nil
}

// HandleRun implements tent/run.
func (t *Tools) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["suite"].(string)
	if name == "" {
		return errorResult("suite argument is required"), nil
	}
	st, res := t.load(name)
	if res != nil {
		return res, nil
	}

	if raw, ok := args["case"]; ok && raw != nil {
		idx, ok := raw.(float64)
		if !ok || idx != float64(int(idx)) {
			return errorResult(fmt.Sprintf("case must be an integer, got %v", raw)), nil
		}
		tc, err := st.Case(int(idx))
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return reportResult(t.Runner.RunCase(ctx, tc))
	}

	sink := runlog.NewFileSink(runlog.PathFor(suite.PathFor(t.SuitesDir, name)))
	rep, err := t.Runner.RunSuite(ctx, name, st.Cases(), sink)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return reportResult(rep)
}

// HandleRunmod implements tent/runmod.
func (t *Tools) HandleRunmod(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, _ := req.GetArguments()["ref"].(string)
	if ref == "" {
		return errorResult("ref argument is required"), nil
	}
	tc, err := suite.Single(t.Registry, ref)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return reportResult(t.Runner.RunCase(ctx, tc))
}

// HandleLog implements tent/log.
func (t *Tools) HandleLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := req.GetArguments()["suite"].(string)
	if name == "" {
		return errorResult("suite argument is required"), nil
	}
	rec, err := runlog.LatestFile(runlog.PathFor(suite.PathFor(t.SuitesDir, name)))
	if err != nil {
		if errors.Is(err, runlog.ErrNoRecords) {
			return errorResult(fmt.Sprintf("no logs found for suite %s", name)), nil
		}
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("Last execution of `%s`: %s\n\n%s", name, rec.Stamp, rec.Text())), nil
}

// HandleSchema implements tent/schema.
func (t *Tools) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := suite.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// load reads a suite; on failure the second value is the tool result to
// return.
func (t *Tools) load(name string) (*suite.Suite, *mcp.CallToolResult) {
	names, err := suite.Discover(t.SuitesDir)
	if err != nil {
		return nil, errorResult(err.Error())
	}
	found := false
	for _, n := range names {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		return nil, errorResult(fmt.Sprintf("unknown suite %q", name))
	}
	st, err := suite.LoadFile(suite.PathFor(t.SuitesDir, name), t.Registry)
	if err != nil {
		return nil, errorResult(err.Error())
	}
	return st, nil
}

func reportResult(rep *report.SuiteReport) (*mcp.CallToolResult, error) {
	response := map[string]any{
		"summary": rep.Summary(),
		"report":  rep,
	}
	data, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode report: %s", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: !rep.Passed(),
	}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
