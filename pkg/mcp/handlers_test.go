package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/tent/pkg/catalog"
	"github.com/ormasoftchile/tent/pkg/engine"
	"github.com/ormasoftchile/tent/pkg/runlog"
	"github.com/ormasoftchile/tent/pkg/runner"
)

const smokeSuite = `
- title: echo works
  steps:
    - module: m.echo
      parameters: {value: hi}
- title: fails on purpose
  steps:
    - module: m.fail
`

func newTools(t *testing.T) *Tools {
	t.Helper()
	reg := catalog.New()
	reg.RegisterModule(catalog.ModuleMeta{Name: "m", Invocables: []*catalog.Invocable{
		{Name: "echo", Params: []catalog.Param{catalog.Optional("value", "string", "default", "")},
			Func: func(_ context.Context, p map[string]any) (any, error) { return p["value"], nil }},
		{Name: "fail", Func: func(context.Context, map[string]any) (any, error) { return nil, catalog.Failf("nope") }},
	}})
	reg.Freeze()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "smoke.yaml"), []byte(smokeSuite), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewTools(reg, runner.New(engine.New(reg), os.Stdout), dir)
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := h(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", result.Content[0])
	}
	return tc.Text, result.IsError
}

func TestHandleModules(t *testing.T) {
	tools := newTools(t)
	text, isErr := call(t, tools.HandleModules, nil)
	if isErr || !strings.Contains(text, "- echo") || !strings.Contains(text, `default value: "default"`) {
		t.Errorf("modules (err=%v):\n%s", isErr, text)
	}
}

func TestHandleList(t *testing.T) {
	tools := newTools(t)
	text, isErr := call(t, tools.HandleList, map[string]any{})
	if isErr || text != "smoke" {
		t.Errorf("list = %q (err=%v)", text, isErr)
	}
	text, isErr = call(t, tools.HandleList, map[string]any{"suite": "smoke"})
	if isErr || !strings.Contains(text, "[ 1] fails on purpose") {
		t.Errorf("titles = %q (err=%v)", text, isErr)
	}
	if _, isErr := call(t, tools.HandleList, map[string]any{"suite": "../etc"}); !isErr {
		t.Error("unknown suite accepted")
	}
}

func TestHandleValidate(t *testing.T) {
	tools := newTools(t)
	text, isErr := call(t, tools.HandleValidate, map[string]any{"suite": "smoke"})
	if isErr || !strings.Contains(text, "2 test cases") {
		t.Errorf("validate = %q (err=%v)", text, isErr)
	}
	if _, isErr := call(t, tools.HandleValidate, map[string]any{}); !isErr {
		t.Error("missing suite accepted")
	}
}

func TestHandleRun_SuiteWritesLog(t *testing.T) {
	tools := newTools(t)
	text, isErr := call(t, tools.HandleRun, map[string]any{"suite": "smoke"})
	if !isErr {
		t.Error("a failing suite should be reported as an error result")
	}
	var got struct {
		Summary struct{ Passed, Failed int } `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, text)
	}
	if got.Summary.Passed != 1 || got.Summary.Failed != 1 {
		t.Errorf("summary = %+v", got.Summary)
	}

	if _, err := runlog.LatestFile(filepath.Join(tools.SuitesDir, "smoke.yaml.log")); err != nil {
		t.Errorf("log: %v", err)
	}
	text, isErr = call(t, tools.HandleLog, map[string]any{"suite": "smoke"})
	if isErr || !strings.Contains(text, "Last execution of `smoke`") || !strings.Contains(text, "FAILED fails on purpose") {
		t.Errorf("log = %q (err=%v)", text, isErr)
	}
}

func TestHandleRun_SingleCase(t *testing.T) {
	tools := newTools(t)
	text, isErr := call(t, tools.HandleRun, map[string]any{"suite": "smoke", "case": float64(0)})
	if isErr || !strings.Contains(text, `"result": "hi"`) {
		t.Errorf("run case = %s (err=%v)", text, isErr)
	}
	if _, isErr := call(t, tools.HandleRun, map[string]any{"suite": "smoke", "case": float64(7)}); !isErr {
		t.Error("out of range case accepted")
	}
	if _, err := os.Stat(filepath.Join(tools.SuitesDir, "smoke.yaml.log")); !os.IsNotExist(err) {
		t.Error("single case run wrote a log")
	}
}

func TestHandleRunmod(t *testing.T) {
	tools := newTools(t)
	text, isErr := call(t, tools.HandleRunmod, map[string]any{"ref": "m.echo"})
	if isErr || !strings.Contains(text, `"result": "default"`) {
		t.Errorf("runmod = %s (err=%v)", text, isErr)
	}
	if _, isErr := call(t, tools.HandleRunmod, map[string]any{"ref": "missing"}); !isErr {
		t.Error("unknown module accepted")
	}
}

func TestHandleLog_NoRecords(t *testing.T) {
	tools := newTools(t)
	text, isErr := call(t, tools.HandleLog, map[string]any{"suite": "smoke"})
	if !isErr || !strings.Contains(text, "no logs found") {
		t.Errorf("log = %q (err=%v)", text, isErr)
	}
}

func TestHandleSchema(t *testing.T) {
	tools := newTools(t)
	text, isErr := call(t, tools.HandleSchema, nil)
	if isErr || !strings.Contains(text, "suite-v0.json") {
		t.Errorf("schema error=%v", isErr)
	}
}

func TestNewServer(t *testing.T) {
	if NewServer("test", newTools(t)) == nil {
		t.Fatal("nil server")
	}
}
