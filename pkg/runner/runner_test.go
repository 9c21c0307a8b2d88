package runner

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/tent/pkg/catalog"
	"github.com/ormasoftchile/tent/pkg/engine"
	"github.com/ormasoftchile/tent/pkg/report"
	"github.com/ormasoftchile/tent/pkg/runlog"
	"github.com/ormasoftchile/tent/pkg/suite"
	"github.com/ormasoftchile/tent/pkg/trace"
)

const doc = `
- title: first passes
  steps:
    - module: m.ok
- title: second errors
  steps:
    - module: m.boom
- title: third fails
  steps:
    - module: m.ok
    - module: m.fail
`

func testSuite(t *testing.T) (*suite.Suite, *engine.Executor) {
	t.Helper()
	r := catalog.New()
	r.RegisterModule(catalog.ModuleMeta{Name: "m", Invocables: []*catalog.Invocable{
		{Name: "ok", Func: func(context.Context, map[string]any) (any, error) { return "fine", nil }},
		{Name: "boom", Func: func(context.Context, map[string]any) (any, error) { return nil, errors.New("down") }},
		{Name: "fail", Func: func(context.Context, map[string]any) (any, error) { return nil, catalog.Failf("mismatch") }},
	}})
	r.Freeze()
	s, err := suite.Load(strings.NewReader(doc), r)
	if err != nil {
		t.Fatal(err)
	}
	return s, engine.New(r)
}

type memSink struct {
	mu      sync.Mutex
	records [][]byte
}

func (m *memSink) Append(rec []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func caseStatuses(r *report.SuiteReport) []report.Status {
	var out []report.Status
	for _, c := range r.Cases {
		out = append(out, c.Status)
	}
	return out
}

func TestRunSuite_ContinuesAndLogs(t *testing.T) {
	s, exec := testSuite(t)
	var con bytes.Buffer
	sink := &memSink{}
	start := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	r := New(exec, &con)
	r.Now = func() time.Time { return start }
	rep, err := r.RunSuite(context.Background(), "smoke", s.Cases(), sink)
	if err != nil {
		t.Fatal(err)
	}

	want := []report.Status{report.StatusPassed, report.StatusErrored, report.StatusFailed}
	if diff := cmp.Diff(want, caseStatuses(rep)); diff != "" {
		t.Errorf("statuses (-want +got):\n%s", diff)
	}
	if rep.RunID == "" || !rep.Timestamp.Equal(start) {
		t.Errorf("run id %q, timestamp %v", rep.RunID, rep.Timestamp)
	}

	if len(sink.records) != 1 {
		t.Fatalf("records = %d, want 1", len(sink.records))
	}
	if !strings.HasPrefix(string(sink.records[0]), runlog.Delimiter(start)+"\n") {
		t.Errorf("record header = %q", strings.SplitN(string(sink.records[0]), "\n", 2)[0])
	}

	out := con.String()
	for _, want := range []string{"Running tests from `smoke`", GlyphPassed, GlyphErrored, GlyphFailed,
		"first passes", "0. ERRORED m.boom", "1. FAILED m.fail: assertion: mismatch", "1 passed, 1 failed, 1 errored (3 total)"} {
		if !strings.Contains(out, want) {
			t.Errorf("console missing %q:\n%s", want, out)
		}
	}
}

func TestRunSuite_Quiet(t *testing.T) {
	s, exec := testSuite(t)
	var con bytes.Buffer
	r := New(exec, &con)
	r.Quiet = true
	if _, err := r.RunSuite(context.Background(), "smoke", s.Cases(), nil); err != nil {
		t.Fatal(err)
	}
	if con.Len() != 0 {
		t.Errorf("quiet run wrote %q", con.String())
	}
}

func TestRunSuite_AbortOnError(t *testing.T) {
	s, exec := testSuite(t)
	r := New(exec, nil)
	r.AbortOnError = true
	rep, err := r.RunSuite(context.Background(), "smoke", s.Cases(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []report.Status{report.StatusPassed, report.StatusErrored}
	if diff := cmp.Diff(want, caseStatuses(rep)); diff != "" {
		t.Errorf("statuses (-want +got):\n%s", diff)
	}
}

func TestRunSuite_LongTitleTruncated(t *testing.T) {
	_, exec := testSuite(t)
	var con bytes.Buffer
	r := New(exec, &con)
	r.TitleWidth = 10
	long := strings.Repeat("a", 40)
	r.RunCase(context.Background(), &suite.TestCase{Title: long, Steps: []*suite.Step{{Module: "m", Invocable: "ok"}}})
	if strings.Contains(con.String(), "["+" 0] "+long) {
		t.Errorf("title not truncated:\n%s", con.String())
	}
	if !strings.Contains(con.String(), "…") {
		t.Errorf("missing ellipsis:\n%s", con.String())
	}
}

func TestRunSuite_ConcurrentRunsSameLog(t *testing.T) {
	s, exec := testSuite(t)
	path := runlog.PathFor(filepath.Join(t.TempDir(), "smoke.yaml"))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := New(exec, nil)
			if _, err := r.RunSuite(context.Background(), "smoke", s.Cases(), runlog.NewFileSink(path)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	rec, err := runlog.LatestFile(path)
	if err != nil {
		t.Fatal(err)
	}
	cases, err := rec.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if len(cases) != 3 {
		t.Errorf("latest record has %d cases", len(cases))
	}
}

func TestRunSuite_Trace(t *testing.T) {
	s, exec := testSuite(t)
	var buf bytes.Buffer
	r := New(exec, nil)
	r.Trace = trace.NewWriter(&buf, "")
	rep, err := r.RunSuite(context.Background(), "smoke", s.Cases(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"run_id":"`+rep.RunID+`"`) {
		t.Errorf("trace does not carry run id %s", rep.RunID)
	}
	if !strings.Contains(buf.String(), `"type":"run_complete"`) {
		t.Error("missing run_complete")
	}
}
