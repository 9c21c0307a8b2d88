// Package trace writes an optional append-only JSONL audit trail of suite
// runs: one event per run, test case and step boundary.
package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ormasoftchile/tent/pkg/report"
)

// EventType enumerates the trace event types.
type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventRunComplete  EventType = "run_complete"
	EventCaseStart    EventType = "case_start"
	EventCaseComplete EventType = "case_complete"
	EventStepStart    EventType = "step_start"
	EventStepComplete EventType = "step_complete"
)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// stream is the shared destination of every Writer derived from one file.
type stream struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	secrets []string
}

// Writer writes trace events for one run ID. All methods are safe on a nil
// *Writer and do nothing, so tracing can stay optional at call sites.
type Writer struct {
	s     *stream
	runID string
	now   func() time.Time
}

// NewWriter creates a trace writer that writes to the given io.Writer.
func NewWriter(w io.Writer, runID string) *Writer {
	return &Writer{s: &stream{w: w}, runID: runID, now: time.Now}
}

// NewFileWriter creates a trace writer that appends to a JSONL file.
func NewFileWriter(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, runID)
	tw.s.closer = f
	return tw, nil
}

// ForRun returns a writer for another run ID sharing the same stream.
func (tw *Writer) ForRun(runID string) *Writer {
	if tw == nil {
		return nil
	}
	return &Writer{s: tw.s, runID: runID, now: tw.now}
}

// RunID returns the run ID stamped on events.
func (tw *Writer) RunID() string {
	if tw == nil {
		return ""
	}
	return tw.runID
}

// Close closes the underlying file, if the writer owns one.
func (tw *Writer) Close() error {
	if tw == nil || tw.s.closer == nil {
		return nil
	}
	return tw.s.closer.Close()
}

// SetSecrets configures the writer to redact values of the given env vars
// from trace output.
func (tw *Writer) SetSecrets(envVars []string) {
	if tw == nil {
		return
	}
	tw.s.mu.Lock()
	defer tw.s.mu.Unlock()
	tw.s.secrets = envVars
}

func (s *stream) redact(line []byte) []byte {
	for _, envVar := range s.secrets {
		if val := os.Getenv(envVar); val != "" {
			line = bytes.ReplaceAll(line, []byte(val), []byte("<REDACTED>"))
		}
	}
	return line
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	if tw == nil {
		return nil
	}
	line, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: tw.now().UTC(),
		RunID:     tw.runID,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}

	tw.s.mu.Lock()
	defer tw.s.mu.Unlock()
	line = append(tw.s.redact(line), '\n')
	_, err = tw.s.w.Write(line)
	return err
}

// EmitRunStart emits a run_start event.
func (tw *Writer) EmitRunStart(suite string) error {
	return tw.Emit(EventRunStart, map[string]any{"suite": suite})
}

// EmitRunComplete emits a run_complete event.
func (tw *Writer) EmitRunComplete(summary report.Summary, duration time.Duration) error {
	return tw.Emit(EventRunComplete, map[string]any{
		"total":    summary.Total,
		"passed":   summary.Passed,
		"failed":   summary.Failed,
		"errored":  summary.Errored,
		"duration": duration.String(),
	})
}

// EmitCaseStart emits a case_start event.
func (tw *Writer) EmitCaseStart(title string, steps int) error {
	return tw.Emit(EventCaseStart, map[string]any{"title": title, "steps": steps})
}

// EmitCaseComplete emits a case_complete event.
func (tw *Writer) EmitCaseComplete(o report.TestCaseOutcome) error {
	return tw.Emit(EventCaseComplete, map[string]any{
		"title":    o.Title,
		"status":   string(o.Status),
		"duration": o.Duration.String(),
	})
}

// EmitStepStart emits a step_start event.
func (tw *Writer) EmitStepStart(title string, index int, ref string) error {
	return tw.Emit(EventStepStart, map[string]any{
		"case":  title,
		"index": index,
		"ref":   ref,
	})
}

// EmitStepComplete emits a step_complete event.
func (tw *Writer) EmitStepComplete(title string, o report.StepOutcome) error {
	data := map[string]any{
		"case":     title,
		"index":    o.Index,
		"ref":      o.Ref,
		"status":   string(o.Status),
		"duration": o.Duration.String(),
	}
	if o.Params != nil {
		data["params"] = o.Params
	}
	if o.Result != nil {
		data["result"] = o.Result
	}
	if o.Failure != nil {
		data["failure"] = map[string]any{
			"kind":    o.Failure.Kind,
			"message": o.Failure.Message,
		}
	}
	return tw.Emit(EventStepComplete, data)
}
