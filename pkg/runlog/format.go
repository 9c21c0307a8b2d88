// Package runlog writes and reads the append-only execution log of a suite.
//
// Each run appends one record: a delimiter line carrying the run's start
// time in UTC, one block per test case, and a trailing blank line.
//
//	================================================== 2026-10-18 09:30:00.000000 ==
//	[ 0] PASSED create then read
//	  0. PASSED api.create
//	      result: {"id":"r1"}
//	  1. PASSED api.get
//	[ 1] ERRORED ping
//	  0. ERRORED ping.run
//	      error: invocation: invoke ping.run: connection refused
//
// Records are never rewritten; retrieval returns the most recent one.
package runlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ormasoftchile/tent/pkg/report"
)

// TimeLayout is the layout of the delimiter timestamp.
const TimeLayout = "2006-01-02 15:04:05.000000"

const (
	delimiterRule   = "=================================================="
	delimiterPrefix = "=========="
	detailIndent    = "      "
	maxResultLen    = 2000
)

// Delimiter returns the delimiter line for a run started at t.
func Delimiter(t time.Time) string {
	return delimiterRule + " " + t.UTC().Format(TimeLayout) + " =="
}

// IsDelimiter reports whether a log line starts a record.
func IsDelimiter(line string) bool {
	return strings.HasPrefix(line, delimiterPrefix)
}

// Format renders a suite report as one complete log record.
func Format(r *report.SuiteReport) []byte {
	var b bytes.Buffer
	b.WriteString(Delimiter(r.Timestamp))
	b.WriteByte('\n')
	for i, c := range r.Cases {
		fmt.Fprintf(&b, "[%2d] %s %s\n", i, c.Status.Label(), encodeTitle(c.Title))
		for _, s := range c.Steps {
			fmt.Fprintf(&b, "  %d. %s %s\n", s.Index, s.Status.Label(), s.Ref)
			switch {
			case s.Failure != nil:
				writeDetail(&b, "error: "+s.Failure.String())
			case s.Result != nil:
				writeDetail(&b, "result: "+renderResult(s.Result))
			}
		}
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// writeDetail indents every line of a detail so it can never be mistaken
// for a case, step or delimiter line.
func writeDetail(b *bytes.Buffer, detail string) {
	for _, line := range strings.Split(strings.TrimRight(detail, "\n"), "\n") {
		b.WriteString(detailIndent)
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

func renderResult(v any) string {
	var s string
	if data, err := json.Marshal(v); err == nil {
		s = string(data)
	} else {
		s = fmt.Sprintf("%v", v)
	}
	if len(s) > maxResultLen {
		cut := maxResultLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "…"
	}
	return s
}

// encodeTitle writes a title verbatim unless a line-oriented reader would
// alter it, in which case it is written as a Go quoted string.
func encodeTitle(s string) string {
	if needsQuoting(s) {
		return strconv.Quote(s)
	}
	return s
}

func decodeTitle(s string) string {
	if strings.HasPrefix(s, `"`) {
		if t, err := strconv.Unquote(s); err == nil {
			return t
		}
	}
	return s
}

func needsQuoting(s string) bool {
	if strings.HasPrefix(s, `"`) || strings.TrimSpace(s) != s {
		return true
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return r != '\t' && !unicode.IsPrint(r)
	}) >= 0
}
