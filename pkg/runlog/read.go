package runlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ormasoftchile/tent/pkg/report"
)

// ErrNoRecords is returned when a log holds no run record.
var ErrNoRecords = errors.New("no logs found")

// Record is one run record as read back from a log.
type Record struct {
	Stamp     string    // timestamp text from the delimiter line
	Timestamp time.Time // zero when Stamp does not parse
	Lines     []string  // every line after the delimiter, up to the next one
}

// Text returns the record body.
func (r *Record) Text() string {
	return strings.Join(r.Lines, "\n")
}

// ReadAll returns every record in log order. Lines before the first
// delimiter are ignored.
func ReadAll(r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if IsDelimiter(line) {
			records = append(records, newRecord(line))
			continue
		}
		if n := len(records); n > 0 {
			records[n-1].Lines = append(records[n-1].Lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return records, nil
}

// Latest returns the most recent record.
func Latest(r io.Reader) (*Record, error) {
	records, err := ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return &records[len(records)-1], nil
}

// LatestFile returns the most recent record of a log file. A missing file
// yields ErrNoRecords.
func LatestFile(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoRecords)
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	return Latest(f)
}

func newRecord(delimiter string) Record {
	stamp := strings.Trim(delimiter, "= ")
	rec := Record{Stamp: stamp}
	for _, layout := range []string{TimeLayout, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, stamp); err == nil {
			rec.Timestamp = t
			break
		}
	}
	return rec
}

// CaseEntry is a test case recovered from a record.
type CaseEntry struct {
	Index  int
	Title  string
	Status report.Status
	Steps  []StepEntry
}

// StepEntry is a step line recovered from a record.
type StepEntry struct {
	Index  int
	Ref    string
	Status report.Status
	Detail []string
}

var (
	caseLine = regexp.MustCompile(`^\[\s*(\d+)\] ([A-Z]+) (.*)$`)
	stepLine = regexp.MustCompile(`^  (\d+)\. ([A-Z]+) (.+)$`)
)

// Parse recovers case titles, case statuses and step statuses from the
// record body.
func (r *Record) Parse() ([]CaseEntry, error) {
	var cases []CaseEntry
	for n, line := range r.Lines {
		switch {
		case line == "":
		case strings.HasPrefix(line, detailIndent):
			if len(cases) == 0 || len(cases[len(cases)-1].Steps) == 0 {
				return nil, fmt.Errorf("line %d: detail outside a step", n+1)
			}
			c := &cases[len(cases)-1]
			s := &c.Steps[len(c.Steps)-1]
			s.Detail = append(s.Detail, strings.TrimPrefix(line, detailIndent))
		case stepLine.MatchString(line):
			if len(cases) == 0 {
				return nil, fmt.Errorf("line %d: step outside a test case", n+1)
			}
			m := stepLine.FindStringSubmatch(line)
			status, ok := report.ParseLabel(m[2])
			if !ok {
				return nil, fmt.Errorf("line %d: unknown status %q", n+1, m[2])
			}
			idx, _ := strconv.Atoi(m[1])
			c := &cases[len(cases)-1]
			c.Steps = append(c.Steps, StepEntry{Index: idx, Ref: m[3], Status: status})
		case caseLine.MatchString(line):
			m := caseLine.FindStringSubmatch(line)
			status, ok := report.ParseLabel(m[2])
			if !ok {
				return nil, fmt.Errorf("line %d: unknown status %q", n+1, m[2])
			}
			idx, _ := strconv.Atoi(m[1])
			cases = append(cases, CaseEntry{Index: idx, Title: decodeTitle(m[3]), Status: status})
		default:
			return nil, fmt.Errorf("line %d: unrecognized line %q", n+1, line)
		}
	}
	return cases, nil
}
