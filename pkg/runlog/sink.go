package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Sink receives complete log records. Append must write the record
// atomically with respect to other appends to the same destination.
type Sink interface {
	Append(record []byte) error
}

// PathFor returns the log file path for a suite file.
func PathFor(suitePath string) string {
	return suitePath + ".log"
}

// FileSink appends records to a log file. Every Append opens the file,
// holds an exclusive lock for the whole write and closes it again, so
// concurrent runs in this process or in others never interleave.
type FileSink struct {
	Path string
}

// NewFileSink returns a sink appending to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

var pathLocks sync.Map // absolute path → *sync.Mutex

func lockFor(path string) *sync.Mutex {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Append writes record to the end of the log file.
func (s *FileSink) Append(record []byte) (err error) {
	mu := lockFor(s.Path)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close log: %w", cerr)
		}
	}()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("lock log: %w", err)
	}
	defer unlockFile(f)

	if _, err := f.Write(record); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// WriterSink serializes appends to any io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Append writes record to the underlying writer.
func (s *WriterSink) Append(record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(record)
	return err
}
