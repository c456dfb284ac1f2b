package log

import (
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger writes change events to a CBOR stream, usually an .olog file.
// It is safe for concurrent use from multiple goroutines.
type FileLogger struct {
	mu      sync.Mutex
	w       io.WriteCloser
	encoder *cbor.Encoder
	closed  bool
	written int
	failed  int
}

// NewFileLogger creates a FileLogger that appends to the file at path.
// The file is created with permissions 0644 if it doesn't exist.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return NewStreamLogger(f), nil
}

// NewStreamLogger creates a FileLogger writing to w. Close closes w.
func NewStreamLogger(w io.WriteCloser) *FileLogger {
	return &FileLogger{
		w:       w,
		encoder: NewEncoder(w),
	}
}

// Log appends an event. Calls after Close are ignored.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	// Capture must never fail the write that produced the event.
	if err := l.encoder.Encode(event); err != nil {
		l.failed++
		return
	}
	l.written++
}

// Stats returns the number of events written and the number that failed to encode.
func (l *FileLogger) Stats() (written, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written, l.failed
}

// Close closes the underlying writer. It is safe to call Close multiple times.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return l.w.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
