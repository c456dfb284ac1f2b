// Package consolelog keeps recent log lines in an observed sequence, so a
// view can subscribe to the console the same way it subscribes to any
// other document.
package consolelog

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gyptix/observable-go/pkg/observable"
)

// DefaultCapacity is the number of lines kept when Config.Capacity is zero.
const DefaultCapacity = 128

// Config configures a Log.
type Config struct {
	// Capacity is the maximum number of lines kept.
	Capacity int

	// Initial lines, kept subject to Capacity.
	Initial []string

	// Options are passed to the underlying observation.
	Options []observable.Option
}

// Log is a capped, observed list of lines. Appending past capacity drops
// the oldest line. Every edit goes through the observation, so subscribers
// see the push and the shift that follows it.
//
// Log is safe for concurrent use. Subscribers run with the log locked and
// must not append to it.
type Log struct {
	mu       sync.Mutex
	capacity int
	obs      *observable.Observation
}

// New creates a log.
func New(config Config) *Log {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	initial := config.Initial
	if len(initial) > config.Capacity {
		initial = initial[len(initial)-config.Capacity:]
	}
	items := make([]any, len(initial))
	for i, line := range initial {
		items[i] = line
	}

	return &Log{
		capacity: config.Capacity,
		obs:      observable.Observe(observable.NewSequence(items...), config.Options...),
	}
}

// Observation returns the observation over the line sequence, for
// registering subscribers.
func (l *Log) Observation() *observable.Observation {
	return l.obs
}

// Capacity returns the maximum number of lines kept.
func (l *Log) Capacity() int {
	return l.capacity
}

// Append adds a line built from args, concatenated without separators.
func (l *Log) Append(args ...any) error {
	var b strings.Builder
	for _, a := range args {
		fmt.Fprint(&b, a)
	}
	line := b.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.obs.Push(line); err != nil {
		return err
	}
	for l.obs.Len() > l.capacity {
		if _, err := l.obs.Shift(); err != nil {
			return err
		}
	}
	return nil
}

// Lines returns a copy of the kept lines, oldest first.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines := make([]string, 0, l.obs.Len())
	for _, v := range l.obs.All() {
		s, _ := v.(string)
		lines = append(lines, s)
	}
	return lines
}

// Len returns the number of kept lines.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.obs.Len()
}

// Write appends p as one line, without its trailing newline. It lets a Log
// back any writer-based logger.
func (l *Log) Write(p []byte) (int, error) {
	if err := l.Append(strings.TrimRight(string(p), "\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewHandler returns a slog handler that appends each record to l as one
// text-formatted line.
func NewHandler(l *Log, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewTextHandler(l, opts)
}
