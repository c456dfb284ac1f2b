package log

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter specifies criteria for filtering change events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// ObservationID filters by exact observation ID match.
	ObservationID string

	// Source filters by change origin.
	Source *Source

	// Phase filters by notification phase.
	Phase *Phase

	// Category filters by event category.
	Category *Category

	// Key filters change events by exact key.
	Key string

	// PathPrefix filters change events whose owner path starts with the prefix.
	PathPrefix string

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time
}

// Matches returns true if the event matches all filter criteria.
func (f *Filter) Matches(event Event) bool {
	if f.ObservationID != "" && event.ObservationID != f.ObservationID {
		return false
	}
	if f.Source != nil && event.Source != *f.Source {
		return false
	}
	if f.Phase != nil && event.Phase != *f.Phase {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.Key != "" && (event.Change == nil || event.Change.Key != f.Key) {
		return false
	}
	if f.PathPrefix != "" && (event.Change == nil || !strings.HasPrefix(event.Change.Path, f.PathPrefix)) {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Reader streams change events from a CBOR-encoded capture.
type Reader struct {
	r       io.Reader
	closer  io.Closer
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader creates a Reader over all events in the capture file at path.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader over events in the file matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewStreamReader(f, filter)
	r.closer = f
	return r, nil
}

// NewStreamReader creates a Reader over events read from r.
func NewStreamReader(r io.Reader, filter Filter) *Reader {
	return &Reader{
		r:       r,
		decoder: NewDecoder(r),
		filter:  filter,
	}
}

// Next returns the next event that matches the filter.
// Returns io.EOF when no more events are available.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		if r.filter.Matches(event) {
			return event, nil
		}
	}
}

// ReadAll drains the reader and returns every matching event.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

// Close closes the underlying file, if the reader opened one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
