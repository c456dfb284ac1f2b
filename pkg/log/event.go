package log

import "time"

// Event represents a captured change event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ObservationID identifies the observation (UUID).
	ObservationID string `cbor:"2,keyasint"`

	// Source indicates where the change originated.
	Source Source `cbor:"3,keyasint"`

	// Phase is the notification phase (changing or changed).
	Phase Phase `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Change *ChangeEvent    `cbor:"10,keyasint,omitempty"` // Delivered notification
	Batch  *BatchEvent     `cbor:"11,keyasint,omitempty"` // External mutation batch
	Error  *ErrorEventData `cbor:"12,keyasint,omitempty"` // Failures
}

// Source indicates where a change originated.
type Source uint8

const (
	// SourceDirect is a write through an observation proxy.
	SourceDirect Source = 0
	// SourceExternal is a record delivered by an external mutation source.
	SourceExternal Source = 1
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceDirect:
		return "DIRECT"
	case SourceExternal:
		return "EXTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Phase indicates the notification phase.
type Phase uint8

const (
	// PhaseChanging is delivered before the write is committed.
	PhaseChanging Phase = 0
	// PhaseChanged is delivered after the write is committed.
	PhaseChanged Phase = 1
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseChanging:
		return "CHANGING"
	case PhaseChanged:
		return "CHANGED"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryChange indicates a delivered notification.
	CategoryChange Category = 0
	// CategoryBatch indicates a drained mutation batch.
	CategoryBatch Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryChange:
		return "CHANGE"
	case CategoryBatch:
		return "BATCH"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ChangeEvent captures one delivered notification phase.
type ChangeEvent struct {
	// Path locates the owner from the observed root ("" for the root).
	Path string `cbor:"1,keyasint,omitempty"`

	// Key is the written key, index, or mutation key.
	Key string `cbor:"2,keyasint"`

	// OldValue is the value before the write (CBOR-compatible representation).
	OldValue any `cbor:"3,keyasint,omitempty"`

	// NewValue is the value after the write (CBOR-compatible representation).
	NewValue any `cbor:"4,keyasint,omitempty"`

	// Subscribers is the number of subscribers enumerated for the pass.
	Subscribers int `cbor:"5,keyasint,omitempty"`
}

// BatchEvent captures one external mutation batch.
type BatchEvent struct {
	// Received is the number of records delivered by the source.
	Received int `cbor:"1,keyasint"`

	// Delivered is the number of notifications produced after coalescing.
	Delivered int `cbor:"2,keyasint"`

	// Dropped is the number of malformed records discarded.
	Dropped int `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures failures.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Key is the key being notified when the error occurred (if any).
	Key string `cbor:"2,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
