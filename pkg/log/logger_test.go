package log

import (
	"testing"
	"time"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := NoopLogger{}

	event := Event{
		Timestamp:     time.Now(),
		ObservationID: "obs-1",
		Source:        SourceDirect,
		Phase:         PhaseChanging,
		Category:      CategoryChange,
	}
	logger.Log(event)

	event.Change = &ChangeEvent{Key: "a", OldValue: 1, NewValue: 2}
	logger.Log(event)

	event.Change = nil
	event.Batch = &BatchEvent{Received: 2, Delivered: 1}
	logger.Log(event)

	event.Batch = nil
	event.Error = &ErrorEventData{Message: "boom"}
	logger.Log(event)
}

func TestNoopLoggerIsZeroValue(t *testing.T) {
	var logger NoopLogger
	logger.Log(Event{})
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{SourceDirect.String(), "DIRECT"},
		{SourceExternal.String(), "EXTERNAL"},
		{Source(9).String(), "UNKNOWN"},
		{PhaseChanging.String(), "CHANGING"},
		{PhaseChanged.String(), "CHANGED"},
		{Phase(9).String(), "UNKNOWN"},
		{CategoryChange.String(), "CHANGE"},
		{CategoryBatch.String(), "BATCH"},
		{CategoryError.String(), "ERROR"},
		{Category(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
