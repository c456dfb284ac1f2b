package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func decodeSlogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	if buf.Len() == 0 {
		t.Fatal("no output produced")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsChangeEvent(t *testing.T) {
	var buf bytes.Buffer
	slogger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSlogAdapter(slogger).Log(Event{
		Timestamp:     time.Now(),
		ObservationID: "obs-123",
		Source:        SourceDirect,
		Phase:         PhaseChanged,
		Category:      CategoryChange,
		Change:        &ChangeEvent{Path: "nested", Key: "b", OldValue: 2, NewValue: 42, Subscribers: 1},
	})

	entry := decodeSlogLine(t, &buf)
	if entry["level"] != "DEBUG" {
		t.Errorf("level: got %v, want DEBUG", entry["level"])
	}
	if entry["observation"] != "obs-123" {
		t.Errorf("observation: got %v, want %q", entry["observation"], "obs-123")
	}
	if entry["phase"] != "CHANGED" {
		t.Errorf("phase: got %v, want %q", entry["phase"], "CHANGED")
	}
	if entry["old"] != "2" || entry["new"] != "42" {
		t.Errorf("old/new: got %v/%v, want 2/42", entry["old"], entry["new"])
	}
	if entry["path"] != "nested" {
		t.Errorf("path: got %v, want %q", entry["path"], "nested")
	}
}

func TestSlogAdapterLogsErrorsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	slogger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSlogAdapter(slogger).Log(Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Message: "subscriber failed", Key: "a", Context: "changing"},
	})

	entry := decodeSlogLine(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("level: got %v, want WARN", entry["level"])
	}
	if entry["error_msg"] != "subscriber failed" {
		t.Errorf("error_msg: got %v", entry["error_msg"])
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	slogger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewSlogAdapter(slogger).Log(Event{Category: CategoryBatch, Batch: &BatchEvent{Received: 1}})
	if buf.Len() != 0 {
		t.Errorf("debug event should be filtered at info level, got %q", buf.String())
	}

	NewSlogAdapter(slogger).WithLevel(slog.LevelInfo).Log(Event{Category: CategoryBatch, Batch: &BatchEvent{Received: 1, Dropped: 1}})
	entry := decodeSlogLine(t, &buf)
	if entry["dropped"] != float64(1) {
		t.Errorf("dropped: got %v, want 1", entry["dropped"])
	}
}
