package log

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.olog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("capture file was not created")
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.olog")

	logger1, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger1.Log(Event{Timestamp: time.Now(), ObservationID: "obs-1"})
	logger1.Close()

	logger2, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger second open failed: %v", err)
	}
	logger2.Log(Event{Timestamp: time.Now(), ObservationID: "obs-2"})
	logger2.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read capture file: %v", err)
	}

	events, err := NewStreamReader(bytes.NewReader(data), Filter{}).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ObservationID != "obs-1" {
		t.Errorf("first event ObservationID: got %q, want %q", events[0].ObservationID, "obs-1")
	}
	if events[1].ObservationID != "obs-2" {
		t.Errorf("second event ObservationID: got %q, want %q", events[1].ObservationID, "obs-2")
	}
}

func TestFileLoggerThreadSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.olog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				logger.Log(Event{
					Timestamp:     time.Now(),
					ObservationID: "obs-" + string(rune('A'+id)),
					Change:        &ChangeEvent{Key: "k", NewValue: j},
				})
			}
		}(i)
	}
	wg.Wait()

	written, failed := logger.Stats()
	logger.Close()

	expected := numGoroutines * eventsPerGoroutine
	if written != expected || failed != 0 {
		t.Errorf("stats: written=%d failed=%d, want %d/0", written, failed, expected)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	events, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != expected {
		t.Errorf("event count: got %d, want %d", len(events), expected)
	}
}

func TestFileLoggerClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.olog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	logger.Log(Event{Timestamp: time.Now()})

	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// Ignored after close.
	logger.Log(Event{Timestamp: time.Now()})

	if written, _ := logger.Stats(); written != 1 {
		t.Errorf("written = %d, want 1", written)
	}
}

func TestFileLoggerCountsEncodingFailures(t *testing.T) {
	var buf nopCloser
	logger := NewStreamLogger(&buf)

	// Channels cannot be encoded as CBOR.
	logger.Log(Event{Change: &ChangeEvent{Key: "bad", NewValue: make(chan int)}})
	logger.Log(Event{Change: &ChangeEvent{Key: "good", NewValue: 1}})

	written, failed := logger.Stats()
	if written != 1 || failed != 1 {
		t.Errorf("stats: written=%d failed=%d, want 1/1", written, failed)
	}
}

type nopCloser struct {
	bytes.Buffer
}

func (*nopCloser) Close() error { return nil }
