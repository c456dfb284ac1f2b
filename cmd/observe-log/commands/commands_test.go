package commands

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/gyptix/observable-go/pkg/log"
)

const testObsID = "7f1c4a52-3d43-4f6e-9a0b-1f9cb1d0e2aa"

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.olog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func sampleEvents() []log.Event {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	return []log.Event{
		{
			Timestamp:     ts,
			ObservationID: testObsID,
			Source:        log.SourceDirect,
			Phase:         log.PhaseChanging,
			Category:      log.CategoryChange,
			Change:        &log.ChangeEvent{Path: "nested", Key: "b", OldValue: uint64(2), NewValue: uint64(42), Subscribers: 1},
		},
		{
			Timestamp:     ts.Add(time.Millisecond),
			ObservationID: testObsID,
			Source:        log.SourceDirect,
			Phase:         log.PhaseChanged,
			Category:      log.CategoryChange,
			Change:        &log.ChangeEvent{Path: "nested", Key: "b", OldValue: uint64(2), NewValue: uint64(42), Subscribers: 1},
		},
		{
			Timestamp:     ts.Add(2 * time.Millisecond),
			ObservationID: testObsID,
			Source:        log.SourceExternal,
			Phase:         log.PhaseChanged,
			Category:      log.CategoryChange,
			Change:        &log.ChangeEvent{Key: "characterData", OldValue: "A", NewValue: "C", Subscribers: 1},
		},
		{
			Timestamp:     ts.Add(3 * time.Millisecond),
			ObservationID: testObsID,
			Source:        log.SourceExternal,
			Phase:         log.PhaseChanged,
			Category:      log.CategoryBatch,
			Batch:         &log.BatchEvent{Received: 3, Delivered: 1, Dropped: 1},
		},
		{
			Timestamp:     ts.Add(2 * time.Second),
			ObservationID: testObsID,
			Category:      log.CategoryError,
			Error:         &log.ErrorEventData{Message: "changing b: rejected", Key: "b", Context: "changing"},
		},
	}
}

func TestFormatChangeEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[1])
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.124456Z",
		"[obs:7f1c4a52]",
		"DIRECT",
		"CHANGED",
		"Change",
		"Path: nested",
		"Key: b",
		"2 -> 42",
		"Subscribers: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatUndefinedValue(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		Category: log.CategoryChange,
		Change:   &log.ChangeEvent{Key: "gone", OldValue: "x"},
	})
	if !strings.Contains(buf.String(), `"x" -> undefined`) {
		t.Errorf("expected undefined new value, got:\n%s", buf.String())
	}
}

func TestFormatBatchAndError(t *testing.T) {
	events := sampleEvents()

	var buf bytes.Buffer
	formatEvent(&buf, events[3])
	if !strings.Contains(buf.String(), "Received: 3  Delivered: 1  Dropped: 1") {
		t.Errorf("unexpected batch output:\n%s", buf.String())
	}

	buf.Reset()
	formatEvent(&buf, events[4])
	for _, want := range []string{"Error", "Message: changing b: rejected", "Context: changing"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in output, got:\n%s", want, buf.String())
		}
	}
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	external := log.SourceExternal
	changed := log.PhaseChanged
	tests := []struct {
		name   string
		filter ViewFilter
		want   int
	}{
		{"all", ViewFilter{}, 5},
		{"external", ViewFilter{Source: &external}, 2},
		{"changed", ViewFilter{Phase: &changed}, 3},
		{"key", ViewFilter{Key: "b"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RunView(path, tt.filter, &buf); err != nil {
				t.Fatalf("RunView failed: %v", err)
			}
			if got := strings.Count(buf.String(), "[obs:"); got != tt.want {
				t.Errorf("got %d events, want %d:\n%s", got, tt.want, buf.String())
			}
		})
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView(filepath.Join(t.TempDir(), "missing.olog"), ViewFilter{}, &buf); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseFlags(t *testing.T) {
	if s, err := ParseSourceFlag("EXTERNAL"); err != nil || s != log.SourceExternal {
		t.Errorf("ParseSourceFlag(EXTERNAL) = %v, %v", s, err)
	}
	if _, err := ParseSourceFlag("remote"); err == nil {
		t.Error("expected error for invalid source")
	}
	if p, err := ParsePhaseFlag("changing"); err != nil || p != log.PhaseChanging {
		t.Errorf("ParsePhaseFlag(changing) = %v, %v", p, err)
	}
	if _, err := ParsePhaseFlag("after"); err == nil {
		t.Error("expected error for invalid phase")
	}
	if c, err := ParseCategoryFlag("Batch"); err != nil || c != log.CategoryBatch {
		t.Errorf("ParseCategoryFlag(Batch) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("frame"); err == nil {
		t.Error("expected error for invalid category")
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		if err := jsoniter.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}
	if len(records) != 5 {
		t.Fatalf("got %d lines, want 5", len(records))
	}

	first := records[0]
	if first["observation_id"] != testObsID {
		t.Errorf("observation_id = %v", first["observation_id"])
	}
	if first["phase"] != "CHANGING" || first["key"] != "b" || first["path"] != "nested" {
		t.Errorf("unexpected first record: %v", first)
	}
	if first["new"] != float64(42) {
		t.Errorf("new = %v, want 42", first["new"])
	}
	if records[3]["dropped"] != float64(1) {
		t.Errorf("batch record = %v", records[3])
	}
	if records[4]["error"] != "changing b: rejected" {
		t.Errorf("error record = %v", records[4])
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want header + 5", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][8] != "new" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[3][7] != `"A"` || rows[3][8] != `"C"` {
		t.Errorf("unexpected external change row: %v", rows[3])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	if err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered.olog")

	n, err := RunFilter(path, FilterOptions{
		Output:   out,
		Source:   "direct",
		Category: "change",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("filtered %d events, want 2", n)
	}

	reader, err := log.NewReader(out)
	if err != nil {
		t.Fatalf("failed to open filtered file: %v", err)
	}
	defer reader.Close()
	events, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("filtered file holds %d events, want 2", len(events))
	}
	for _, e := range events {
		if e.Source != log.SourceDirect {
			t.Errorf("unexpected source %v", e.Source)
		}
	}
}

func TestRunFilterTimeRange(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered.olog")

	n, err := RunFilter(path, FilterOptions{
		Output:    out,
		TimeStart: "2026-01-28T10:15:33Z",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("filtered %d events, want 1", n)
	}
}

func TestRunFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered.olog")

	for _, opts := range []FilterOptions{
		{Output: out, TimeStart: "yesterday"},
		{Output: out, TimeEnd: "tomorrow"},
		{Output: out, Source: "remote"},
		{Output: out, Phase: "after"},
		{Output: out, Category: "frame"},
	} {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("RunFilter(%+v) succeeded, want error", opts)
		}
	}
}

func TestRunStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 5",
		"DIRECT:      3",
		"EXTERNAL:    2",
		"CHANGE:      3",
		"BATCH:       1",
		"ERROR:       1",
		"Changes by Key:",
		"b:           1",
		"characterData: 1",
		"Observations: 1",
		"[7f1c4a52] 5 events, 2 changes",
		"Batches: 1",
		"Dropped Records: 1",
		"Errors: 1",
		"Duration:   2s",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestRunStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Time Range") {
		t.Error("empty file should not print a time range")
	}
}
