package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/gyptix/observable-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return export(reader, format, w)
}

func export(reader *log.Reader, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// exportRecord is the flat JSON form of one event.
type exportRecord struct {
	Timestamp     string `json:"timestamp"`
	ObservationID string `json:"observation_id"`
	Source        string `json:"source"`
	Phase         string `json:"phase"`
	Category      string `json:"category"`

	Path        string `json:"path,omitempty"`
	Key         string `json:"key,omitempty"`
	Old         any    `json:"old,omitempty"`
	New         any    `json:"new,omitempty"`
	Subscribers int    `json:"subscribers,omitempty"`

	Received  int `json:"received,omitempty"`
	Delivered int `json:"delivered,omitempty"`
	Dropped   int `json:"dropped,omitempty"`

	Error   string `json:"error,omitempty"`
	Context string `json:"context,omitempty"`
}

func toExportRecord(event log.Event) exportRecord {
	rec := exportRecord{
		Timestamp:     event.Timestamp.UTC().Format(timestampLayout),
		ObservationID: event.ObservationID,
		Source:        event.Source.String(),
		Phase:         event.Phase.String(),
		Category:      event.Category.String(),
	}
	switch {
	case event.Change != nil:
		rec.Path = event.Change.Path
		rec.Key = event.Change.Key
		rec.Old = event.Change.OldValue
		rec.New = event.Change.NewValue
		rec.Subscribers = event.Change.Subscribers
	case event.Batch != nil:
		rec.Received = event.Batch.Received
		rec.Delivered = event.Batch.Delivered
		rec.Dropped = event.Batch.Dropped
	case event.Error != nil:
		rec.Key = event.Error.Key
		rec.Error = event.Error.Message
		rec.Context = event.Error.Context
	}
	return rec
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toExportRecord(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "observation_id", "source", "phase", "category", "path", "key", "old", "new"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		rec := toExportRecord(event)
		var oldValue, newValue string
		if event.Change != nil {
			oldValue = formatValue(rec.Old)
			newValue = formatValue(rec.New)
		}
		row := []string{
			rec.Timestamp,
			rec.ObservationID,
			rec.Source,
			rec.Phase,
			rec.Category,
			rec.Path,
			rec.Key,
			oldValue,
			newValue,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return cw.Error()
}
