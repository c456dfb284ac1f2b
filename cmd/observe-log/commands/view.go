// Package commands implements the observe-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/gyptix/observable-go/pkg/log"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Source   *log.Source
	Phase    *log.Phase
	Category *log.Category
	Key      string
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Source:   f.Source,
		Phase:    f.Phase,
		Category: f.Category,
		Key:      f.Key,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [obs:id] SOURCE PHASE Type
	ts := event.Timestamp.UTC().Format(timestampLayout)
	obsID := shortenID(event.ObservationID)

	var typeLabel string
	switch {
	case event.Change != nil:
		typeLabel = "Change"
	case event.Batch != nil:
		typeLabel = "Batch"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	phase := event.Phase.String()
	if event.Category != log.CategoryChange {
		phase = "-"
	}

	fmt.Fprintf(w, "%s [obs:%s] %-8s %-8s %s\n", ts, obsID, event.Source.String(), phase, typeLabel)

	switch {
	case event.Change != nil:
		formatChangeDetails(w, event.Change)
	case event.Batch != nil:
		formatBatchDetails(w, event.Batch)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenID returns the first 8 characters of an observation ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatChangeDetails(w io.Writer, c *log.ChangeEvent) {
	if c.Path != "" {
		fmt.Fprintf(w, "  Path: %s\n", c.Path)
	}
	fmt.Fprintf(w, "  Key: %s\n", c.Key)
	fmt.Fprintf(w, "  %s -> %s\n", formatValue(c.OldValue), formatValue(c.NewValue))
	fmt.Fprintf(w, "  Subscribers: %d\n", c.Subscribers)
}

func formatBatchDetails(w io.Writer, b *log.BatchEvent) {
	fmt.Fprintf(w, "  Received: %d  Delivered: %d", b.Received, b.Delivered)
	if b.Dropped > 0 {
		fmt.Fprintf(w, "  Dropped: %d", b.Dropped)
	}
	fmt.Fprintln(w)
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Key != "" {
		fmt.Fprintf(w, "  Key: %s\n", err.Key)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatValue renders a captured value as JSON. Undefined renders as
// "undefined".
func formatValue(v any) string {
	if v == nil {
		return "undefined"
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// ParseSourceFlag parses a source string from command-line flag (case-insensitive).
func ParseSourceFlag(s string) (log.Source, error) {
	switch strings.ToLower(s) {
	case "direct":
		return log.SourceDirect, nil
	case "external":
		return log.SourceExternal, nil
	default:
		return 0, fmt.Errorf("invalid source: %s (must be direct or external)", s)
	}
}

// ParsePhaseFlag parses a phase string from command-line flag (case-insensitive).
func ParsePhaseFlag(s string) (log.Phase, error) {
	switch strings.ToLower(s) {
	case "changing":
		return log.PhaseChanging, nil
	case "changed":
		return log.PhaseChanged, nil
	default:
		return 0, fmt.Errorf("invalid phase: %s (must be changing or changed)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "change":
		return log.CategoryChange, nil
	case "batch":
		return log.CategoryBatch, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be change, batch, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
