package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gyptix/observable-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsBySource   map[log.Source]int
	EventsByCategory map[log.Category]int
	KeyChanges       map[string]int
	Observations     map[string]*ObservationStats
	Dropped          int
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// ObservationStats holds statistics for a single observation.
type ObservationStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Changes   int
	Batches   int
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats, err := collectStats(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func collectStats(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsBySource:   make(map[log.Source]int),
		EventsByCategory: make(map[log.Category]int),
		KeyChanges:       make(map[string]int),
		Observations:     make(map[string]*ObservationStats),
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsBySource[event.Source]++
		stats.EventsByCategory[event.Category]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		obs, ok := stats.Observations[event.ObservationID]
		if !ok {
			obs = &ObservationStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Observations[event.ObservationID] = obs
		}
		obs.Events++
		if event.Timestamp.After(obs.LastSeen) {
			obs.LastSeen = event.Timestamp
		}

		switch {
		case event.Change != nil:
			// Count each write once, on its changed phase.
			if event.Phase == log.PhaseChanged {
				obs.Changes++
				stats.KeyChanges[event.Change.Key]++
			}
		case event.Batch != nil:
			obs.Batches++
			stats.Dropped += event.Batch.Dropped
		case event.Error != nil:
			stats.Errors++
		}
	}
	return stats, nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Change Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Source:")
	for _, src := range []log.Source{log.SourceDirect, log.SourceExternal} {
		if count := stats.EventsBySource[src]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", src.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryChange, log.CategoryBatch, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.KeyChanges) > 0 {
		type keyCount struct {
			key   string
			count int
		}
		keys := make([]keyCount, 0, len(stats.KeyChanges))
		for k, c := range stats.KeyChanges {
			keys = append(keys, keyCount{k, c})
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].count != keys[j].count {
				return keys[i].count > keys[j].count
			}
			return keys[i].key < keys[j].key
		})

		fmt.Fprintln(w, "Changes by Key:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %-12s %d\n", k.key+":", k.count)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Observations: %d\n", len(stats.Observations))
	if len(stats.Observations) > 0 {
		type obsInfo struct {
			id    string
			stats *ObservationStats
		}
		list := make([]obsInfo, 0, len(stats.Observations))
		for id, s := range stats.Observations {
			list = append(list, obsInfo{id, s})
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].stats.FirstSeen.Before(list[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, o := range list {
			duration := o.stats.LastSeen.Sub(o.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d changes, duration %s\n",
				shortenID(o.id), o.stats.Events, o.stats.Changes, duration)
			if o.stats.Batches > 0 {
				fmt.Fprintf(w, "           Batches: %d\n", o.stats.Batches)
			}
		}
	}

	if stats.Dropped > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Dropped Records: %d\n", stats.Dropped)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
