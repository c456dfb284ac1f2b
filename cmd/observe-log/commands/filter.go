package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gyptix/observable-go/pkg/log"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output        string
	ObservationID string
	Key           string
	PathPrefix    string
	TimeStart     string
	TimeEnd       string
	Source        string
	Phase         string
	Category      string
}

// buildFilter converts command-line options into a log filter.
func buildFilter(opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{
		ObservationID: opts.ObservationID,
		Key:           opts.Key,
		PathPrefix:    opts.PathPrefix,
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if opts.Source != "" {
		s, err := ParseSourceFlag(opts.Source)
		if err != nil {
			return filter, err
		}
		filter.Source = &s
	}

	if opts.Phase != "" {
		p, err := ParsePhaseFlag(opts.Phase)
		if err != nil {
			return filter, err
		}
		filter.Phase = &p
	}

	if opts.Category != "" {
		c, err := ParseCategoryFlag(opts.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}

	return filter, nil
}

// RunFilter filters the log file and writes matching events to a new file.
// It returns the number of events written.
func RunFilter(path string, opts FilterOptions) (int, error) {
	filter, err := buildFilter(opts)
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}

		logger.Log(event)
		count++
	}

	if _, failed := logger.Stats(); failed > 0 {
		return count - failed, fmt.Errorf("failed to write %d events", failed)
	}
	return count, nil
}
