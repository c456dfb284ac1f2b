package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter writes change events to an slog.Logger.
// Useful during development to watch a model change in the console.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates a SlogAdapter that writes to logger at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of the adapter logging at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("observation", event.ObservationID),
		slog.String("source", event.Source.String()),
		slog.String("category", event.Category.String()),
	}

	level := a.level
	switch {
	case event.Change != nil:
		attrs = append(attrs,
			slog.String("phase", event.Phase.String()),
			slog.String("key", event.Change.Key),
			slog.String("old", fmt.Sprint(event.Change.OldValue)),
			slog.String("new", fmt.Sprint(event.Change.NewValue)),
			slog.Int("subscribers", event.Change.Subscribers),
		)
		if event.Change.Path != "" {
			attrs = append(attrs, slog.String("path", event.Change.Path))
		}
	case event.Batch != nil:
		attrs = append(attrs,
			slog.Int("received", event.Batch.Received),
			slog.Int("delivered", event.Batch.Delivered),
		)
		if event.Batch.Dropped > 0 {
			attrs = append(attrs, slog.Int("dropped", event.Batch.Dropped))
		}
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Key != "" {
			attrs = append(attrs, slog.String("key", event.Error.Key))
		}
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "change", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
