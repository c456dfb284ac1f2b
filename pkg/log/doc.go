// Package log provides structured change capture for observations.
//
// This package defines the Logger interface and Event types for capturing
// every notification an Observation delivers, every externally sourced
// mutation batch it drains, and every subscriber failure. It is separate
// from operational logging (slog): change capture is a complete,
// machine-readable trace for debugging reactive models.
//
// # Basic Usage
//
// Observations are configured with a Logger at construction:
//
//	// For development: log to console via slog
//	obs := observable.Observe(doc, observable.WithCapture(log.NewSlogAdapter(slog.Default())))
//
//	// For analysis: write to binary file
//	capture, _ := log.NewFileLogger("/tmp/session.olog")
//
//	// Both: use MultiLogger
//	capture := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events carry one payload:
//   - Change: one delivered notification phase (ChangeEvent)
//   - Batch: one drained external mutation batch (BatchEvent)
//   - Error: a subscriber failure or dropped record (ErrorEventData)
//
// # File Format
//
// Capture files use CBOR encoding with the .olog extension. The observe-log
// CLI tool provides viewing, filtering, and export capabilities.
package log
