package mutation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Sink receives one changed notification per coalesced record.
type Sink func(target any, key string, old, new any) error

// BatchStats summarizes one drained batch.
type BatchStats struct {
	// Received is the number of records delivered by the source.
	Received int

	// Delivered is the number of notifications passed to the sink.
	Delivered int

	// Dropped is the number of malformed records discarded.
	Dropped int

	// Err joins the errors returned by the sink, if any.
	Err error
}

// BindConfig configures a Binding.
type BindConfig struct {
	// Logger receives operational messages (dropped records, sink errors).
	// Nil discards them.
	Logger *slog.Logger

	// OnBatch is called after each drained batch, before the next one starts.
	OnBatch func(BatchStats)
}

// Binding connects a Source to a Sink.
type Binding struct {
	// drainMu serializes batches; mu guards the fields below it so Close
	// can run from inside a sink.
	drainMu sync.Mutex

	mu     sync.Mutex
	sink   Sink
	config BindConfig
	cancel func()
	closed bool

	batches int
}

// Bind subscribes sink to src. Batches are coalesced and drained one at a
// time, in delivery order.
func Bind(src Source, sink Sink, config BindConfig) *Binding {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	b := &Binding{
		sink:   sink,
		config: config,
	}
	cancel := src.Subscribe(func(batch []Record) {
		// Errors are already logged; a source has nowhere to return them.
		_ = b.Deliver(batch)
	})

	b.mu.Lock()
	b.cancel = cancel
	closed := b.closed
	b.mu.Unlock()
	if closed {
		cancel()
	}
	return b
}

// Deliver drains one batch synchronously. It is what the source callback
// runs; tests and transports may call it directly.
func (b *Binding) Deliver(batch []Record) error {
	b.drainMu.Lock()
	defer b.drainMu.Unlock()

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBindingClosed
	}

	records, dropped := Coalesce(batch)
	if dropped > 0 {
		b.config.Logger.Warn("dropped malformed mutation records",
			"count", dropped,
			"batch", len(batch))
	}

	stats := BatchStats{Received: len(batch), Dropped: dropped}
	var errs []error
	for _, r := range records {
		stats.Delivered++
		if err := b.sink(r.Target, r.NotifyKey(), r.OldValue, r.NewValue); err != nil {
			b.config.Logger.Warn("mutation sink failed",
				"kind", r.Kind.String(),
				"key", r.NotifyKey(),
				"error", err)
			errs = append(errs, fmt.Errorf("%s %s: %w", r.Kind, r.NotifyKey(), err))
		}
	}
	stats.Err = errors.Join(errs...)

	b.mu.Lock()
	b.batches++
	b.mu.Unlock()

	if b.config.OnBatch != nil {
		b.config.OnBatch(stats)
	}
	return stats.Err
}

// Batches returns the number of batches drained so far.
func (b *Binding) Batches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batches
}

// Close cancels the source subscription. Batches arriving afterwards are
// rejected. It is safe to call Close multiple times.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
