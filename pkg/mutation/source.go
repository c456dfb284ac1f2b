package mutation

import (
	"slices"
	"sync"
)

// Source delivers batches of mutation records asynchronously.
//
// Subscribe registers fn to receive every subsequent batch and returns a
// function that cancels the subscription. Implementations must not call fn
// concurrently for the same subscription.
type Source interface {
	Subscribe(fn func(batch []Record)) (cancel func())
}

// Element is implemented by composites that carry a renderable node.
// Observations do not wrap elements; they bind the element's mutation
// source instead.
type Element interface {
	MutationSource() Source
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(fn func(batch []Record)) (cancel func())

// Subscribe calls f.
func (f SourceFunc) Subscribe(fn func(batch []Record)) (cancel func()) {
	return f(fn)
}

// DefaultRecorderQueue is the number of flushed batches a Recorder buffers
// before Flush blocks.
const DefaultRecorderQueue = 64

// Recorder is an in-memory Source. Records accumulate until Flush hands
// them to a worker goroutine that delivers them as one batch, the same way
// a DOM mutation observer reports edits after the fact.
type Recorder struct {
	mu      sync.Mutex
	pending []Record
	subs    map[uint64]func([]Record)
	nextID  uint64
	closed  bool

	// sendMu orders Flush sends before Close closes the queue.
	sendMu sync.RWMutex
	queue  chan []Record
	done   chan struct{}
}

// NewRecorder creates a recorder and starts its delivery worker.
func NewRecorder() *Recorder {
	r := &Recorder{
		subs:  make(map[uint64]func([]Record)),
		queue: make(chan []Record, DefaultRecorderQueue),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Subscribe registers fn for subsequent batches.
func (r *Recorder) Subscribe(fn func(batch []Record)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// Record appends records to the pending batch.
func (r *Recorder) Record(records ...Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.pending = append(r.pending, records...)
}

// Pending returns the number of records waiting for Flush.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush queues the pending records as one batch. An empty pending set is
// not delivered.
func (r *Recorder) Flush() error {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrSourceClosed
	}
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	r.queue <- batch
	return nil
}

// Close stops accepting records, delivers already flushed batches, and
// waits for the worker to exit. It is safe to call Close multiple times.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	r.pending = nil
	r.mu.Unlock()

	r.sendMu.Lock()
	close(r.queue)
	r.sendMu.Unlock()
	<-r.done
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)

	for batch := range r.queue {
		r.mu.Lock()
		ids := make([]uint64, 0, len(r.subs))
		for id := range r.subs {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		subs := make([]func([]Record), 0, len(ids))
		for _, id := range ids {
			subs = append(subs, r.subs[id])
		}
		r.mu.Unlock()

		for _, fn := range subs {
			fn(slices.Clone(batch))
		}
	}
}

// Compile-time interface satisfaction check.
var _ Source = (*Recorder)(nil)
