package observable

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyptix/observable-go/pkg/log"
	"github.com/gyptix/observable-go/pkg/mutation"
)

// Settings is a snapshot of an observation's configuration.
type Settings struct {
	// Watch is the only top-level key that notifies, when HasWatch is set.
	Watch    any
	HasWatch bool

	// Deep wraps nested composites on read.
	Deep bool

	// Alter skips writes that do not change the value.
	Alter bool

	// Isolate runs every subscriber even when one fails.
	Isolate bool
}

// Option configures an Observation at construction.
type Option func(*Observation)

// WithLogger sets the operational logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observation) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCapture sets the change capture logger. The default discards.
func WithCapture(capture log.Logger) Option {
	return func(o *Observation) {
		if capture != nil {
			o.capture = capture
		}
	}
}

// WithID sets the observation ID reported in captured events.
func WithID(id uuid.UUID) Option {
	return func(o *Observation) {
		o.id = id
	}
}

// Observation is a configured wrapper bound to one target plus its
// subscribers. It embeds the root Proxy, so Get, Set and the sequence
// methods are available directly.
//
// Configuration methods return the observation for chaining:
//
//	obs := observable.Observe(doc).Only("a").Deep(true).Alter(true).On(sub)
type Observation struct {
	*Proxy

	id uuid.UUID

	mu       sync.RWMutex
	settings Settings

	registry Registry
	cache    *identityCache

	bindMu   sync.Mutex
	bindings map[any]*mutation.Binding

	logger  *slog.Logger
	capture log.Logger
}

// Observe wraps target. The target stays owned by the caller; writes made
// directly to it bypass the observation.
func Observe(target Target, opts ...Option) *Observation {
	o := &Observation{
		id:       uuid.New(),
		cache:    newIdentityCache(),
		bindings: make(map[any]*mutation.Binding),
		logger:   slog.New(slog.DiscardHandler),
		capture:  log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.Proxy = &Proxy{obs: o, raw: target, top: true}
	return o
}

// ID returns the observation ID.
func (o *Observation) ID() uuid.UUID {
	return o.id
}

// Only restricts top-level notifications to key. Writes to other top-level
// keys still happen but notify nobody. Nested objects are not filtered.
// Only(nil) removes the restriction.
func (o *Observation) Only(key any) *Observation {
	if key != nil {
		if k, err := o.Proxy.normalizeKey(key); err == nil {
			key = k
		}
	}
	o.mu.Lock()
	o.settings.Watch = key
	o.settings.HasWatch = key != nil
	o.mu.Unlock()
	return o
}

// Deep toggles lazy wrapping of nested composites.
func (o *Observation) Deep(deep bool) *Observation {
	o.mu.Lock()
	o.settings.Deep = deep
	o.mu.Unlock()
	return o
}

// Alter toggles suppression of writes that do not change the value.
func (o *Observation) Alter(alter bool) *Observation {
	o.mu.Lock()
	o.settings.Alter = alter
	o.mu.Unlock()
	return o
}

// Isolate toggles best-effort fan-out. By default the first failing
// subscriber aborts the pass and its error is returned from the write; a
// failing changing handler also prevents the commit. With isolation every
// subscriber runs, the write always commits, and all errors are returned
// joined.
func (o *Observation) Isolate(isolate bool) *Observation {
	o.mu.Lock()
	o.settings.Isolate = isolate
	o.mu.Unlock()
	return o
}

// On registers a subscriber. Registering the same subscriber twice has no
// effect.
func (o *Observation) On(sub *Subscriber) *Observation {
	o.registry.Add(sub)
	return o
}

// Off removes a subscriber previously passed to On. Unknown subscribers
// are ignored.
func (o *Observation) Off(sub *Subscriber) *Observation {
	o.registry.Remove(sub)
	return o
}

// Settings returns the current configuration.
func (o *Observation) Settings() Settings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settings
}

// Subscribers returns the number of registered subscribers.
func (o *Observation) Subscribers() int {
	return o.registry.Len()
}

// Wrap returns the wrapper for a nested target, creating and caching it on
// first use. Repeated calls with the same target return the same wrapper.
func (o *Observation) Wrap(raw Target) *Proxy {
	return o.wrap(raw, "")
}

// CachedWrappers returns the number of identity cache entries.
func (o *Observation) CachedWrappers() int {
	return o.cache.Len()
}

// Bindings returns the number of bound element mutation sources.
func (o *Observation) Bindings() int {
	o.bindMu.Lock()
	defer o.bindMu.Unlock()
	return len(o.bindings)
}

// Close cancels every element mutation binding. Direct writes keep working.
func (o *Observation) Close() {
	o.bindMu.Lock()
	bindings := o.bindings
	o.bindings = make(map[any]*mutation.Binding)
	o.bindMu.Unlock()

	for _, b := range bindings {
		b.Close()
	}
}

func (o *Observation) wrap(raw Target, path string) *Proxy {
	return o.cache.wrap(raw, func() *Proxy {
		return &Proxy{obs: o, raw: raw, path: path}
	})
}

// wrapNested returns what a read of v hands back to the caller.
func (o *Observation) wrapNested(v any, path string) any {
	switch tv := v.(type) {
	case nil, Method:
		return v
	case mutation.Element:
		if o.Settings().Deep {
			o.bindElement(tv)
		}
		return v
	case Target:
		if o.Settings().Deep {
			return o.wrap(tv, path)
		}
		return v
	default:
		return v
	}
}

// bindElement routes an element's mutation source to the subscribers,
// once per element.
func (o *Observation) bindElement(el mutation.Element) {
	if !reflect.TypeOf(el).Comparable() {
		o.logger.Warn("element is not comparable, not observing its mutations",
			"type", fmt.Sprintf("%T", el))
		return
	}

	o.bindMu.Lock()
	defer o.bindMu.Unlock()

	if _, ok := o.bindings[el]; ok {
		return
	}
	src := el.MutationSource()
	if src == nil {
		return
	}
	o.bindings[el] = mutation.Bind(src, o.externalChanged, mutation.BindConfig{
		Logger:  o.logger,
		OnBatch: o.captureBatch,
	})
	o.logger.Debug("observing element mutations", "observation", o.id.String())
}

func (o *Observation) externalChanged(target any, key string, old, new any) error {
	return o.notify(PhaseChanged, log.SourceExternal, target, "", key, old, new)
}

// notify runs one phase over a snapshot of the subscribers.
func (o *Observation) notify(phase Phase, source log.Source, owner any, path string, key, old, new any) error {
	subs := o.registry.snapshot()
	isolate := o.Settings().Isolate

	o.captureChange(phase, source, path, key, old, new, len(subs))

	var errs []error
	for _, sub := range subs {
		h := sub.handler(phase)
		if h == nil {
			continue
		}
		if err := h(owner, key, old, new); err != nil {
			herr := &HandlerError{Phase: phase, Key: key, Err: err}
			o.captureError(herr, key, phase.String())
			if !isolate {
				return herr
			}
			o.logger.Warn("subscriber failed",
				"observation", o.id.String(),
				"phase", phase.String(),
				"key", key,
				"error", err)
			errs = append(errs, herr)
		}
	}
	return errors.Join(errs...)
}

// capturing reports whether events are recorded. Events are not built
// for NoopLogger.
func (o *Observation) capturing() bool {
	_, noop := o.capture.(log.NoopLogger)
	return !noop
}

func (o *Observation) captureChange(phase Phase, source log.Source, path string, key, old, new any, subscribers int) {
	if !o.capturing() {
		return
	}
	o.capture.Log(log.Event{
		Timestamp:     time.Now(),
		ObservationID: o.id.String(),
		Source:        source,
		Phase:         log.Phase(phase),
		Category:      log.CategoryChange,
		Change: &log.ChangeEvent{
			Path:        path,
			Key:         fmt.Sprint(key),
			OldValue:    captureValue(old),
			NewValue:    captureValue(new),
			Subscribers: subscribers,
		},
	})
}

func (o *Observation) captureBatch(stats mutation.BatchStats) {
	if !o.capturing() {
		return
	}
	o.capture.Log(log.Event{
		Timestamp:     time.Now(),
		ObservationID: o.id.String(),
		Source:        log.SourceExternal,
		Phase:         log.PhaseChanged,
		Category:      log.CategoryBatch,
		Batch: &log.BatchEvent{
			Received:  stats.Received,
			Delivered: stats.Delivered,
			Dropped:   stats.Dropped,
		},
	})
}

func (o *Observation) captureError(err error, key any, context string) {
	if !o.capturing() {
		return
	}
	o.capture.Log(log.Event{
		Timestamp:     time.Now(),
		ObservationID: o.id.String(),
		Category:      log.CategoryError,
		Error: &log.ErrorEventData{
			Message: err.Error(),
			Key:     fmt.Sprint(key),
			Context: context,
		},
	})
}

// captureValue converts a value into something the capture encoder accepts.
func captureValue(v any) any {
	switch tv := v.(type) {
	case nil:
		return nil
	case *Proxy, *Object, *Sequence:
		return ToNative(tv)
	case Method:
		return "method"
	case mutation.Element:
		return fmt.Sprintf("%T", tv)
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return "func"
	}
	return v
}
