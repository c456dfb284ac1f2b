package observable

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"

	"github.com/gyptix/observable-go/pkg/log"
	"github.com/gyptix/observable-go/pkg/mutation"
)

// Proxy is the intercepting wrapper around one target.
//
// Reads and writes must go through the proxy accessors to be observed.
// Object targets take string keys. Sequence targets take int indexes and
// LengthKey; numeric strings are accepted as indexes.
type Proxy struct {
	obs  *Observation
	raw  Target
	top  bool
	path string
}

// Raw returns the wrapped target.
func (p *Proxy) Raw() Target {
	return p.raw
}

// Observation returns the observation the proxy belongs to.
func (p *Proxy) Observation() *Observation {
	return p.obs
}

// Path locates the target from the observed root, as first reached.
// The root's path is empty.
func (p *Proxy) Path() string {
	return p.path
}

// String renders the wrapped target.
func (p *Proxy) String() string {
	return p.raw.String()
}

// Get returns the value under key, or nil if there is none. With deep
// observation, composite values come back wrapped.
func (p *Proxy) Get(key any) any {
	v, _ := p.Lookup(key)
	return v
}

// Lookup is Get that also reports whether key holds a value.
func (p *Proxy) Lookup(key any) (any, bool) {
	k, err := p.normalizeKey(key)
	if err != nil {
		return Undefined, false
	}
	v, ok := p.load(k)
	return p.obs.wrapNested(v, p.childPath(k)), ok
}

// Child returns the wrapper for the composite under key. It wraps even
// when deep observation is off.
func (p *Proxy) Child(key any) (*Proxy, bool) {
	k, err := p.normalizeKey(key)
	if err != nil {
		return nil, false
	}
	v, _ := p.load(k)
	t, ok := v.(Target)
	if !ok {
		return nil, false
	}
	return p.obs.wrap(t, p.childPath(k)), true
}

// Set writes v under key and notifies subscribers.
//
// Proxies passed as values are stored as the targets they wrap.
func (p *Proxy) Set(key, v any) error {
	k, err := p.normalizeKey(key)
	if err != nil {
		return err
	}
	v = unwrapValue(v)

	if s, ok := p.raw.(*Sequence); ok {
		if k == LengthKey {
			n, ok := asLength(v)
			if !ok || !s.canGrowTo(n) {
				return fmt.Errorf("%w: %v", ErrInvalidLength, v)
			}
			return p.apply(k, s.Len(), n, func() { s.SetLen(n) })
		}
		if !s.canSetAt(k.(int)) {
			return fmt.Errorf("%w: %d exceeds %d", ErrIndexOutOfRange, k, MaxSequenceLength)
		}
	}

	old, _ := p.load(k)
	return p.apply(k, old, v, func() { p.store(k, v) })
}

// Delete removes key from an object target, notifying it as a write of
// Undefined even under Alter. On a sequence it clears the index without
// changing the length.
func (p *Proxy) Delete(key any) error {
	k, err := p.normalizeKey(key)
	if err != nil {
		return err
	}
	if _, ok := p.raw.(*Sequence); ok && k == LengthKey {
		return fmt.Errorf("%w: cannot delete %s", ErrInvalidKey, LengthKey)
	}

	old, ok := p.load(k)
	if !ok {
		return nil
	}
	switch t := p.raw.(type) {
	case *Object:
		return p.write(k, old, Undefined, true, func() { t.Delete(k.(string)) })
	case *Sequence:
		return p.apply(k, old, Undefined, func() { t.SetAt(k.(int), Undefined) })
	}
	return nil
}

// Has reports whether key holds a value.
func (p *Proxy) Has(key any) bool {
	_, ok := p.Lookup(key)
	return ok
}

// Keys returns an object's keys in insertion order, or nil for sequences.
func (p *Proxy) Keys() []string {
	if o, ok := p.raw.(*Object); ok {
		return o.Keys()
	}
	return nil
}

// Len returns the number of keys or elements.
func (p *Proxy) Len() int {
	switch t := p.raw.(type) {
	case *Object:
		return t.Len()
	case *Sequence:
		return t.Len()
	}
	return 0
}

// All iterates keys (string or int) and values as Get would return them.
func (p *Proxy) All() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		switch t := p.raw.(type) {
		case *Object:
			for _, k := range t.Keys() {
				if !yield(k, p.Get(k)) {
					return
				}
			}
		case *Sequence:
			for i := 0; i < t.Len(); i++ {
				if !yield(i, p.Get(i)) {
					return
				}
			}
		}
	}
}

// Call invokes the method stored under key with the proxy as receiver.
func (p *Proxy) Call(key any, args ...any) (any, error) {
	k, err := p.normalizeKey(key)
	if err != nil {
		return nil, err
	}
	v, _ := p.load(k)
	switch m := v.(type) {
	case Method:
		return m(p, args...)
	case func(*Proxy, ...any) (any, error):
		return m(p, args...)
	default:
		return nil, fmt.Errorf("%w: %v", ErrNotMethod, key)
	}
}

// apply is the write path shared by every mutating accessor.
func (p *Proxy) apply(key, old, v any, commit func()) error {
	return p.write(key, old, v, false, commit)
}

// write runs one write through the watch filter, alter suppression and
// both notification phases. Key removals are never suppressed by alter.
func (p *Proxy) write(key, old, v any, removesKey bool, commit func()) error {
	o := p.obs
	st := o.Settings()

	if p.top && st.HasWatch && !Equal(key, st.Watch) {
		commit()
		return nil
	}
	if st.Alter && !removesKey && Equal(old, v) {
		return nil
	}

	errChanging := o.notify(PhaseChanging, log.SourceDirect, p.raw, p.path, key, old, v)
	if errChanging != nil && !st.Isolate {
		return errChanging
	}

	commit()
	if el, ok := v.(mutation.Element); ok && st.Deep {
		o.bindElement(el)
	}

	errChanged := o.notify(PhaseChanged, log.SourceDirect, p.raw, p.path, key, old, v)
	return errors.Join(errChanging, errChanged)
}

func (p *Proxy) load(key any) (any, bool) {
	switch t := p.raw.(type) {
	case *Object:
		return t.Get(key.(string))
	case *Sequence:
		if key == LengthKey {
			return t.Len(), true
		}
		return t.At(key.(int))
	}
	return Undefined, false
}

func (p *Proxy) store(key, v any) {
	switch t := p.raw.(type) {
	case *Object:
		t.Set(key.(string), v)
	case *Sequence:
		t.SetAt(key.(int), v)
	}
}

// normalizeKey validates key for the target kind. Sequence indexes come
// back as int.
func (p *Proxy) normalizeKey(key any) (any, error) {
	switch p.raw.(type) {
	case *Object:
		if k, ok := key.(string); ok {
			return k, nil
		}
		return nil, fmt.Errorf("%w: object key %v (%T)", ErrInvalidKey, key, key)
	case *Sequence:
		if s, ok := key.(string); ok {
			if s == LengthKey {
				return LengthKey, nil
			}
			i, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("%w: sequence key %q", ErrInvalidKey, s)
			}
			key = i
		}
		i, ok := asInt(key)
		if !ok {
			u, uok := asUint(key)
			if !uok {
				return nil, fmt.Errorf("%w: sequence key %v (%T)", ErrInvalidKey, key, key)
			}
			i = int64(u)
		}
		if i < 0 {
			return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
		}
		return int(i), nil
	}
	return nil, ErrInvalidKey
}

func (p *Proxy) childPath(key any) string {
	switch k := key.(type) {
	case int:
		return p.path + "[" + strconv.Itoa(k) + "]"
	default:
		if p.path == "" {
			return fmt.Sprint(k)
		}
		return p.path + "." + fmt.Sprint(k)
	}
}

func asLength(v any) (int, bool) {
	if i, ok := asInt(v); ok && i >= 0 {
		return int(i), true
	}
	if u, ok := asUint(v); ok && u <= math.MaxInt {
		return int(u), true
	}
	return 0, false
}
