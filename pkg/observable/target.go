package observable

import (
	"fmt"
	"slices"
)

// LengthKey is the key under which sequence length changes are reported.
const LengthKey = "length"

// Undefined is the value reported for keys and indexes that hold nothing.
var Undefined any = nil

// MaxSequenceLength bounds how far a sequence may grow through an index or
// length write. Sequences already longer than this keep their elements.
const MaxSequenceLength = 1 << 20

// CircularRef stands in for a composite that contains itself when a
// graph is converted by ToNative or rendered by String.
const CircularRef = "[Circular]"

// Method is a function-valued property. It is never wrapped; Proxy.Call
// binds the receiving proxy as self so writes made by the method are
// intercepted like any other write.
type Method func(self *Proxy, args ...any) (any, error)

// Target is a composite that can be observed: *Object or *Sequence.
type Target interface {
	fmt.Stringer
	isTarget()
}

// Object is an ordered, mutable key/value target.
// Object is not safe for concurrent use.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject creates an object from alternating key/value pairs.
// It panics if a key is not a string or a value is missing.
func NewObject(kv ...any) *Object {
	if len(kv)%2 != 0 {
		panic("observable: NewObject needs key/value pairs")
	}
	o := &Object{values: make(map[string]any, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("observable: object key %v is not a string", kv[i]))
		}
		o.Set(k, kv[i+1])
	}
	return o
}

// ObjectFromMap converts a nested map (as produced by YAML or JSON decoders)
// into an Object. Nested maps become Objects and slices become Sequences.
// Keys are sorted since map iteration order is undefined.
func ObjectFromMap(m map[string]any) *Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	o := &Object{values: make(map[string]any, len(m))}
	for _, k := range keys {
		o.Set(k, FromNative(m[k]))
	}
	return o
}

// FromNative converts decoded map/slice trees into targets.
// Other values are returned unchanged.
func FromNative(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return ObjectFromMap(tv)
	case map[any]any:
		m := make(map[string]any, len(tv))
		for k, val := range tv {
			m[fmt.Sprint(k)] = val
		}
		return ObjectFromMap(m)
	case []any:
		s := NewSequence()
		for _, item := range tv {
			s.items = append(s.items, FromNative(item))
		}
		return s
	default:
		return v
	}
}

// ToNative converts a target tree back into plain maps and slices.
// A composite reached again while it is being converted is replaced by
// CircularRef; shared composites that do not form a cycle are converted
// at every place they occur.
func ToNative(v any) any {
	return toNative(v, make(map[Target]bool))
}

func toNative(v any, active map[Target]bool) any {
	if p, ok := v.(*Proxy); ok && p != nil {
		v = p.raw
	}
	switch tv := v.(type) {
	case *Object:
		if active[tv] {
			return CircularRef
		}
		active[tv] = true
		defer delete(active, tv)

		m := make(map[string]any, len(tv.keys))
		for _, k := range tv.keys {
			m[k] = toNative(tv.values[k], active)
		}
		return m
	case *Sequence:
		if active[tv] {
			return CircularRef
		}
		active[tv] = true
		defer delete(active, tv)

		out := make([]any, len(tv.items))
		for i, item := range tv.items {
			out[i] = toNative(item, active)
		}
		return out
	default:
		return v
	}
}

func (*Object) isTarget() {}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Set stores v under key, appending key to the key order if it is new.
func (o *Object) Set(key string, v any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Delete removes key. Deleting a missing key does nothing.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	if i := slices.Index(o.keys, key); i >= 0 {
		o.keys = slices.Delete(o.keys, i, i+1)
	}
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.keys)
}

// String renders the object for logs.
func (o *Object) String() string {
	return fmt.Sprint(ToNative(o))
}

// Sequence is an ordered, indexable target.
// Sequence is not safe for concurrent use.
type Sequence struct {
	items []any
}

// NewSequence creates a sequence holding items.
func NewSequence(items ...any) *Sequence {
	return &Sequence{items: slices.Clone(items)}
}

func (*Sequence) isTarget() {}

// Len returns the number of elements.
func (s *Sequence) Len() int {
	return len(s.items)
}

// At returns the element at index i. Out of range indexes hold nothing.
func (s *Sequence) At(i int) (any, bool) {
	if i < 0 || i >= len(s.items) {
		return Undefined, false
	}
	return s.items[i], true
}

// SetAt stores v at index i, growing the sequence with holes if needed.
// It panics on a negative index and when growing past MaxSequenceLength.
func (s *Sequence) SetAt(i int, v any) {
	if i < 0 {
		panic(fmt.Sprintf("observable: negative sequence index %d", i))
	}
	if !s.canSetAt(i) {
		panic(fmt.Sprintf("observable: sequence index %d exceeds %d", i, MaxSequenceLength))
	}
	if i >= len(s.items) {
		s.items = append(s.items, make([]any, i-len(s.items)+1)...)
	}
	s.items[i] = v
}

// SetLen truncates or extends the sequence to n elements.
// It panics when extending past MaxSequenceLength.
func (s *Sequence) SetLen(n int) {
	if n < 0 {
		n = 0
	}
	if !s.canGrowTo(n) {
		panic(fmt.Sprintf("observable: sequence length %d exceeds %d", n, MaxSequenceLength))
	}
	if n <= len(s.items) {
		clear(s.items[n:])
		s.items = s.items[:n]
		return
	}
	s.items = append(s.items, make([]any, n-len(s.items))...)
}

// canGrowTo reports whether the sequence may hold n elements.
func (s *Sequence) canGrowTo(n int) bool {
	return n <= len(s.items) || n <= MaxSequenceLength
}

// canSetAt reports whether index i may be written.
func (s *Sequence) canSetAt(i int) bool {
	return i < len(s.items) || i < MaxSequenceLength
}

// Items returns a copy of the elements.
func (s *Sequence) Items() []any {
	return slices.Clone(s.items)
}

// String renders the sequence for logs.
func (s *Sequence) String() string {
	return fmt.Sprint(ToNative(s))
}
