package observable

import (
	"fmt"
	"slices"
)

// Sequence methods decompose into index writes followed by one length
// write, each going through the regular write path. Appending one element
// to a 3-element sequence writes index 3 (Undefined -> v) and then length
// (3 -> 4). Elements that move are rewritten in ascending index order.
//
// If a subscriber aborts one of the writes the sequence is left partially
// updated, the same as a failed write sequence made by hand.

// At returns the element at index i as Get would.
func (p *Proxy) At(i int) (any, bool) {
	return p.Lookup(i)
}

// SetAt writes v at index i.
func (p *Proxy) SetAt(i int, v any) error {
	return p.Set(i, v)
}

// Push appends items and returns the new length.
func (p *Proxy) Push(items ...any) (int, error) {
	s, err := p.sequence()
	if err != nil {
		return 0, err
	}
	if _, err := p.Splice(s.Len(), 0, items...); err != nil {
		return s.Len(), err
	}
	return s.Len(), nil
}

// Pop removes and returns the last element. On an empty sequence it
// returns Undefined after writing length 0.
func (p *Proxy) Pop() (any, error) {
	s, err := p.sequence()
	if err != nil {
		return nil, err
	}
	if s.Len() == 0 {
		return Undefined, p.Set(LengthKey, 0)
	}
	removed, err := p.Splice(s.Len()-1, 1)
	if len(removed) == 0 {
		return Undefined, err
	}
	return removed[0], err
}

// Shift removes and returns the first element.
func (p *Proxy) Shift() (any, error) {
	s, err := p.sequence()
	if err != nil {
		return nil, err
	}
	if s.Len() == 0 {
		return Undefined, p.Set(LengthKey, 0)
	}
	removed, err := p.Splice(0, 1)
	if len(removed) == 0 {
		return Undefined, err
	}
	return removed[0], err
}

// Unshift prepends items and returns the new length.
func (p *Proxy) Unshift(items ...any) (int, error) {
	s, err := p.sequence()
	if err != nil {
		return 0, err
	}
	if _, err := p.Splice(0, 0, items...); err != nil {
		return s.Len(), err
	}
	return s.Len(), nil
}

// Splice removes deleteCount elements at start, inserts items in their
// place, and returns the removed elements. A negative start counts from
// the end. Out of range arguments are clamped.
func (p *Proxy) Splice(start, deleteCount int, items ...any) ([]any, error) {
	s, err := p.sequence()
	if err != nil {
		return nil, err
	}

	n := s.Len()
	switch {
	case start < 0:
		start = max(n+start, 0)
	case start > n:
		start = n
	}
	deleteCount = min(max(deleteCount, 0), n-start)

	inserted := make([]any, len(items))
	for i, item := range items {
		inserted[i] = unwrapValue(item)
	}

	current := s.Items()
	removed := slices.Clone(current[start : start+deleteCount])
	next := slices.Concat(current[:start], inserted, current[start+deleteCount:])

	// Elements after the splice only move when the length changes.
	end := len(next)
	if len(inserted) == deleteCount {
		end = start + deleteCount
	}
	for i := start; i < end; i++ {
		old, _ := s.At(i)
		v := next[i]
		if err := p.apply(i, old, v, func() { s.SetAt(i, v) }); err != nil {
			return p.wrapAll(removed), err
		}
	}

	size := len(next)
	if err := p.apply(LengthKey, n, size, func() { s.SetLen(size) }); err != nil {
		return p.wrapAll(removed), err
	}
	return p.wrapAll(removed), nil
}

func (p *Proxy) sequence() (*Sequence, error) {
	s, ok := p.raw.(*Sequence)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotSequence, p.raw)
	}
	return s, nil
}

// wrapAll applies read wrapping to elements that left the sequence.
func (p *Proxy) wrapAll(values []any) []any {
	for i, v := range values {
		values[i] = p.obs.wrapNested(v, p.path)
	}
	return values
}
