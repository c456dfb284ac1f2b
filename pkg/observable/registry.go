package observable

import (
	"slices"
	"sync"
)

// Handler receives one notification phase for a write.
// owner is the raw target that holds key; a non-nil error aborts the
// fan-out unless the observation isolates subscribers.
type Handler func(owner, key, old, new any) error

// Subscriber is a pair of optional callbacks. Changing runs before the
// write is committed, Changed after it. Subscribers are registered and
// removed by pointer identity.
type Subscriber struct {
	Changing Handler
	Changed  Handler
}

// Phase identifies which callback of a Subscriber is being run.
type Phase uint8

const (
	// PhaseChanging runs before the write is committed.
	PhaseChanging Phase = iota
	// PhaseChanged runs after the write is committed.
	PhaseChanged
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseChanging:
		return "changing"
	case PhaseChanged:
		return "changed"
	default:
		return "unknown"
	}
}

func (s *Subscriber) handler(phase Phase) Handler {
	if phase == PhaseChanging {
		return s.Changing
	}
	return s.Changed
}

// Registry is an ordered set of subscribers.
// Registration order is delivery order for both phases.
type Registry struct {
	mu   sync.RWMutex
	subs []*Subscriber
}

// Add appends sub. Nil is ignored and a subscriber already present is not
// added twice.
func (r *Registry) Add(sub *Subscriber) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.subs, sub) {
		return
	}
	r.subs = append(r.subs, sub)
}

// Remove removes sub. Removing an unknown subscriber does nothing.
func (r *Registry) Remove(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := slices.Index(r.subs, sub); i >= 0 {
		r.subs = slices.Delete(r.subs, i, i+1)
	}
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// snapshot returns the subscribers at the start of a notification pass.
// Subscribers removed during the pass still receive it.
func (r *Registry) snapshot() []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.subs)
}
