// Package observable intercepts reads and writes on a mutable object graph
// and fans every change out to subscribers.
//
// Targets are *Object (ordered string keys) and *Sequence (indexed values
// plus a length). Observe binds an Observation to a target; all access goes
// through its Proxy accessors, which is where interception happens:
//
//	doc := observable.NewObject("a", 1, "nested", observable.NewObject("b", 2))
//	obs := observable.Observe(doc).Only("a").Deep(true).Alter(true)
//	obs.On(&observable.Subscriber{
//	    Changed: func(owner, key, old, new any) error {
//	        fmt.Printf("%v: %v -> %v\n", key, old, new)
//	        return nil
//	    },
//	})
//	_ = obs.Set("a", 10) // a: 1 -> 10
//	nested := obs.Get("nested").(*observable.Proxy)
//	_ = nested.Set("b", 42) // b: 2 -> 42, nested keys are not filtered
//
// # Write Path
//
// A write first applies the watch filter (top level only), then alter
// suppression, then runs every Changing handler, commits, and runs every
// Changed handler. Handlers run in registration order over a snapshot of
// the registry taken at the start of each phase.
//
// # Nested Objects
//
// With Deep enabled, reads of nested composites return wrappers built
// lazily and cached by target identity, so repeated reads return the same
// *Proxy. The cache holds targets and wrappers weakly. Targets always store
// raw values; a proxy written as a value is stored as the target it wraps.
//
// # Elements
//
// Values implementing mutation.Element are not wrapped. Under Deep their
// mutation source is bound once, and its coalesced records reach the same
// subscribers as Changed notifications.
package observable
