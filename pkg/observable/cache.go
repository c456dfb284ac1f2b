package observable

import (
	"runtime"
	"sync"
	"weak"
)

// identityCache maps raw targets to their wrappers.
//
// Both sides are held weakly: an entry never keeps a target alive, and a
// wrapper nobody holds may be collected and rebuilt on the next access,
// which no caller can distinguish from the original. Entries are evicted
// when their target is collected.
type identityCache struct {
	mu      sync.Mutex
	entries map[any]weak.Pointer[Proxy]
}

func newIdentityCache() *identityCache {
	return &identityCache{entries: make(map[any]weak.Pointer[Proxy])}
}

// wrap returns the wrapper for raw, calling build to create one if none is
// live. Concurrent callers for the same raw target get the same wrapper.
func (c *identityCache) wrap(raw Target, build func() *Proxy) *Proxy {
	key := weakKey(raw)

	c.mu.Lock()
	defer c.mu.Unlock()

	wp, known := c.entries[key]
	if known {
		if p := wp.Value(); p != nil {
			return p
		}
	}

	p := build()
	c.entries[key] = weak.Make(p)
	if !known {
		c.evictWith(raw, key)
	}
	return p
}

// lookup returns the live wrapper for raw, if any.
func (c *identityCache) lookup(raw Target) (*Proxy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wp, ok := c.entries[weakKey(raw)]
	if !ok {
		return nil, false
	}
	p := wp.Value()
	return p, p != nil
}

// Len returns the number of entries, live or pending eviction.
func (c *identityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *identityCache) evict(key any) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *identityCache) evictWith(raw Target, key any) {
	switch t := raw.(type) {
	case *Object:
		runtime.AddCleanup(t, c.evict, key)
	case *Sequence:
		runtime.AddCleanup(t, c.evict, key)
	}
}

// weakKey returns a comparable key identifying raw without retaining it.
func weakKey(raw Target) any {
	switch t := raw.(type) {
	case *Object:
		return weak.Make(t)
	case *Sequence:
		return weak.Make(t)
	default:
		panic("observable: unsupported target type")
	}
}
