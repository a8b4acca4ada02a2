// Package cache implements the engine's instruction cache: a
// content-backed address→instruction store that hands out
// reference-counted handles with an LRU-style eviction policy over a
// bounded working set.
//
// Per the engine's design notes, handles are a pointer plus an explicit
// release call on the cache — no finalizers, no iterator exposed; every
// access to a cached instruction goes through a Handle.
package cache

import (
	"errors"

	"reverse/internal/disasm"
)

// ErrMissing is returned by Load when no entry exists at the address.
var ErrMissing = errors.New("cache: missing entry")

// DefaultWatermark is the default eviction-candidate pool size.
const DefaultWatermark = 1024

type entry struct {
	address  uint64
	inst     *disasm.Instruction
	refcount int
	erased   bool
}

// Handle is a reference-counted handle to a cached instruction. Zero value
// is not valid; obtain handles from Allocate or Load.
type Handle struct {
	e *entry
}

// Valid reports whether h refers to a live entry.
func (h Handle) Valid() bool { return h.e != nil }

// Address returns the address the handle's instruction lives at.
func (h Handle) Address() uint64 { return h.e.address }

// Instruction returns the mutable instruction the handle owns. Callers may
// freely mutate it; the cache guarantees at most one live instruction
// object per address.
func (h Handle) Instruction() *disasm.Instruction { return h.e.inst }

// Cache maps addresses to reference-counted instruction entries.
type Cache struct {
	watermark  int
	entries    map[uint64]*entry
	candidates []*entry // FIFO by the order entries became evictable; index 0 is oldest
}

// New creates a Cache with the given eviction watermark. A non-positive
// watermark uses DefaultWatermark.
func New(watermark int) *Cache {
	if watermark <= 0 {
		watermark = DefaultWatermark
	}
	return &Cache{
		watermark: watermark,
		entries:   make(map[uint64]*entry),
	}
}

// Allocate creates a fresh entry at address with refcount 1, returning a
// handle to its (initially empty, address-only) instruction. If an entry
// already lives at address, it is replaced — the engine only calls
// Allocate for addresses its done set has not yet processed.
func (c *Cache) Allocate(address uint64) Handle {
	e := &entry{
		address:  address,
		inst:     &disasm.Instruction{Address: address},
		refcount: 1,
	}
	c.entries[address] = e
	return Handle{e: e}
}

// Load retrieves the entry at address, incrementing its refcount. It fails
// with ErrMissing if no entry exists.
func (c *Cache) Load(address uint64) (Handle, error) {
	e, ok := c.entries[address]
	if !ok {
		return Handle{}, ErrMissing
	}
	if e.refcount == 0 {
		c.removeCandidate(e)
	}
	e.refcount++
	return Handle{e: e}, nil
}

// Release decrements h's refcount. An entry at zero refcount enters the
// eviction candidate pool, unless it has already been erased, in which
// case it is simply dropped.
func (c *Cache) Release(h Handle) {
	if h.e == nil {
		return
	}
	e := h.e
	if e.refcount > 0 {
		e.refcount--
	}
	if e.refcount > 0 {
		return
	}
	if e.erased {
		return
	}
	c.candidates = append(c.candidates, e)
	c.evict()
}

// Contains reports whether a live (non-erased) entry exists at address.
func (c *Cache) Contains(address uint64) bool {
	_, ok := c.entries[address]
	return ok
}

// Erase unconditionally removes the entry at address from the cache's
// address index. Any handle obtained before the erase remains valid until
// its holder calls Release.
func (c *Cache) Erase(address uint64) {
	e, ok := c.entries[address]
	if !ok {
		return
	}
	delete(c.entries, address)
	e.erased = true
	if e.refcount == 0 {
		c.removeCandidate(e)
	}
}

// Len reports the number of addresses currently indexed.
func (c *Cache) Len() int { return len(c.entries) }

// CandidateCount reports the current eviction candidate pool size, mostly
// useful for tests.
func (c *Cache) CandidateCount() int { return len(c.candidates) }

func (c *Cache) removeCandidate(e *entry) {
	for i, cand := range c.candidates {
		if cand == e {
			c.candidates = append(c.candidates[:i], c.candidates[i+1:]...)
			return
		}
	}
}

// evict drops the oldest candidates once the pool exceeds the watermark,
// until half the watermark is reclaimed.
func (c *Cache) evict() {
	if len(c.candidates) <= c.watermark {
		return
	}
	target := c.watermark / 2
	for len(c.candidates) > target {
		e := c.candidates[0]
		c.candidates = c.candidates[1:]
		if !e.erased {
			delete(c.entries, e.address)
		}
	}
}
