// Package cache implements the content-addressed device-resource
// cache: structural deduplication of render passes, framebuffers,
// pipelines, descriptor set layouts, samplers and shader modules,
// plus the dependent-invalidation graph that cascades destruction.
//
// The design follows the engine's generational-handle idiom
// (engine/id.go, internal/bitm) rather than a reference-counted Arc
// graph: every cached kind lives in its own handle.Store, Dependent
// edges are handles or Probes — never owning references — and
// destruction walks the graph by index instead of relying on
// reference cycles.
package cache

import (
	"errors"

	"kestrel/fgraph/gpu"
	"kestrel/fgraph/internal/handle"
)

// ErrUnknownHandle names the condition of a Dynamic handle whose kind
// belongs to no store registered with a Graph. No function in this
// package returns it: Graph.Destroy skips such a handle and Graph.Alive
// reports false for it.
var ErrUnknownHandle = errors.New("cache: handle belongs to no known store")

// entry is what a Cache actually stores per slot: value, cache key
// (needed to remove the reverse index on reap), and outgoing edges.
type entry[K comparable, V any] struct {
	key      K
	value    V
	outgoing []Dependent
}

// Cache is a structural-deduplication store for one cached kind: K is
// the structural key for that kind, V is the GPU object type.
type Cache[K comparable, V gpu.Destroyer] struct {
	kind  handle.Kind
	store *handle.Store[entry[K, V]]
	index map[K]handle.Handle[entry[K, V]]
}

// NewCache creates an empty Cache for the given device and kind.
func NewCache[K comparable, V gpu.Destroyer](device handle.DeviceID, kind handle.Kind) *Cache[K, V] {
	return &Cache[K, V]{
		kind:  kind,
		store: handle.NewStore[entry[K, V]](device, kind),
		index: make(map[K]handle.Handle[entry[K, V]]),
	}
}

// Lookup returns the handle previously inserted for key, if any.
func (c *Cache[K, V]) Lookup(key K) (handle.Handle[entry[K, V]], bool) {
	h, ok := c.index[key]
	return h, ok
}

// Insert returns the existing handle if key is already present, since
// cache insertion is idempotent; otherwise it stores value under key
// and returns a fresh handle. When an existing entry is returned, the
// caller-supplied value is not adopted by the cache — callers should
// Lookup before doing the (possibly expensive) work of constructing a
// GPU object, and only construct it on a miss.
func (c *Cache[K, V]) Insert(key K, value V) handle.Handle[entry[K, V]] {
	if h, ok := c.index[key]; ok {
		return h
	}
	h := c.store.Insert(entry[K, V]{key: key, value: value})
	c.index[key] = h
	return h
}

// Get returns the live value h refers to.
func (c *Cache[K, V]) Get(h handle.Handle[entry[K, V]]) (V, bool) {
	e, ok := c.store.Get(h)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// AddDependent records that dep must be invalidated when the object
// referred to by parent is destroyed.
func (c *Cache[K, V]) AddDependent(parent handle.Handle[entry[K, V]], dep Dependent) bool {
	e, ok := c.store.Get(parent)
	if !ok {
		return false
	}
	e.outgoing = append(e.outgoing, dep)
	return true
}

// Alive reports whether h still refers to a live (not killed) entry.
func (c *Cache[K, V]) Alive(h handle.Handle[entry[K, V]]) bool { return c.store.Alive(h) }

// Len returns the number of live entries.
func (c *Cache[K, V]) Len() int { return c.store.Len() }

// kill marks d's slot dead immediately and returns its outgoing edges
// for the caller to continue the cascade. It implements the kindStore
// interface so that Graph can dispatch across heterogeneous kinds.
func (c *Cache[K, V]) kill(d handle.Dynamic) ([]Dependent, bool) {
	h, ok := handle.As[entry[K, V]](d, c.kind)
	if !ok {
		return nil, false
	}
	e, ok := c.store.Get(h)
	if !ok {
		return nil, false
	}
	out := e.outgoing
	c.store.Kill(h)
	return out, true
}

func (c *Cache[K, V]) aliveDynamic(d handle.Dynamic) bool {
	h, ok := handle.As[entry[K, V]](d, c.kind)
	if !ok {
		return false
	}
	return c.store.Alive(h)
}

// reap physically frees every entry that was killed but not yet
// removed: it calls Destroy on the GPU object and drops the structural
// key from the index. Physical destruction is deferred until after the
// last frame-in-flight referencing the entry has fully retired.
func (c *Cache[K, V]) reap() {
	for _, h := range c.store.DeadHandles() {
		e, ok := c.store.Remove(h)
		if !ok {
			continue
		}
		delete(c.index, e.key)
		e.value.Destroy()
	}
}
