package cache

import (
	"sync/atomic"

	"kestrel/fgraph/internal/handle"
)

// Dependent is a node in the cache's invalidation graph: something
// that must be told when the object it depends on is destroyed. It is
// either a typed-but-erased Handle into some per-kind store, or an
// out-of-band Probe for observers that hold no handle of their own.
type Dependent struct {
	h     handle.Dynamic
	probe *Probe
}

// DependentHandle wraps a Dynamic handle as a Dependent.
func DependentHandle(h handle.Dynamic) Dependent { return Dependent{h: h} }

// DependentProbe wraps a Probe as a Dependent.
func DependentProbe(p *Probe) Dependent { return Dependent{probe: p} }

// IsProbe reports whether d is a Probe dependent rather than a handle.
func (d Dependent) IsProbe() bool { return d.probe != nil }

// Probe is an out-of-band death notification for consumers that do not
// hold a cache handle (e.g. code that only recorded a framebuffer's
// index into a command stream). It is safe to poll Dead from any
// goroutine; it is only ever set, never cleared.
type Probe struct {
	dead atomic.Bool
}

// NewProbe creates a live Probe.
func NewProbe() *Probe { return &Probe{} }

// Dead reports whether the object this probe was attached to (or any
// of its ancestors) has been destroyed.
func (p *Probe) Dead() bool { return p.dead.Load() }

func (p *Probe) mark() { p.dead.Store(true) }
