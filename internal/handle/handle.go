// Package handle implements the device-scoped, generational handle
// primitive shared by the resource cache and the scheduler's local
// identifiers: a Handle[K] is an opaque triple of (device, sequence
// index, kind tag), copyable and hashable, recoverable from a
// type-erased Dynamic handle by a runtime tag check.
package handle

import (
	"errors"
	"sync/atomic"

	"kestrel/fgraph/internal/bitm"
)

// ErrWrongDevice is returned (or, for programmer-error call sites,
// panicked with) when a Handle created by one device is presented to a
// Store owned by a different device.
var ErrWrongDevice = errors.New("handle: wrong device")

// ErrInvalidHandle means a handle does not (or no longer) refer to a
// live slot in the Store it was presented to: stale, destroyed, or
// never allocated from this Store.
var ErrInvalidHandle = errors.New("handle: invalid or stale handle")

// DeviceID is a process-wide monotonic counter identifying a logical
// GPU device. It is used only to catch cross-device handle misuse; it
// carries no other meaning.
type DeviceID uint64

var deviceSeq atomic.Uint64

// NewDeviceID allocates the next process-wide DeviceID.
func NewDeviceID() DeviceID { return DeviceID(deviceSeq.Add(1)) }

// Kind is the runtime type-tag carried by every Handle and Dynamic.
// It enumerates the cached GPU object kinds.
type Kind uint8

// Cached object kinds.
const (
	KindSampler Kind = iota
	KindShaderModule
	KindDescSetLayout
	KindPipelineLayout
	KindRenderPass
	KindFramebuffer
	KindImageView
	KindGraphicsPipeline
)

func (k Kind) String() string {
	switch k {
	case KindSampler:
		return "Sampler"
	case KindShaderModule:
		return "ShaderModule"
	case KindDescSetLayout:
		return "DescSetLayout"
	case KindPipelineLayout:
		return "PipelineLayout"
	case KindRenderPass:
		return "RenderPass"
	case KindFramebuffer:
		return "Framebuffer"
	case KindImageView:
		return "ImageView"
	case KindGraphicsPipeline:
		return "GraphicsPipeline"
	default:
		return "Kind(?)"
	}
}

// Handle[K] is a typed, device-scoped identifier for a value stored in
// a Store[K]. The zero Handle never refers to a live slot.
//
// Equality depends only on the sequence index and kind tag; the
// device is asserted equal at the point of use (Store methods
// panic with ErrWrongDevice on mismatch) rather than folded into
// equality, so Equal must be used instead of == when handles from
// different devices might be compared.
type Handle[K any] struct {
	device DeviceID
	index  uint32
	kind   Kind
}

// Device returns the handle's owning device.
func (h Handle[K]) Device() DeviceID { return h.device }

// IsZero reports whether h is the zero Handle.
func (h Handle[K]) IsZero() bool { return h.device == 0 }

// Equal reports whether h and o refer to the same slot, ignoring device.
func (h Handle[K]) Equal(o Handle[K]) bool { return h.index == o.index && h.kind == o.kind }

// Dynamic erases h's static type K, keeping only the runtime kind tag.
func (h Handle[K]) Dynamic() Dynamic { return Dynamic{device: h.device, index: h.index, kind: h.kind} }

// Index returns h's sequence index. Exposed so that higher layers
// (e.g. the resource cache's structural keys) can fold a handle into a
// comparable/hashable encoding without depending on handle internals.
func (h Handle[K]) Index() uint32 { return h.index }

// Kind returns h's runtime type tag.
func (h Handle[K]) Kind() Kind { return h.kind }

// Dynamic is a type-erased Handle, used for heterogeneous storage such
// as the cache's dependent graph.
type Dynamic struct {
	device DeviceID
	index  uint32
	kind   Kind
}

// Kind returns the dynamic handle's runtime type tag.
func (d Dynamic) Kind() Kind { return d.kind }

// Device returns the dynamic handle's owning device.
func (d Dynamic) Device() DeviceID { return d.device }

// Equal reports whether d and o refer to the same slot, ignoring device.
func (d Dynamic) Equal(o Dynamic) bool { return d.index == o.index && d.kind == o.kind }

// Index returns d's sequence index.
func (d Dynamic) Index() uint32 { return d.index }

// As recovers a typed Handle[K] from d, provided d's runtime tag matches
// kind. It is the Go analogue of Rust's DynHandle::try_cast.
func As[K any](d Dynamic, kind Kind) (Handle[K], bool) {
	if d.kind != kind {
		return Handle[K]{}, false
	}
	return Handle[K]{device: d.device, index: d.index, kind: d.kind}, true
}

// Store is a per-kind store of device-scoped objects, indexed by a
// generational Handle[K]. Freed slots are recycled via a bitmap
// free-list (internal/bitm), matching the allocator idiom used
// elsewhere in this engine for mesh/primitive storage.
//
// Store is not safe for concurrent use: callers serialize writers to
// a given store and may allow concurrent readers themselves.
type Store[K any] struct {
	device DeviceID
	kind   Kind
	slots  []slot[K]
	used   bitm.Bitm[uint32]
}

type slot[K any] struct {
	value K
	alive bool
}

// NewStore creates an empty Store for the given device and kind.
func NewStore[K any](device DeviceID, kind Kind) *Store[K] {
	return &Store[K]{device: device, kind: kind}
}

// Kind returns the kind tag this store assigns to every Handle it mints.
func (s *Store[K]) Kind() Kind { return s.kind }

// Insert allocates a new slot holding v and returns its handle.
func (s *Store[K]) Insert(v K) Handle[K] {
	idx, ok := s.used.Search()
	if !ok {
		idx = s.used.Grow(1)
	}
	s.used.Set(idx)
	if idx >= len(s.slots) {
		grown := make([]slot[K], idx+1)
		copy(grown, s.slots)
		s.slots = grown
	}
	s.slots[idx] = slot[K]{value: v, alive: true}
	return Handle[K]{device: s.device, index: uint32(idx), kind: s.kind}
}

// Get returns a pointer to the value h refers to. The second result is
// false if h is stale, was destroyed (not alive), or belongs to a
// different kind. It panics with ErrWrongDevice if h belongs to a
// different device than s — that indicates a programming error, not a
// recoverable condition.
func (s *Store[K]) Get(h Handle[K]) (*K, bool) {
	s.assertDevice(h)
	i := int(h.index)
	if h.kind != s.kind || i >= len(s.slots) || !s.used.IsSet(i) || !s.slots[i].alive {
		return nil, false
	}
	return &s.slots[i].value, true
}

// Alive reports whether h refers to a live (not destroyed, not freed)
// slot.
func (s *Store[K]) Alive(h Handle[K]) bool {
	s.assertDevice(h)
	i := int(h.index)
	return i < len(s.slots) && s.used.IsSet(i) && s.slots[i].alive
}

// Kill marks h's slot dead without freeing it for reuse. Used during
// dependent invalidation: the handle becomes unusable but its index is
// not recycled until Remove is called, so a stale Dynamic handle
// pointing at the same slot cannot be confused with a freshly
// inserted, unrelated object.
func (s *Store[K]) Kill(h Handle[K]) {
	s.assertDevice(h)
	i := int(h.index)
	if i < len(s.slots) && s.used.IsSet(i) {
		s.slots[i].alive = false
	}
}

// Remove frees h's slot for reuse and returns the stored value.
func (s *Store[K]) Remove(h Handle[K]) (K, bool) {
	s.assertDevice(h)
	var zero K
	i := int(h.index)
	if i >= len(s.slots) || !s.used.IsSet(i) {
		return zero, false
	}
	v := s.slots[i].value
	s.slots[i] = slot[K]{}
	s.used.Unset(i)
	return v, true
}

// Len returns the number of live slots (allocated, not yet removed;
// includes slots killed but not removed).
func (s *Store[K]) Len() int { return s.used.Len() - s.used.Rem() }

// DeadHandles returns every handle whose slot was Kill-ed but not yet
// Remove-d. Used by the resource cache's reaper: the actual GPU free
// is deferred until frame retirement, but the "dead" mark is
// immediate.
func (s *Store[K]) DeadHandles() []Handle[K] {
	var out []Handle[K]
	for i := range s.slots {
		if s.used.IsSet(i) && !s.slots[i].alive {
			out = append(out, Handle[K]{device: s.device, index: uint32(i), kind: s.kind})
		}
	}
	return out
}

func (s *Store[K]) assertDevice(h Handle[K]) {
	if h.device != s.device {
		panic(ErrWrongDevice)
	}
}
