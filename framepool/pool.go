// Package framepool implements the frame-in-flight resource pool: the
// current/pending/free frame lists, lazy semaphore/event/fence/
// command-pool allocation per frame, and the retirement bookkeeping
// that bounds how many frames may be in flight at once.
package framepool

import (
	"errors"

	"kestrel/fgraph/gpu"
)

// Frame owns the synchronization and command-recording resources for
// one frame-in-flight: lazily allocated semaphores, events and fences,
// one command pool per queue family touched this frame, and the set of
// fences the pool must see signaled before the frame is recyclable.
type Frame struct {
	index int64 // submission sequence number; 0 until first Advance

	semaphores []gpu.Semaphore
	events     []gpu.Event
	fences     []gpu.Fence
	cmdPools   map[gpu.QueueFamily]gpu.CmdPool

	waits []gpu.Fence
}

func newFrame() *Frame {
	return &Frame{cmdPools: make(map[gpu.QueueFamily]gpu.CmdPool)}
}

// GetSemaphore lazily allocates a semaphore from dev, caching it on the
// frame for the rest of its lifetime.
func (f *Frame) GetSemaphore(dev gpu.Device) (gpu.Semaphore, error) {
	s, err := dev.CreateSemaphore()
	if err != nil {
		return nil, err
	}
	f.semaphores = append(f.semaphores, s)
	return s, nil
}

// GetEvent lazily allocates an event from dev.
func (f *Frame) GetEvent(dev gpu.Device) (gpu.Event, error) {
	e, err := dev.CreateEvent()
	if err != nil {
		return nil, err
	}
	f.events = append(f.events, e)
	return e, nil
}

// GetFence lazily allocates a fence from dev.
func (f *Frame) GetFence(dev gpu.Device, signaled bool) (gpu.Fence, error) {
	fn, err := dev.CreateFence(signaled)
	if err != nil {
		return nil, err
	}
	f.fences = append(f.fences, fn)
	return fn, nil
}

// GetCommandPool lazily allocates (and then caches) a command pool
// bound to family.
func (f *Frame) GetCommandPool(dev gpu.Device, family gpu.QueueFamily) (gpu.CmdPool, error) {
	if p, ok := f.cmdPools[family]; ok {
		return p, nil
	}
	p, err := dev.CreateCmdPool(family)
	if err != nil {
		return nil, err
	}
	f.cmdPools[family] = p
	return p, nil
}

// AddWait registers fence as a condition the pool must see signaled
// before this frame may be retired.
func (f *Frame) AddWait(fence gpu.Fence) {
	f.waits = append(f.waits, fence)
}

func (f *Frame) signaled() (bool, error) {
	for _, w := range f.waits {
		ok, err := w.Signaled()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (f *Frame) reset() error {
	for _, w := range f.waits {
		if err := w.Reset(); err != nil {
			return err
		}
	}
	for _, p := range f.cmdPools {
		if err := p.Reset(); err != nil {
			return err
		}
	}
	f.waits = f.waits[:0]
	f.index = 0
	return nil
}

// ErrNoWaitFence is returned by Advance when the current frame has no
// registered wait fence: a frame can only be tracked toward retirement
// if the caller told the pool what signals its completion.
var ErrNoWaitFence = errors.New("framepool: current frame has no wait fence")

// Pool maintains the three frame lists of the frame resource pool:
// current (being built), pending (submitted, not retired) and free
// (retired, recyclable).
type Pool struct {
	dev gpu.Device

	current *Frame
	pending []*Frame
	free    []*Frame

	submitSeq  int64
	retiredSeq int64
}

// NewPool creates an empty Pool backed by dev, with one fresh current
// frame ready to be built.
func NewPool(dev gpu.Device) *Pool {
	return &Pool{dev: dev, current: newFrame()}
}

// Current returns the frame presently being built.
func (p *Pool) Current() *Frame { return p.current }

// PendingCount reports how many submitted frames have not yet retired.
func (p *Pool) PendingCount() int { return len(p.pending) }

// FreeCount reports how many retired frames are available for reuse.
func (p *Pool) FreeCount() int { return len(p.free) }

// RetiredIndex reports the highest submission index known to have
// fully retired.
func (p *Pool) RetiredIndex() int64 { return p.retiredSeq }

// Advance polls every pending frame, retiring (in submission order)
// those whose waits are all signaled, then rotates current into
// pending and installs a new current frame, recycled from free when
// one is available. current must carry at least one registered wait
// fence.
func (p *Pool) Advance() error {
	if len(p.current.waits) == 0 {
		return ErrNoWaitFence
	}
	if err := p.retirePending(); err != nil {
		return err
	}

	p.submitSeq++
	p.current.index = p.submitSeq
	p.pending = append(p.pending, p.current)

	if n := len(p.free); n > 0 {
		p.current = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		p.current = newFrame()
	}
	return nil
}

// WaitComplete blocks until every frame with submission index up to
// and including targetIndex has retired, waiting on the device between
// polls. Used on shutdown and to enforce a bound on frames in flight.
func (p *Pool) WaitComplete(targetIndex int64) error {
	for p.retiredSeq < targetIndex {
		var fences []gpu.Fence
		for _, f := range p.pending {
			fences = append(fences, f.waits...)
		}
		if len(fences) == 0 {
			return nil
		}
		if _, err := p.dev.WaitForFences(fences, -1); err != nil {
			return err
		}
		if err := p.retirePending(); err != nil {
			return err
		}
	}
	return nil
}

// retirePending walks pending in submission order, retiring every
// frame up to the first one whose waits are not all signaled yet.
// Frames retire strictly in submission order: a later frame cannot
// retire while an earlier one on the same queue family is still
// pending, so once one is found not-yet-signaled every later frame
// stays pending regardless of its own fence state. A later frame found
// already signaled while an earlier one is not indicates the GPU
// completed work out of submission order — a driver bug — and is
// fatal.
func (p *Pool) retirePending() error {
	var stillPending []*Frame
	blocked := false
	for _, f := range p.pending {
		done, err := f.signaled()
		if err != nil {
			return err
		}
		switch {
		case blocked:
			if done {
				panic("framepool: frame retired out of order")
			}
			stillPending = append(stillPending, f)
		case !done:
			blocked = true
			stillPending = append(stillPending, f)
		default:
			index := f.index
			if err := f.reset(); err != nil {
				return err
			}
			p.retiredSeq = index
			p.free = append(p.free, f)
		}
	}
	p.pending = stillPending
	return nil
}
