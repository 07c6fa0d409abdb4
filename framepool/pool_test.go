package framepool

import (
	"testing"

	"kestrel/fgraph/gpu"
)

// fakeDevice implements gpu.Device with real behavior only for the
// synchronization-primitive methods the pool actually exercises; every
// resource-creation method outside that scope is unreachable from
// these tests and panics if called.
type fakeDevice struct {
	fences map[*fakeFence]bool
}

func newFakeDevice() *fakeDevice { return &fakeDevice{fences: make(map[*fakeFence]bool)} }

func (d *fakeDevice) CreateImage(gpu.PixelFmt, gpu.Dim3D, int, int, int, gpu.Usage) (gpu.Image, error) {
	panic("not reachable from framepool tests")
}
func (d *fakeDevice) CreateBuffer(int64, bool, gpu.Usage) (gpu.Buffer, error) {
	panic("not reachable from framepool tests")
}
func (d *fakeDevice) CreateImageView(gpu.Image, gpu.ImageViewInfo) (gpu.ImageView, error) {
	panic("not reachable from framepool tests")
}
func (d *fakeDevice) CreateSampler(gpu.SamplerInfo) (gpu.Sampler, error) {
	panic("not reachable from framepool tests")
}
func (d *fakeDevice) CreateShaderModule([]uint32) (gpu.ShaderModule, error) {
	panic("not reachable from framepool tests")
}
func (d *fakeDevice) CreateDescSetLayout([]gpu.DescBinding, []gpu.Sampler) (gpu.DescSetLayout, error) {
	panic("not reachable from framepool tests")
}
func (d *fakeDevice) CreatePipelineLayout([]gpu.DescSetLayout, []gpu.PushConstantRange) (gpu.PipelineLayout, error) {
	panic("not reachable from framepool tests")
}
func (d *fakeDevice) CreateRenderPass([]gpu.Attachment, []gpu.Subpass, []gpu.SubpassDependency) (gpu.RenderPass, error) {
	panic("not reachable from framepool tests")
}
func (d *fakeDevice) CreateFramebuffer(gpu.RenderPass, []gpu.ImageView, int, int, int) (gpu.Framebuffer, error) {
	panic("not reachable from framepool tests")
}
func (d *fakeDevice) CreateGraphicsPipeline(gpu.GraphicsState) (gpu.Pipeline, error) {
	panic("not reachable from framepool tests")
}

func (d *fakeDevice) CreateSemaphore() (gpu.Semaphore, error) { return &fakeSemaphore{}, nil }
func (d *fakeDevice) CreateEvent() (gpu.Event, error)         { return &fakeEvent{}, nil }

func (d *fakeDevice) CreateFence(signaled bool) (gpu.Fence, error) {
	f := &fakeFence{signaled: signaled}
	d.fences[f] = true
	return f, nil
}

func (d *fakeDevice) WaitForFences(fences []gpu.Fence, timeoutNS int64) (bool, error) {
	for _, f := range fences {
		f.(*fakeFence).signaled = true
	}
	return true, nil
}

func (d *fakeDevice) CreateCmdPool(family gpu.QueueFamily) (gpu.CmdPool, error) {
	return &fakeCmdPool{}, nil
}

type fakeSemaphore struct{ destroyed bool }

func (s *fakeSemaphore) Destroy() { s.destroyed = true }

type fakeEvent struct{ destroyed bool }

func (e *fakeEvent) Destroy() { e.destroyed = true }

type fakeFence struct {
	signaled bool
	reset    int
}

func (f *fakeFence) Destroy()              {}
func (f *fakeFence) Signaled() (bool, error) { return f.signaled, nil }
func (f *fakeFence) Reset() error            { f.signaled = false; f.reset++; return nil }

type fakeCmdPool struct {
	resetCount int
	destroyed  bool
}

func (p *fakeCmdPool) Destroy()    { p.destroyed = true }
func (p *fakeCmdPool) Reset() error { p.resetCount++; return nil }

func TestAdvanceRequiresWaitFence(t *testing.T) {
	pool := NewPool(newFakeDevice())
	if err := pool.Advance(); err != ErrNoWaitFence {
		t.Fatalf("Advance with no wait fence:\nhave %v\nwant ErrNoWaitFence", err)
	}
}

// TestAdvanceRetiresSignaledAndRecycles covers the three-frame scenario
// from the component design: a fence signaled externally moves its
// frame from pending to free with its command pool reset, while a
// still-unsignaled later frame stays pending. The same Advance then
// takes the retired frame off the free list as the new current frame.
func TestAdvanceRetiresSignaledAndRecycles(t *testing.T) {
	dev := newFakeDevice()
	pool := NewPool(dev)

	fence1, _ := dev.CreateFence(false)
	cmdPool1, _ := pool.Current().GetCommandPool(dev, 0)
	pool.Current().AddWait(fence1)
	if err := pool.Advance(); err != nil {
		t.Fatalf("Advance #1: %v", err)
	}
	if pool.PendingCount() != 1 {
		t.Fatalf("PendingCount after frame 1 submit:\nhave %d\nwant 1", pool.PendingCount())
	}

	fence2, _ := dev.CreateFence(false)
	pool.Current().AddWait(fence2)
	if err := pool.Advance(); err != nil {
		t.Fatalf("Advance #2: %v", err)
	}
	if pool.PendingCount() != 2 {
		t.Fatalf("PendingCount after frame 2 submit:\nhave %d\nwant 2", pool.PendingCount())
	}

	// Frame 1's fence signals externally; frame 2's does not.
	fence1.(*fakeFence).signaled = true

	fence3, _ := dev.CreateFence(false)
	pool.Current().AddWait(fence3)
	if err := pool.Advance(); err != nil {
		t.Fatalf("Advance #3: %v", err)
	}

	if pool.RetiredIndex() != 1 {
		t.Fatalf("RetiredIndex:\nhave %d\nwant 1", pool.RetiredIndex())
	}
	if pool.FreeCount() != 0 {
		t.Fatalf("FreeCount after frame 1 retires and is recycled as current:\nhave %d\nwant 0", pool.FreeCount())
	}
	if pool.PendingCount() != 2 {
		t.Fatalf("PendingCount (frame 2 must stay pending behind its own unsignaled fence):\nhave %d\nwant 2", pool.PendingCount())
	}
	if cmdPool1.(*fakeCmdPool).resetCount != 1 {
		t.Fatalf("frame 1 command pool reset count:\nhave %d\nwant 1", cmdPool1.(*fakeCmdPool).resetCount)
	}
}

func TestOutOfOrderRetirementPanics(t *testing.T) {
	dev := newFakeDevice()
	pool := NewPool(dev)

	fence1, _ := dev.CreateFence(false)
	pool.Current().AddWait(fence1)
	pool.Advance()

	fence2, _ := dev.CreateFence(false)
	pool.Current().AddWait(fence2)
	pool.Advance()

	// Frame 2 signals while frame 1 has not: a driver bug.
	fence2.(*fakeFence).signaled = true

	defer func() {
		if recover() == nil {
			t.Fatal("retirePending with an out-of-order signal did not panic")
		}
	}()
	pool.Current().AddWait(fence2)
	pool.retirePending()
}

func TestWaitCompleteDrainsAllPending(t *testing.T) {
	dev := newFakeDevice()
	pool := NewPool(dev)

	fence1, _ := dev.CreateFence(false)
	pool.Current().AddWait(fence1)
	if err := pool.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	// dev.WaitForFences marks every fence passed to it as signaled,
	// simulating a real device blocking until GPU completion.
	if err := pool.WaitComplete(1); err != nil {
		t.Fatalf("WaitComplete: %v", err)
	}
	if pool.RetiredIndex() != 1 {
		t.Fatalf("RetiredIndex after WaitComplete:\nhave %d\nwant 1", pool.RetiredIndex())
	}
	if pool.PendingCount() != 0 {
		t.Fatalf("PendingCount after WaitComplete:\nhave %d\nwant 0", pool.PendingCount())
	}
}
