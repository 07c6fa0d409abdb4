package cache

import (
	"testing"

	"kestrel/fgraph/gpu"
	"kestrel/fgraph/internal/handle"
)

func TestInsertIsIdempotent(t *testing.T) {
	dev := handle.NewDeviceID()
	c := NewCache[SamplerKey, fakeDestroyerSampler](dev, handle.KindSampler)

	key := SamplerKey{Info: gpu.SamplerInfo{MinFilter: gpu.FLinear}}
	h1 := c.Insert(key, fakeDestroyerSampler{})
	h2 := c.Insert(key, fakeDestroyerSampler{})

	if !h1.Equal(h2) {
		t.Fatalf("Insert: second insert with equal key:\nhave distinct handle\nwant same handle as first insert")
	}
	if n := c.Len(); n != 1 {
		t.Fatalf("Cache.Len after duplicate insert:\nhave %d\nwant 1", n)
	}
}

func TestLookupMiss(t *testing.T) {
	dev := handle.NewDeviceID()
	c := NewCache[SamplerKey, fakeDestroyerSampler](dev, handle.KindSampler)
	if _, ok := c.Lookup(SamplerKey{}); ok {
		t.Fatalf("Lookup on empty cache:\nhave hit\nwant miss")
	}
}

func TestKillMarksDeadImmediatelyDestroyDeferred(t *testing.T) {
	dev := handle.NewDeviceID()
	c := NewCache[SamplerKey, fakeDestroyerSampler](dev, handle.KindSampler)

	var destroyed bool
	key := SamplerKey{Info: gpu.SamplerInfo{MinFilter: gpu.FNearest}}
	h := c.Insert(key, fakeDestroyerSampler{destroyed: &destroyed})

	outgoing, ok := c.kill(h.Dynamic())
	if !ok {
		t.Fatalf("kill: want ok=true")
	}
	if len(outgoing) != 0 {
		t.Fatalf("kill: outgoing edges:\nhave %d\nwant 0", len(outgoing))
	}
	if c.Alive(h) {
		t.Fatalf("Alive after kill:\nhave true\nwant false")
	}
	if destroyed {
		t.Fatalf("Destroy called before reap:\nhave true\nwant false")
	}

	c.reap()
	if !destroyed {
		t.Fatalf("Destroy after reap:\nhave false\nwant true")
	}
	if _, ok := c.Lookup(key); ok {
		t.Fatalf("Lookup after reap:\nhave hit\nwant miss (index entry removed)")
	}
}

// fakeDestroyerSampler stands in for a real sampler object and records
// through destroyed whether Destroy was called.
type fakeDestroyerSampler struct {
	destroyed *bool
}

func (f fakeDestroyerSampler) Destroy() {
	if f.destroyed != nil {
		*f.destroyed = true
	}
}

func TestGraphCascadesDependentInvalidation(t *testing.T) {
	// A sampler is shared by two descriptor set layouts. Destroying the
	// sampler must mark both layouts dead, transitively, without
	// freeing anything until Reap runs.
	dev := handle.NewDeviceID()
	g := NewGraph(dev)

	samplerKey := SamplerKey{Info: gpu.SamplerInfo{MinFilter: gpu.FLinear}}
	samplerH := g.Samplers.Insert(samplerKey, fakeSampler{})

	layoutAKey := NewDescSetLayoutKey(
		[]gpu.DescBinding{{Nr: 0, Type: gpu.DSampler, Count: 1, Stages: gpu.StageFragment}},
		[]SamplerHandle{samplerH},
	)
	layoutBKey := NewDescSetLayoutKey(
		[]gpu.DescBinding{{Nr: 1, Type: gpu.DSampler, Count: 1, Stages: gpu.StageFragment}},
		[]SamplerHandle{samplerH},
	)
	layoutA := g.DescSetLayouts.Insert(layoutAKey, fakeLayout{})
	layoutB := g.DescSetLayouts.Insert(layoutBKey, fakeLayout{})

	g.Samplers.AddDependent(samplerH, DependentHandle(layoutA.Dynamic()))
	g.Samplers.AddDependent(samplerH, DependentHandle(layoutB.Dynamic()))

	probe := NewProbe()
	g.Samplers.AddDependent(samplerH, DependentProbe(probe))

	g.Destroy(samplerH.Dynamic())

	if g.Alive(samplerH.Dynamic()) {
		t.Fatalf("sampler Alive after Destroy:\nhave true\nwant false")
	}
	if g.Alive(layoutA.Dynamic()) {
		t.Fatalf("layoutA Alive after sampler Destroy:\nhave true\nwant false")
	}
	if g.Alive(layoutB.Dynamic()) {
		t.Fatalf("layoutB Alive after sampler Destroy:\nhave true\nwant false")
	}
	if !probe.Dead() {
		t.Fatalf("probe.Dead after sampler Destroy:\nhave false\nwant true")
	}

	g.Reap()
	if n := g.Samplers.Len(); n != 0 {
		t.Fatalf("Samplers.Len after Reap:\nhave %d\nwant 0", n)
	}
	if n := g.DescSetLayouts.Len(); n != 0 {
		t.Fatalf("DescSetLayouts.Len after Reap:\nhave %d\nwant 0", n)
	}
}

func TestGraphDestroyIsIdempotentOnCycleSafety(t *testing.T) {
	dev := handle.NewDeviceID()
	g := NewGraph(dev)
	samplerH := g.Samplers.Insert(SamplerKey{}, fakeSampler{})

	g.Destroy(samplerH.Dynamic())
	g.Destroy(samplerH.Dynamic()) // must not panic or double-queue

	g.Reap()
	if n := g.Samplers.Len(); n != 0 {
		t.Fatalf("Samplers.Len after repeated Destroy+Reap:\nhave %d\nwant 0", n)
	}
}

func TestRenderPassCompatibilityKeyIgnoresLoadStoreOps(t *testing.T) {
	att := []gpu.Attachment{
		{Format: gpu.RGBA8un, Samples: 1, Load: gpu.LClear, Store: gpu.SStore},
	}
	sub := []gpu.Subpass{{Color: []int{0}, DS: gpu.UnusedAttachment}}

	k1 := NewRenderPassCompatibilityKey(att, sub, nil)

	att2 := []gpu.Attachment{
		{Format: gpu.RGBA8un, Samples: 1, Load: gpu.LDontCare, Store: gpu.SDontCare},
	}
	k2 := NewRenderPassCompatibilityKey(att2, sub, nil)

	if k1 != k2 {
		t.Fatalf("RenderPassCompatibilityKey: load/store-only difference:\nhave distinct keys\nwant equal keys")
	}

	att3 := []gpu.Attachment{
		{Format: gpu.D32f, Samples: 1, Load: gpu.LClear, Store: gpu.SStore},
	}
	k3 := NewRenderPassCompatibilityKey(att3, sub, nil)
	if k1 == k3 {
		t.Fatalf("RenderPassCompatibilityKey: format difference:\nhave equal keys\nwant distinct keys")
	}
}

func TestRenderPassCompatibilityKeyStripsOnlyTrailingUnused(t *testing.T) {
	sub1 := []gpu.Subpass{{Color: []int{0, gpu.UnusedAttachment, 2}, DS: gpu.UnusedAttachment}}
	sub2 := []gpu.Subpass{{Color: []int{0, gpu.UnusedAttachment}, DS: gpu.UnusedAttachment}}

	att := []gpu.Attachment{{Format: gpu.RGBA8un, Samples: 1}, {Format: gpu.RGBA8un, Samples: 1}, {Format: gpu.RGBA8un, Samples: 1}}

	k1 := NewRenderPassCompatibilityKey(att, sub1, nil)
	k2 := NewRenderPassCompatibilityKey(att[:2], sub2, nil)

	if k1 == k2 {
		t.Fatalf("RenderPassCompatibilityKey: interior UNUSED entry must not be stripped:\nhave equal keys\nwant distinct keys")
	}
}

// fakeSampler and fakeLayout are no-op Destroy implementations of the
// concrete gpu interfaces required by SamplerCache/DescSetLayoutCache.
type fakeSampler struct{}

func (fakeSampler) Destroy() {}

type fakeLayout struct{}

func (fakeLayout) Destroy() {}
