package syncpass

import (
	"testing"

	"kestrel/fgraph/gpu"
	"kestrel/fgraph/graph"
)

// TestPassThenFragmentSampleRead mirrors the scenario of a pass writing
// a color attachment that a later standalone entity samples: a single
// pipeline barrier must transition the image from ColorTarget to
// ShaderRead layout, with src/dst stage and access scopes matching the
// two uses.
func TestPassThenFragmentSampleRead(t *testing.T) {
	b := graph.NewBuilder()
	img := b.CreateImage(graph.ImageInfo{Format: gpu.RGBA8un, Extent: &gpu.Dim3D{Width: 256, Height: 256, Depth: 1}, Samples: 1, Usage: gpu.UShaderSample})

	must(t, b.StartPass())
	must(t, b.UseColor(0, img, false))
	passA := commit(t, b)

	must(t, b.StartStandalone())
	must(t, b.UseImage(img, false))
	standaloneC := commit(t, b)
	must(t, b.MarkRootEntity(standaloneC))

	in, err := b.MakeSchedulerInput()
	if err != nil {
		t.Fatal(err)
	}
	sched, err := in.Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	d := Derive(in, sched)
	cmd, ok := d.PerEntity[standaloneC]
	if !ok {
		t.Fatalf("PerEntity[standaloneC]: have no entry, want one pre-barrier")
	}
	if len(cmd.PreImageBarriers) != 1 {
		t.Fatalf("PreImageBarriers:\nhave %d\nwant 1", len(cmd.PreImageBarriers))
	}
	bar := cmd.PreImageBarriers[0]
	if bar.Resource != img {
		t.Fatalf("barrier.Resource:\nhave %v\nwant %v", bar.Resource, img)
	}
	tr := bar.Transition
	if tr.LayoutBefore != gpu.LColorTarget || tr.LayoutAfter != gpu.LShaderRead {
		t.Fatalf("layout transition:\nhave %v -> %v\nwant LColorTarget -> LShaderRead", tr.LayoutBefore, tr.LayoutAfter)
	}
	if tr.SyncBefore != gpu.SColorOutput || tr.SyncAfter != gpu.SFragmentShading {
		t.Fatalf("stage transition:\nhave %v -> %v\nwant SColorOutput -> SFragmentShading", tr.SyncBefore, tr.SyncAfter)
	}
	if tr.AccessBefore != gpu.AColorWrite {
		t.Fatalf("AccessBefore:\nhave %v\nwant AColorWrite", tr.AccessBefore)
	}
	if tr.AccessAfter != gpu.AShaderRead {
		t.Fatalf("AccessAfter:\nhave %v\nwant AShaderRead", tr.AccessAfter)
	}

	if len(d.PerEntity[passA].PreImageBarriers) != 0 {
		t.Fatalf("PerEntity[passA]: unexpected pre-barriers on the producer")
	}
}

// TestConsecutiveReadsEmitNoBarrier covers the RAR case: two standalone
// reads of the same resource with matching layout require no barrier
// at all, only the initial undefined->layout transition on the first.
func TestConsecutiveReadsEmitNoBarrier(t *testing.T) {
	b := graph.NewBuilder()
	img := b.CreateImage(graph.ImageInfo{Format: gpu.RGBA8un, Samples: 1, Usage: gpu.UShaderSample})

	must(t, b.StartStandalone())
	must(t, b.UseImage(img, false))
	e1 := commit(t, b)
	must(t, b.MarkRootEntity(e1))

	must(t, b.StartStandalone())
	must(t, b.UseImage(img, false))
	e2 := commit(t, b)
	must(t, b.MarkRootEntity(e2))

	in, err := b.MakeSchedulerInput()
	if err != nil {
		t.Fatal(err)
	}
	sched, err := in.Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	d := Derive(in, sched)
	if cmd, ok := d.PerEntity[e2]; ok && len(cmd.PreImageBarriers) != 0 {
		t.Fatalf("PerEntity[e2].PreImageBarriers:\nhave %d\nwant 0 (RAR requires no barrier)", len(cmd.PreImageBarriers))
	}
	if cmd, ok := d.PerEntity[e1]; !ok || len(cmd.PreImageBarriers) != 1 {
		t.Fatalf("PerEntity[e1]: want exactly one initial layout-transition barrier")
	}
}

// TestQueueFamilyTransferSplitsReleaseAndAcquire covers a transfer
// entity writing a buffer that a graphics-queue entity later reads: the
// family change must produce a release barrier on the producer's
// post-barrier list and an acquire barrier on the consumer's
// pre-barrier list.
func TestQueueFamilyTransferSplitsReleaseAndAcquire(t *testing.T) {
	b := graph.NewBuilder()
	buf := b.CreateBuffer(graph.BufferInfo{Size: 256})

	must(t, b.StartTransfer())
	must(t, b.UseBuffer(buf, true))
	transferEntity := commit(t, b)

	must(t, b.StartStandalone())
	must(t, b.UseBuffer(buf, false))
	readEntity := commit(t, b)
	must(t, b.MarkRootEntity(readEntity))

	in, err := b.MakeSchedulerInput()
	if err != nil {
		t.Fatal(err)
	}
	sched, err := in.Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	d := Derive(in, sched)
	prod, ok := d.PerEntity[transferEntity]
	if !ok || len(prod.PostBufferBarriers) != 1 {
		t.Fatalf("PerEntity[transferEntity].PostBufferBarriers:\nhave %+v\nwant exactly one release barrier", prod)
	}
	if prod.PostBufferBarriers[0].FamilyBefore != TransferFamily || prod.PostBufferBarriers[0].FamilyAfter != GraphicsFamily {
		t.Fatalf("release barrier family pair:\nhave %v -> %v\nwant TransferFamily -> GraphicsFamily",
			prod.PostBufferBarriers[0].FamilyBefore, prod.PostBufferBarriers[0].FamilyAfter)
	}

	cons, ok := d.PerEntity[readEntity]
	if !ok || len(cons.PreBufferBarriers) != 1 {
		t.Fatalf("PerEntity[readEntity].PreBufferBarriers:\nhave %+v\nwant exactly one acquire barrier", cons)
	}
}

// TestFilterAccessForStagesIsIdempotent checks the universal property
// that filtering twice matches filtering once.
func TestFilterAccessForStagesIsIdempotent(t *testing.T) {
	cases := []struct {
		access gpu.Access
		stages gpu.Sync
	}{
		{gpu.AColorWrite | gpu.AShaderRead, gpu.SColorOutput},
		{gpu.AAnyRead | gpu.AAnyWrite, gpu.STopOfPipe},
		{gpu.AShaderRead | gpu.ACopyWrite, gpu.SFragmentShading | gpu.SCopy},
		{gpu.ANone, gpu.SBottomOfPipe},
	}
	for _, c := range cases {
		once := FilterAccessForStages(c.access, c.stages)
		twice := FilterAccessForStages(once, c.stages)
		if once != twice {
			t.Fatalf("FilterAccessForStages(%v, %v) not idempotent:\nonce  %v\ntwice %v", c.access, c.stages, once, twice)
		}
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func commit(t *testing.T, b *graph.Builder) graph.EntityID {
	t.Helper()
	id, err := b.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return id
}
