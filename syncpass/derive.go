package syncpass

import (
	"kestrel/fgraph/gpu"
	"kestrel/fgraph/graph"
)

// ImageTransition is a derived image-memory barrier for one resource.
type ImageTransition struct {
	Resource   graph.ResourceID
	Transition gpu.Transition
}

// BufferTransition is a derived buffer-memory barrier. gpu.Barrier
// carries no layout or queue-family fields (buffers have no layout,
// and the teacher's vocabulary only models ownership transfer on
// images); this adds the family pair back for the ownership-transfer
// case without touching gpu.Barrier's shape.
type BufferTransition struct {
	Resource graph.ResourceID
	gpu.Barrier
	FamilyBefore, FamilyAfter gpu.QueueFamily
}

// SyncCommands is the synchronization instructions attached to one
// schedule entry: barriers to record immediately before it runs
// (pre-barriers) and, for entities that release a resource to another
// queue family, barriers to record immediately after (post-barriers).
type SyncCommands struct {
	PreImageBarriers   []ImageTransition
	PreBufferBarriers  []BufferTransition
	PostImageBarriers  []ImageTransition
	PostBufferBarriers []BufferTransition
}

// ExternalSync records a SyncPoint that crosses a submission boundary
// and therefore must materialize as a real semaphore/fence drawn from
// the frame resource pool, rather than resolving to an internal
// barrier.
type ExternalSync struct {
	Resource graph.ResourceID
	Entity   graph.EntityID
	Point    graph.SyncPoint
}

// Derived is the output of Derive.
type Derived struct {
	// PerEntity holds the SyncCommands for every entity that needs at
	// least one barrier; entities with none are absent, not mapped to
	// a zero SyncCommands.
	PerEntity map[graph.EntityID]SyncCommands
	// PassDependencies holds, per fused pass (index into
	// Schedule.Passes), the resource-hazard-accurate subpass
	// dependency list. This supersedes graph.RenderPass.Dependencies,
	// which the scheduler derives conservatively from attachment
	// adjacency alone, for any consumer that needs true hazard
	// coverage (including non-attachment resources shared within a
	// fused pass).
	PassDependencies map[int][]gpu.SubpassDependency
	// ExternalWaits lists every acquire SyncPoint that must be waited
	// on externally before the frame's work can begin.
	ExternalWaits []ExternalSync
}

func (d *Derived) addPre(e graph.EntityID, img *ImageTransition, buf *BufferTransition) {
	cmd := d.PerEntity[e]
	if img != nil {
		cmd.PreImageBarriers = append(cmd.PreImageBarriers, *img)
	}
	if buf != nil {
		cmd.PreBufferBarriers = append(cmd.PreBufferBarriers, *buf)
	}
	d.PerEntity[e] = cmd
}

func (d *Derived) addPost(e graph.EntityID, img *ImageTransition, buf *BufferTransition) {
	cmd := d.PerEntity[e]
	if img != nil {
		cmd.PostImageBarriers = append(cmd.PostImageBarriers, *img)
	}
	if buf != nil {
		cmd.PostBufferBarriers = append(cmd.PostBufferBarriers, *buf)
	}
	d.PerEntity[e] = cmd
}

// Derive walks sched's per-resource order-independent schedule and
// emits the barrier, subpass-dependency and external-wait set that
// makes the scheduled order's resource hazards safe to execute. It
// never mutates in or sched; on success, Derived describes the whole
// frame's synchronization atomically — there is no partial result.
func Derive(in *graph.SchedulerInput, sched *graph.Schedule) *Derived {
	passOf, subpassOf := passIndex(sched)

	d := &Derived{
		PerEntity:        make(map[graph.EntityID]SyncCommands),
		PassDependencies: make(map[int][]gpu.SubpassDependency),
	}
	for r, groups := range sched.ResourceSchedule {
		deriveResource(in, d, r, groups, passOf, subpassOf)
	}
	return d
}

func passIndex(sched *graph.Schedule) (pass, subpass map[graph.EntityID]int) {
	pass = make(map[graph.EntityID]int, len(sched.ScheduledOrder))
	subpass = make(map[graph.EntityID]int, len(sched.ScheduledOrder))
	for _, se := range sched.ScheduledOrder {
		if se.IsPass {
			pass[se.Entity] = se.Pass
			subpass[se.Entity] = se.Subpass
		} else {
			pass[se.Entity] = -1
		}
	}
	return pass, subpass
}

type resourceState struct {
	layout      gpu.Layout
	family      gpu.QueueFamily
	initialized bool
}

// deriveResource runs the per-resource state machine described in the
// component design: state is (last group's write/read nature,
// current_layout, current_queue_family); every step between two
// consecutive use groups emits at most one barrier/dependency/transfer.
func deriveResource(in *graph.SchedulerInput, d *Derived, r graph.ResourceID, groups []graph.UseGroup, passOf, subpassOf map[graph.EntityID]int) {
	isImage := in.ResourceKindOf(r) == graph.ResourceImage
	var state resourceState

	for gi, g := range groups {
		if g.IsWrite && len(g.Entities) != 1 {
			panic("syncpass: write use-group has more than one entity")
		}
		stage, access, layout := mergedAccess(in, r, g)
		family := queueFamilyOf(in, g.Entities[0])

		if !state.initialized {
			emitInitialTransition(in, d, r, g, isImage, layout, family)
			state = resourceState{layout: layout, family: family, initialized: true}
			continue
		}

		hazard := classify(groups[gi-1].IsWrite, g.IsWrite)
		layoutChanged := isImage && layout != state.layout
		familyChanged := family != state.family

		if hazard == HazardNone && !layoutChanged && !familyChanged {
			continue // RAR with a matching visibility scope: nothing to emit
		}

		prodEntity := lastEntity(groups[gi-1])
		consEntity := g.Entities[0]
		srcStage, srcAccess, _ := mergedAccess(in, r, groups[gi-1])
		dstStage := stage

		srcAccess = FilterAccessForStages(srcAccess, srcStage)
		dstAccess := FilterAccessForStages(access, dstStage)
		if hazard == HazardExecution {
			srcAccess, dstAccess = gpu.ANone, gpu.ANone
		}

		switch {
		case familyChanged:
			emitQueueTransfer(d, r, prodEntity, consEntity, isImage,
				srcStage, dstStage, srcAccess, dstAccess, state.layout, layout, state.family, family)
		case passOf[prodEntity] != -1 && passOf[prodEntity] == passOf[consEntity]:
			p := passOf[prodEntity]
			d.PassDependencies[p] = append(d.PassDependencies[p], gpu.SubpassDependency{
				Src: subpassOf[prodEntity], Dst: subpassOf[consEntity],
				SrcStage: srcStage, DstStage: dstStage,
				SrcAccess: srcAccess, DstAccess: dstAccess,
			})
		default:
			emitBarrier(d, r, consEntity, isImage, srcStage, dstStage, srcAccess, dstAccess, state.layout, layout, family)
		}

		state = resourceState{layout: layout, family: family, initialized: true}
	}
}

func lastEntity(g graph.UseGroup) graph.EntityID { return g.Entities[len(g.Entities)-1] }

// mergedAccess ORs the stage/access scope of every entity in a use
// group into one visibility scope; layout is taken from the group's
// first entity (a Reads group coalesced by the order-independent
// schedule is assumed to require one consistent layout, since nothing
// upstream of it tracks per-entity layout requirements separately).
func mergedAccess(in *graph.SchedulerInput, r graph.ResourceID, g graph.UseGroup) (gpu.Sync, gpu.Access, gpu.Layout) {
	var stage gpu.Sync
	var access gpu.Access
	var layout gpu.Layout
	for i, e := range g.Entities {
		ua := in.AccessOf(e, r)
		stage |= ua.Stage
		access |= ua.Access
		if i == 0 {
			layout = ua.Layout
		}
	}
	return stage, access, layout
}

func queueFamilyOf(in *graph.SchedulerInput, e graph.EntityID) gpu.QueueFamily {
	if in.EntityKindOf(e) == graph.EntityTransfer {
		return TransferFamily
	}
	return GraphicsFamily
}

// emitInitialTransition handles a resource's first use group: a
// provided resource waits on its acquire SyncPoint externally; a
// transient image needs a layout transition out of Undefined; a
// transient buffer needs nothing.
func emitInitialTransition(in *graph.SchedulerInput, d *Derived, r graph.ResourceID, g graph.UseGroup, isImage bool, layout gpu.Layout, family gpu.QueueFamily) {
	if sp, ok := in.AcquireSyncPoint(r); ok {
		d.ExternalWaits = append(d.ExternalWaits, ExternalSync{Resource: r, Entity: g.Entities[0], Point: sp})
		return
	}
	if !isImage || layout == gpu.LUndefined {
		return
	}
	if in.AccessOf(g.Entities[0], r).IsAttachment {
		return // the render pass's own Load-op/InitialLayout covers this
	}
	stage, access, _ := mergedAccess(in, r, g)
	t := ImageTransition{Resource: r, Transition: gpu.Transition{
		Barrier: gpu.Barrier{
			SyncBefore: gpu.STopOfPipe, SyncAfter: stage,
			AccessBefore: gpu.ANone, AccessAfter: FilterAccessForStages(access, stage),
		},
		LayoutBefore: gpu.LUndefined, LayoutAfter: layout,
		FamilyBefore: family, FamilyAfter: family,
	}}
	d.addPre(g.Entities[0], &t, nil)
}

func emitBarrier(d *Derived, r graph.ResourceID, consumer graph.EntityID, isImage bool,
	srcStage, dstStage gpu.Sync, srcAccess, dstAccess gpu.Access, layoutBefore, layoutAfter gpu.Layout, family gpu.QueueFamily) {
	if isImage {
		t := ImageTransition{Resource: r, Transition: gpu.Transition{
			Barrier:      gpu.Barrier{SyncBefore: srcStage, SyncAfter: dstStage, AccessBefore: srcAccess, AccessAfter: dstAccess},
			LayoutBefore: layoutBefore, LayoutAfter: layoutAfter,
			FamilyBefore: family, FamilyAfter: family,
		}}
		d.addPre(consumer, &t, nil)
		return
	}
	b := BufferTransition{
		Resource:     r,
		Barrier:      gpu.Barrier{SyncBefore: srcStage, SyncAfter: dstStage, AccessBefore: srcAccess, AccessAfter: dstAccess},
		FamilyBefore: family, FamilyAfter: family,
	}
	d.addPre(consumer, nil, &b)
}

// emitQueueTransfer splits a family change into a release barrier on
// the producer's post-barrier list and an acquire barrier on the
// consumer's pre-barrier list, per the "release on source, acquire on
// destination" rule; the semaphore connecting the two is the caller's
// responsibility to materialize (it is not a resource this package
// owns).
func emitQueueTransfer(d *Derived, r graph.ResourceID, producer, consumer graph.EntityID, isImage bool,
	srcStage, dstStage gpu.Sync, srcAccess, dstAccess gpu.Access, layoutBefore, layoutAfter gpu.Layout, familyBefore, familyAfter gpu.QueueFamily) {
	if isImage {
		release := ImageTransition{Resource: r, Transition: gpu.Transition{
			Barrier:      gpu.Barrier{SyncBefore: srcStage, SyncAfter: gpu.SBottomOfPipe, AccessBefore: srcAccess, AccessAfter: gpu.ANone},
			LayoutBefore: layoutBefore, LayoutAfter: layoutAfter,
			FamilyBefore: familyBefore, FamilyAfter: familyAfter,
		}}
		acquire := ImageTransition{Resource: r, Transition: gpu.Transition{
			Barrier:      gpu.Barrier{SyncBefore: gpu.STopOfPipe, SyncAfter: dstStage, AccessBefore: gpu.ANone, AccessAfter: dstAccess},
			LayoutBefore: layoutBefore, LayoutAfter: layoutAfter,
			FamilyBefore: familyBefore, FamilyAfter: familyAfter,
		}}
		d.addPost(producer, &release, nil)
		d.addPre(consumer, &acquire, nil)
		return
	}
	release := BufferTransition{
		Resource: r, Barrier: gpu.Barrier{SyncBefore: srcStage, SyncAfter: gpu.SBottomOfPipe, AccessBefore: srcAccess, AccessAfter: gpu.ANone},
		FamilyBefore: familyBefore, FamilyAfter: familyAfter,
	}
	acquire := BufferTransition{
		Resource: r, Barrier: gpu.Barrier{SyncBefore: gpu.STopOfPipe, SyncAfter: dstStage, AccessBefore: gpu.ANone, AccessAfter: dstAccess},
		FamilyBefore: familyBefore, FamilyAfter: familyAfter,
	}
	d.addPost(producer, nil, &release)
	d.addPre(consumer, nil, &acquire)
}
