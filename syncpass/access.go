// Package syncpass derives the synchronization commands a planned
// Schedule needs: per-resource hazard classification (RAW/WAR/WAW/RAR),
// subpass-dependency and barrier emission, queue-family ownership
// transfers, and the external-wait set that SyncPoints crossing a
// submission boundary must materialize into.
//
// Derive consumes graph.Schedule's ResourceSchedule, ScheduledOrder and
// Passes; it never mutates them.
package syncpass

import "kestrel/fgraph/gpu"

// GraphicsFamily and TransferFamily are the two queue families this
// package assigns entities to: EntityTransfer runs on TransferFamily,
// everything else on GraphicsFamily. The scheduler itself carries no
// richer queue-assignment model, so this is the sync pass's own
// policy, not a fact read off the schedule.
const (
	GraphicsFamily gpu.QueueFamily = 0
	TransferFamily gpu.QueueFamily = 1
)

// FilterAccessForStages narrows access to the bits a pipeline stage
// mask can actually produce or consume; TopOfPipe/BottomOfPipe clear
// the mask entirely, since neither stage touches memory. The result
// depends only on access and stages, so applying it twice is a no-op.
func FilterAccessForStages(access gpu.Access, stages gpu.Sync) gpu.Access {
	if stages&(gpu.STopOfPipe|gpu.SBottomOfPipe) != 0 {
		return gpu.ANone
	}
	var allowed gpu.Access
	for bit := gpu.Sync(1); bit != 0 && bit <= gpu.SAll; bit <<= 1 {
		if stages&bit != 0 {
			allowed |= stageAccessMask(bit)
		}
	}
	return access & allowed
}

func stageAccessMask(stage gpu.Sync) gpu.Access {
	switch stage {
	case gpu.SDrawIndirect:
		return gpu.AIndirectRead
	case gpu.SVertexInput:
		return gpu.AVertexBufRead | gpu.AIndexBufRead
	case gpu.SVertexShading:
		return gpu.AShaderRead | gpu.AShaderWrite
	case gpu.SFragmentShading:
		return gpu.AShaderRead | gpu.AShaderWrite | gpu.AInputAttachmentRead
	case gpu.SEarlyFragmentTests, gpu.SLateFragmentTests:
		return gpu.ADSRead | gpu.ADSWrite
	case gpu.SColorOutput, gpu.SResolve:
		return gpu.AColorRead | gpu.AColorWrite
	case gpu.SComputeShading:
		return gpu.AShaderRead | gpu.AShaderWrite
	case gpu.SCopy:
		return gpu.ACopyRead | gpu.ACopyWrite
	case gpu.SAll:
		return gpu.AIndirectRead | gpu.AVertexBufRead | gpu.AIndexBufRead | gpu.AInputAttachmentRead |
			gpu.AColorRead | gpu.AColorWrite | gpu.ADSRead | gpu.ADSWrite | gpu.AShaderRead |
			gpu.AShaderWrite | gpu.ACopyRead | gpu.ACopyWrite | gpu.AHostRead | gpu.AHostWrite |
			gpu.AAnyRead | gpu.AAnyWrite
	default:
		return gpu.ANone
	}
}

// HazardKind classifies the transition between two consecutive
// use-groups of a resource.
type HazardKind int

const (
	HazardNone      HazardKind = iota // RAR: no memory barrier required
	HazardExecution                   // WAR/WAW: execution-only barrier
	HazardFull                        // RAW: memory + execution barrier
)

func (k HazardKind) String() string {
	switch k {
	case HazardNone:
		return "RAR"
	case HazardExecution:
		return "WAR/WAW"
	case HazardFull:
		return "RAW"
	default:
		return "HazardKind(?)"
	}
}

func classify(prevWrite, nextWrite bool) HazardKind {
	switch {
	case !prevWrite && !nextWrite:
		return HazardNone
	case prevWrite && !nextWrite:
		return HazardFull
	default:
		return HazardExecution
	}
}
