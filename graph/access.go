package graph

import "kestrel/fgraph/gpu"

// UseAccess is the pipeline-stage, memory-access and (for images)
// layout scope one ResourceUse requires. Sync derivation classifies
// hazards between consecutive uses of the same resource from this
// metadata, which is why it lives next to the builder: only the
// builder knows a use's attachment kind and a resource's declared
// Usage flags.
type UseAccess struct {
	Stage  gpu.Sync
	Access gpu.Access
	Layout gpu.Layout // gpu.LUndefined for buffers
	// IsAttachment reports whether this use is a render-pass attachment
	// use. Its initial layout transition is the render pass's own
	// responsibility (synthesizeOnePass's Load-op/InitialLayout
	// inference), so sync derivation must not emit a separate manual
	// transition for a resource's first use when this is true.
	IsAttachment bool
}

// AccessOf derives the UseAccess for resource r's use within entity e.
// e must have a recorded use of r.
func (in *SchedulerInput) AccessOf(e EntityID, r ResourceID) UseAccess {
	u := in.findUse(e, r)
	if u.Kind == UseAttachment {
		stage, access := attachSrcAccess(u)
		return UseAccess{Stage: stage, Access: access, Layout: attachLayout(u), IsAttachment: true}
	}
	return in.genericAccess(e, u)
}

func (in *SchedulerInput) findUse(e EntityID, r ResourceID) ResourceUse {
	for _, ui := range in.entities[e].uses {
		if u := in.uses[ui]; u.Resource == r {
			return u
		}
	}
	return ResourceUse{}
}

func attachLayout(u ResourceUse) gpu.Layout {
	switch u.AttachKind {
	case AttachColor:
		return gpu.LColorTarget
	case AttachDepth:
		return gpu.LDSTarget
	default: // AttachInput
		return gpu.LShaderRead
	}
}

// EntityKindOf reports the kind of entity e.
func (in *SchedulerInput) EntityKindOf(e EntityID) EntityKind { return in.entities[e].kind }

// ResourceKindOf reports whether r is an image or a buffer.
func (in *SchedulerInput) ResourceKindOf(r ResourceID) ResourceKind { return in.resources[r].kind }

// AcquireSyncPoint reports the SyncPoint a provided resource's first
// use must wait on, if any.
func (in *SchedulerInput) AcquireSyncPoint(r ResourceID) (SyncPoint, bool) {
	rd := in.resources[r]
	if rd.acquire == nil {
		return 0, false
	}
	return *rd.acquire, true
}

func (in *SchedulerInput) genericAccess(e EntityID, u ResourceUse) UseAccess {
	rd := in.resources[u.Resource]
	kind := in.entities[e].kind

	if rd.kind == ResourceBuffer {
		return UseAccess{
			Stage:  genericStage(kind, rd.buffer.Usage),
			Access: genericBufferAccess(u.IsWrite, rd.buffer.Usage),
		}
	}
	return UseAccess{
		Stage:  genericStage(kind, rd.image.Usage),
		Access: genericImageAccess(u.IsWrite, rd.image.Usage),
		Layout: genericImageLayout(u.IsWrite, rd.image.Usage),
	}
}

func genericStage(kind EntityKind, usage gpu.Usage) gpu.Sync {
	if kind == EntityTransfer {
		return gpu.SCopy
	}
	switch {
	case usage&(gpu.UVertexData|gpu.UIndexData) != 0:
		return gpu.SVertexInput
	case usage&(gpu.UTransferSrc|gpu.UTransferDst) != 0:
		return gpu.SCopy
	case usage&gpu.UShaderSample != 0:
		return gpu.SFragmentShading
	default:
		return gpu.SComputeShading
	}
}

func genericBufferAccess(write bool, usage gpu.Usage) gpu.Access {
	switch {
	case write && usage&gpu.UTransferDst != 0:
		return gpu.ACopyWrite
	case !write && usage&gpu.UTransferSrc != 0:
		return gpu.ACopyRead
	case write:
		return gpu.AShaderWrite
	case usage&gpu.UVertexData != 0:
		return gpu.AVertexBufRead
	case usage&gpu.UIndexData != 0:
		return gpu.AIndexBufRead
	default:
		return gpu.AShaderRead
	}
}

func genericImageAccess(write bool, usage gpu.Usage) gpu.Access {
	switch {
	case write && usage&gpu.UTransferDst != 0:
		return gpu.ACopyWrite
	case !write && usage&gpu.UTransferSrc != 0:
		return gpu.ACopyRead
	case write:
		return gpu.AShaderWrite
	default:
		return gpu.AShaderRead
	}
}

func genericImageLayout(write bool, usage gpu.Usage) gpu.Layout {
	switch {
	case write && usage&gpu.UTransferDst != 0:
		return gpu.LCopyDst
	case !write && usage&gpu.UTransferSrc != 0:
		return gpu.LCopySrc
	case write:
		return gpu.LGeneral
	default:
		return gpu.LShaderRead
	}
}
