package graph

import "kestrel/fgraph/gpu"

// synthesizePasses builds the render-pass half of the schedule: merged
// attachment lists, load/store ops, subpass attachment-slot mapping,
// subpass dependencies and extent inference, plus the interleaved
// ScheduleEntry stream covering both pass and general entities in
// their original active order.
func (in *SchedulerInput) synthesizePasses(active []EntityID, groups [][]EntityID, generals map[EntityID]bool) ([]RenderPass, []ScheduleEntry, error) {
	pos := make(map[EntityID]int, len(active))
	for i, e := range active {
		pos[e] = i
	}

	firstUse := make(map[ResourceID]int)
	lastUse := make(map[ResourceID]int)
	for i, e := range active {
		for _, ui := range in.entities[e].uses {
			r := in.uses[ui].Resource
			if _, ok := firstUse[r]; !ok {
				firstUse[r] = i
			}
			lastUse[r] = i
		}
	}
	rootResource := make(map[ResourceID]bool)
	for _, r := range in.roots {
		if r.isResource {
			rootResource[in.resolveConst(r.resource)] = true
		}
	}

	entityPass := make(map[EntityID]int, len(active))
	entitySubpass := make(map[EntityID]int, len(active))
	for gi, g := range groups {
		for si, e := range g {
			entityPass[e] = gi
			entitySubpass[e] = si
		}
	}

	passes := make([]RenderPass, len(groups))
	for gi, group := range groups {
		pass, err := in.synthesizeOnePass(group, pos, firstUse, lastUse, rootResource)
		if err != nil {
			return nil, nil, err
		}
		passes[gi] = pass
	}

	scheduledOrder := make([]ScheduleEntry, 0, len(active))
	for _, e := range active {
		if generals[e] {
			scheduledOrder = append(scheduledOrder, ScheduleEntry{Entity: e, IsPass: false})
			continue
		}
		scheduledOrder = append(scheduledOrder, ScheduleEntry{
			Entity: e, IsPass: true, Pass: entityPass[e], Subpass: entitySubpass[e],
		})
	}

	return passes, scheduledOrder, nil
}

func (in *SchedulerInput) synthesizeOnePass(group []EntityID, pos map[EntityID]int, firstUse, lastUse map[ResourceID]int, rootResource map[ResourceID]bool) (RenderPass, error) {
	groupStart := pos[group[0]]
	groupEnd := pos[group[len(group)-1]]

	var merged []ResourceID
	mergedIndex := make(map[ResourceID]int)
	for _, e := range group {
		for _, ui := range in.entities[e].uses {
			u := in.uses[ui]
			if u.Kind != UseAttachment {
				continue
			}
			if _, ok := mergedIndex[u.Resource]; !ok {
				mergedIndex[u.Resource] = len(merged)
				merged = append(merged, u.Resource)
			}
		}
	}

	var extent *gpu.Dim3D
	attachments := make([]gpu.Attachment, len(merged))
	for i, r := range merged {
		rd := in.resources[r]
		if rd.kind != ResourceImage {
			return RenderPass{}, ErrIncompatibleAttachments
		}
		if rd.image.Extent != nil {
			if extent == nil {
				extent = rd.image.Extent
			} else if *extent != *rd.image.Extent {
				return RenderPass{}, ErrExtentMismatch
			}
		}

		var loadOp gpu.LoadOp
		switch {
		case firstUse[r] < groupStart || rd.provided:
			loadOp = gpu.LLoad
		case rd.image.Clear:
			loadOp = gpu.LClear
		default:
			loadOp = gpu.LDontCare
		}

		storeOp := gpu.SDontCare
		if lastUse[r] > groupEnd || rootResource[r] {
			storeOp = gpu.SStore
		}

		attachments[i] = gpu.Attachment{
			Format:  rd.image.Format,
			Samples: rd.image.Samples,
			Load:    loadOp,
			Store:   storeOp,
		}
	}
	if len(merged) > 0 && extent == nil {
		return RenderPass{}, ErrUnresolvedResource
	}
	if extent == nil {
		extent = &gpu.Dim3D{}
	}

	subpasses := make([]gpu.Subpass, len(group))
	layoutOf := make([]gpu.Layout, len(merged))
	for si, e := range group {
		ds := gpu.UnusedAttachment
		maxColorSlot, maxInputSlot := -1, -1
		for _, ui := range in.entities[e].uses {
			u := in.uses[ui]
			if u.Kind != UseAttachment {
				continue
			}
			switch u.AttachKind {
			case AttachColor:
				if u.Slot > maxColorSlot {
					maxColorSlot = u.Slot
				}
			case AttachInput:
				if u.Slot > maxInputSlot {
					maxInputSlot = u.Slot
				}
			}
		}
		color := fillUnused(maxColorSlot + 1)
		input := fillUnused(maxInputSlot + 1)

		for _, ui := range in.entities[e].uses {
			u := in.uses[ui]
			if u.Kind != UseAttachment {
				continue
			}
			mi := mergedIndex[u.Resource]
			switch u.AttachKind {
			case AttachColor:
				color[u.Slot] = mi
				layoutOf[mi] = gpu.LColorTarget
			case AttachInput:
				input[u.Slot] = mi
				if layoutOf[mi] == gpu.LUndefined {
					layoutOf[mi] = gpu.LShaderRead
				}
			case AttachDepth:
				ds = mi
				layoutOf[mi] = gpu.LDSTarget
			}
		}

		subpasses[si] = gpu.Subpass{Color: color, Input: input, DS: ds}
	}

	for i := range attachments {
		attachments[i].InitialLayout = layoutOf[i]
		attachments[i].FinalLayout = layoutOf[i]
	}

	deps := subpassDependencies(in, group)

	return RenderPass{
		Entities:     group,
		Attachments:  attachments,
		Subpasses:    subpasses,
		Dependencies: deps,
		Extent:       *extent,
	}, nil
}

func fillUnused(n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = gpu.UnusedAttachment
	}
	return out
}

// subpassDependencies emits one SubpassDependency per pair of
// consecutive subpasses that share an attachment resource, using a
// conservative access mask: a destination write is treated as
// read+write, to safely cover subpass blending.
func subpassDependencies(in *SchedulerInput, group []EntityID) []gpu.SubpassDependency {
	var deps []gpu.SubpassDependency
	for i := 0; i+1 < len(group); i++ {
		a, c := group[i], group[i+1]
		attachA := attachmentResources(in, a)
		attachC := attachmentResources(in, c)

		var srcStage, dstStage gpu.Sync
		var srcAccess, dstAccess gpu.Access
		any := false
		for r := range attachA {
			if !attachC[r] {
				continue
			}
			any = true
			ua := findAttachmentUse(in, a, r)
			uc := findAttachmentUse(in, c, r)
			s, sa := attachSrcAccess(ua)
			d, da := attachDstAccess(uc)
			srcStage |= s
			srcAccess |= sa
			dstStage |= d
			dstAccess |= da
		}
		if any {
			deps = append(deps, gpu.SubpassDependency{
				Src: i, Dst: i + 1,
				SrcStage: srcStage, DstStage: dstStage,
				SrcAccess: srcAccess, DstAccess: dstAccess,
			})
		}
	}
	return deps
}

func findAttachmentUse(in *SchedulerInput, e EntityID, r ResourceID) ResourceUse {
	for _, ui := range in.entities[e].uses {
		u := in.uses[ui]
		if u.Kind == UseAttachment && u.Resource == r {
			return u
		}
	}
	return ResourceUse{}
}

func attachSrcAccess(u ResourceUse) (gpu.Sync, gpu.Access) {
	switch u.AttachKind {
	case AttachColor:
		if u.IsWrite {
			return gpu.SColorOutput, gpu.AColorWrite
		}
		return gpu.SColorOutput, gpu.AColorRead
	case AttachDepth:
		stage := gpu.SEarlyFragmentTests | gpu.SLateFragmentTests
		if u.IsWrite {
			return stage, gpu.ADSWrite
		}
		return stage, gpu.ADSRead
	default: // AttachInput
		return gpu.SFragmentShading, gpu.AInputAttachmentRead
	}
}

func attachDstAccess(u ResourceUse) (gpu.Sync, gpu.Access) {
	switch u.AttachKind {
	case AttachColor:
		if u.IsWrite {
			return gpu.SColorOutput, gpu.AColorRead | gpu.AColorWrite
		}
		return gpu.SColorOutput, gpu.AColorRead
	case AttachDepth:
		stage := gpu.SEarlyFragmentTests | gpu.SLateFragmentTests
		if u.IsWrite {
			return stage, gpu.ADSRead | gpu.ADSWrite
		}
		return stage, gpu.ADSRead
	default: // AttachInput
		return gpu.SFragmentShading, gpu.AInputAttachmentRead
	}
}

// orderIndependentSchedule builds, for each resource, the
// order-independent use schedule: it walks the active, scheduled-order
// use list, coalescing each run of consecutive reads into one Read group
// and emitting one Write group per write, so consecutive writes yield
// consecutive Write groups.
func (in *SchedulerInput) orderIndependentSchedule(active []EntityID) map[ResourceID][]UseGroup {
	result := make(map[ResourceID][]UseGroup)
	lastWasRead := make(map[ResourceID]bool)
	for _, e := range active {
		for _, ui := range in.entities[e].uses {
			u := in.uses[ui]
			r := u.Resource
			if u.IsWrite {
				result[r] = append(result[r], UseGroup{IsWrite: true, Entities: []EntityID{e}})
				lastWasRead[r] = false
				continue
			}
			if !lastWasRead[r] {
				result[r] = append(result[r], UseGroup{IsWrite: false})
				lastWasRead[r] = true
			}
			g := &result[r][len(result[r])-1]
			g.Entities = append(g.Entities, e)
		}
	}
	return result
}
