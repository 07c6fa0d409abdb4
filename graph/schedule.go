package graph

import "kestrel/fgraph/gpu"

// ScheduleEntry is one step of the linearized schedule: either a
// General entity (Standalone or Transfer) or a PassEntity occupying one
// subpass of a fused render pass.
type ScheduleEntry struct {
	Entity  EntityID
	IsPass  bool
	Pass    int // index into Schedule.Passes, meaningful iff IsPass
	Subpass int // subpass index within Pass, meaningful iff IsPass
}

// RenderPass is one fused render pass: its subpass entities in order,
// the merged attachment list, per-subpass attachment-slot mapping and
// subpass dependencies, and the inferred extent.
type RenderPass struct {
	Entities     []EntityID
	Attachments  []gpu.Attachment
	Subpasses    []gpu.Subpass
	Dependencies []gpu.SubpassDependency
	Extent       gpu.Dim3D
}

// UseGroup is one entry of a resource's order-independent use
// schedule: either a run of reads with no defined order between them,
// or a single write.
type UseGroup struct {
	IsWrite  bool
	Entities []EntityID
}

// Schedule is the output of Plan.
type Schedule struct {
	ScheduledOrder   []ScheduleEntry
	Passes           []RenderPass
	ResourceSchedule map[ResourceID][]UseGroup
	ActiveEntities   []EntityID
}

// Plan runs the scheduling algorithm: backward reachability culling,
// greedy pass fusion honoring RenderPassSpan hints, render-pass
// synthesis (merged attachments, load/store ops, subpass
// dependencies), extent inference, and the per-resource
// order-independent use schedule.
func (in *SchedulerInput) Plan() (*Schedule, error) {
	active := in.reachable()

	groups, generals, err := in.fusePasses(active)
	if err != nil {
		return nil, err
	}

	passes, scheduledOrder, err := in.synthesizePasses(active, groups, generals)
	if err != nil {
		return nil, err
	}

	activeEntities := make([]EntityID, len(active))
	for i, e := range active {
		activeEntities[i] = e
	}

	return &Schedule{
		ScheduledOrder:   scheduledOrder,
		Passes:           passes,
		ResourceSchedule: in.orderIndependentSchedule(active),
		ActiveEntities:   activeEntities,
	}, nil
}

// reachable computes the active entity set via a backward sweep over
// the topologically-ordered entity list. An entity is active if it is
// itself a root, or it writes a resource some later-active entity (or
// a root resource) needs.
func (in *SchedulerInput) reachable() []EntityID {
	rootEntity := make(map[EntityID]bool)
	neededResource := make(map[ResourceID]bool)
	for _, r := range in.roots {
		if r.isEntity {
			rootEntity[r.entity] = true
		}
		if r.isResource {
			neededResource[in.resolveConst(r.resource)] = true
		}
	}

	activeMask := make([]bool, len(in.entities))
	for i := len(in.entities) - 1; i >= 0; i-- {
		e := EntityID(i)
		ed := in.entities[i]
		active := rootEntity[e]
		if !active {
			for _, ui := range ed.uses {
				u := in.uses[ui]
				if u.IsWrite && neededResource[u.Resource] {
					active = true
					break
				}
			}
		}
		if !active {
			continue
		}
		activeMask[i] = true
		for _, ui := range ed.uses {
			u := in.uses[ui]
			if !u.IsWrite {
				neededResource[u.Resource] = true
			}
		}
	}

	var out []EntityID
	for i, a := range activeMask {
		if a {
			out = append(out, EntityID(i))
		}
	}
	return out
}

// resolveConst mirrors Builder.resolve for a frozen SchedulerInput.
func (in *SchedulerInput) resolveConst(id ResourceID) ResourceID {
	for int(id) < len(in.resources) && in.resources[id].aliasOf != id {
		id = in.resources[id].aliasOf
	}
	return id
}

type passGroup struct {
	entities    []EntityID
	attachments map[ResourceID]bool
}

// fusePasses groups active pass-entities into render passes: the input
// order is already topological, so entities are scanned in order,
// fusing adjacent ones that share an attachment resource, then forcing
// any RenderPassSpan-bracketed entities into a single group. A
// non-Pass entity lying between two spanned passes makes the span
// impossible to satisfy and is treated as fatal.
func (in *SchedulerInput) fusePasses(active []EntityID) ([][]EntityID, map[EntityID]bool, error) {
	groupOf := make(map[EntityID]int)
	var groups []*passGroup
	generals := make(map[EntityID]bool)

	currentGroup := -1
	for _, e := range active {
		ed := in.entities[e]
		if ed.kind != EntityPass {
			generals[e] = true
			currentGroup = -1
			continue
		}
		attach := attachmentResources(in, e)
		if currentGroup != -1 && sharesAny(groups[currentGroup].attachments, attach) {
			groups[currentGroup].entities = append(groups[currentGroup].entities, e)
			for r := range attach {
				groups[currentGroup].attachments[r] = true
			}
			groupOf[e] = currentGroup
		} else {
			currentGroup = len(groups)
			groups = append(groups, &passGroup{entities: []EntityID{e}, attachments: attach})
			groupOf[e] = currentGroup
		}
	}

	pos := make(map[EntityID]int, len(active))
	for i, e := range active {
		pos[e] = i
	}

	for _, span := range in.spans {
		posA, okA := pos[span.From]
		posB, okB := pos[span.To]
		if !okA || !okB {
			continue // one or both culled: nothing to force
		}
		if posA > posB {
			posA, posB = posB, posA
		}
		mergeSet := make(map[int]bool)
		for i := posA; i <= posB; i++ {
			e := active[i]
			if generals[e] {
				return nil, nil, ErrUnsatisfiableSpan
			}
			mergeSet[groupOf[e]] = true
		}
		if len(mergeSet) <= 1 {
			continue
		}
		var winner int
		first := true
		for g := range mergeSet {
			if first || g < winner {
				winner = g
				first = false
			}
		}
		for g := range mergeSet {
			if g == winner {
				continue
			}
			for _, e := range groups[g].entities {
				groupOf[e] = winner
			}
			groups[winner].entities = append(groups[winner].entities, groups[g].entities...)
			groups[g] = nil
		}
	}

	// Rebuild contiguous, deduplicated group entity lists in scheduled
	// order (merges above may have appended out of order).
	final := make(map[int][]EntityID)
	var order []int
	seen := make(map[int]bool)
	for _, e := range active {
		if generals[e] {
			continue
		}
		g := groupOf[e]
		if !seen[g] {
			seen[g] = true
			order = append(order, g)
		}
		final[g] = append(final[g], e)
	}

	result := make([][]EntityID, 0, len(order))
	for _, g := range order {
		result = append(result, final[g])
	}
	return result, generals, nil
}

func attachmentResources(in *SchedulerInput, e EntityID) map[ResourceID]bool {
	out := make(map[ResourceID]bool)
	for _, ui := range in.entities[e].uses {
		u := in.uses[ui]
		if u.Kind == UseAttachment {
			out[u.Resource] = true
		}
	}
	return out
}

func sharesAny(a, b map[ResourceID]bool) bool {
	for r := range a {
		if b[r] {
			return true
		}
	}
	return false
}
