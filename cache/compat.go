package cache

import "kestrel/fgraph/gpu"

// RenderPassCompatibilityKey is the reduced projection of a render pass
// used to decide whether two render passes are substitutable when
// binding a framebuffer or pipeline. Two render passes with equal
// compatibility keys may differ in load/store ops and still be
// compatible.
type RenderPassCompatibilityKey struct {
	attachments  string // format + sample count per attachment
	subpasses    string // per-subpass counts + attachment-reference stream
	dependencies string // verbatim subpass dependency list
}

// NewRenderPassCompatibilityKey builds the compatibility key for a
// render pass, following the same reduction as the original
// rendy-style cache: per attachment keep only format and sample count;
// per subpass keep the counts of color/input/resolve/preserve
// attachments plus depth-stencil presence, and strip trailing
// UnusedAttachment entries from each reference list before folding its
// indices into the shared attachment-reference stream: trailing
// UNUSED entries don't affect compatibility, only interior ones do.
func NewRenderPassCompatibilityKey(att []gpu.Attachment, sub []gpu.Subpass, dep []gpu.SubpassDependency) RenderPassCompatibilityKey {
	var attKey []int
	for _, a := range att {
		attKey = append(attKey, int(a.Format), a.Samples)
	}

	var subKey []int
	var refStream []int
	for _, s := range sub {
		color := stripTrailingUnused(s.Color)
		input := stripTrailingUnused(s.Input)
		resolve := stripTrailingUnused(s.Resolve)
		hasDS := s.DS != gpu.UnusedAttachment

		subKey = append(subKey, len(color), len(input), len(resolve), boolToInt(hasDS))
		refStream = append(refStream, color...)
		refStream = append(refStream, input...)
		refStream = append(refStream, resolve...)
		if hasDS {
			refStream = append(refStream, s.DS)
		}
	}

	return RenderPassCompatibilityKey{
		attachments:  encodeInts(attKey...),
		subpasses:    encodeInts(subKey...) + "/" + encodeInts(refStream...),
		dependencies: encodeDependencies(dep),
	}
}

// stripTrailingUnused removes trailing UnusedAttachment entries from an
// attachment-reference list, leaving interior UNUSED entries (e.g.
// {0, UNUSED, 2}) untouched, matching the source's get_head_used.
func stripTrailingUnused(refs []int) []int {
	n := len(refs)
	for n > 0 && refs[n-1] == gpu.UnusedAttachment {
		n--
	}
	return refs[:n]
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
