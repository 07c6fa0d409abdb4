package cache

import (
	"strconv"
	"strings"

	"kestrel/fgraph/gpu"
	"kestrel/fgraph/internal/handle"
)

// The helpers in this file flatten slice-shaped structural data (lists
// of bindings, handles, attachments, ...) into a single comparable
// string so it can be embedded in a key struct used as a Go map key.
// No pointer identity is ever folded in: only device/kind/index and
// the plain value fields that were already part of the public key
// types.

func encodeInts(vals ...int) string {
	var b strings.Builder
	for _, v := range vals {
		b.WriteString(strconv.Itoa(v))
		b.WriteByte(',')
	}
	return b.String()
}

func encodeHandles[T any](hs []handle.Handle[T]) string {
	var b strings.Builder
	for _, h := range hs {
		b.WriteString(strconv.FormatUint(uint64(h.Device()), 36))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(h.Index()), 36))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(h.Kind())))
		b.WriteByte('|')
	}
	return b.String()
}

func encodeBindings(bindings []gpu.DescBinding) string {
	var b strings.Builder
	for _, d := range bindings {
		b.WriteString(encodeInts(d.Nr, int(d.Type), d.Count, int(d.Stages)))
		b.WriteByte('|')
	}
	return b.String()
}

func encodeRanges(ranges []gpu.PushConstantRange) string {
	var b strings.Builder
	for _, r := range ranges {
		b.WriteString(encodeInts(int(r.Stages), r.Offset, r.Size))
		b.WriteByte('|')
	}
	return b.String()
}

func encodeAttachments(att []gpu.Attachment) string {
	var b strings.Builder
	for _, a := range att {
		b.WriteString(encodeInts(int(a.Format), a.Samples, int(a.Load), int(a.Store), int(a.InitialLayout), int(a.FinalLayout)))
		b.WriteByte('|')
	}
	return b.String()
}

func encodeSubpasses(sub []gpu.Subpass) string {
	var b strings.Builder
	for _, s := range sub {
		b.WriteString(encodeInts(s.Color...))
		b.WriteByte(';')
		b.WriteString(encodeInts(s.Input...))
		b.WriteByte(';')
		b.WriteString(encodeInts(s.Resolve...))
		b.WriteByte(';')
		b.WriteString(encodeInts(s.DS))
		b.WriteByte('|')
	}
	return b.String()
}

func encodeDependencies(dep []gpu.SubpassDependency) string {
	var b strings.Builder
	for _, d := range dep {
		b.WriteString(encodeInts(d.Src, d.Dst, int(d.SrcStage), int(d.DstStage), int(d.SrcAccess), int(d.DstAccess)))
		b.WriteByte('|')
	}
	return b.String()
}
