// Package graph implements the procedural frame-graph builder and
// scheduler (the planning half of the engine): applications describe a
// frame as a stream of entities and resource uses, and Plan produces a
// linearized, render-pass-fused, reachability-culled Schedule.
//
// Identifiers here (EntityID, ResourceID) are dense array indices, not
// handles: they are meaningful only for the lifetime of one builder
// and the Schedule it produces, matching the dataMap/id idiom used
// elsewhere in this engine (engine/id.go) rather than a
// reference-counted graph node.
package graph

import (
	"errors"

	"kestrel/fgraph/gpu"
)

// EntityID identifies one entity (pass, transfer or standalone) within
// a single builder/schedule.
type EntityID int

// ResourceID identifies one resource (image or buffer) within a single
// builder/schedule.
type ResourceID int

// EntityKind selects how an entity must be scheduled.
type EntityKind int

const (
	// EntityPass must execute inside a render pass (subpass-fusable).
	EntityPass EntityKind = iota
	// EntityTransfer marks a transfer entity. Plan schedules it like any
	// other non-Pass entity, at its input position; it is not moved
	// earlier than that.
	EntityTransfer
	// EntityStandalone is the catch-all for anything schedulable at the
	// top level outside a render pass.
	EntityStandalone
)

// ResourceKind distinguishes image from buffer resources.
type ResourceKind int

const (
	ResourceImage ResourceKind = iota
	ResourceBuffer
)

// UseKind distinguishes a generic resource use from a use as a
// render-pass attachment.
type UseKind int

const (
	UseGeneric UseKind = iota
	UseAttachment
)

// AttachmentKind further classifies a UseAttachment use.
type AttachmentKind int

const (
	AttachColor AttachmentKind = iota
	AttachDepth
	AttachInput
)

// ResourceUse is one edge between an entity and a resource. At most
// one ResourceUse may exist per (entity, resource) pair.
type ResourceUse struct {
	Entity   EntityID
	Resource ResourceID
	IsWrite  bool
	Kind     UseKind

	// Attachment-only fields; Slot is left at zero and AttachKind is
	// meaningless for UseGeneric uses.
	Slot       int
	AttachKind AttachmentKind
	ReadOnly   bool
}

// ImageInfo is the declaration-time parameter set for a transient or
// provided image resource.
type ImageInfo struct {
	Format  gpu.PixelFmt
	Extent  *gpu.Dim3D // nil: inferred from neighboring attachments
	Samples int
	Usage   gpu.Usage
	// Clear requests the attachment be cleared on its first use in a
	// render pass.
	Clear bool
}

// BufferInfo is the declaration-time parameter set for a transient or
// provided buffer resource.
type BufferInfo struct {
	Size  int64
	Usage gpu.Usage
}

// SyncPoint is a scheduler-local synchronization handle: the moment at
// which a provided resource becomes usable, or at which an acquire
// must be waited on. It carries no meaning outside one builder/Schedule,
// such as a swapchain image's acquire semaphore.
type SyncPoint int

// Root marks an entity or a resource as required for the frame; others
// may be culled if unreachable from some Root.
type Root struct {
	entity     EntityID
	resource   ResourceID
	isEntity   bool
	isResource bool
}

// RootEntity marks e as required.
func RootEntity(e EntityID) Root { return Root{entity: e, isEntity: true} }

// RootResource marks r as required.
func RootResource(r ResourceID) Root { return Root{resource: r, isResource: true} }

// RenderPassSpan is an unordered pair of entities hinting that the
// caller wants them, and everything scheduled between them, fused into
// one render pass. The pair is stored with the lower EntityID first.
type RenderPassSpan struct {
	From, To EntityID
}

// NewRenderPassSpan builds a normalized RenderPassSpan.
func NewRenderPassSpan(a, b EntityID) RenderPassSpan {
	if a <= b {
		return RenderPassSpan{From: a, To: b}
	}
	return RenderPassSpan{From: b, To: a}
}

// Construction-time errors. A resource used twice within one entity —
// whether as two attachments or as one attachment and one generic use
// — is rejected by ErrDuplicateUse: "at most one ResourceUse per
// (entity, resource) pair" already subsumes the "color attachment or
// input, not both" constraint.
var (
	ErrDuplicateUse        = errors.New("graph: resource already used by this entity")
	ErrDuplicateSlot       = errors.New("graph: attachment slot already used by this entity")
	ErrDuplicateDepth      = errors.New("graph: entity already has a depth attachment")
	ErrNoOpenEntity        = errors.New("graph: no entity is currently open")
	ErrEntityAlreadyOpen   = errors.New("graph: an entity is already open; commit it first")
	ErrUnknownResource     = errors.New("graph: resource id out of range")
	ErrUnknownEntity       = errors.New("graph: entity id out of range")
	ErrAttachmentOnNonPass = errors.New("graph: attachment use is only valid on a Pass entity")
)

// Planning (scheduler) errors, returned from Plan.
var (
	ErrIncompatibleAttachments = errors.New("graph: fused pass-entities have incompatible attachments")
	ErrUnsatisfiableSpan       = errors.New("graph: render pass span cannot be satisfied")
	ErrExtentMismatch          = errors.New("graph: render pass attachments disagree on extent")
	ErrUnresolvedResource      = errors.New("graph: resource has no declared or inferable extent/format")
)
