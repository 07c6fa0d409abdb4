package graph

// entityData is the builder's internal record for one committed entity.
type entityData struct {
	kind EntityKind
	uses []int // indices into Builder.uses, in recording order
}

// resourceData is the builder's internal record for one resource.
type resourceData struct {
	kind ResourceKind
	image ImageInfo
	buffer BufferInfo

	provided bool
	acquire  *SyncPoint

	aliasOf ResourceID // == self if not moved
	uses    []int      // indices into Builder.uses, in recording order
}

// openEntity accumulates uses for the entity currently being built
// between a Start* call and Commit.
type openEntity struct {
	kind        EntityKind
	uses        []ResourceUse
	usedColor   map[int]bool
	usedInput   map[int]bool
	usedResource map[ResourceID]bool
	hasDepth    bool
}

// Builder is the procedural frame-graph builder. It exposes a
// streaming API: open an entity with one of the Start* methods,
// record its resource uses, then Commit it.
type Builder struct {
	entities  []entityData
	resources []resourceData
	uses      []ResourceUse
	spans     []RenderPassSpan
	roots     []Root

	current *openEntity
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// CreateImage declares a transient image resource and returns its id.
func (b *Builder) CreateImage(info ImageInfo) ResourceID {
	id := ResourceID(len(b.resources))
	b.resources = append(b.resources, resourceData{kind: ResourceImage, image: info, aliasOf: id})
	return id
}

// CreateBuffer declares a transient buffer resource and returns its id.
func (b *Builder) CreateBuffer(info BufferInfo) ResourceID {
	id := ResourceID(len(b.resources))
	b.resources = append(b.resources, resourceData{kind: ResourceBuffer, buffer: info, aliasOf: id})
	return id
}

// ProvideImage declares an externally supplied image resource, usable
// once acquire (if non-nil) has been observed.
func (b *Builder) ProvideImage(info ImageInfo, acquire *SyncPoint) ResourceID {
	id := ResourceID(len(b.resources))
	b.resources = append(b.resources, resourceData{kind: ResourceImage, image: info, provided: true, acquire: acquire, aliasOf: id})
	return id
}

// ProvideBuffer declares an externally supplied buffer resource, usable
// once acquire (if non-nil) has been observed.
func (b *Builder) ProvideBuffer(info BufferInfo, acquire *SyncPoint) ResourceID {
	id := ResourceID(len(b.resources))
	b.resources = append(b.resources, resourceData{kind: ResourceBuffer, buffer: info, provided: true, acquire: acquire, aliasOf: id})
	return id
}

// resolve follows a chain of MoveImage/MoveBuffer aliases to the
// canonical resource id that subsequent uses actually apply to.
func (b *Builder) resolve(id ResourceID) ResourceID {
	for int(id) < len(b.resources) && b.resources[id].aliasOf != id {
		id = b.resources[id].aliasOf
	}
	return id
}

// MoveImage renames from to to: subsequent uses of to are forwarded to
// from's underlying resource slot.
func (b *Builder) MoveImage(from, to ResourceID) error { return b.move(from, to) }

// MoveBuffer renames from to to: subsequent uses of to are forwarded to
// from's underlying resource slot.
func (b *Builder) MoveBuffer(from, to ResourceID) error { return b.move(from, to) }

func (b *Builder) move(from, to ResourceID) error {
	if int(from) < 0 || int(from) >= len(b.resources) || int(to) < 0 || int(to) >= len(b.resources) {
		return ErrUnknownResource
	}
	canonical := b.resolve(from)
	b.resources[to].aliasOf = canonical
	return nil
}

// StartPass opens a new Pass entity.
func (b *Builder) StartPass() error { return b.start(EntityPass) }

// StartStandalone opens a new Standalone entity.
func (b *Builder) StartStandalone() error { return b.start(EntityStandalone) }

// StartTransfer opens a new Transfer entity.
func (b *Builder) StartTransfer() error { return b.start(EntityTransfer) }

func (b *Builder) start(kind EntityKind) error {
	if b.current != nil {
		return ErrEntityAlreadyOpen
	}
	b.current = &openEntity{
		kind:         kind,
		usedColor:    make(map[int]bool),
		usedInput:    make(map[int]bool),
		usedResource: make(map[ResourceID]bool),
	}
	return nil
}

func (b *Builder) recordUse(u ResourceUse) error {
	if b.current == nil {
		return ErrNoOpenEntity
	}
	if int(u.Resource) < 0 || int(u.Resource) >= len(b.resources) {
		return ErrUnknownResource
	}
	u.Resource = b.resolve(u.Resource)
	if b.current.usedResource[u.Resource] {
		return ErrDuplicateUse
	}
	b.current.usedResource[u.Resource] = true
	b.current.uses = append(b.current.uses, u)
	return nil
}

// UseColor records a color-attachment use at slot for the currently
// open Pass entity.
func (b *Builder) UseColor(slot int, image ResourceID, readOnly bool) error {
	if b.current == nil {
		return ErrNoOpenEntity
	}
	if b.current.kind != EntityPass {
		return ErrAttachmentOnNonPass
	}
	if b.current.usedColor[slot] {
		return ErrDuplicateSlot
	}
	if err := b.recordUse(ResourceUse{
		Resource: image, IsWrite: !readOnly, Kind: UseAttachment,
		Slot: slot, AttachKind: AttachColor, ReadOnly: readOnly,
	}); err != nil {
		return err
	}
	b.current.usedColor[slot] = true
	return nil
}

// UseDepth records the (singular) depth/stencil attachment use for the
// currently open Pass entity.
func (b *Builder) UseDepth(image ResourceID, write bool) error {
	if b.current == nil {
		return ErrNoOpenEntity
	}
	if b.current.kind != EntityPass {
		return ErrAttachmentOnNonPass
	}
	if b.current.hasDepth {
		return ErrDuplicateDepth
	}
	if err := b.recordUse(ResourceUse{
		Resource: image, IsWrite: write, Kind: UseAttachment,
		Slot: 0, AttachKind: AttachDepth,
	}); err != nil {
		return err
	}
	b.current.hasDepth = true
	return nil
}

// UseInput records an input-attachment use at slot for the currently
// open Pass entity.
func (b *Builder) UseInput(slot int, image ResourceID) error {
	if b.current == nil {
		return ErrNoOpenEntity
	}
	if b.current.kind != EntityPass {
		return ErrAttachmentOnNonPass
	}
	if b.current.usedInput[slot] {
		return ErrDuplicateSlot
	}
	if err := b.recordUse(ResourceUse{
		Resource: image, IsWrite: false, Kind: UseAttachment,
		Slot: slot, AttachKind: AttachInput, ReadOnly: true,
	}); err != nil {
		return err
	}
	b.current.usedInput[slot] = true
	return nil
}

// UseBuffer records a generic buffer use for the currently open entity.
func (b *Builder) UseBuffer(id ResourceID, write bool) error {
	return b.recordUse(ResourceUse{Resource: id, IsWrite: write, Kind: UseGeneric})
}

// UseImage records a generic (non-attachment) image use for the
// currently open entity.
func (b *Builder) UseImage(id ResourceID, write bool) error {
	return b.recordUse(ResourceUse{Resource: id, IsWrite: write, Kind: UseGeneric})
}

// Commit closes the currently open entity and returns its id.
func (b *Builder) Commit() (EntityID, error) {
	if b.current == nil {
		return 0, ErrNoOpenEntity
	}
	id := EntityID(len(b.entities))
	uses := b.current.uses

	useIdx := make([]int, len(uses))
	for i, u := range uses {
		u.Entity = id
		idx := len(b.uses)
		b.uses = append(b.uses, u)
		useIdx[i] = idx
		b.resources[u.Resource].uses = append(b.resources[u.Resource].uses, idx)
	}

	b.entities = append(b.entities, entityData{kind: b.current.kind, uses: useIdx})
	b.current = nil
	return id, nil
}

// MarkRenderPass records a RenderPassSpan hint between a and b.
func (b *Builder) MarkRenderPass(a, b2 EntityID) error {
	if int(a) < 0 || int(a) >= len(b.entities) || int(b2) < 0 || int(b2) >= len(b.entities) {
		return ErrUnknownEntity
	}
	b.spans = append(b.spans, NewRenderPassSpan(a, b2))
	return nil
}

// MarkRootEntity marks e as required for the frame.
func (b *Builder) MarkRootEntity(e EntityID) error {
	if int(e) < 0 || int(e) >= len(b.entities) {
		return ErrUnknownEntity
	}
	b.roots = append(b.roots, RootEntity(e))
	return nil
}

// MarkRootResource marks r as required for the frame.
func (b *Builder) MarkRootResource(r ResourceID) error {
	if int(r) < 0 || int(r) >= len(b.resources) {
		return ErrUnknownResource
	}
	b.roots = append(b.roots, RootResource(r))
	return nil
}

// SchedulerInput is the immutable snapshot of a Builder consumed by
// Plan. Building one freezes the graph: no further mutation through
// the originating Builder should be observed by a Schedule already
// produced from it.
type SchedulerInput struct {
	entities  []entityData
	resources []resourceData
	uses      []ResourceUse
	spans     []RenderPassSpan
	roots     []Root
}

// MakeSchedulerInput freezes the builder into a SchedulerInput. The
// builder must have no entity open.
func (b *Builder) MakeSchedulerInput() (*SchedulerInput, error) {
	if b.current != nil {
		return nil, ErrEntityAlreadyOpen
	}
	in := &SchedulerInput{
		entities:  append([]entityData(nil), b.entities...),
		resources: append([]resourceData(nil), b.resources...),
		uses:      append([]ResourceUse(nil), b.uses...),
		spans:     append([]RenderPassSpan(nil), b.spans...),
		roots:     append([]Root(nil), b.roots...),
	}
	return in, nil
}
