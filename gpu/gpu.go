// Package gpu defines the abstract GPU capability set that the
// frame-graph scheduler treats as an external collaborator. It is
// deliberately thin: shader compilation, mesh/vertex-format loading,
// command-buffer recording, and the concrete graphics API binding
// (Vulkan, D3D12, ...) are all out of scope and are not implemented
// here — only the create/destroy/barrier/submit vocabulary the
// scheduler and the resource cache actually consume.
//
// The type vocabulary (Sync, Access, Layout, LoadOp, StoreOp,
// Attachment, Subpass, Barrier, Transition, PixelFmt, Usage, Dim3D)
// mirrors the abstraction the driver package exposes to its own
// renderer, since a Vulkan-like engine's sync primitives are the same
// regardless of which layer (fixed renderer vs. frame graph) consumes
// them.
package gpu

// Destroyer is implemented by every GPU object that owns external
// (non-GC-managed) memory: Destroy must be called explicitly once the
// object is no longer reachable from any live handle.
type Destroyer interface {
	Destroy()
}

// PixelFmt describes the format of a pixel.
type PixelFmt int

// Pixel formats.
const (
	RGBA8un PixelFmt = iota
	RGBA8sRGB
	BGRA8un
	RG16f
	RGBA16f
	RGBA32f
	D16un
	D32f
	D24unS8ui
	D32fS8ui
)

// Dim3D is a three-dimensional size.
type Dim3D struct{ Width, Height, Depth int }

// Usage is a mask indicating valid uses for an image or buffer.
type Usage int

// Usage flags.
const (
	UShaderRead Usage = 1 << iota
	UShaderWrite
	UShaderSample
	UVertexData
	UIndexData
	URenderTarget
	UTransferSrc
	UTransferDst
	UGeneric Usage = 1<<iota - 1
)

// Sync is a mask of pipeline stages, used as both a barrier
// synchronization scope and a sync-point materialization hint.
type Sync int

// Pipeline stage scopes.
const (
	SDrawIndirect Sync = 1 << iota
	SVertexInput
	SVertexShading
	SFragmentShading
	SEarlyFragmentTests
	SLateFragmentTests
	SColorOutput
	SComputeShading
	SCopy
	SResolve
	SAll
	// STopOfPipe and SBottomOfPipe mark the start/end of the pipeline,
	// used when a transition has no real producer or consumer stage
	// (e.g. an image's first-ever layout transition). No access mask
	// bit is meaningful at either stage.
	STopOfPipe
	SBottomOfPipe
	SNone Sync = 0
)

// Access is a mask of memory access scopes.
type Access int

// Memory access scopes.
const (
	AIndirectRead Access = 1 << iota
	AVertexBufRead
	AIndexBufRead
	AInputAttachmentRead
	AColorRead
	AColorWrite
	ADSRead
	ADSWrite
	AShaderRead
	AShaderWrite
	ACopyRead
	ACopyWrite
	AHostRead
	AHostWrite
	AAnyRead
	AAnyWrite
	ANone Access = 0
)

// Layout is an image layout.
type Layout int

// Image layouts.
const (
	LUndefined Layout = iota
	LGeneral
	LColorTarget
	LDSTarget
	LDSRead
	LShaderRead
	LCopySrc
	LCopyDst
	LPresent
)

// QueueFamily identifies a queue family on the device. Resources that
// cross queue families require an explicit ownership transfer.
type QueueFamily int

// IgnoredFamily means "no ownership transfer required" — either the
// resource has not left its originating family, or family ownership is
// not tracked for it (e.g. it was never written).
const IgnoredFamily QueueFamily = -1

// Barrier is a global (non-image-specific) synchronization barrier.
type Barrier struct {
	SyncBefore   Sync
	SyncAfter    Sync
	AccessBefore Access
	AccessAfter  Access
}

// Transition is a Barrier scoped to one image subresource, additionally
// describing a layout change and, when the two queue families differ,
// an ownership transfer.
type Transition struct {
	Barrier
	LayoutBefore Layout
	LayoutAfter  Layout
	FamilyBefore QueueFamily
	FamilyAfter  QueueFamily
}

// LoadOp is an attachment's load operation.
type LoadOp int

// Load operations.
const (
	LDontCare LoadOp = iota
	LClear
	LLoad
)

// StoreOp is an attachment's store operation.
type StoreOp int

// Store operations.
const (
	SDontCare StoreOp = iota
	SStore
)

// Attachment describes one render-pass attachment's static
// configuration, as synthesized by the scheduler.
type Attachment struct {
	Format        PixelFmt
	Samples       int
	Load          LoadOp
	Store         StoreOp
	InitialLayout Layout
	FinalLayout   Layout
}

// UnusedAttachment is the sentinel index meaning "this attachment slot
// is not used by this subpass".
const UnusedAttachment = -1

// Subpass describes one subpass of a fused render pass. Color, Input
// and Resolve hold indices into the render pass's merged attachment
// list, or UnusedAttachment.
type Subpass struct {
	Color   []int
	Input   []int
	Resolve []int
	DS      int
}

// SubpassDependency is an explicit ordering between two subpasses of
// the same render pass (or between an external producer and the first
// subpass, when Src == External).
type SubpassDependency struct {
	Src, Dst           int
	SrcStage, DstStage Sync
	SrcAccess, DstAccess Access
}

// External designates the implicit scope outside the render pass, used
// as SubpassDependency.Src/Dst for external dependencies.
const External = -1

// Device is the abstract device-resource capability set. The
// scheduler and resource cache never touch a concrete graphics API;
// they call through this interface, which an external collaborator
// implements.
type Device interface {
	CreateImage(pf PixelFmt, size Dim3D, layers, levels, samples int, usg Usage) (Image, error)
	CreateBuffer(size int64, visible bool, usg Usage) (Buffer, error)
	CreateImageView(img Image, info ImageViewInfo) (ImageView, error)
	CreateSampler(s SamplerInfo) (Sampler, error)
	CreateShaderModule(spirv []uint32) (ShaderModule, error)
	CreateDescSetLayout(bindings []DescBinding, immutableSamplers []Sampler) (DescSetLayout, error)
	CreatePipelineLayout(sets []DescSetLayout, pushConstants []PushConstantRange) (PipelineLayout, error)
	CreateRenderPass(att []Attachment, sub []Subpass, dep []SubpassDependency) (RenderPass, error)
	CreateFramebuffer(pass RenderPass, views []ImageView, width, height, layers int) (Framebuffer, error)
	CreateGraphicsPipeline(state GraphicsState) (Pipeline, error)

	CreateSemaphore() (Semaphore, error)
	CreateEvent() (Event, error)
	CreateFence(signaled bool) (Fence, error)

	// WaitForFences blocks until all of fences are signaled or
	// timeoutNS nanoseconds elapse, whichever comes first. A negative
	// timeoutNS blocks indefinitely.
	WaitForFences(fences []Fence, timeoutNS int64) (bool, error)

	// CreateCmdPool creates a command pool bound to the given queue
	// family. Allocating/recording individual command buffers from it
	// is a command-buffer-recording primitive and is out of scope; the
	// pool itself is in scope because the frame resource pool owns its
	// lifetime.
	CreateCmdPool(family QueueFamily) (CmdPool, error)
}

// CmdPool is an opaque command pool. Resetting it invalidates every
// command buffer allocated from it.
type CmdPool interface {
	Destroyer
	Reset() error
}

// Image, Buffer, ImageView, Sampler, ShaderModule, DescSetLayout,
// PipelineLayout, RenderPass, Framebuffer and Pipeline are opaque
// handles to device objects; only Destroy is part of the core's
// contract with them.
type (
	Image         interface{ Destroyer }
	Buffer        interface{ Destroyer }
	ImageView     interface{ Destroyer }
	Sampler       interface{ Destroyer }
	ShaderModule  interface{ Destroyer }
	DescSetLayout interface{ Destroyer }
	PipelineLayout interface{ Destroyer }
	RenderPass    interface{ Destroyer }
	Framebuffer   interface{ Destroyer }
	Pipeline      interface{ Destroyer }
)

// ImageViewInfo is the creation-time parameter set for an image view.
type ImageViewInfo struct {
	Format     PixelFmt
	BaseLayer  int
	Layers     int
	BaseLevel  int
	Levels     int
	DepthOnly  bool
}

// Filter, WrapMode and SamplerInfo describe a sampler descriptor, used
// verbatim as the sampler cache key.
type Filter int

const (
	FNearest Filter = iota
	FLinear
)

type WrapMode int

const (
	WRepeat WrapMode = iota
	WClamp
	WMirror
)

type SamplerInfo struct {
	MinFilter, MagFilter, MipFilter Filter
	WrapU, WrapV, WrapW             WrapMode
	MaxAnisotropy                   float32
	BorderColor                     [4]float32
}

// DescType is the type of a shader-visible descriptor.
type DescType int

const (
	DBuffer DescType = iota
	DImage
	DConstant
	DTexture
	DSampler
)

// DescBinding is one binding slot of a descriptor set layout.
type DescBinding struct {
	Nr     int
	Type   DescType
	Count  int
	Stages Stage
}

// PushConstantRange describes one push-constant range of a pipeline
// layout.
type PushConstantRange struct {
	Stages     Stage
	Offset, Size int
}

// Stage is a mask of programmable shader stages.
type Stage int

const (
	StageVertex Stage = 1 << iota
	StageFragment
	StageCompute
)

// GraphicsState is the structural key (minus the render-pass
// compatibility projection, added by the cache layer) for a graphics
// pipeline.
type GraphicsState struct {
	VertexShader, FragmentShader ShaderModule
	Layout                       PipelineLayout
	Pass                         RenderPass
	Subpass                      int
	// PipelineState is an opaque, comparable descriptor of the
	// remaining fixed-function state (rasterizer, blend, depth/stencil,
	// vertex input layout); its concrete shape is owned by the external
	// collaborator and is only ever compared/hashed by the cache.
	PipelineState any
}

// Queue is the abstract submission capability set. CmdBuffer
// recording itself is out of scope; the scheduler only needs to
// submit already-recorded work and order it with semaphores/fences.
type Queue interface {
	Submit(work []CmdBuffer, wait []SemaphoreWait, signal []Semaphore, fence Fence) error
	WaitIdle() error
	Family() QueueFamily
}

// CmdBuffer is an opaque handle to already-recorded GPU work. Its
// recording interface (draw/dispatch/copy calls) belongs to the
// external collaborator and is out of scope here.
type CmdBuffer interface{ Destroyer }

// SemaphoreWait pairs a semaphore with the pipeline stage at which a
// queue must wait on it before proceeding.
type SemaphoreWait struct {
	Semaphore Semaphore
	Stage     Sync
}

// Semaphore, Event and Fence are the abstract synchronization
// primitives.
type (
	Semaphore interface{ Destroyer }
	Event     interface{ Destroyer }
)

// Fence is pollable/waitable in addition to being destroyable.
type Fence interface {
	Destroyer
	// Signaled reports whether the fence has been signaled by the GPU.
	// It must not block.
	Signaled() (bool, error)
	// Reset clears the fence back to the unsignaled state.
	Reset() error
}

// Swapchain is the abstract present-only capability set.
type Swapchain interface {
	Destroyer
	// AcquireNextImage returns the index of the next presentable image
	// and a semaphore that is signaled once it is safe to render into.
	AcquireNextImage() (index int, acquired Semaphore, err error)
	// Present queues image index for presentation after all of wait
	// have been signaled. ok is false on a suboptimal/out-of-date
	// swapchain, which the caller must recreate outside the core.
	Present(index int, wait []Semaphore) (ok bool, err error)
}
