package cache

import (
	"kestrel/fgraph/gpu"
	"kestrel/fgraph/internal/handle"
)

// Per-kind structural keys. Equality and hashing are canonical Go
// struct/slice-derived comparisons — no pointer identity ever leaks
// into a key, so every field here is itself comparable or, for keys
// containing slices, flattened into a comparable array or joined
// string before being used as a map key.

// SamplerKey is the structural key for a sampler descriptor.
type SamplerKey struct {
	Info gpu.SamplerInfo
}

// SamplerCache deduplicates samplers by descriptor.
type SamplerCache = Cache[SamplerKey, gpu.Sampler]

// SamplerHandle identifies a cached sampler.
type SamplerHandle = handle.Handle[entry[SamplerKey, gpu.Sampler]]

// ShaderModuleKey is the structural key for a shader module: its
// SPIR-V word vector, flattened to a string so it is map-key-safe.
type ShaderModuleKey struct {
	spirv string
}

// NewShaderModuleKey builds a ShaderModuleKey from a SPIR-V word
// vector.
func NewShaderModuleKey(words []uint32) ShaderModuleKey {
	b := make([]byte, len(words)*4)
	for i, w := range words {
		b[i*4+0] = byte(w)
		b[i*4+1] = byte(w >> 8)
		b[i*4+2] = byte(w >> 16)
		b[i*4+3] = byte(w >> 24)
	}
	return ShaderModuleKey{spirv: string(b)}
}

// ShaderModuleCache deduplicates shader modules by SPIR-V content.
type ShaderModuleCache = Cache[ShaderModuleKey, gpu.ShaderModule]

// ShaderModuleHandle identifies a cached shader module.
type ShaderModuleHandle = handle.Handle[entry[ShaderModuleKey, gpu.ShaderModule]]

// DescSetLayoutKey is the structural key for a descriptor set layout:
// ordered bindings plus the handles of any immutable samplers.
type DescSetLayoutKey struct {
	bindings          string // joined DescBinding encodings
	immutableSamplers string // joined SamplerHandle values
}

// NewDescSetLayoutKey builds a DescSetLayoutKey from ordered bindings
// and the handles of any immutable samplers (order-sensitive, matching
// Vulkan binding-array semantics).
func NewDescSetLayoutKey(bindings []gpu.DescBinding, immutableSamplers []SamplerHandle) DescSetLayoutKey {
	return DescSetLayoutKey{
		bindings:          encodeBindings(bindings),
		immutableSamplers: encodeHandles(immutableSamplers),
	}
}

// DescSetLayoutCache deduplicates descriptor set layouts.
type DescSetLayoutCache = Cache[DescSetLayoutKey, gpu.DescSetLayout]

// DescSetLayoutHandle identifies a cached descriptor set layout.
type DescSetLayoutHandle = handle.Handle[entry[DescSetLayoutKey, gpu.DescSetLayout]]

// PipelineLayoutKey is the structural key for a pipeline layout:
// ordered set-layout handles plus push-constant ranges.
type PipelineLayoutKey struct {
	setLayouts    string
	pushConstants string
}

// NewPipelineLayoutKey builds a PipelineLayoutKey.
func NewPipelineLayoutKey(sets []DescSetLayoutHandle, pushConstants []gpu.PushConstantRange) PipelineLayoutKey {
	return PipelineLayoutKey{
		setLayouts:    encodeHandles(sets),
		pushConstants: encodeRanges(pushConstants),
	}
}

// PipelineLayoutCache deduplicates pipeline layouts.
type PipelineLayoutCache = Cache[PipelineLayoutKey, gpu.PipelineLayout]

// PipelineLayoutHandle identifies a cached pipeline layout.
type PipelineLayoutHandle = handle.Handle[entry[PipelineLayoutKey, gpu.PipelineLayout]]

// RenderPassKey is the full structural key for a render pass:
// attachments, subpasses and subpass dependencies, verbatim.
type RenderPassKey struct {
	attachments  string
	subpasses    string
	dependencies string
}

// NewRenderPassKey builds the full (non-reduced) render pass key used
// to deduplicate identical render passes for caching purposes. It is
// stricter than the compatibility key (RenderPassCompatibilityKey in
// compat.go), which additionally allows load/store-op differences.
func NewRenderPassKey(att []gpu.Attachment, sub []gpu.Subpass, dep []gpu.SubpassDependency) RenderPassKey {
	return RenderPassKey{
		attachments:  encodeAttachments(att),
		subpasses:    encodeSubpasses(sub),
		dependencies: encodeDependencies(dep),
	}
}

// RenderPassCache deduplicates render passes by full structural key.
type RenderPassCache = Cache[RenderPassKey, gpu.RenderPass]

// RenderPassHandle identifies a cached render pass.
type RenderPassHandle = handle.Handle[entry[RenderPassKey, gpu.RenderPass]]

// FramebufferKey is the structural key for a framebuffer: the owning
// render pass's compatibility key, the attachment view handles, and
// the extent.
type FramebufferKey struct {
	passCompat             RenderPassCompatibilityKey
	views                  string
	width, height, layers  int
}

// NewFramebufferKey builds a FramebufferKey.
func NewFramebufferKey(passCompat RenderPassCompatibilityKey, views []handle.Handle[entry[ImageViewKey, gpu.ImageView]], width, height, layers int) FramebufferKey {
	return FramebufferKey{
		passCompat: passCompat,
		views:      encodeHandles(views),
		width:      width,
		height:     height,
		layers:     layers,
	}
}

// FramebufferCache deduplicates framebuffers.
type FramebufferCache = Cache[FramebufferKey, gpu.Framebuffer]

// FramebufferHandle identifies a cached framebuffer.
type FramebufferHandle = handle.Handle[entry[FramebufferKey, gpu.Framebuffer]]

// ImageViewKey is the structural key for an image view: the owning
// image handle plus the view parameters.
type ImageViewKey struct {
	image handle.Dynamic
	info  gpu.ImageViewInfo
}

// NewImageViewKey builds an ImageViewKey.
func NewImageViewKey(image handle.Dynamic, info gpu.ImageViewInfo) ImageViewKey {
	return ImageViewKey{image: image, info: info}
}

// ImageViewCache deduplicates image views.
type ImageViewCache = Cache[ImageViewKey, gpu.ImageView]

// ImageViewHandle identifies a cached image view.
type ImageViewHandle = handle.Handle[entry[ImageViewKey, gpu.ImageView]]

// GraphicsPipelineKey is the structural key for a graphics pipeline:
// shader set, pipeline layout handle, render-pass compatibility key,
// subpass index and the opaque fixed-function state descriptor.
type GraphicsPipelineKey struct {
	shaders        string
	layout         handle.Dynamic
	passCompat     RenderPassCompatibilityKey
	subpass        int
	pipelineState  any
}

// NewGraphicsPipelineKey builds a GraphicsPipelineKey.
func NewGraphicsPipelineKey(vert, frag ShaderModuleHandle, layout PipelineLayoutHandle, passCompat RenderPassCompatibilityKey, subpass int, pipelineState any) GraphicsPipelineKey {
	return GraphicsPipelineKey{
		shaders:       encodeHandles([]ShaderModuleHandle{vert, frag}),
		layout:        layout.Dynamic(),
		passCompat:    passCompat,
		subpass:       subpass,
		pipelineState: pipelineState,
	}
}

// GraphicsPipelineCache deduplicates graphics pipelines.
type GraphicsPipelineCache = Cache[GraphicsPipelineKey, gpu.Pipeline]

// GraphicsPipelineHandle identifies a cached graphics pipeline.
type GraphicsPipelineHandle = handle.Handle[entry[GraphicsPipelineKey, gpu.Pipeline]]
