package cache

import (
	"kestrel/fgraph/gpu"
	"kestrel/fgraph/internal/handle"
)

// kindStore is the dispatch-table entry every per-kind Cache satisfies,
// letting Graph walk the dependent graph across heterogeneous kinds
// without open-ended polymorphism.
type kindStore interface {
	kill(handle.Dynamic) ([]Dependent, bool)
	aliveDynamic(handle.Dynamic) bool
	reap()
}

// Graph is the device-resource cache: one Cache per cached kind, plus
// the cross-kind dependent-invalidation graph that cascades
// destruction across kinds.
type Graph struct {
	device handle.DeviceID

	Samplers          *SamplerCache
	ShaderModules     *ShaderModuleCache
	DescSetLayouts    *DescSetLayoutCache
	PipelineLayouts   *PipelineLayoutCache
	RenderPasses      *RenderPassCache
	Framebuffers      *FramebufferCache
	ImageViews        *ImageViewCache
	GraphicsPipelines *GraphicsPipelineCache

	stores map[handle.Kind]kindStore
}

// NewGraph creates an empty resource cache bound to device.
func NewGraph(device handle.DeviceID) *Graph {
	g := &Graph{
		device:            device,
		Samplers:          NewCache[SamplerKey, gpu.Sampler](device, handle.KindSampler),
		ShaderModules:     NewCache[ShaderModuleKey, gpu.ShaderModule](device, handle.KindShaderModule),
		DescSetLayouts:    NewCache[DescSetLayoutKey, gpu.DescSetLayout](device, handle.KindDescSetLayout),
		PipelineLayouts:   NewCache[PipelineLayoutKey, gpu.PipelineLayout](device, handle.KindPipelineLayout),
		RenderPasses:      NewCache[RenderPassKey, gpu.RenderPass](device, handle.KindRenderPass),
		Framebuffers:      NewCache[FramebufferKey, gpu.Framebuffer](device, handle.KindFramebuffer),
		ImageViews:        NewCache[ImageViewKey, gpu.ImageView](device, handle.KindImageView),
		GraphicsPipelines: NewCache[GraphicsPipelineKey, gpu.Pipeline](device, handle.KindGraphicsPipeline),
	}
	g.stores = map[handle.Kind]kindStore{
		handle.KindSampler:          g.Samplers,
		handle.KindShaderModule:     g.ShaderModules,
		handle.KindDescSetLayout:    g.DescSetLayouts,
		handle.KindPipelineLayout:   g.PipelineLayouts,
		handle.KindRenderPass:       g.RenderPasses,
		handle.KindFramebuffer:      g.Framebuffers,
		handle.KindImageView:        g.ImageViews,
		handle.KindGraphicsPipeline: g.GraphicsPipelines,
	}
	return g
}

// Destroy marks root dead and cascades through the dependent graph,
// marking every transitively reachable Dependent dead before
// returning. The underlying GPU objects are not freed yet — that
// happens on the next Reap, once the caller (normally the frame
// resource pool) has established that no in-flight frame can still
// reference them.
func (g *Graph) Destroy(root handle.Dynamic) {
	queue := []handle.Dynamic{root}
	seen := make(map[handle.Dynamic]bool)
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if seen[d] {
			continue
		}
		seen[d] = true

		store, ok := g.stores[d.Kind()]
		if !ok {
			continue
		}
		outgoing, ok := store.kill(d)
		if !ok {
			continue
		}
		for _, dep := range outgoing {
			if dep.IsProbe() {
				dep.probe.mark()
			} else {
				queue = append(queue, dep.h)
			}
		}
	}
}

// Alive reports whether d still refers to a live entry in whichever
// per-kind store owns it.
func (g *Graph) Alive(d handle.Dynamic) bool {
	store, ok := g.stores[d.Kind()]
	if !ok {
		return false
	}
	return store.aliveDynamic(d)
}

// Reap physically frees every entry marked dead across every kind,
// calling each GPU object's Destroy exactly once. The frame resource
// pool calls this once it has established that no frame-in-flight can
// still reference the dead entries.
func (g *Graph) Reap() {
	// Reap in dependency order (dependents first, the objects they were
	// built from after them): a render pass must not be
	// destroyed before the framebuffers that were built from it, even
	// though both are already marked dead — a framebuffer is always
	// created after its render pass and views.
	g.Framebuffers.reap()
	g.GraphicsPipelines.reap()
	g.ImageViews.reap()
	g.RenderPasses.reap()
	g.PipelineLayouts.reap()
	g.DescSetLayouts.reap()
	g.ShaderModules.reap()
	g.Samplers.reap()
}
