package builder

import (
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
)

// Render builds a Render pass: a render target, an optional depth-stencil,
// any number of vertex/index/constant buffer reads and sampled textures,
// at least one render pipeline, and an executor.
type Render struct {
	edge
	renderTargetSet bool
	depthStencilSet bool
}

// NewRender starts building a Render pass named name.
func NewRender(resources *resource.Table, passes *pass.Table, name string) *Render {
	return &Render{edge: newEdge(resources, passes, name, pass.KindRender)}
}

// Handle returns the in-progress pass handle, valid even before Finish.
func (b *Render) Handle() handle.Handle { return b.handle }

// Read declares a generic constant-buffer read, unioning stage into an
// existing edge if the buffer was already read by this pass.
func (b *Render) Read(buf handle.Handle, stage device.Stage) *Render {
	b.readBuffer(buf, stage, device.AccessConstant, device.BufferUsageConstant)
	return b
}

// ReadTexture declares a shader-read-only-view sample of a texture layer.
func (b *Render) ReadTexture(tex handle.Handle, layer int, stage device.Stage) *Render {
	b.readTexture(tex, layer, stage, device.AccessShaderRead, device.LayoutShaderRead, device.TextureUsageSRV)
	return b
}

// ReadAsVertices declares buf as this pass's vertex buffer input.
func (b *Render) ReadAsVertices(buf handle.Handle) *Render {
	b.readBuffer(buf, device.StageVertexInput, device.AccessVertex, device.BufferUsageVertex)
	return b
}

// ReadAsIndices declares buf as this pass's index buffer input.
func (b *Render) ReadAsIndices(buf handle.Handle) *Render {
	b.readBuffer(buf, device.StageVertexInput, device.AccessIndex, device.BufferUsageIndex)
	return b
}

// SetRenderTarget binds tex (layer) as the pass's single color target.
// Calling it twice is a DuplicateConfig error.
func (b *Render) SetRenderTarget(tex handle.Handle, clear bool, layer int) *Render {
	n, ok := b.mutable()
	if !ok {
		return b
	}
	if b.renderTargetSet {
		b.fail(rgerrors.DuplicateConfig, "render target already set")
		return b
	}
	newH, ok := b.writeTexture(tex, layer, device.StageRender, device.AccessRenderTarget, device.LayoutRenderTarget, device.TextureUsageRenderTarget)
	if !ok {
		return b
	}
	b.renderTargetSet = true
	n.Render.RenderTarget = newH
	n.Render.RenderTargetLayer = layer
	n.Render.ClearColor = clear
	return b
}

// SetDepthStencil binds tex (layer) as the pass's depth-stencil target.
// Calling it twice is a DuplicateConfig error.
func (b *Render) SetDepthStencil(tex handle.Handle, clear bool, layer int) *Render {
	n, ok := b.mutable()
	if !ok {
		return b
	}
	if b.depthStencilSet {
		b.fail(rgerrors.DuplicateConfig, "depth-stencil already set")
		return b
	}
	newH, ok := b.writeTexture(tex, layer, device.StageDepthStencil, device.AccessDepthStencilWrite, device.LayoutDepthStencilWrite, device.TextureUsageDepthStencil)
	if !ok {
		return b
	}
	b.depthStencilSet = true
	n.Render.DepthStencil = newH
	n.Render.DepthStencilLayer = layer
	n.Render.ClearDepth = clear
	n.Render.HasDepthStencil = true
	return b
}

// AddSampler idempotently adds a sampler available to this pass's executor.
func (b *Render) AddSampler(s handle.Handle) *Render {
	b.addSampler(s)
	return b
}

// AddPipeline idempotently adds a render pipeline used by this pass.
func (b *Render) AddPipeline(p handle.Handle) *Render {
	b.addPipeline(p, handle.KindRenderPipeline)
	return b
}

// SetExecutor stores the closure invoked during execution.
func (b *Render) SetExecutor(f pass.Executor) *Render {
	b.setExecutor(f)
	return b
}

// SideEffect keeps this pass alive through pruning even without a reader.
func (b *Render) SideEffect() *Render {
	b.edge.SideEffect()
	return b
}

// Finish validates the Render-specific preconditions (a render target and
// at least one pipeline) on top of the common ones, and returns the
// finished pass handle, or handle.Zero if the builder went invalid.
func (b *Render) Finish() handle.Handle {
	if !b.invalid {
		if n, ok := b.mutable(); ok {
			if !b.renderTargetSet {
				b.fail(rgerrors.MissingConfig, "render pass %q finished with no render target", n.Name)
			} else if len(n.Pipelines) == 0 {
				b.fail(rgerrors.MissingConfig, "render pass %q finished with no pipelines", n.Name)
			}
		}
	}
	h, _ := b.edge.finish()
	return h
}
