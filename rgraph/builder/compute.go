package builder

import (
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
)

// Compute builds a Compute pass: constant-buffer and storage-buffer reads,
// storage-buffer and UAV-texture writes, one or more compute pipelines,
// and an executor.
type Compute struct {
	edge
}

// NewCompute starts building a Compute pass named name.
func NewCompute(resources *resource.Table, passes *pass.Table, name string) *Compute {
	return &Compute{edge: newEdge(resources, passes, name, pass.KindCompute)}
}

// Handle returns the in-progress pass handle, valid even before Finish.
func (b *Compute) Handle() handle.Handle { return b.handle }

// Read declares a generic constant-buffer read.
func (b *Compute) Read(buf handle.Handle, stage device.Stage) *Compute {
	b.readBuffer(buf, stage, device.AccessConstant, device.BufferUsageConstant)
	return b
}

// ReadStorage declares a storage-buffer read.
func (b *Compute) ReadStorage(buf handle.Handle, stage device.Stage) *Compute {
	b.readBuffer(buf, stage, device.AccessShaderRead, device.BufferUsageStorage)
	return b
}

// WriteStorage mints a new version of a storage buffer written by this pass.
func (b *Compute) WriteStorage(buf handle.Handle, stage device.Stage) handle.Handle {
	newH, _ := b.writeBuffer(buf, stage, device.AccessShaderWrite, device.BufferUsageStorage)
	return newH
}

// ReadTexture declares a shader-read-only-view sample of a texture layer.
func (b *Compute) ReadTexture(tex handle.Handle, layer int, stage device.Stage) *Compute {
	b.readTexture(tex, layer, stage, device.AccessShaderRead, device.LayoutShaderRead, device.TextureUsageSRV)
	return b
}

// WriteTexture mints a new version of a UAV texture written by this pass.
func (b *Compute) WriteTexture(tex handle.Handle, layer int, stage device.Stage) handle.Handle {
	newH, _ := b.writeTexture(tex, layer, stage, device.AccessShaderWrite, device.LayoutShaderWrite, device.TextureUsageUAV)
	return newH
}

// AddSampler idempotently adds a sampler available to this pass's executor.
func (b *Compute) AddSampler(s handle.Handle) *Compute {
	b.addSampler(s)
	return b
}

// AddPipeline idempotently adds a compute pipeline used by this pass.
func (b *Compute) AddPipeline(p handle.Handle) *Compute {
	b.addPipeline(p, handle.KindComputePipeline)
	return b
}

// SetExecutor stores the closure invoked during execution.
func (b *Compute) SetExecutor(f pass.Executor) *Compute {
	b.setExecutor(f)
	return b
}

// SideEffect keeps this pass alive through pruning even without a reader.
func (b *Compute) SideEffect() *Compute {
	b.edge.SideEffect()
	return b
}

// Finish validates the Compute-specific precondition (at least one
// pipeline) on top of the common ones.
func (b *Compute) Finish() handle.Handle {
	if !b.invalid {
		if n, ok := b.mutable(); ok && len(n.Pipelines) == 0 {
			b.fail(rgerrors.MissingConfig, "compute pass %q finished with no pipelines", n.Name)
		}
	}
	h, _ := b.edge.finish()
	return h
}
