// Package bindless creates the deferred descriptor-heap handles a pass's
// shader-visible edges need. Descriptors are created at execute time, one
// pass before its commands are recorded, rather than at compile time: a
// descriptor created during compilation could point at a resource a later
// pass in the same frame still has to write for the first time, which
// would be a read-before-write hazard the bindless heap cannot see.
package bindless

import (
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
)

// needsBufferSlot reports whether a buffer edge's access is shader-visible
// and therefore needs a bindless descriptor. Vertex, index, and copy
// buffers are bound directly and never reach the descriptor heap.
func needsBufferSlot(a device.Access) bool {
	return a == device.AccessConstant || a == device.AccessShaderRead || a == device.AccessShaderWrite
}

// needsTextureSlot reports whether a texture edge is an SRV sample or UAV
// write and therefore needs a bindless descriptor. Render targets,
// depth-stencil targets, and copy endpoints are bound directly.
func needsTextureSlot(l device.Layout) bool {
	return l == device.LayoutShaderRead || l == device.LayoutShaderWrite
}

// CreateForPass creates one descriptor per declared element index of each
// shader-visible buffer edge, one per SRV/UAV texture edge, and one per
// declared sampler on n, mutating n's edge maps in place with the slots
// created. It returns every slot created so the caller can hand them to
// rgraph/retire for teardown once the pass's submission fence is known to
// have retired.
func CreateForPass(alloc device.BindlessAllocator, resources *resource.Table, n *pass.Node) ([]device.BindlessSlot, error) {
	var created []device.BindlessSlot

	for h, edge := range n.BufferEdges {
		if !needsBufferSlot(edge.Access) {
			continue
		}
		rnode, err := resources.Get(h, handle.KindGPUBuffer)
		if err != nil {
			return created, err
		}
		buf, ok := rnode.Backing.ResolvedBuffer()
		if !ok {
			return created, rgerrors.New(rgerrors.BackendError, "buffer %q has no resolved backing at bindless creation time", rnode.Name)
		}
		count := edge.ElementCount
		if count < 1 {
			count = 1
		}
		edge.BindlessSlots = nil
		for i := 0; i < count; i++ {
			slot, err := alloc.CreateBufferHandle(buf, edge.ElementOffset+i, edge.Write)
			if err != nil {
				return created, rgerrors.Wrap(rgerrors.BackendError, err, "creating bindless handle for buffer %q element %d", rnode.Name, edge.ElementOffset+i)
			}
			edge.BindlessSlots = append(edge.BindlessSlots, slot)
			created = append(created, slot)
		}
		n.BufferEdges[h] = edge
	}

	for h, edge := range n.TextureEdges {
		if !needsTextureSlot(edge.TargetLayout) {
			continue
		}
		rnode, err := resources.Get(h, handle.KindTexture)
		if err != nil {
			return created, err
		}
		tex, ok := rnode.Backing.ResolvedTexture()
		if !ok {
			return created, rgerrors.New(rgerrors.BackendError, "texture %q has no resolved backing at bindless creation time", rnode.Name)
		}
		slot, err := alloc.CreateTextureHandle(tex, edge.Layer, edge.Write)
		if err != nil {
			return created, rgerrors.Wrap(rgerrors.BackendError, err, "creating bindless handle for texture %q", rnode.Name)
		}
		edge.BindlessSlot = slot
		n.TextureEdges[h] = edge
		created = append(created, slot)
	}

	for h := range n.SamplerEdges {
		rnode, err := resources.Get(h, handle.KindSampler)
		if err != nil {
			return created, err
		}
		s, ok := rnode.Backing.ResolvedSampler()
		if !ok {
			return created, rgerrors.New(rgerrors.BackendError, "sampler %q has no resolved backing at bindless creation time", rnode.Name)
		}
		slot, err := alloc.CreateSamplerHandle(s)
		if err != nil {
			return created, rgerrors.Wrap(rgerrors.BackendError, err, "creating bindless handle for sampler %q", rnode.Name)
		}
		n.SamplerEdges[h] = slot
		created = append(created, slot)
	}

	return created, nil
}

// Discard releases every slot in slots. Callers hand the slice here only
// once the retirement FIFO has confirmed the owning pass's fence value
// has actually retired.
func Discard(alloc device.BindlessAllocator, slots []device.BindlessSlot) {
	for _, s := range slots {
		alloc.DiscardHandle(s)
	}
}
