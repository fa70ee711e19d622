package builder

import (
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
)

// Copy builds a Copy pass out of buffer/texture copy helpers, each
// installing a CopySrc read edge and a CopyDst write edge. The caller
// still supplies the executor that actually issues the copy commands
// against the command context.
type Copy struct {
	edge
}

// NewCopy starts building a Copy pass named name.
func NewCopy(resources *resource.Table, passes *pass.Table, name string) *Copy {
	return &Copy{edge: newEdge(resources, passes, name, pass.KindCopy)}
}

// Handle returns the in-progress pass handle, valid even before Finish.
func (b *Copy) Handle() handle.Handle { return b.handle }

// BufferToBuffer declares src as a CopySrc read and dst as a CopyDst
// write, returning dst's new version handle.
func (b *Copy) BufferToBuffer(src, dst handle.Handle) (srcOut, dstOut handle.Handle) {
	b.readBuffer(src, device.StageCopy, device.AccessCopySrc, device.BufferUsageCopySrc)
	newDst, _ := b.writeBuffer(dst, device.StageCopy, device.AccessCopyDst, device.BufferUsageCopyDst)
	return src, newDst
}

// BufferToTexture declares src as a CopySrc buffer read and dst (layer) as
// a CopyDst texture write, returning dst's new version handle.
func (b *Copy) BufferToTexture(src handle.Handle, dst handle.Handle, dstLayer int) (srcOut, dstOut handle.Handle) {
	b.readBuffer(src, device.StageCopy, device.AccessCopySrc, device.BufferUsageCopySrc)
	newDst, _ := b.writeTexture(dst, dstLayer, device.StageCopy, device.AccessCopyDst, device.LayoutCopyDst, device.TextureUsageCopyDst)
	return src, newDst
}

// TextureToTexture declares src (layer) as a CopySrc read and dst (layer)
// as a CopyDst write, returning dst's new version handle.
func (b *Copy) TextureToTexture(src handle.Handle, srcLayer int, dst handle.Handle, dstLayer int) (srcOut, dstOut handle.Handle) {
	b.readTexture(src, srcLayer, device.StageCopy, device.AccessCopySrc, device.LayoutCopySrc, device.TextureUsageCopySrc)
	newDst, _ := b.writeTexture(dst, dstLayer, device.StageCopy, device.AccessCopyDst, device.LayoutCopyDst, device.TextureUsageCopyDst)
	return src, newDst
}

// SetExecutor stores the closure that issues the copy commands.
func (b *Copy) SetExecutor(f pass.Executor) *Copy {
	b.setExecutor(f)
	return b
}

// SideEffect keeps this pass alive through pruning even without a reader.
func (b *Copy) SideEffect() *Copy {
	b.edge.SideEffect()
	return b
}

// Finish validates the common finish() precondition (an executor set)
// and returns the finished pass handle.
func (b *Copy) Finish() handle.Handle {
	h, _ := b.edge.finish()
	return h
}
