// Package barrier computes the per-pass synchronization barriers a
// compiled plan needs before it can be recorded: for every edge a
// retained pass declares, the access/stage/layout the edge demands become
// dst_*, and a backward walk along the same producer chain the compiler
// used for reachability supplies src_*. It plays the same role the
// teacher's driver-level barrier emission plays in a Vulkan backend,
// generalized here to work purely off handle chains instead of a live
// command buffer.
package barrier

import (
	"github.com/Carmen-Shannon/rendergraph/rgraph/compiler"
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
)

// Infer walks every retained pass in plan and installs its buffer and
// texture barrier lists via passes.SetBarriers. It must run after
// compiler.Compile has materialized every resource, since a barrier's
// Buffer/Texture field names the concrete backend object.
func Infer(plan *compiler.Plan, resources *resource.Table, passes *pass.Table) error {
	for _, l := range plan.Layers {
		for _, hs := range l.Queues {
			for _, h := range hs {
				if err := inferOne(resources, passes, h); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func inferOne(resources *resource.Table, passes *pass.Table, h handle.Handle) error {
	n, err := passes.Get(h)
	if err != nil {
		return err
	}

	var bufferBarriers []device.BufferBarrier
	for bh, edge := range n.BufferEdges {
		rnode, err := resources.Get(bh, handle.KindGPUBuffer)
		if err != nil {
			return err
		}
		buf, ok := rnode.Backing.ResolvedBuffer()
		if !ok {
			return rgerrors.New(rgerrors.BackendError, "buffer %q has no resolved backing at barrier inference time", rnode.Name)
		}

		// A write edge's handle is the version this pass mints itself, so
		// the state before the write comes from the version it replaced.
		from := bh
		if edge.Write {
			from = rnode.PrevVersion
		}
		srcAccess, srcStage, _, err := producerState(resources, passes, from)
		if err != nil {
			return err
		}
		dstAccess, dstStage := edge.Access, edge.Stage
		rewriteForQueue(n.QueueType, &srcAccess, &srcStage, nil, &dstAccess, &dstStage, nil)
		if srcAccess == dstAccess && srcStage == dstStage {
			continue
		}
		bufferBarriers = append(bufferBarriers, device.BufferBarrier{
			Buffer:    buf,
			SrcAccess: srcAccess,
			SrcStage:  srcStage,
			DstAccess: dstAccess,
			DstStage:  dstStage,
		})
	}

	var textureBarriers []device.TextureBarrier
	for th, edge := range n.TextureEdges {
		rnode, err := resources.Get(th, handle.KindTexture)
		if err != nil {
			return err
		}
		tex, ok := rnode.Backing.ResolvedTexture()
		if !ok {
			return rgerrors.New(rgerrors.BackendError, "texture %q has no resolved backing at barrier inference time", rnode.Name)
		}

		from := th
		if edge.Write {
			from = rnode.PrevVersion
		}
		srcAccess, srcStage, srcLayout, err := producerState(resources, passes, from)
		if err != nil {
			return err
		}
		dstAccess, dstStage, dstLayout := edge.Access, edge.Stage, edge.TargetLayout
		rewriteForQueue(n.QueueType, &srcAccess, &srcStage, &srcLayout, &dstAccess, &dstStage, &dstLayout)
		if srcAccess == dstAccess && srcStage == dstStage && srcLayout == dstLayout {
			continue
		}
		textureBarriers = append(textureBarriers, device.TextureBarrier{
			Texture:   tex,
			Layer:     edge.Layer,
			SrcAccess: srcAccess,
			SrcStage:  srcStage,
			SrcLayout: srcLayout,
			DstAccess: dstAccess,
			DstStage:  dstStage,
			DstLayout: dstLayout,
		})
	}

	return passes.SetBarriers(h, bufferBarriers, textureBarriers)
}

// producerState walks backward from h along its version chain — exactly
// the chain compiler.producerOf follows — until it reaches the nearest
// pass that wrote this content, and returns the access/stage/layout that
// pass's own write edge declared. A chain with no writer (version 0,
// never written since import) yields the resource's idle state: no
// access, no stage, and (for textures) LayoutCommon.
func producerState(resources *resource.Table, passes *pass.Table, h handle.Handle) (device.Access, device.Stage, device.Layout, error) {
	cur := h
	for cur.Valid() {
		n, err := resources.Get(cur, cur.Kind)
		if err != nil {
			return 0, 0, device.LayoutCommon, err
		}
		if n.Writer.Valid() {
			producerNode, err := passes.Get(n.Writer)
			if err != nil {
				return 0, 0, device.LayoutCommon, err
			}
			if be, ok := producerNode.BufferEdges[cur]; ok {
				return be.Access, be.Stage, device.LayoutCommon, nil
			}
			if te, ok := producerNode.TextureEdges[cur]; ok {
				return te.Access, te.Stage, te.TargetLayout, nil
			}
			return device.AccessNone, device.StageNone, device.LayoutCommon, nil
		}
		cur = n.PrevVersion
	}
	return device.AccessNone, device.StageNone, device.LayoutCommon, nil
}

// isCopyAccess reports whether a is one of the only access values a copy
// queue backend is guaranteed to support.
func isCopyAccess(a device.Access) bool {
	return a == device.AccessNone || a == device.AccessCopySrc || a == device.AccessCopyDst
}

// rewriteForQueue normalizes a barrier's fields when the consuming pass
// runs on the copy queue, whose backend only understands copy-flavoured
// access/stage and has no notion of most texture layouts: any src
// access/stage that is not a Copy variant is normalized to none, any src
// layout that is not already "common" is set to "unknown", and the dst
// layout is unconditionally forced to "common". srcLayout and dstLayout
// are nil for buffer barriers. It reports whether anything was rewritten,
// for callers that want to log it.
func rewriteForQueue(q device.QueueType, srcAccess *device.Access, srcStage *device.Stage, srcLayout *device.Layout, dstAccess *device.Access, dstStage *device.Stage, dstLayout *device.Layout) bool {
	if q != device.QueueCopy {
		return false
	}
	rewrote := false
	if !isCopyAccess(*srcAccess) {
		*srcAccess = device.AccessNone
		*srcStage = device.StageNone
		rewrote = true
	}
	if srcLayout != nil && *srcLayout != device.LayoutCommon {
		*srcLayout = device.LayoutUnknown
		rewrote = true
	}
	if dstLayout != nil && *dstLayout != device.LayoutCommon {
		*dstLayout = device.LayoutCommon
		rewrote = true
	}
	return rewrote
}
