// Package builder implements the four pass-construction flavours (Render,
// Compute, Copy, Present) through which a caller declares a frame's work.
// Every flavour shares one internal edge-validation routine, the way the
// teacher keeps one bind-group validation path behind several typed
// constructors in engine/renderer/bind_group_provider.
package builder

import (
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rglog"
)

// edge is the shared core embedded by every builder flavour. It owns the
// invalid latch: once any validation fails, every subsequent call on the
// embedding builder becomes a no-op and Finish returns handle.Zero.
type edge struct {
	resources *resource.Table
	passes    *pass.Table
	handle    handle.Handle
	kind      pass.Kind
	invalid   bool

	// declared tracks, for every handle the caller has passed to a read or
	// write call on this pass (regardless of which underlying version that
	// call ended up minting), whether the declaration was a write. A
	// second declaration of the same handle in the opposite direction is
	// an alias conflict.
	declared map[handle.Handle]bool
}

func newEdge(resources *resource.Table, passes *pass.Table, name string, kind pass.Kind) edge {
	e := edge{resources: resources, passes: passes, kind: kind, declared: make(map[handle.Handle]bool)}
	h, err := passes.Mint(name, kind)
	if err != nil {
		rglog.Errorf("builder: mint %v pass %q: %v", kind, name, err)
		e.invalid = true
		e.handle = handle.Zero
		return e
	}
	e.handle = h
	return e
}

// fail latches the builder invalid and logs a diagnostic tagged with the
// pass's own handle index, never the caller's.
func (e *edge) fail(kind rgerrors.Kind, format string, args ...any) {
	e.invalid = true
	err := rgerrors.New(kind, format, args...)
	rglog.Errorf("builder: pass %d: %v", e.handle.Index, err)
}

// mutable fetches the pass node fresh from the table; it is never cached
// across calls because the table's backing slice may reallocate as other
// in-flight builders mint sibling passes.
func (e *edge) mutable() (*pass.Node, bool) {
	if e.invalid {
		return nil, false
	}
	n, err := e.passes.Mutable(e.handle)
	if err != nil {
		e.fail(rgerrors.InvalidHandle, "pass node unavailable: %v", err)
		return nil, false
	}
	return n, true
}

// markDeclared records h's direction for this pass and reports whether a
// conflicting prior declaration exists.
func (e *edge) markDeclared(h handle.Handle, write bool) bool {
	if prior, ok := e.declared[h]; ok && prior != write {
		e.fail(rgerrors.AliasConflict, "handle %d already declared as %s in this pass", h.Index, direction(prior))
		return false
	}
	e.declared[h] = write
	return true
}

func direction(write bool) string {
	if write {
		return "write"
	}
	return "read"
}

// readBuffer adds (or extends) a read edge for a buffer handle of a
// read-capable usage.
func (e *edge) readBuffer(h handle.Handle, stage device.Stage, access device.Access, requiredUsage device.BufferUsage) {
	n, ok := e.mutable()
	if !ok {
		return
	}
	node, err := e.resources.Get(h, handle.KindGPUBuffer)
	if err != nil {
		e.fail(rgerrors.InvalidHandle, "buffer handle %d: %v", h.Index, err)
		return
	}
	if !node.Backing.BufferUsage().Has(requiredUsage) {
		e.fail(rgerrors.UsageMismatch, "buffer %q lacks usage required for this read", node.Name)
		return
	}
	if !e.markDeclared(h, false) {
		return
	}
	if existing, ok := n.BufferEdges[h]; ok {
		existing.Stage |= stage
		n.BufferEdges[h] = existing
	} else {
		n.BufferEdges[h] = pass.BufferEdge{Access: access, Stage: stage, ElementOffset: 0, ElementCount: -1}
	}
	if err := e.resources.AddReader(h, handle.KindGPUBuffer, e.handle); err != nil {
		e.fail(rgerrors.InvalidHandle, "recording reader: %v", err)
	}
}

// writeBuffer mints a new version of a buffer and records the write edge
// under the new handle, returning it so flavour-specific code (e.g. the
// copy helpers) can report it back to the caller.
func (e *edge) writeBuffer(h handle.Handle, stage device.Stage, access device.Access, requiredUsage device.BufferUsage) (handle.Handle, bool) {
	n, ok := e.mutable()
	if !ok {
		return handle.Zero, false
	}
	node, err := e.resources.Get(h, handle.KindGPUBuffer)
	if err != nil {
		e.fail(rgerrors.InvalidHandle, "buffer handle %d: %v", h.Index, err)
		return handle.Zero, false
	}
	if !node.Backing.BufferUsage().Has(requiredUsage) {
		e.fail(rgerrors.UsageMismatch, "buffer %q lacks usage required for this write", node.Name)
		return handle.Zero, false
	}
	if !e.markDeclared(h, true) {
		return handle.Zero, false
	}
	newH, err := e.resources.Write(h, handle.KindGPUBuffer, e.handle)
	if err != nil {
		e.fail(rgerrors.OldVersionWrite, "writing buffer %q: %v", node.Name, err)
		return handle.Zero, false
	}
	n.BufferEdges[newH] = pass.BufferEdge{Write: true, Access: access, Stage: stage, ElementOffset: 0, ElementCount: -1}
	return newH, true
}

// readTexture adds a read edge for one texture layer.
func (e *edge) readTexture(h handle.Handle, layer int, stage device.Stage, access device.Access, layout device.Layout, requiredUsage device.TextureUsage) {
	n, ok := e.mutable()
	if !ok {
		return
	}
	node, err := e.resources.Get(h, handle.KindTexture)
	if err != nil {
		e.fail(rgerrors.InvalidHandle, "texture handle %d: %v", h.Index, err)
		return
	}
	if !node.Backing.TextureUsage().Has(requiredUsage) {
		e.fail(rgerrors.UsageMismatch, "texture %q lacks usage required for this read", node.Name)
		return
	}
	if !e.markDeclared(h, false) {
		return
	}
	if existing, ok := n.TextureEdges[h]; ok {
		existing.Stage |= stage
		n.TextureEdges[h] = existing
	} else {
		n.TextureEdges[h] = pass.TextureEdge{Access: access, Stage: stage, TargetLayout: layout, Layer: layer}
	}
	if err := e.resources.AddReader(h, handle.KindTexture, e.handle); err != nil {
		e.fail(rgerrors.InvalidHandle, "recording reader: %v", err)
	}
}

// writeTexture mints a new version of a texture and records the write
// edge under the new handle.
func (e *edge) writeTexture(h handle.Handle, layer int, stage device.Stage, access device.Access, layout device.Layout, requiredUsage device.TextureUsage) (handle.Handle, bool) {
	n, ok := e.mutable()
	if !ok {
		return handle.Zero, false
	}
	node, err := e.resources.Get(h, handle.KindTexture)
	if err != nil {
		e.fail(rgerrors.InvalidHandle, "texture handle %d: %v", h.Index, err)
		return handle.Zero, false
	}
	if !node.Backing.TextureUsage().Has(requiredUsage) {
		e.fail(rgerrors.UsageMismatch, "texture %q lacks usage required for this write", node.Name)
		return handle.Zero, false
	}
	if !e.markDeclared(h, true) {
		return handle.Zero, false
	}
	newH, err := e.resources.Write(h, handle.KindTexture, e.handle)
	if err != nil {
		e.fail(rgerrors.OldVersionWrite, "writing texture %q: %v", node.Name, err)
		return handle.Zero, false
	}
	n.TextureEdges[newH] = pass.TextureEdge{Write: true, Access: access, Stage: stage, TargetLayout: layout, Layer: layer}
	return newH, true
}

// addSampler idempotently adds a sampler to this pass's edge set.
func (e *edge) addSampler(s handle.Handle) {
	n, ok := e.mutable()
	if !ok {
		return
	}
	if _, err := e.resources.Get(s, handle.KindSampler); err != nil {
		e.fail(rgerrors.InvalidHandle, "sampler handle %d: %v", s.Index, err)
		return
	}
	if _, exists := n.SamplerEdges[s]; exists {
		return
	}
	n.SamplerEdges[s] = 0
}

// addPipeline idempotently adds a render or compute pipeline handle, kept
// in the same resource table as buffers and textures (a pipeline is just
// another imported, opaque backend object from the graph's point of view).
func (e *edge) addPipeline(p handle.Handle, want handle.Kind) {
	n, ok := e.mutable()
	if !ok {
		return
	}
	if _, err := e.resources.Get(p, want); err != nil {
		e.fail(rgerrors.InvalidHandle, "pipeline handle %d: %v", p.Index, err)
		return
	}
	if _, exists := n.Pipelines[p]; exists {
		return
	}
	n.Pipelines[p] = struct{}{}
}

// SideEffect keeps this pass alive through dead-pass pruning even if
// nothing reads its outputs.
func (e *edge) SideEffect() {
	n, ok := e.mutable()
	if !ok {
		return
	}
	n.SideEffect = true
}

// SetExecutor stores the closure invoked during execution. Calling it
// twice is a DuplicateConfig error.
func (e *edge) setExecutor(f pass.Executor) {
	n, ok := e.mutable()
	if !ok {
		return
	}
	if n.Executor != nil {
		e.fail(rgerrors.DuplicateConfig, "executor already set")
		return
	}
	n.Executor = f
}

// finish validates the common finish() precondition (executor set) and
// hands back to the flavour-specific Finish for the rest.
func (e *edge) finish() (handle.Handle, bool) {
	if e.invalid {
		return handle.Zero, false
	}
	n, ok := e.mutable()
	if !ok {
		return handle.Zero, false
	}
	if n.Executor == nil {
		e.fail(rgerrors.MissingConfig, "pass %q finished with no executor set", n.Name)
		return handle.Zero, false
	}
	if err := e.passes.Finish(e.handle); err != nil {
		e.fail(rgerrors.InvalidHandle, "finishing pass: %v", err)
		return handle.Zero, false
	}
	return e.handle, true
}
