// Package pass implements the pass node table. A pass node mirrors the
// shape of the teacher's BindGroupProvider — a small, handle-keyed edge
// table plus a kind-specific payload — generalized to the four pass
// flavours the builder package constructs (Render, Compute, Copy, Present).
package pass

import (
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
)

// Kind identifies one of the four pass flavours.
type Kind int

const (
	KindRender Kind = iota
	KindCompute
	KindCopy
	KindPresent
)

func (k Kind) HandleKind() handle.Kind {
	switch k {
	case KindRender:
		return handle.KindRenderPass
	case KindCompute:
		return handle.KindComputePass
	case KindCopy:
		return handle.KindCopyPass
	default:
		return handle.KindPresentPass
	}
}

func (k Kind) QueueType() device.QueueType {
	switch k {
	case KindCompute:
		return device.QueueCompute
	case KindCopy:
		return device.QueueCopy
	default:
		return device.QueueGraphics // Render and Present both require the graphics queue
	}
}

// BufferEdge records one pass's access to one buffer handle.
type BufferEdge struct {
	Write         bool
	Access        device.Access
	Stage         device.Stage
	ElementOffset int
	ElementCount  int
	BindlessSlots []device.BindlessSlot
}

// TextureEdge records one pass's access to one texture handle.
type TextureEdge struct {
	Write        bool
	Access       device.Access
	Stage        device.Stage
	TargetLayout device.Layout
	Layer        int
	BindlessSlot device.BindlessSlot
}

// ResourceHelper resolves handles declared by one pass to concrete
// backend resources and bindless slots. Attempts to resolve a handle not
// declared in this pass's own edges are logged and return a zero value,
// never a crash.
type ResourceHelper interface {
	Buffer(h handle.Handle) (device.Buffer, bool)
	Texture(h handle.Handle) (device.Texture, bool)
	Sampler(h handle.Handle) (device.Sampler, bool)
	BufferBindlessSlots(h handle.Handle) []device.BindlessSlot
	TextureBindlessSlot(h handle.Handle) device.BindlessSlot
	SamplerBindlessSlot(h handle.Handle) device.BindlessSlot
}

// Executor is the user-supplied closure invoked during execution.
type Executor func(helper ResourceHelper, ctx device.CommandContext) error

// RenderExtras holds the fields specific to a Render pass.
type RenderExtras struct {
	RenderTarget      handle.Handle
	RenderTargetLayer int
	ClearColor        bool
	DepthStencil      handle.Handle
	DepthStencilLayer int
	ClearDepth        bool
	HasDepthStencil   bool
}

// PresentExtras holds the fields specific to a Present pass.
type PresentExtras struct {
	Source      handle.Handle
	SourceLayer int
	SwapChain   device.SwapChain
}

// Node is one pass in the graph. It is immutable once Finished.
type Node struct {
	Handle     handle.Handle
	Name       string
	Kind       Kind
	QueueType  device.QueueType
	SideEffect bool

	BufferEdges  map[handle.Handle]BufferEdge
	TextureEdges map[handle.Handle]TextureEdge
	SamplerEdges map[handle.Handle]device.BindlessSlot
	Pipelines    map[handle.Handle]struct{}

	Executor Executor

	Render  RenderExtras
	Present PresentExtras

	BufferBarriers  []device.BufferBarrier
	TextureBarriers []device.TextureBarrier

	Finished bool
}

func newNode(h handle.Handle, name string, kind Kind) Node {
	return Node{
		Handle:       h,
		Name:         name,
		Kind:         kind,
		QueueType:    kind.QueueType(),
		BufferEdges:  make(map[handle.Handle]BufferEdge),
		TextureEdges: make(map[handle.Handle]TextureEdge),
		SamplerEdges: make(map[handle.Handle]device.BindlessSlot),
		Pipelines:    make(map[handle.Handle]struct{}),
	}
}

// Table is the pass node arena for one frame.
type Table struct {
	reg     *handle.Registry
	nodes   []Node
	indexOf map[uint32]int
}

// NewTable creates an empty pass table backed by reg.
func NewTable(reg *handle.Registry) *Table {
	return &Table{reg: reg, indexOf: make(map[uint32]int)}
}

// Mint creates a new, not-yet-finished pass node. The builder package is
// the only caller; finish() validation lives there.
func (t *Table) Mint(name string, kind Kind) (handle.Handle, error) {
	h := t.reg.Mint(kind.HandleKind())
	if err := t.reg.Bind(name, h); err != nil {
		t.reg.Retire(h)
		return handle.Zero, err
	}
	t.indexOf[h.Index] = len(t.nodes)
	t.nodes = append(t.nodes, newNode(h, name, kind))
	return h, nil
}

// Mutable returns a pointer to the in-progress node for h so a builder can
// populate its edges. It returns an error if h has already been finished.
func (t *Table) Mutable(h handle.Handle) (*Node, error) {
	idx, ok := t.indexOf[h.Index]
	if !ok {
		return nil, rgerrors.New(rgerrors.InvalidHandle, "handle %d has no pass node", h.Index)
	}
	n := &t.nodes[idx]
	if n.Finished {
		return nil, rgerrors.New(rgerrors.InvalidHandle, "pass %q is already finished and immutable", n.Name)
	}
	return n, nil
}

// Finish marks a pass node immutable.
func (t *Table) Finish(h handle.Handle) error {
	n, err := t.Mutable(h)
	if err != nil {
		return err
	}
	n.Finished = true
	return nil
}

// Get returns a copy of the node for h.
func (t *Table) Get(h handle.Handle) (Node, error) {
	idx, ok := t.indexOf[h.Index]
	if !ok {
		return Node{}, rgerrors.New(rgerrors.InvalidHandle, "handle %d has no pass node", h.Index)
	}
	return t.nodes[idx], nil
}

// All returns every pass node in the table, in creation order.
func (t *Table) All() []Node { return t.nodes }

// SetBarriers installs the barrier lists computed for pass h.
func (t *Table) SetBarriers(h handle.Handle, buffers []device.BufferBarrier, textures []device.TextureBarrier) error {
	idx, ok := t.indexOf[h.Index]
	if !ok {
		return rgerrors.New(rgerrors.InvalidHandle, "handle %d has no pass node", h.Index)
	}
	t.nodes[idx].BufferBarriers = buffers
	t.nodes[idx].TextureBarriers = textures
	return nil
}

// Reset clears the table for the next frame.
func (t *Table) Reset() {
	t.nodes = t.nodes[:0]
	for k := range t.indexOf {
		delete(t.indexOf, k)
	}
}
