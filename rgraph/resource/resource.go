// Package resource implements the versioned resource node table. It keeps
// a single arena holding nodes of every resource kind, modelled on the
// teacher's per-kind cache idiom
// (engine/renderer/renderer.go's pipelineCache) but indexed by handle
// rather than by name, and threads version chains the way
// engine/renderer/pipeline keeps description state separate from the
// backing GPU object until the backend materializes it.
package resource

import (
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
)

// Backing is either an imported, externally-owned resource or a
// description from which the compiler will allocate.
type Backing struct {
	Imported    any // device.Buffer | device.Texture | device.Sampler, set when imported
	BufferDesc  *device.BufferDesc
	TextureDesc *device.TextureDesc
	SamplerDesc *device.SamplingDesc

	// ImportedBufferUsage / ImportedTextureUsage record the usage flags an
	// externally-owned resource was created with, since Imported itself is
	// an opaque device.Buffer/device.Texture with no usage accessor. They
	// are ignored when BufferDesc/TextureDesc is set (created resources
	// carry their usage in the description itself).
	ImportedBufferUsage  device.BufferUsage
	ImportedTextureUsage device.TextureUsage

	// Materialized is filled in by the compiler once a created backing has
	// been allocated.
	Materialized any
}

// ResolvedBuffer returns the concrete buffer backing this node, whether
// imported or already materialized by the compiler.
func (b Backing) ResolvedBuffer() (device.Buffer, bool) {
	if buf, ok := b.Materialized.(device.Buffer); ok {
		return buf, true
	}
	buf, ok := b.Imported.(device.Buffer)
	return buf, ok
}

// ResolvedTexture returns the concrete texture backing this node, whether
// imported or already materialized by the compiler.
func (b Backing) ResolvedTexture() (device.Texture, bool) {
	if tex, ok := b.Materialized.(device.Texture); ok {
		return tex, true
	}
	tex, ok := b.Imported.(device.Texture)
	return tex, ok
}

// ResolvedSampler returns the concrete sampler backing this node, whether
// imported or already materialized by the compiler.
func (b Backing) ResolvedSampler() (device.Sampler, bool) {
	if s, ok := b.Materialized.(device.Sampler); ok {
		return s, true
	}
	s, ok := b.Imported.(device.Sampler)
	return s, ok
}

// BufferUsage returns the usage flags that apply to this node, whether it
// was created (from BufferDesc) or imported (from ImportedBufferUsage).
func (b Backing) BufferUsage() device.BufferUsage {
	if b.BufferDesc != nil {
		return b.BufferDesc.Usage
	}
	return b.ImportedBufferUsage
}

// TextureUsage returns the usage flags that apply to this node, whether it
// was created (from TextureDesc) or imported (from ImportedTextureUsage).
func (b Backing) TextureUsage() device.TextureUsage {
	if b.TextureDesc != nil {
		return b.TextureDesc.Usage
	}
	return b.ImportedTextureUsage
}

// Node is one version of one underlying resource.
type Node struct {
	Handle      handle.Handle
	Kind        handle.Kind
	Name        string
	Backing     Backing
	Version     int
	PrevVersion handle.Handle // handle.Zero if this is version 0
	NextVersion handle.Handle // handle.Zero if this is the newest version
	Writer      handle.Handle // pass handle, handle.Zero if none
	Readers     []handle.Handle
	MoveTarget  handle.Handle // handle.Zero unless this version is aliased away
}

func (n *Node) IsNewest() bool { return !n.NextVersion.Valid() }

// Table is the versioned resource node arena for one frame.
type Table struct {
	reg     *handle.Registry
	nodes   []Node
	indexOf map[uint32]int

	// underlying tracks, per imported resource identity, the handle of its
	// version-0 node, so a second Import of the same resource is idempotent.
	underlying map[any]handle.Handle
}

// NewTable creates an empty resource table backed by reg.
func NewTable(reg *handle.Registry) *Table {
	return &Table{reg: reg, indexOf: make(map[uint32]int), underlying: make(map[any]handle.Handle)}
}

func (t *Table) append(n Node) {
	t.indexOf[n.Handle.Index] = len(t.nodes)
	t.nodes = append(t.nodes, n)
}

// Import registers an externally-owned resource, returning the existing
// handle if the same resource was already imported this frame (idempotent).
// usage records the usage flags the resource was created with outside the
// graph, so later reads/writes can still be validated against them even
// though Imported itself is an opaque device handle.
func (t *Table) Import(kind handle.Kind, resource any, usage Backing, name string) (handle.Handle, error) {
	if h, ok := t.underlying[resource]; ok {
		if name != "" {
			if err := t.reg.Bind(name, h); err != nil {
				return handle.Zero, err
			}
		}
		return h, nil
	}

	usage.Imported = resource
	h := t.reg.Mint(kind)
	if err := t.reg.Bind(name, h); err != nil {
		t.reg.Retire(h)
		return handle.Zero, err
	}
	t.append(Node{
		Handle:  h,
		Kind:    kind,
		Name:    name,
		Backing: usage,
	})
	t.underlying[resource] = h
	return h, nil
}

// Create allocates a resource node bound to a description the compiler
// will later materialize.
func (t *Table) Create(kind handle.Kind, backing Backing, name string) (handle.Handle, error) {
	h := t.reg.Mint(kind)
	if err := t.reg.Bind(name, h); err != nil {
		t.reg.Retire(h)
		return handle.Zero, err
	}
	t.append(Node{Handle: h, Kind: kind, Name: name, Backing: backing})
	return h, nil
}

// MoveFrom creates a new resource node sharing src's underlying identity,
// linked by a move edge. Version numbering continues through the move: the
// new node's version is src's version + 1, and it inherits src's backing
// for materialization purposes. wantKind must match src's kind or
// InvalidHandle is returned.
func (t *Table) MoveFrom(src handle.Handle, wantKind handle.Kind, name string) (handle.Handle, error) {
	srcNode, err := t.get(src, wantKind)
	if err != nil {
		return handle.Zero, err
	}
	if !srcNode.IsNewest() {
		return handle.Zero, rgerrors.New(rgerrors.OldVersionWrite, "move_from references a non-newest version of %q", srcNode.Name)
	}

	h := t.reg.Mint(srcNode.Kind)
	if err := t.reg.Bind(name, h); err != nil {
		t.reg.Retire(h)
		return handle.Zero, err
	}
	t.append(Node{
		Handle:      h,
		Kind:        srcNode.Kind,
		Name:        name,
		Backing:     srcNode.Backing,
		Version:     srcNode.Version + 1,
		PrevVersion: src,
	})
	// Re-fetch srcNode's slot: t.nodes may have reallocated above.
	idx := t.index(src)
	t.nodes[idx].NextVersion = h
	t.nodes[idx].MoveTarget = h
	return h, nil
}

// Write mints a new version of the resource identified by h, whose writer
// is the given pass. h must identify the newest version of a node of
// wantKind, or OldVersionWrite/InvalidHandle is returned.
func (t *Table) Write(h handle.Handle, wantKind handle.Kind, writer handle.Handle) (handle.Handle, error) {
	n, err := t.get(h, wantKind)
	if err != nil {
		return handle.Zero, err
	}
	if !n.IsNewest() {
		return handle.Zero, rgerrors.New(rgerrors.OldVersionWrite, "write targets non-newest version of %q (version %d)", n.Name, n.Version)
	}

	newH := t.reg.Mint(n.Kind)
	t.append(Node{
		Handle:      newH,
		Kind:        n.Kind,
		Name:        n.Name,
		Backing:     n.Backing,
		Version:     n.Version + 1,
		PrevVersion: h,
		Writer:      writer,
	})
	idx := t.index(h)
	t.nodes[idx].NextVersion = newH
	return newH, nil
}

// SetMaterialized stores obj as the backing object the compiler allocated
// for a Create()-d node, once its description has been handed to the
// device. It is a no-op error to call on a handle with no node.
func (t *Table) SetMaterialized(h handle.Handle, obj any) error {
	idx, err := t.indexChecked(h, h.Kind)
	if err != nil {
		return err
	}
	t.nodes[idx].Backing.Materialized = obj
	return nil
}

// AddReader records that pass reads the version identified by h, which
// must resolve to a node of wantKind.
func (t *Table) AddReader(h handle.Handle, wantKind handle.Kind, pass handle.Handle) error {
	idx, err := t.indexChecked(h, wantKind)
	if err != nil {
		return err
	}
	t.nodes[idx].Readers = append(t.nodes[idx].Readers, pass)
	return nil
}

// Get returns a copy of the node for h, which must resolve to wantKind.
func (t *Table) Get(h handle.Handle, wantKind handle.Kind) (Node, error) { return t.get(h, wantKind) }

// All returns every node currently in the table, in creation order.
func (t *Table) All() []Node { return t.nodes }

func (t *Table) get(h handle.Handle, wantKind handle.Kind) (Node, error) {
	idx, err := t.indexChecked(h, wantKind)
	if err != nil {
		return Node{}, err
	}
	return t.nodes[idx], nil
}

func (t *Table) indexChecked(h handle.Handle, wantKind handle.Kind) (int, error) {
	if err := t.reg.Resolve(h, wantKind); err != nil {
		return 0, err
	}
	idx := t.index(h)
	if idx < 0 {
		return 0, rgerrors.New(rgerrors.InvalidHandle, "handle %d has no resource node", h.Index)
	}
	return idx, nil
}

func (t *Table) index(h handle.Handle) int {
	if i, ok := t.indexOf[h.Index]; ok {
		return i
	}
	return -1
}

// Reset clears the table for the next frame.
func (t *Table) Reset() {
	t.nodes = t.nodes[:0]
	for k := range t.indexOf {
		delete(t.indexOf, k)
	}
	for k := range t.underlying {
		delete(t.underlying, k)
	}
}
