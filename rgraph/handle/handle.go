// Package handle implements the opaque handle and type registry. A Handle
// is an index into some node table, tagged with the kind of node it
// addresses so that a mismatched lookup is a reported error rather than a
// crash — the same "tagged index, never an owning reference" idiom the
// teacher uses for GPU resource caches (engine/renderer/renderer.go's
// pipelineCache keyed lookups), generalized here to an arena of kinds
// sharing one invalid sentinel.
package handle

import "github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"

// Kind tags the variant of node a Handle addresses.
type Kind int

const (
	KindGPUBuffer Kind = iota
	KindTexture
	KindSampler
	KindRenderPipeline
	KindComputePipeline
	KindRenderPass
	KindComputePass
	KindCopyPass
	KindPresentPass
)

func (k Kind) String() string {
	switch k {
	case KindGPUBuffer:
		return "GPUBuffer"
	case KindTexture:
		return "Texture"
	case KindSampler:
		return "Sampler"
	case KindRenderPipeline:
		return "RenderPipeline"
	case KindComputePipeline:
		return "ComputePipeline"
	case KindRenderPass:
		return "RenderPass"
	case KindComputePass:
		return "ComputePass"
	case KindCopyPass:
		return "CopyPass"
	case KindPresentPass:
		return "PresentPass"
	default:
		return "Unknown"
	}
}

// IsPassKind reports whether k identifies a pass node rather than a resource node.
func (k Kind) IsPassKind() bool {
	switch k {
	case KindRenderPass, KindComputePass, KindCopyPass, KindPresentPass:
		return true
	}
	return false
}

// Invalid is the reserved index denoting "no handle". Index 0 is never
// minted, so the zero value of Handle is invalid.
const Invalid = uint32(0)

// Handle is an opaque, frame-scoped reference to a node in some table.
// Equality is index-equality within a Kind; a Handle is meaningless once
// the frame that minted it has been reset.
type Handle struct {
	Kind  Kind
	Index uint32
}

// Valid reports whether h addresses a live index (it does not by itself
// prove the index still exists in the owning table — see Registry.Resolve).
func (h Handle) Valid() bool { return h.Index != Invalid }

// Zero is the invalid handle returned by fallible constructors; it equals
// the zero value of Handle.
var Zero = Handle{Index: Invalid}

// node is the back-pointer a Registry stores for one minted handle.
type node struct {
	kind  Kind
	alive bool
}

// Registry mints handles and resolves them back to their kind, and keeps a
// per-kind name blackboard. It does not own the node data itself —
// resource/pass tables keep their own parallel slices indexed by
// Handle.Index — it only tracks kind, liveness, and naming.
type Registry struct {
	nodes      []node
	blackboard map[Kind]map[string]Handle
}

// New creates an empty Registry.
func New() *Registry {
	// Slot 0 is a placeholder reserving index Invalid.
	return &Registry{nodes: make([]node, 1), blackboard: make(map[Kind]map[string]Handle)}
}

// Mint allocates a new handle of the given kind.
func (r *Registry) Mint(kind Kind) Handle {
	idx := uint32(len(r.nodes))
	r.nodes = append(r.nodes, node{kind: kind, alive: true})
	return Handle{Kind: kind, Index: idx}
}

// Resolve validates that h refers to a live node of the expected kind. It
// never panics; an invalid or mismatched handle is reported through
// rgerrors.InvalidHandle.
func (r *Registry) Resolve(h Handle, want Kind) error {
	if !h.Valid() || int(h.Index) >= len(r.nodes) {
		return rgerrors.New(rgerrors.InvalidHandle, "handle index %d out of range", h.Index)
	}
	n := r.nodes[h.Index]
	if !n.alive {
		return rgerrors.New(rgerrors.InvalidHandle, "handle %d has been retired", h.Index)
	}
	if n.kind != want {
		return rgerrors.New(rgerrors.InvalidHandle, "handle %d is kind %s, want %s", h.Index, n.kind, want)
	}
	return nil
}

// Retire marks a handle's index as no longer live. Indices are never
// reused within a frame; the table that owns the data is responsible for
// actually releasing it (see rgraph/retire).
func (r *Registry) Retire(h Handle) {
	if int(h.Index) < len(r.nodes) {
		r.nodes[h.Index].alive = false
	}
}

// Bind registers name -> h in the blackboard for h's kind. An empty name
// is a no-op (names are optional). A collision is reported as
// rgerrors.NameCollision and the previous binding is left untouched.
func (r *Registry) Bind(name string, h Handle) error {
	if name == "" {
		return nil
	}
	m, ok := r.blackboard[h.Kind]
	if !ok {
		m = make(map[string]Handle)
		r.blackboard[h.Kind] = m
	}
	if existing, ok := m[name]; ok {
		return rgerrors.New(rgerrors.NameCollision, "name %q already bound to handle %d for kind %s", name, existing.Index, h.Kind)
	}
	m[name] = h
	return nil
}

// Lookup retrieves a handle previously bound under name for kind.
func (r *Registry) Lookup(kind Kind, name string) (Handle, bool) {
	m, ok := r.blackboard[kind]
	if !ok {
		return Zero, false
	}
	h, ok := m[name]
	return h, ok
}

// Reset clears the registry for the next frame.
func (r *Registry) Reset() {
	r.nodes = r.nodes[:1]
	for k := range r.blackboard {
		delete(r.blackboard, k)
	}
}
