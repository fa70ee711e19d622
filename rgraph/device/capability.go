package device

import "context"

// BufferBarrier and TextureBarrier are synchronization records mapping
// (src_access, src_stage[, src_layout]) to (dst_access, dst_stage[, dst_layout])
// for one resource.
type BufferBarrier struct {
	Buffer    Buffer
	SrcAccess Access
	SrcStage  Stage
	DstAccess Access
	DstStage  Stage
}

type TextureBarrier struct {
	Texture   Texture
	Layer     int
	SrcAccess Access
	SrcStage  Stage
	SrcLayout Layout
	DstAccess Access
	DstStage  Stage
	DstLayout Layout
}

// Fence is a monotonically increasing timeline counter signalled by a
// queue submission. Waiting on a fence value blocks the caller thread
// until the queue has reached at least that value.
type Fence interface {
	// Value returns the last value this fence has reached.
	Value() uint64

	// Wait blocks until the fence reaches at least value, or ctx is done.
	Wait(ctx context.Context, value uint64) error
}

// Buffer, Texture, Sampler, RenderPipeline and ComputePipeline are opaque
// backend resources created through Device. The graph never inspects
// their contents; it only threads them through barriers and the
// resource-helper view passed to executor closures.
type Buffer interface{ Destroy() }
type Texture interface{ Destroy() }
type Sampler interface{ Destroy() }
type RenderPipeline interface{ Destroy() }
type ComputePipeline interface{ Destroy() }

// BindlessSlot is an opaque descriptor-heap index (glossary "Bindless handle").
type BindlessSlot uint32

// BindlessAllocator creates and discards bindless descriptor handles.
// Creation and discard are cheap, frequent operations performed once per
// pass per edge at execute time.
type BindlessAllocator interface {
	// CreateBufferHandle creates a descriptor for one element of a buffer.
	CreateBufferHandle(buf Buffer, elementIndex int, write bool) (BindlessSlot, error)

	// CreateTextureHandle creates a descriptor for a texture (SRV or UAV).
	CreateTextureHandle(tex Texture, layer int, write bool) (BindlessSlot, error)

	// CreateSamplerHandle creates a descriptor for a sampler.
	CreateSamplerHandle(s Sampler) (BindlessSlot, error)

	// DiscardHandle releases a previously created descriptor slot.
	DiscardHandle(slot BindlessSlot)
}

// CommandContext records GPU commands for a single queue type.
// It is thread-affine to the caller for recording; the backend is free to
// execute the resulting command buffer on internal worker threads.
type CommandContext interface {
	Begin() error
	End() error

	// ResourceBarrier emits the given barriers immediately.
	ResourceBarrier(buffers []BufferBarrier, textures []TextureBarrier)

	// BeginRendering starts a render pass targeting rt (and optionally ds).
	BeginRendering(rt Texture, rtLayer int, clearColor bool, ds Texture, dsLayer int, clearDepth bool)
	EndRendering()

	// CopyTextureToTexture and CopyBufferToBuffer record copy commands
	// (used by Copy passes and the built-in present executor).
	CopyBufferToBuffer(src, dst Buffer, srcOffset, dstOffset, size int64)
	CopyBufferToTexture(src Buffer, dst Texture, dstLayer int)
	CopyTextureToTexture(src Texture, srcLayer int, dst Texture, dstLayer int)
}

// Queue submits recorded command contexts for execution on one queue type.
type Queue interface {
	QueueType() QueueType

	// Submit submits ctxs for execution, waiting on the given (fence, value)
	// pairs before starting, and signalling signalFence at signalValue once
	// the batch completes.
	Submit(ctxs []CommandContext, waits []FenceWait, signalFence Fence, signalValue uint64) error
}

// FenceWait names a fence value a submission must wait for before starting.
type FenceWait struct {
	Fence Fence
	Value uint64
}

// SwapChain is the presentation surface a Present pass targets.
type SwapChain interface {
	// AcquireTextureForRendering returns the back-buffer texture to render into this frame.
	AcquireTextureForRendering() (Texture, error)
}

// Device is the main capability interface the render graph consumes
// abstractly. It is constructor-injected into rgraph.Graph —
// there is no global mutable GPU state at the graph level.
type Device interface {
	// CreateCommandContext allocates a command context for the given queue.
	CreateCommandContext(q QueueType, name string) (CommandContext, error)

	// GetCommandQueue returns the Queue for the given queue type.
	GetCommandQueue(q QueueType) (Queue, error)

	// CreateFence creates a new timeline fence starting at initialValue.
	CreateFence(initialValue uint64, name string) (Fence, error)

	// Bindless returns the device's bindless descriptor allocator.
	Bindless() BindlessAllocator

	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateSampler(desc SamplingDesc) (Sampler, error)

	// WaitIdle blocks until all queues have drained. rgraph.Graph calls it
	// only from its own WaitIdle, on teardown; frame-state re-use waits on
	// the per-queue fences instead.
	WaitIdle(ctx context.Context) error
}
