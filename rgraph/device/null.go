package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// NullDevice is an in-memory Device with no real GPU behind it. It records
// every operation it performs so tests can assert on barrier order,
// submission order, and wait lists without a live backend — the same role
// the teacher's RendererBackend interface plays relative to
// wgpuRendererBackendImpl: graph-level code is written against Device and
// never against *WGPUDevice directly, so NullDevice is a drop-in stand-in.
type NullDevice struct {
	mu  sync.Mutex
	Log []string

	queues [NumQueueTypes]*nullQueue
}

// NewNullDevice creates a ready-to-use NullDevice.
func NewNullDevice() *NullDevice {
	d := &NullDevice{}
	for qt := 0; qt < NumQueueTypes; qt++ {
		d.queues[qt] = &nullQueue{device: d, qtype: QueueType(qt)}
	}
	return d
}

func (d *NullDevice) record(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Log = append(d.Log, fmt.Sprintf(format, args...))
}

func (d *NullDevice) CreateCommandContext(q QueueType, name string) (CommandContext, error) {
	d.record("create-context %s %s", q, name)
	return &nullCommandContext{device: d, queue: q, name: name}, nil
}

func (d *NullDevice) GetCommandQueue(q QueueType) (Queue, error) {
	if int(q) < 0 || int(q) >= NumQueueTypes {
		return nil, fmt.Errorf("unknown queue type %d", q)
	}
	return d.queues[q], nil
}

func (d *NullDevice) CreateFence(initialValue uint64, name string) (Fence, error) {
	f := &nullFence{name: name}
	f.value.Store(initialValue)
	return f, nil
}

func (d *NullDevice) Bindless() BindlessAllocator { return &nullBindless{device: d} }

func (d *NullDevice) CreateBuffer(desc BufferDesc) (Buffer, error) {
	d.record("create-buffer %s", desc.Name)
	return &nullBuffer{name: desc.Name}, nil
}

func (d *NullDevice) CreateTexture(desc TextureDesc) (Texture, error) {
	d.record("create-texture %s", desc.Name)
	return &nullTexture{name: desc.Name}, nil
}

func (d *NullDevice) CreateSampler(desc SamplingDesc) (Sampler, error) {
	d.record("create-sampler %s", desc.Name)
	return &nullSampler{name: desc.Name}, nil
}

func (d *NullDevice) WaitIdle(ctx context.Context) error {
	d.record("wait-idle")
	return ctx.Err()
}

type nullQueue struct {
	device *NullDevice
	qtype  QueueType
}

func (q *nullQueue) QueueType() QueueType { return q.qtype }

func (q *nullQueue) Submit(ctxs []CommandContext, waits []FenceWait, signalFence Fence, signalValue uint64) error {
	for _, w := range waits {
		if err := w.Fence.Wait(context.Background(), w.Value); err != nil {
			return err
		}
	}
	q.device.record("submit %s n=%d waits=%d signal=%d", q.qtype, len(ctxs), len(waits), signalValue)
	if signalFence != nil {
		if f, ok := signalFence.(*nullFence); ok {
			f.value.Store(signalValue)
		}
	}
	return nil
}

type nullFence struct {
	name  string
	value atomic.Uint64
}

func (f *nullFence) Value() uint64 { return f.value.Load() }

func (f *nullFence) Wait(ctx context.Context, target uint64) error {
	// NullDevice submissions complete synchronously, so by the time Wait
	// is called the value has already been stored.
	if f.value.Load() < target {
		return fmt.Errorf("fence %s never reached value %d", f.name, target)
	}
	return ctx.Err()
}

type nullCommandContext struct {
	device  *NullDevice
	queue   QueueType
	name    string
	history []string
}

func (c *nullCommandContext) Begin() error {
	c.history = append(c.history, "begin")
	return nil
}

func (c *nullCommandContext) End() error {
	c.history = append(c.history, "end")
	return nil
}

func (c *nullCommandContext) ResourceBarrier(buffers []BufferBarrier, textures []TextureBarrier) {
	for _, b := range buffers {
		c.history = append(c.history, fmt.Sprintf("barrier-buffer %d->%d", b.SrcAccess, b.DstAccess))
	}
	for _, t := range textures {
		c.history = append(c.history, fmt.Sprintf("barrier-texture %s->%s", t.SrcLayout, t.DstLayout))
	}
}

func (c *nullCommandContext) BeginRendering(rt Texture, rtLayer int, clearColor bool, ds Texture, dsLayer int, clearDepth bool) {
	c.history = append(c.history, "begin-rendering")
}

func (c *nullCommandContext) EndRendering() {
	c.history = append(c.history, "end-rendering")
}

func (c *nullCommandContext) CopyBufferToBuffer(src, dst Buffer, srcOffset, dstOffset, size int64) {
	c.history = append(c.history, "copy-buffer-to-buffer")
}

func (c *nullCommandContext) CopyBufferToTexture(src Buffer, dst Texture, dstLayer int) {
	c.history = append(c.history, "copy-buffer-to-texture")
}

func (c *nullCommandContext) CopyTextureToTexture(src Texture, srcLayer int, dst Texture, dstLayer int) {
	c.history = append(c.history, "copy-texture-to-texture")
}

// History returns the recorded command sequence, for test assertions.
func (c *nullCommandContext) History() []string { return c.history }

type nullBuffer struct{ name string }

func (b *nullBuffer) Destroy() {}

type nullTexture struct{ name string }

func (t *nullTexture) Destroy() {}

type nullSampler struct{ name string }

func (s *nullSampler) Destroy() {}

type nullBindless struct {
	device *NullDevice
	next   atomic.Uint32
}

func (b *nullBindless) CreateBufferHandle(buf Buffer, elementIndex int, write bool) (BindlessSlot, error) {
	b.device.record("bindless-create-buffer elem=%d write=%v", elementIndex, write)
	return BindlessSlot(b.next.Add(1)), nil
}

func (b *nullBindless) CreateTextureHandle(tex Texture, layer int, write bool) (BindlessSlot, error) {
	b.device.record("bindless-create-texture layer=%d write=%v", layer, write)
	return BindlessSlot(b.next.Add(1)), nil
}

func (b *nullBindless) CreateSamplerHandle(s Sampler) (BindlessSlot, error) {
	b.device.record("bindless-create-sampler")
	return BindlessSlot(b.next.Add(1)), nil
}

func (b *nullBindless) DiscardHandle(slot BindlessSlot) {
	b.device.record("bindless-discard %d", slot)
}

// NullSwapChain is a fake swap chain backed by a single reusable texture.
type NullSwapChain struct {
	Texture Texture
}

func (s *NullSwapChain) AcquireTextureForRendering() (Texture, error) {
	if s.Texture == nil {
		s.Texture = &nullTexture{name: "swapchain"}
	}
	return s.Texture, nil
}
