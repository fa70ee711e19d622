// Package retire implements the frame-resource retirement FIFO: bindless
// descriptors created for a pass stay alive until that pass's submission
// fence has actually reached the value it was signalled at, mirroring the
// teardown the teacher's wgpu_renderer_backend.go performs once a frame's
// in-flight fence is known to have completed, generalized here to
// per-pass (rather than per-frame) granularity.
package retire

import "github.com/Carmen-Shannon/rendergraph/rgraph/device"

// Entry is one batch of bindless slots awaiting retirement, tagged with
// the (fence, value) pair that must be reached before they can be
// discarded.
type Entry struct {
	Fence device.Fence
	Value uint64
	Slots []device.BindlessSlot
}

// FIFO is a strict queue: entries are pushed in submission order and only
// ever drained from the head, since fence values within one fence are
// non-decreasing and a later entry can never retire before an earlier one
// on the same fence.
type FIFO struct {
	entries []Entry
}

// New creates an empty retirement FIFO.
func New() *FIFO { return &FIFO{} }

// Push enqueues slots to be discarded once fence reaches value.
func (f *FIFO) Push(fence device.Fence, value uint64, slots []device.BindlessSlot) {
	if len(slots) == 0 {
		return
	}
	f.entries = append(f.entries, Entry{Fence: fence, Value: value, Slots: slots})
}

// Drain discards every head entry whose fence has reached its recorded
// value, stopping at the first entry that has not, and returns how many
// entries were retired.
func (f *FIFO) Drain(alloc device.BindlessAllocator) int {
	n := 0
	for len(f.entries) > 0 {
		head := f.entries[0]
		if head.Fence.Value() < head.Value {
			break
		}
		for _, s := range head.Slots {
			alloc.DiscardHandle(s)
		}
		f.entries = f.entries[1:]
		n++
	}
	return n
}

// Pending returns the number of entries still awaiting retirement.
func (f *FIFO) Pending() int { return len(f.entries) }
