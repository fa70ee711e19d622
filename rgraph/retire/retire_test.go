package retire

import (
	"testing"

	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
)

func TestDrainStopsAtFirstUnretiredEntry(t *testing.T) {
	dev := device.NewNullDevice()
	fence, err := dev.CreateFence(0, "f")
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	alloc := dev.Bindless()
	s1, _ := alloc.CreateBufferHandle(nil, 0, false)
	s2, _ := alloc.CreateBufferHandle(nil, 0, false)

	fifo := New()
	fifo.Push(fence, 1, []device.BindlessSlot{s1})
	fifo.Push(fence, 2, []device.BindlessSlot{s2})

	if n := fifo.Drain(alloc); n != 0 {
		t.Fatalf("expected no entries retired before the fence advances, got %d", n)
	}
	if fifo.Pending() != 2 {
		t.Fatalf("expected 2 pending entries, got %d", fifo.Pending())
	}

	q, err := dev.GetCommandQueue(device.QueueGraphics)
	if err != nil {
		t.Fatalf("GetCommandQueue: %v", err)
	}
	if err := q.Submit(nil, nil, fence, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if n := fifo.Drain(alloc); n != 1 {
		t.Fatalf("expected exactly one entry to retire at fence value 1, got %d", n)
	}
	if fifo.Pending() != 1 {
		t.Fatalf("expected 1 pending entry remaining, got %d", fifo.Pending())
	}
}

func TestPushWithNoSlotsIsANoop(t *testing.T) {
	dev := device.NewNullDevice()
	fence, _ := dev.CreateFence(0, "f")
	fifo := New()
	fifo.Push(fence, 1, nil)
	if fifo.Pending() != 0 {
		t.Fatalf("expected pushing zero slots to enqueue nothing, got %d pending", fifo.Pending())
	}
}
