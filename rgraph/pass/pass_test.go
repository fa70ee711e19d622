package pass

import (
	"testing"

	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
)

func TestMintBindsNameAndQueueType(t *testing.T) {
	reg := handle.New()
	table := NewTable(reg)

	h, err := table.Mint("shadow", KindCompute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	n, err := table.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n.Name != "shadow" {
		t.Fatalf("expected name %q, got %q", "shadow", n.Name)
	}
	if n.QueueType != KindCompute.QueueType() {
		t.Fatalf("expected queue type %v, got %v", KindCompute.QueueType(), n.QueueType)
	}
	if n.Finished {
		t.Fatalf("freshly minted pass must not be finished")
	}
}

func TestMintRejectsDuplicateName(t *testing.T) {
	reg := handle.New()
	table := NewTable(reg)

	if _, err := table.Mint("gbuffer", KindRender); err != nil {
		t.Fatalf("first Mint: %v", err)
	}
	_, err := table.Mint("gbuffer", KindRender)
	kind, ok := rgerrors.KindOf(err)
	if !ok || kind != rgerrors.NameCollision {
		t.Fatalf("expected NameCollision, got %v", err)
	}
}

func TestMutableAllowsEditingUntilFinished(t *testing.T) {
	reg := handle.New()
	table := NewTable(reg)
	h, _ := table.Mint("gbuffer", KindRender)

	n, err := table.Mutable(h)
	if err != nil {
		t.Fatalf("Mutable: %v", err)
	}
	n.SideEffect = true

	got, err := table.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.SideEffect {
		t.Fatalf("expected SideEffect to be set through the Mutable pointer")
	}
}

func TestFinishLatchesNodeImmutable(t *testing.T) {
	reg := handle.New()
	table := NewTable(reg)
	h, _ := table.Mint("gbuffer", KindRender)

	if err := table.Finish(h); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	got, err := table.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Finished {
		t.Fatalf("expected node to be marked finished")
	}

	if _, err := table.Mutable(h); err == nil {
		t.Fatalf("expected Mutable on a finished pass to fail")
	}
	if err := table.Finish(h); err == nil {
		t.Fatalf("expected Finish on an already-finished pass to fail")
	}
}

func TestGetUnknownHandleIsInvalid(t *testing.T) {
	reg := handle.New()
	table := NewTable(reg)

	bogus := handle.Handle{Kind: handle.KindRenderPass, Index: 42}
	_, err := table.Get(bogus)
	kind, ok := rgerrors.KindOf(err)
	if !ok || kind != rgerrors.InvalidHandle {
		t.Fatalf("expected InvalidHandle, got %v", err)
	}
}

func TestSetBarriersInstallsBothLists(t *testing.T) {
	reg := handle.New()
	table := NewTable(reg)
	h, _ := table.Mint("copy", KindCopy)

	if err := table.SetBarriers(h, nil, nil); err != nil {
		t.Fatalf("SetBarriers: %v", err)
	}
	got, _ := table.Get(h)
	if got.BufferBarriers != nil || got.TextureBarriers != nil {
		t.Fatalf("expected nil barrier lists to round-trip as nil")
	}
}

func TestResetClearsTable(t *testing.T) {
	reg := handle.New()
	table := NewTable(reg)
	table.Mint("a", KindRender)
	table.Mint("b", KindCompute)

	// A full frame reset clears the registry's name blackboard alongside
	// the table's own node slice; the two are reset together by the
	// per-frame driver, never the table alone.
	table.Reset()
	reg.Reset()

	if len(table.All()) != 0 {
		t.Fatalf("expected empty table after Reset, got %d nodes", len(table.All()))
	}
	if _, err := table.Mint("a", KindRender); err != nil {
		t.Fatalf("expected name reuse to succeed after a full reset: %v", err)
	}
}
