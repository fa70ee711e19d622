package barrier

import (
	"testing"

	"github.com/Carmen-Shannon/rendergraph/rgraph/builder"
	"github.com/Carmen-Shannon/rendergraph/rgraph/compiler"
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
)

func newTables() (*handle.Registry, *resource.Table, *pass.Table) {
	reg := handle.New()
	return reg, resource.NewTable(reg), pass.NewTable(reg)
}

func noop(pass.ResourceHelper, device.CommandContext) error { return nil }

// nullTexture and nullBuffer return device objects to import, since Infer
// resolves every edge to its concrete backing.
func nullTexture(name string) device.Texture {
	tex, _ := device.NewNullDevice().CreateTexture(device.TextureDesc{Name: name})
	return tex
}

func nullBuffer(name string) device.Buffer {
	buf, _ := device.NewNullDevice().CreateBuffer(device.BufferDesc{Name: name})
	return buf
}

func TestInferTriangleThenPresentBarriers(t *testing.T) {
	_, resources, passes := newTables()
	rt, _ := resources.Import(handle.KindTexture, nullTexture("rt"), resource.Backing{ImportedTextureUsage: device.TextureUsageRenderTarget | device.TextureUsageCopySrc}, "RT")
	pl, _ := resources.Import(handle.KindRenderPipeline, "pl", resource.Backing{}, "PL")
	sc := &device.NullSwapChain{}

	tri := builder.NewRender(resources, passes, "triangle").
		SetRenderTarget(rt, true, 0).
		AddPipeline(pl).
		SetExecutor(noop).
		Finish()
	triNode, _ := passes.Get(tri)
	writtenRT := triNode.Render.RenderTarget

	present := builder.NewPresent(resources, passes, "present").From(writtenRT, 0).SetSwapChain(sc).Finish()

	dev := device.NewNullDevice()
	plan, err := compiler.Compile(dev, resources, passes, present)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := Infer(plan, resources, passes); err != nil {
		t.Fatalf("Infer: %v", err)
	}

	triAfter, err := passes.Get(tri)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(triAfter.TextureBarriers) != 1 {
		t.Fatalf("expected exactly one texture barrier on the triangle pass, got %d", len(triAfter.TextureBarriers))
	}
	rtb := triAfter.TextureBarriers[0]
	if rtb.SrcAccess != device.AccessNone || rtb.SrcLayout != device.LayoutCommon {
		t.Fatalf("expected the first write of an imported texture to have an idle src state, got %+v", rtb)
	}
	if rtb.DstAccess != device.AccessRenderTarget || rtb.DstLayout != device.LayoutRenderTarget {
		t.Fatalf("expected the render-target write's dst state, got %+v", rtb)
	}

	presentAfter, err := passes.Get(present)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(presentAfter.TextureBarriers) != 1 {
		t.Fatalf("expected exactly one texture barrier on the present pass, got %d", len(presentAfter.TextureBarriers))
	}
	pb := presentAfter.TextureBarriers[0]
	if pb.SrcAccess != device.AccessRenderTarget || pb.SrcLayout != device.LayoutRenderTarget {
		t.Fatalf("expected present's src state to match the triangle pass's dst state, got %+v", pb)
	}
	if pb.DstAccess != device.AccessCopySrc || pb.DstLayout != device.LayoutCopySrc {
		t.Fatalf("expected present's dst state to be a copy-source read, got %+v", pb)
	}
}

func TestInferFirstConstantReadIsNotElided(t *testing.T) {
	_, resources, passes := newTables()
	cb, _ := resources.Import(handle.KindGPUBuffer, nullBuffer("cb"), resource.Backing{ImportedBufferUsage: device.BufferUsageConstant}, "CB")
	rt, _ := resources.Import(handle.KindTexture, nullTexture("rt"), resource.Backing{ImportedTextureUsage: device.TextureUsageRenderTarget | device.TextureUsageCopySrc}, "RT")
	pl, _ := resources.Import(handle.KindRenderPipeline, "pl", resource.Backing{}, "PL")
	sc := &device.NullSwapChain{}

	tri := builder.NewRender(resources, passes, "triangle").
		SetRenderTarget(rt, true, 0).
		Read(cb, device.StagePixelShader).
		AddPipeline(pl).
		SetExecutor(noop).
		Finish()
	triNode, _ := passes.Get(tri)
	present := builder.NewPresent(resources, passes, "present").From(triNode.Render.RenderTarget, 0).SetSwapChain(sc).Finish()

	dev := device.NewNullDevice()
	plan, err := compiler.Compile(dev, resources, passes, present)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := Infer(plan, resources, passes); err != nil {
		t.Fatalf("Infer: %v", err)
	}

	triAfter, _ := passes.Get(tri)
	// A never-written constant buffer's idle state (AccessNone/StageNone)
	// never equals AccessConstant/StagePixelShader, so redundancy
	// elimination must keep this barrier: it only fires when src
	// genuinely equals dst.
	if len(triAfter.BufferBarriers) != 1 {
		t.Fatalf("expected one buffer barrier for the first constant-buffer read, got %d", len(triAfter.BufferBarriers))
	}
}

func TestInferCopyQueueBackendCompatibilityRewrite(t *testing.T) {
	_, resources, passes := newTables()
	rt, _ := resources.Import(handle.KindTexture, nullTexture("rt"), resource.Backing{ImportedTextureUsage: device.TextureUsageRenderTarget | device.TextureUsageCopySrc}, "RT")
	dst, _ := resources.Import(handle.KindTexture, nullTexture("dst"), resource.Backing{ImportedTextureUsage: device.TextureUsageCopyDst}, "DST")
	pl, _ := resources.Import(handle.KindRenderPipeline, "pl", resource.Backing{}, "PL")

	tri := builder.NewRender(resources, passes, "triangle").
		SetRenderTarget(rt, true, 0).
		AddPipeline(pl).
		SetExecutor(noop).
		Finish()
	triNode, _ := passes.Get(tri)
	writtenRT := triNode.Render.RenderTarget

	cp := builder.NewCopy(resources, passes, "readback")
	_, newDst := cp.TextureToTexture(writtenRT, 0, dst, 0)
	cp.SideEffect().SetExecutor(noop)
	copyPass := cp.Finish()
	_ = newDst

	dev := device.NewNullDevice()
	plan, err := compiler.Compile(dev, resources, passes, copyPass)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := Infer(plan, resources, passes); err != nil {
		t.Fatalf("Infer: %v", err)
	}

	copyAfter, err := passes.Get(copyPass)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var srcBarrier, dstBarrier *device.TextureBarrier
	for i := range copyAfter.TextureBarriers {
		b := &copyAfter.TextureBarriers[i]
		if b.Texture != nil && b.DstAccess == device.AccessCopySrc {
			srcBarrier = b
		}
		if b.DstAccess == device.AccessCopyDst {
			dstBarrier = b
		}
	}
	if srcBarrier == nil {
		t.Fatalf("expected a CopySrc-targeting barrier on the copy pass, got %+v", copyAfter.TextureBarriers)
	}
	// The producer (the triangle pass) left the texture in
	// AccessRenderTarget/LayoutRenderTarget, neither a Copy access nor
	// "common", so the copy-queue rewrite must normalize src to
	// none/unknown rather than leaving it at RenderTarget or collapsing
	// it to "common".
	if srcBarrier.SrcAccess != device.AccessNone || srcBarrier.SrcStage != device.StageNone {
		t.Fatalf("expected src access/stage normalized to none on the copy queue, got %+v", srcBarrier)
	}
	if srcBarrier.SrcLayout != device.LayoutUnknown {
		t.Fatalf("expected a non-common src layout to be rewritten to unknown on the copy queue, got %+v", srcBarrier)
	}
	if srcBarrier.DstLayout != device.LayoutCommon {
		t.Fatalf("expected the dst layout to be unconditionally forced to common on the copy queue, got %+v", srcBarrier)
	}

	if dstBarrier == nil {
		t.Fatalf("expected a CopyDst-targeting barrier on the copy pass, got %+v", copyAfter.TextureBarriers)
	}
	if dstBarrier.DstLayout != device.LayoutCommon {
		t.Fatalf("expected the copy destination's own dst layout to also be forced to common, got %+v", dstBarrier)
	}
}
