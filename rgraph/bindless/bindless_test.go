package bindless

import (
	"testing"

	"github.com/Carmen-Shannon/rendergraph/rgraph/builder"
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
)

func noop(pass.ResourceHelper, device.CommandContext) error { return nil }

// nullTexture and nullBuffer return device objects to import, since
// CreateForPass resolves every shader-visible edge to its concrete backing.
func nullTexture(name string) device.Texture {
	tex, _ := device.NewNullDevice().CreateTexture(device.TextureDesc{Name: name})
	return tex
}

func nullBuffer(name string) device.Buffer {
	buf, _ := device.NewNullDevice().CreateBuffer(device.BufferDesc{Name: name})
	return buf
}

func TestCreateForPassSkipsVertexButCreatesConstant(t *testing.T) {
	reg := handle.New()
	resources := resource.NewTable(reg)
	passes := pass.NewTable(reg)

	rt, _ := resources.Import(handle.KindTexture, "rt", resource.Backing{ImportedTextureUsage: device.TextureUsageRenderTarget}, "RT")
	vb, _ := resources.Import(handle.KindGPUBuffer, "vb", resource.Backing{ImportedBufferUsage: device.BufferUsageVertex}, "VB")
	cb, _ := resources.Import(handle.KindGPUBuffer, nullBuffer("cb"), resource.Backing{ImportedBufferUsage: device.BufferUsageConstant}, "CB")
	pl, _ := resources.Import(handle.KindRenderPipeline, "pl", resource.Backing{}, "PL")

	h := builder.NewRender(resources, passes, "tri").
		SetRenderTarget(rt, true, 0).
		ReadAsVertices(vb).
		Read(cb, device.StagePixelShader).
		AddPipeline(pl).
		SetExecutor(noop).
		Finish()
	if !h.Valid() {
		t.Fatalf("expected a valid pass handle")
	}

	dev := device.NewNullDevice()
	n, err := passes.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	created, err := CreateForPass(dev.Bindless(), resources, &n)
	if err != nil {
		t.Fatalf("CreateForPass: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected exactly one descriptor (the constant buffer read), got %d", len(created))
	}
	if len(n.BufferEdges[vb].BindlessSlots) != 0 {
		t.Fatalf("expected the vertex buffer edge to get no bindless slot")
	}
	if len(n.BufferEdges[cb].BindlessSlots) != 1 {
		t.Fatalf("expected the constant buffer edge to get exactly one bindless slot")
	}
}

func TestCreateForPassSkipsRenderTargetButCreatesSRV(t *testing.T) {
	reg := handle.New()
	resources := resource.NewTable(reg)
	passes := pass.NewTable(reg)

	rt, _ := resources.Import(handle.KindTexture, "rt", resource.Backing{ImportedTextureUsage: device.TextureUsageRenderTarget}, "RT")
	srv, _ := resources.Import(handle.KindTexture, nullTexture("srv"), resource.Backing{ImportedTextureUsage: device.TextureUsageSRV}, "SRV")
	pl, _ := resources.Import(handle.KindRenderPipeline, "pl", resource.Backing{}, "PL")

	h := builder.NewRender(resources, passes, "tri").
		SetRenderTarget(rt, true, 0).
		ReadTexture(srv, 0, device.StagePixelShader).
		AddPipeline(pl).
		SetExecutor(noop).
		Finish()
	if !h.Valid() {
		t.Fatalf("expected a valid pass handle")
	}

	dev := device.NewNullDevice()
	n, err := passes.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	created, err := CreateForPass(dev.Bindless(), resources, &n)
	if err != nil {
		t.Fatalf("CreateForPass: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected exactly one descriptor (the SRV sample), got %d", len(created))
	}
	if n.TextureEdges[srv].BindlessSlot == 0 {
		t.Fatalf("expected the SRV edge to get a nonzero bindless slot")
	}
}
