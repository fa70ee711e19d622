package compiler

import (
	"testing"

	"github.com/Carmen-Shannon/rendergraph/rgraph/builder"
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
)

func newTables() (*handle.Registry, *resource.Table, *pass.Table) {
	reg := handle.New()
	return reg, resource.NewTable(reg), pass.NewTable(reg)
}

func noopExecutor(pass.ResourceHelper, device.CommandContext) error { return nil }

func countPasses(layers []Layer) int {
	n := 0
	for _, l := range layers {
		for _, hs := range l.Queues {
			n += len(hs)
		}
	}
	return n
}

func TestCompileEmptyPresentScenario(t *testing.T) {
	_, resources, passes := newTables()
	tex, err := resources.Import(handle.KindTexture, "backbuffer-source", resource.Backing{ImportedTextureUsage: device.TextureUsageCopySrc}, "src")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	sc := &device.NullSwapChain{}
	present := builder.NewPresent(resources, passes, "present").From(tex, 0).SetSwapChain(sc).Finish()
	if !present.Valid() {
		t.Fatalf("expected valid present handle")
	}

	plan, err := Compile(device.NewNullDevice(), resources, passes, present)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if countPasses(plan.Layers) != 1 {
		t.Fatalf("expected exactly the present pass retained, got %d passes across %d layers", countPasses(plan.Layers), len(plan.Layers))
	}
	if plan.Layers[0].Queues[device.QueueGraphics][0] != present {
		t.Fatalf("expected the present pass on the graphics queue in layer 0")
	}
}

func TestCompileTriangleScenario(t *testing.T) {
	_, resources, passes := newTables()
	rt, _ := resources.Import(handle.KindTexture, "rt", resource.Backing{ImportedTextureUsage: device.TextureUsageRenderTarget | device.TextureUsageCopySrc}, "RT")
	vb, _ := resources.Import(handle.KindGPUBuffer, "vb", resource.Backing{ImportedBufferUsage: device.BufferUsageVertex}, "VB")
	pl, _ := resources.Import(handle.KindRenderPipeline, "pl", resource.Backing{}, "PL")
	sc := &device.NullSwapChain{}

	tri := builder.NewRender(resources, passes, "triangle").
		SetRenderTarget(rt, true, 0).
		ReadAsVertices(vb).
		AddPipeline(pl).
		SetExecutor(noopExecutor).
		Finish()
	if !tri.Valid() {
		t.Fatalf("expected valid triangle pass handle")
	}

	// The render target write mints a new version; fetch it back out from
	// the render pass node to feed the present pass's source.
	node, err := passes.Get(tri)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	writtenRT := node.Render.RenderTarget

	present := builder.NewPresent(resources, passes, "present").From(writtenRT, 0).SetSwapChain(sc).Finish()
	if !present.Valid() {
		t.Fatalf("expected valid present handle")
	}

	plan, err := Compile(device.NewNullDevice(), resources, passes, present)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if countPasses(plan.Layers) != 2 {
		t.Fatalf("expected 2 retained passes, got %d", countPasses(plan.Layers))
	}
	if len(plan.Layers) != 2 {
		t.Fatalf("expected 2 layers (triangle then present), got %d", len(plan.Layers))
	}
	if plan.Layers[0].Queues[device.QueueGraphics][0] != tri {
		t.Fatalf("expected the triangle pass in layer 0")
	}
	if plan.Layers[1].Queues[device.QueueGraphics][0] != present {
		t.Fatalf("expected the present pass in layer 1")
	}
}

func TestCompileDeadPassPruning(t *testing.T) {
	_, resources, passes := newTables()
	rt1, _ := resources.Import(handle.KindTexture, "rt1", resource.Backing{ImportedTextureUsage: device.TextureUsageRenderTarget}, "RT1")
	rt2, _ := resources.Import(handle.KindTexture, "rt2", resource.Backing{ImportedTextureUsage: device.TextureUsageRenderTarget | device.TextureUsageCopySrc}, "RT2")
	pl, _ := resources.Import(handle.KindRenderPipeline, "pl", resource.Backing{}, "PL")
	sc := &device.NullSwapChain{}

	dead := builder.NewRender(resources, passes, "dead").
		SetRenderTarget(rt1, true, 0).
		AddPipeline(pl).
		SetExecutor(noopExecutor).
		Finish()
	if !dead.Valid() {
		t.Fatalf("expected valid dead-pass handle")
	}

	alive := builder.NewRender(resources, passes, "alive").
		SetRenderTarget(rt2, true, 0).
		AddPipeline(pl).
		SetExecutor(noopExecutor).
		Finish()
	if !alive.Valid() {
		t.Fatalf("expected valid alive-pass handle")
	}
	aliveNode, err := passes.Get(alive)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	present := builder.NewPresent(resources, passes, "present").From(aliveNode.Render.RenderTarget, 0).SetSwapChain(sc).Finish()
	if !present.Valid() {
		t.Fatalf("expected valid present handle")
	}

	plan, err := Compile(device.NewNullDevice(), resources, passes, present)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, l := range plan.Layers {
		for _, hs := range l.Queues {
			for _, h := range hs {
				if h == dead {
					t.Fatalf("expected the dead pass to be pruned")
				}
			}
		}
	}
	if countPasses(plan.Layers) != 2 {
		t.Fatalf("expected exactly alive + present retained, got %d", countPasses(plan.Layers))
	}
}

func TestCompileMoveAliasScenario(t *testing.T) {
	_, resources, passes := newTables()
	a, _ := resources.Import(handle.KindTexture, "a", resource.Backing{ImportedTextureUsage: device.TextureUsageRenderTarget | device.TextureUsageCopySrc}, "A")
	pl, _ := resources.Import(handle.KindRenderPipeline, "pl", resource.Backing{}, "PL")
	sc := &device.NullSwapChain{}

	producer := builder.NewRender(resources, passes, "producer").
		SetRenderTarget(a, true, 0).
		AddPipeline(pl).
		SetExecutor(noopExecutor).
		Finish()
	producerNode, err := passes.Get(producer)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	writtenA := producerNode.Render.RenderTarget

	b, err := resources.MoveFrom(writtenA, handle.KindTexture, "B")
	if err != nil {
		t.Fatalf("MoveFrom: %v", err)
	}

	present := builder.NewPresent(resources, passes, "present").From(b, 0).SetSwapChain(sc).Finish()
	if !present.Valid() {
		t.Fatalf("expected valid present handle")
	}

	plan, err := Compile(device.NewNullDevice(), resources, passes, present)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if countPasses(plan.Layers) != 2 {
		t.Fatalf("expected producer + present retained through the move alias, got %d", countPasses(plan.Layers))
	}
	if plan.Layers[0].Queues[device.QueueGraphics][0] != producer {
		t.Fatalf("expected the producer resolved as present's dependency through the move")
	}
}

func TestCompileCrossQueueScenario(t *testing.T) {
	_, resources, passes := newTables()
	sb, _ := resources.Import(handle.KindGPUBuffer, "sb", resource.Backing{ImportedBufferUsage: device.BufferUsageStorage | device.BufferUsageConstant}, "SB")
	cp, _ := resources.Import(handle.KindComputePipeline, "cp", resource.Backing{}, "CP")
	rt, _ := resources.Import(handle.KindTexture, "rt", resource.Backing{ImportedTextureUsage: device.TextureUsageRenderTarget | device.TextureUsageCopySrc}, "RT")
	rpl, _ := resources.Import(handle.KindRenderPipeline, "rpl", resource.Backing{}, "RPL")
	sc := &device.NullSwapChain{}

	compute := builder.NewCompute(resources, passes, "compute")
	newSB := compute.WriteStorage(sb, device.StageComputeShader)
	computeH := compute.AddPipeline(cp).SetExecutor(noopExecutor).Finish()
	if !computeH.Valid() {
		t.Fatalf("expected valid compute pass handle")
	}

	render := builder.NewRender(resources, passes, "render").
		SetRenderTarget(rt, true, 0).
		Read(newSB, device.StagePixelShader).
		AddPipeline(rpl).
		SetExecutor(noopExecutor).
		Finish()
	if !render.Valid() {
		t.Fatalf("expected valid render pass handle")
	}
	renderNode, _ := passes.Get(render)

	present := builder.NewPresent(resources, passes, "present").From(renderNode.Render.RenderTarget, 0).SetSwapChain(sc).Finish()

	plan, err := Compile(device.NewNullDevice(), resources, passes, present)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(plan.Layers) != 3 {
		t.Fatalf("expected 3 layers (compute, render, present), got %d", len(plan.Layers))
	}
	if plan.Layers[0].Queues[device.QueueCompute][0] != computeH {
		t.Fatalf("expected the compute pass alone in layer 0 on the compute queue")
	}
	if plan.Layers[1].Queues[device.QueueGraphics][0] != render {
		t.Fatalf("expected the render pass in layer 1")
	}
}

// TestCompileCycleRejection fabricates a pass-graph cycle directly through
// the resource/pass tables' public API. The builder's versioning rules
// (a write always mints a strictly newer version) make a cycle
// unreachable through normal declaration order, so this drives the same
// mutation primitives the builder package uses, just in an order no
// builder flavour permits, to exercise the compiler's own safety net.
func TestCompileCycleRejection(t *testing.T) {
	_, resources, passes := newTables()
	x, _ := resources.Create(handle.KindGPUBuffer, resource.Backing{BufferDesc: &device.BufferDesc{Name: "X", ElementSize: 4, ElementCount: 1, Usage: device.BufferUsageStorage}}, "X")
	y, _ := resources.Create(handle.KindGPUBuffer, resource.Backing{BufferDesc: &device.BufferDesc{Name: "Y", ElementSize: 4, ElementCount: 1, Usage: device.BufferUsageStorage}}, "Y")

	p1, err := passes.Mint("p1", pass.KindCompute)
	if err != nil {
		t.Fatalf("Mint p1: %v", err)
	}
	p2, err := passes.Mint("p2", pass.KindCompute)
	if err != nil {
		t.Fatalf("Mint p2: %v", err)
	}

	h1, err := resources.Write(x, handle.KindGPUBuffer, p1)
	if err != nil {
		t.Fatalf("Write x: %v", err)
	}
	h2, err := resources.Write(y, handle.KindGPUBuffer, p2)
	if err != nil {
		t.Fatalf("Write y: %v", err)
	}
	if err := resources.AddReader(h1, handle.KindGPUBuffer, p2); err != nil {
		t.Fatalf("AddReader h1: %v", err)
	}
	if err := resources.AddReader(h2, handle.KindGPUBuffer, p1); err != nil {
		t.Fatalf("AddReader h2: %v", err)
	}

	n1, err := passes.Mutable(p1)
	if err != nil {
		t.Fatalf("Mutable p1: %v", err)
	}
	n1.BufferEdges[h1] = pass.BufferEdge{Write: true, Access: device.AccessShaderWrite, Stage: device.StageComputeShader}
	n1.BufferEdges[h2] = pass.BufferEdge{Access: device.AccessShaderRead, Stage: device.StageComputeShader}
	n1.Executor = noopExecutor
	if err := passes.Finish(p1); err != nil {
		t.Fatalf("Finish p1: %v", err)
	}

	n2, err := passes.Mutable(p2)
	if err != nil {
		t.Fatalf("Mutable p2: %v", err)
	}
	n2.BufferEdges[h2] = pass.BufferEdge{Write: true, Access: device.AccessShaderWrite, Stage: device.StageComputeShader}
	n2.BufferEdges[h1] = pass.BufferEdge{Access: device.AccessShaderRead, Stage: device.StageComputeShader}
	n2.Executor = noopExecutor
	if err := passes.Finish(p2); err != nil {
		t.Fatalf("Finish p2: %v", err)
	}

	present, err := passes.Mint("present", pass.KindPresent)
	if err != nil {
		t.Fatalf("Mint present: %v", err)
	}
	if err := resources.AddReader(h2, handle.KindGPUBuffer, present); err != nil {
		t.Fatalf("AddReader present: %v", err)
	}
	pn, err := passes.Mutable(present)
	if err != nil {
		t.Fatalf("Mutable present: %v", err)
	}
	pn.BufferEdges[h2] = pass.BufferEdge{Access: device.AccessShaderRead, Stage: device.StageAll}
	pn.Executor = noopExecutor
	if err := passes.Finish(present); err != nil {
		t.Fatalf("Finish present: %v", err)
	}

	_, err = Compile(device.NewNullDevice(), resources, passes, present)
	if err == nil {
		t.Fatalf("expected CycleDetected, got a plan")
	}
	if kind, ok := rgerrors.KindOf(err); !ok || kind != rgerrors.CycleDetected {
		t.Fatalf("expected CycleDetected, got %v", err)
	}
}
