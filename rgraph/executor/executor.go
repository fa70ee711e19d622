// Package executor turns a compiled, barrier-annotated Plan into recorded
// and submitted GPU work. Passes within one (layer, queue) batch are
// recorded concurrently against the worker pool the teacher's
// engine/scene/scene.go fans animator prep work out to — workers are
// reused across frames, and a per-batch sync.WaitGroup provides the
// barrier, since the pool's own Wait blocks until workers idle-exit and
// that is unsuitable for a frame-rate workload. Only after every pass in
// a batch has finished recording does its queue submit, once, with the
// cross-queue fence waits its retained dependencies demand.
package executor

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/rendergraph/rgraph/bindless"
	"github.com/Carmen-Shannon/rendergraph/rgraph/compiler"
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
	"github.com/Carmen-Shannon/rendergraph/rgraph/retire"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rglog"
)

// Fences holds one timeline fence per queue type, lazily created on first use.
type Fences [device.NumQueueTypes]device.Fence

// Values holds the value each queue's fence was last signalled at (zero
// before the queue's first submission).
type Values [device.NumQueueTypes]uint64

// signal records which queue and fence value a retained pass was
// submitted under, so a later layer's cross-queue dependents know what to
// wait for.
type signal struct {
	queue device.QueueType
	value uint64
}

// Execute records and submits every layer of plan in order. Layers
// execute sequentially; within a layer, each queue's batch of passes is
// recorded concurrently via pool and submitted once the whole batch is
// recorded. fences and values are owned by the caller (typically the
// Graph facade) and persist across frames so fence values keep advancing.
func Execute(dev device.Device, resources *resource.Table, passes *pass.Table, plan *compiler.Plan, pool worker.DynamicWorkerPool, fences *Fences, values *Values, retireFIFO *retire.FIFO) error {
	for qt := 0; qt < device.NumQueueTypes; qt++ {
		if fences[qt] != nil {
			continue
		}
		f, err := dev.CreateFence(0, fmt.Sprintf("rendergraph-%s", device.QueueType(qt)))
		if err != nil {
			return rgerrors.Wrap(rgerrors.BackendError, err, "creating fence for queue %s", device.QueueType(qt))
		}
		fences[qt] = f
	}

	signalled := make(map[handle.Handle]signal)

	for _, l := range plan.Layers {
		for qt, hs := range l.Queues {
			if err := recordAndSubmit(dev, resources, passes, pool, qt, hs, plan, fences, values, signalled, retireFIFO); err != nil {
				return err
			}
		}
	}
	return nil
}

func recordAndSubmit(
	dev device.Device,
	resources *resource.Table,
	passes *pass.Table,
	pool worker.DynamicWorkerPool,
	qt device.QueueType,
	hs []handle.Handle,
	plan *compiler.Plan,
	fences *Fences,
	values *Values,
	signalled map[handle.Handle]signal,
	retireFIFO *retire.FIFO,
) error {
	ctxs := make([]device.CommandContext, len(hs))
	slots := make([][]device.BindlessSlot, len(hs))
	errs := make([]error, len(hs))

	var wg sync.WaitGroup
	for i, h := range hs {
		wg.Add(1)
		i, h := i, h
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				ctx, created, err := recordPass(dev, resources, passes, h)
				ctxs[i] = ctx
				slots[i] = created
				errs[i] = err
				return nil, nil
			},
		})
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	maxWait := make(map[device.QueueType]uint64)
	for _, h := range hs {
		for _, dep := range plan.Dependencies[h] {
			info, ok := signalled[dep]
			if !ok || info.queue == qt {
				continue
			}
			if info.value > maxWait[info.queue] {
				maxWait[info.queue] = info.value
			}
		}
	}
	var waits []device.FenceWait
	for depQt, v := range maxWait {
		waits = append(waits, device.FenceWait{Fence: fences[depQt], Value: v})
	}

	q, err := dev.GetCommandQueue(qt)
	if err != nil {
		return rgerrors.Wrap(rgerrors.BackendError, err, "getting queue %s", qt)
	}
	values[qt]++
	if err := q.Submit(ctxs, waits, fences[qt], values[qt]); err != nil {
		return rgerrors.Wrap(rgerrors.BackendError, err, "submitting queue %s", qt)
	}

	for i, h := range hs {
		signalled[h] = signal{queue: qt, value: values[qt]}
		retireFIFO.Push(fences[qt], values[qt], slots[i])
	}
	return nil
}

// recordPass runs the full per-pass recording sequence: acquire a command
// context, create this pass's deferred bindless descriptors, emit its
// precomputed barriers, bracket rendering for Render passes, invoke the
// caller's executor closure, and end the context.
func recordPass(dev device.Device, resources *resource.Table, passes *pass.Table, h handle.Handle) (device.CommandContext, []device.BindlessSlot, error) {
	n, err := passes.Get(h)
	if err != nil {
		return nil, nil, err
	}
	if n.Executor == nil {
		return nil, nil, rgerrors.New(rgerrors.MissingConfig, "pass %q has no executor", n.Name)
	}

	ctx, err := dev.CreateCommandContext(n.QueueType, n.Name)
	if err != nil {
		return nil, nil, rgerrors.Wrap(rgerrors.BackendError, err, "creating command context for pass %q", n.Name)
	}
	if err := ctx.Begin(); err != nil {
		return nil, nil, rgerrors.Wrap(rgerrors.BackendError, err, "beginning pass %q", n.Name)
	}

	created, err := bindless.CreateForPass(dev.Bindless(), resources, &n)
	if err != nil {
		return nil, nil, err
	}

	ctx.ResourceBarrier(n.BufferBarriers, n.TextureBarriers)

	if n.Kind == pass.KindRender {
		rt, _ := resolveTexture(resources, n.Render.RenderTarget)
		var ds device.Texture
		if n.Render.HasDepthStencil {
			ds, _ = resolveTexture(resources, n.Render.DepthStencil)
		}
		ctx.BeginRendering(rt, n.Render.RenderTargetLayer, n.Render.ClearColor, ds, n.Render.DepthStencilLayer, n.Render.ClearDepth)
	}

	helper := resourceHelper{resources: resources, node: &n}
	if err := n.Executor(helper, ctx); err != nil {
		return nil, nil, rgerrors.Wrap(rgerrors.BackendError, err, "executing pass %q", n.Name)
	}

	if n.Kind == pass.KindRender {
		ctx.EndRendering()
	}
	if err := ctx.End(); err != nil {
		return nil, nil, rgerrors.Wrap(rgerrors.BackendError, err, "ending pass %q", n.Name)
	}

	return ctx, created, nil
}

func resolveTexture(resources *resource.Table, h handle.Handle) (device.Texture, bool) {
	rnode, err := resources.Get(h, handle.KindTexture)
	if err != nil {
		return nil, false
	}
	return rnode.Backing.ResolvedTexture()
}

// resourceHelper is the pass.ResourceHelper view handed to one pass's
// executor closure, scoped to that pass's own declared edges.
type resourceHelper struct {
	resources *resource.Table
	node      *pass.Node
}

func (h resourceHelper) Buffer(hd handle.Handle) (device.Buffer, bool) {
	if _, ok := h.node.BufferEdges[hd]; !ok {
		rglog.Logger.Printf("executor: pass %q: handle %d is not a declared buffer edge", h.node.Name, hd.Index)
		return nil, false
	}
	rnode, err := h.resources.Get(hd, handle.KindGPUBuffer)
	if err != nil {
		return nil, false
	}
	return rnode.Backing.ResolvedBuffer()
}

func (h resourceHelper) Texture(hd handle.Handle) (device.Texture, bool) {
	if _, ok := h.node.TextureEdges[hd]; !ok {
		rglog.Logger.Printf("executor: pass %q: handle %d is not a declared texture edge", h.node.Name, hd.Index)
		return nil, false
	}
	return resolveTexture(h.resources, hd)
}

func (h resourceHelper) Sampler(hd handle.Handle) (device.Sampler, bool) {
	if _, ok := h.node.SamplerEdges[hd]; !ok {
		rglog.Logger.Printf("executor: pass %q: handle %d is not a declared sampler edge", h.node.Name, hd.Index)
		return nil, false
	}
	rnode, err := h.resources.Get(hd, handle.KindSampler)
	if err != nil {
		return nil, false
	}
	return rnode.Backing.ResolvedSampler()
}

func (h resourceHelper) BufferBindlessSlots(hd handle.Handle) []device.BindlessSlot {
	return h.node.BufferEdges[hd].BindlessSlots
}

func (h resourceHelper) TextureBindlessSlot(hd handle.Handle) device.BindlessSlot {
	return h.node.TextureEdges[hd].BindlessSlot
}

func (h resourceHelper) SamplerBindlessSlot(hd handle.Handle) device.BindlessSlot {
	return h.node.SamplerEdges[hd]
}
