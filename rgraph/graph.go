// Package rgraph is the top-level facade: one Graph owns the handle
// registry, resource and pass tables, the compiled-frame fence/retirement
// state, and the worker pool passes record against, the way the teacher's
// engine/renderer/renderer_builder.go assembles a renderer's backend and
// caches behind a single constructor and functional options, and
// engine/engine.go drives a frame loop against the subsystems it owns.
package rgraph

import (
	"context"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/rendergraph/rgraph/barrier"
	"github.com/Carmen-Shannon/rendergraph/rgraph/builder"
	"github.com/Carmen-Shannon/rendergraph/rgraph/compiler"
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/executor"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
	"github.com/Carmen-Shannon/rendergraph/rgraph/retire"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgprofile"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
	defaultTaskWait  = 5 * time.Second
)

// Option configures a Graph at construction time. Options apply before any
// subsystem that depends on them is built, mirroring the way the teacher's
// RendererBuilderOption values run before NewRenderer requests a GPU
// adapter.
type Option func(*graphConfig)

type graphConfig struct {
	workers      int
	queueSize    int
	taskWait     time.Duration
	profiler     bool
	profileEvery time.Duration
}

// WithWorkerPool overrides the default worker pool sizing used to record
// passes concurrently within a layer/queue batch.
func WithWorkerPool(workers, queueSize int, taskWait time.Duration) Option {
	return func(c *graphConfig) {
		c.workers = workers
		c.queueSize = queueSize
		c.taskWait = taskWait
	}
}

// WithProfiler enables per-frame layer/pass/barrier throughput logging via
// rgprofile, sampled once per interval rather than every frame.
func WithProfiler(interval time.Duration) Option {
	return func(c *graphConfig) {
		c.profiler = true
		c.profileEvery = interval
	}
}

// Graph owns one frame's worth of declared state plus the cross-frame
// execution state (fences, fence values, the bindless retirement FIFO)
// that must persist across Reset calls.
type Graph struct {
	dev device.Device

	reg       *handle.Registry
	resources *resource.Table
	passes    *pass.Table

	pool worker.DynamicWorkerPool

	fences executor.Fences
	values executor.Values
	retire *retire.FIFO

	profiler        *rgprofile.Profiler
	lastCompileTime time.Duration
}

// New creates a Graph bound to dev. dev is retained for the lifetime of
// the Graph; callers are expected to call WaitIdle before dropping the
// last reference.
func New(dev device.Device, opts ...Option) *Graph {
	cfg := graphConfig{
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
		taskWait:  defaultTaskWait,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	reg := handle.New()
	g := &Graph{
		dev:       dev,
		reg:       reg,
		resources: resource.NewTable(reg),
		passes:    pass.NewTable(reg),
		pool:      worker.NewDynamicWorkerPool(cfg.workers, cfg.queueSize, cfg.taskWait),
		retire:    retire.New(),
	}
	if cfg.profiler {
		g.profiler = rgprofile.NewProfiler().WithUpdateInterval(cfg.profileEvery)
	}
	return g
}

// Resources returns the frame's resource table, for Import/Create calls
// that declare a frame's inputs and outputs before building passes.
func (g *Graph) Resources() *resource.Table { return g.resources }

// NewRender starts declaring a render pass named name.
func (g *Graph) NewRender(name string) *builder.Render { return builder.NewRender(g.resources, g.passes, name) }

// NewCompute starts declaring a compute pass named name.
func (g *Graph) NewCompute(name string) *builder.Compute {
	return builder.NewCompute(g.resources, g.passes, name)
}

// NewCopy starts declaring a copy pass named name.
func (g *Graph) NewCopy(name string) *builder.Copy { return builder.NewCopy(g.resources, g.passes, name) }

// NewPresent starts declaring the frame's present pass.
func (g *Graph) NewPresent(name string) *builder.Present {
	return builder.NewPresent(g.resources, g.passes, name)
}

// Compile prunes the frame's declared passes down to those reachable from
// present and every side-effect pass, resolves move aliases, materializes
// created resources, layers the survivors across queues, and infers the
// barriers each retained pass needs.
func (g *Graph) Compile(present handle.Handle) (*compiler.Plan, error) {
	start := time.Now()
	plan, err := compiler.Compile(g.dev, g.resources, g.passes, present)
	if err != nil {
		return nil, err
	}
	if err := barrier.Infer(plan, g.resources, g.passes); err != nil {
		return nil, err
	}
	g.lastCompileTime = time.Since(start)
	return plan, nil
}

// Execute waits for every queue's prior-frame fence value before recording
// a new frame reusing the same frame state Reset just cleared, then records
// and submits every layer of plan, then drains whatever bindless
// descriptors the fences confirm are no longer in flight. ctx governs the
// prior-frame fence waits; it does not bound the recording/submission work
// itself.
func (g *Graph) Execute(ctx context.Context, plan *compiler.Plan) error {
	for qt := 0; qt < device.NumQueueTypes; qt++ {
		fence := g.fences[qt]
		if fence == nil || g.values[qt] == 0 {
			continue
		}
		if err := fence.Wait(ctx, g.values[qt]); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := executor.Execute(g.dev, g.resources, g.passes, plan, g.pool, &g.fences, &g.values, g.retire); err != nil {
		return err
	}
	executeTime := time.Since(start)

	retired := g.retire.Drain(g.dev.Bindless())
	if g.profiler != nil {
		g.profiler.Tick(statsFor(plan, g.passes, retired, g.lastCompileTime, executeTime))
	}
	return nil
}

// statsFor summarizes one compiled-and-executed frame into FrameStats: the
// layer count, how many retained passes ran on each queue type, the total
// buffer/texture barriers inferred across every retained pass, and how
// many retirement-FIFO entries (one per submitted pass that created
// bindless descriptors) this frame's Execute call drained.
func statsFor(plan *compiler.Plan, passes *pass.Table, retired int, compileTime, executeTime time.Duration) rgprofile.FrameStats {
	stats := rgprofile.FrameStats{
		Layers:      len(plan.Layers),
		Retired:     retired,
		CompileTime: compileTime,
		ExecuteTime: executeTime,
	}
	for _, l := range plan.Layers {
		for qt, hs := range l.Queues {
			switch device.QueueType(qt) {
			case device.QueueGraphics:
				stats.GraphicsPasses += len(hs)
			case device.QueueCompute:
				stats.ComputePasses += len(hs)
			case device.QueueCopy:
				stats.CopyPasses += len(hs)
			}
			for _, h := range hs {
				n, err := passes.Get(h)
				if err != nil {
					continue
				}
				stats.BufferBarriers += len(n.BufferBarriers)
				stats.TextureBarriers += len(n.TextureBarriers)
			}
		}
	}
	return stats
}

// Reset clears the frame's declared resource and pass tables and the
// handle registry backing them, ready for the next frame's builder calls.
// Fences, fence values, and the retirement FIFO are cross-frame state and
// are left untouched.
func (g *Graph) Reset() {
	g.resources.Reset()
	g.passes.Reset()
	g.reg.Reset()
}

// WaitIdle blocks until every queue has drained, then drains the
// retirement FIFO unconditionally since no further submissions can be in
// flight. Intended for graph teardown.
func (g *Graph) WaitIdle(ctx context.Context) error {
	if err := g.dev.WaitIdle(ctx); err != nil {
		return err
	}
	g.retire.Drain(g.dev.Bindless())
	return nil
}
