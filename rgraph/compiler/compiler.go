// Package compiler turns a frame's builder-declared resource and pass
// tables into an executable Plan: dead passes pruned, move aliases
// resolved, created resources materialized through the device, and the
// survivors layered into queue-type batches in dependency order. It plays
// the role the teacher's engine/scene/scene.go update pass plays for scene
// graphs — walking a declared structure once per frame into something an
// executor can just run — generalized here to a DAG instead of a tree.
package compiler

import (
	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
)

// Layer is one synchronization step: every pass in a layer is free of
// intra-layer dependencies on the others and may run concurrently, bucketed
// by the queue it must run on.
type Layer struct {
	Queues map[device.QueueType][]handle.Handle
}

// Plan is the compiled, pruned, layered output handed to the executor.
type Plan struct {
	Layers []Layer

	// Dependencies maps each retained pass to the other retained passes
	// whose output it reads directly, with duplicates removed; the order
	// within each list is not defined. The executor consults this to compute
	// cross-queue fence waits.
	Dependencies map[handle.Handle][]handle.Handle
}

// Compile prunes passes.All() down to the set reachable from present and
// every side-effect pass, resolves move-alias producer chains, materializes
// any Create()-d resource not yet backed by a device object, and returns
// the retained passes layered for execution.
func Compile(dev device.Device, resources *resource.Table, passes *pass.Table, present handle.Handle) (*Plan, error) {
	roots := []handle.Handle{present}
	for _, n := range passes.All() {
		if n.SideEffect && n.Handle != present {
			roots = append(roots, n.Handle)
		}
	}

	retained, deps, err := reachability(resources, passes, roots)
	if err != nil {
		return nil, err
	}

	if err := materialize(dev, resources, passes, retained); err != nil {
		return nil, err
	}

	layers, err := layer(passes, retained, deps)
	if err != nil {
		return nil, err
	}

	return &Plan{Layers: layers, Dependencies: deps}, nil
}

// producerOf walks a resource's version chain backward — through both
// Write-chains (Writer set) and MoveFrom-chains (PrevVersion set, Writer
// unset) — to the nearest pass that produced the content at h. It
// terminates at the first producer reached, which is always unique: each
// version node has exactly one Writer, so there is never more than one
// candidate to choose between for a single handle.
func producerOf(resources *resource.Table, h handle.Handle) (handle.Handle, error) {
	for h.Valid() {
		n, err := resources.Get(h, h.Kind)
		if err != nil {
			return handle.Zero, err
		}
		if n.Writer.Valid() {
			return n.Writer, nil
		}
		h = n.PrevVersion
	}
	return handle.Zero, nil
}

// reachability runs a backward BFS from roots over the data-flow adjacency
// implied by read edges (each read edge's producer becomes a dependency of
// the reading pass), returning the retained pass set and, for every
// retained pass, its deduplicated list of direct producer dependencies.
func reachability(resources *resource.Table, passes *pass.Table, roots []handle.Handle) (map[handle.Handle]bool, map[handle.Handle][]handle.Handle, error) {
	retained := make(map[handle.Handle]bool, len(roots))
	deps := make(map[handle.Handle][]handle.Handle, len(roots))
	queue := append([]handle.Handle(nil), roots...)

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if retained[h] {
			continue
		}
		retained[h] = true

		n, err := passes.Get(h)
		if err != nil {
			return nil, nil, err
		}

		seen := make(map[handle.Handle]bool)
		record := func(read handle.Handle) error {
			producer, err := producerOf(resources, read)
			if err != nil {
				return err
			}
			if !producer.Valid() || seen[producer] {
				return nil
			}
			seen[producer] = true
			deps[h] = append(deps[h], producer)
			if !retained[producer] {
				queue = append(queue, producer)
			}
			return nil
		}

		for eh, edge := range n.BufferEdges {
			if edge.Write {
				continue
			}
			if err := record(eh); err != nil {
				return nil, nil, err
			}
		}
		for eh, edge := range n.TextureEdges {
			if edge.Write {
				continue
			}
			if err := record(eh); err != nil {
				return nil, nil, err
			}
		}
	}

	return retained, deps, nil
}

// materialize allocates a device-backed object for every retained pass's
// edges whose resource node is a Create()-d description not yet backed by
// a device object. It runs before barrier inference so imported and
// created resources are indistinguishable to the rest of compilation.
func materialize(dev device.Device, resources *resource.Table, passes *pass.Table, retained map[handle.Handle]bool) error {
	done := make(map[handle.Handle]bool)
	materializeOne := func(h handle.Handle) error {
		if done[h] {
			return nil
		}
		done[h] = true
		n, err := resources.Get(h, h.Kind)
		if err != nil {
			return err
		}
		if n.Backing.Materialized != nil {
			return nil
		}
		switch {
		case n.Backing.BufferDesc != nil:
			buf, err := dev.CreateBuffer(*n.Backing.BufferDesc)
			if err != nil {
				return rgerrors.Wrap(rgerrors.BackendError, err, "creating buffer %q", n.Name)
			}
			return resources.SetMaterialized(h, buf)
		case n.Backing.TextureDesc != nil:
			tex, err := dev.CreateTexture(*n.Backing.TextureDesc)
			if err != nil {
				return rgerrors.Wrap(rgerrors.BackendError, err, "creating texture %q", n.Name)
			}
			return resources.SetMaterialized(h, tex)
		case n.Backing.SamplerDesc != nil:
			s, err := dev.CreateSampler(*n.Backing.SamplerDesc)
			if err != nil {
				return rgerrors.Wrap(rgerrors.BackendError, err, "creating sampler %q", n.Name)
			}
			return resources.SetMaterialized(h, s)
		}
		return nil
	}

	for h := range retained {
		n, err := passes.Get(h)
		if err != nil {
			return err
		}
		for eh := range n.BufferEdges {
			if err := materializeOne(eh); err != nil {
				return err
			}
		}
		for eh := range n.TextureEdges {
			if err := materializeOne(eh); err != nil {
				return err
			}
		}
		for eh := range n.SamplerEdges {
			if err := materializeOne(eh); err != nil {
				return err
			}
		}
	}
	return nil
}

// layer runs Kahn's algorithm over the retained pass-only flow graph,
// peeling off every pass whose producers have all already been scheduled
// into a prior layer, and buckets each layer's passes by queue type. Pass
// iteration order within a layer follows creation order for determinism.
// An unconsumed remainder after the graph stops shrinking is a cycle.
func layer(passes *pass.Table, retained map[handle.Handle]bool, deps map[handle.Handle][]handle.Handle) ([]Layer, error) {
	indeg := make(map[handle.Handle]int, len(retained))
	dependents := make(map[handle.Handle][]handle.Handle)
	for h := range retained {
		indeg[h] = 0
	}
	for h, ds := range deps {
		for _, d := range ds {
			indeg[h]++
			dependents[d] = append(dependents[d], h)
		}
	}

	all := passes.All()
	remaining := len(retained)
	var layers []Layer

	for remaining > 0 {
		var frontier []handle.Handle
		for _, n := range all {
			if retained[n.Handle] && indeg[n.Handle] == 0 {
				frontier = append(frontier, n.Handle)
			}
		}
		if len(frontier) == 0 {
			return nil, rgerrors.New(rgerrors.CycleDetected, "pass graph has a cycle among %d unscheduled passes", remaining)
		}

		queues := make(map[device.QueueType][]handle.Handle)
		for _, h := range frontier {
			n, err := passes.Get(h)
			if err != nil {
				return nil, err
			}
			queues[n.QueueType] = append(queues[n.QueueType], h)
			indeg[h] = -1 // scheduled; never revisited
			remaining--
			for _, dependent := range dependents[h] {
				indeg[dependent]--
			}
		}
		layers = append(layers, Layer{Queues: queues})
	}

	return layers, nil
}
