package builder

import (
	"fmt"

	"github.com/Carmen-Shannon/rendergraph/rgraph/device"
	"github.com/Carmen-Shannon/rendergraph/rgraph/handle"
	"github.com/Carmen-Shannon/rendergraph/rgraph/pass"
	"github.com/Carmen-Shannon/rendergraph/rgraph/resource"
	"github.com/Carmen-Shannon/rendergraph/rgraph/rgerrors"
)

// Present builds the single pass every frame must terminate in: a CopySrc
// read of the frame's final image and a bound swap chain. Finish installs
// a built-in executor; the caller never supplies one.
type Present struct {
	edge
	source    handle.Handle
	sourceSet bool
	scSet     bool
}

// NewPresent starts building the Present pass named name.
func NewPresent(resources *resource.Table, passes *pass.Table, name string) *Present {
	return &Present{edge: newEdge(resources, passes, name, pass.KindPresent)}
}

// Handle returns the in-progress pass handle, valid even before Finish.
func (b *Present) Handle() handle.Handle { return b.handle }

// From declares tex (layer) as the image to present. Calling it twice is
// a DuplicateConfig error.
func (b *Present) From(tex handle.Handle, layer int) *Present {
	n, ok := b.mutable()
	if !ok {
		return b
	}
	if b.sourceSet {
		b.fail(rgerrors.DuplicateConfig, "present source already set")
		return b
	}
	b.readTexture(tex, layer, device.StageCopy, device.AccessCopySrc, device.LayoutCopySrc, device.TextureUsageCopySrc)
	if b.invalid {
		return b
	}
	b.sourceSet = true
	b.source = tex
	n.Present.Source = tex
	n.Present.SourceLayer = layer
	return b
}

// SetSwapChain binds the presentation surface this pass targets. Calling
// it twice is a DuplicateConfig error.
func (b *Present) SetSwapChain(sc device.SwapChain) *Present {
	n, ok := b.mutable()
	if !ok {
		return b
	}
	if b.scSet {
		b.fail(rgerrors.DuplicateConfig, "swap chain already set")
		return b
	}
	b.scSet = true
	n.Present.SwapChain = sc
	return b
}

// SideEffect keeps this pass alive through pruning; present passes are
// already always retained (they seed the compiler's reachability walk),
// so this is accepted for builder-API symmetry but has no extra effect.
func (b *Present) SideEffect() *Present {
	b.edge.SideEffect()
	return b
}

// Finish validates that a source and swap chain were set, installs the
// built-in present executor, and returns the finished pass handle.
func (b *Present) Finish() handle.Handle {
	if !b.invalid {
		n, ok := b.mutable()
		switch {
		case !ok:
		case !b.sourceSet:
			b.fail(rgerrors.MissingConfig, "present pass %q finished with no source", n.Name)
		case !b.scSet:
			b.fail(rgerrors.MissingConfig, "present pass %q finished with no swap chain", n.Name)
		default:
			n.Executor = presentExecutor(n.Present)
		}
	}
	h, _ := b.edge.finish()
	return h
}

// presentExecutor builds the closure every Present pass installs:
// transition the acquired back-buffer to CopyDst, copy the source image
// into it, then transition to Present.
func presentExecutor(extras pass.PresentExtras) pass.Executor {
	return func(helper pass.ResourceHelper, ctx device.CommandContext) error {
		srcTex, ok := helper.Texture(extras.Source)
		if !ok {
			return fmt.Errorf("present: source texture handle %d not resolvable", extras.Source.Index)
		}
		backbuffer, err := extras.SwapChain.AcquireTextureForRendering()
		if err != nil {
			return fmt.Errorf("present: acquiring back buffer: %w", err)
		}

		ctx.ResourceBarrier(nil, []device.TextureBarrier{{
			Texture:   backbuffer,
			DstAccess: device.AccessCopyDst,
			DstStage:  device.StageCopy,
			DstLayout: device.LayoutCopyDst,
		}})
		ctx.CopyTextureToTexture(srcTex, extras.SourceLayer, backbuffer, 0)
		ctx.ResourceBarrier(nil, []device.TextureBarrier{{
			Texture:   backbuffer,
			SrcAccess: device.AccessCopyDst,
			SrcStage:  device.StageCopy,
			SrcLayout: device.LayoutCopyDst,
			DstAccess: device.AccessPresent,
			DstStage:  device.StageAll,
			DstLayout: device.LayoutPresent,
		}})
		return nil
	}
}
