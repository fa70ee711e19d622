// Package device declares the capability interface the render graph
// consumes abstractly: command contexts, queues, fences,
// bindless descriptor creation, and resource creation. It mirrors the
// split the teacher keeps between engine/renderer/renderer_backend.go
// (the interface + enums) and engine/renderer/wgpu_renderer_backend.go
// (the concrete implementation) — this file and capability.go are the
// former, wgpu.go is the latter.
package device

// QueueType identifies one of the three heterogeneous command queues the
// graph schedules across.
type QueueType int

const (
	QueueGraphics QueueType = iota
	QueueCompute
	QueueCopy
	numQueueTypes
)

func (q QueueType) String() string {
	switch q {
	case QueueGraphics:
		return "Graphics"
	case QueueCompute:
		return "Compute"
	case QueueCopy:
		return "Copy"
	default:
		return "Unknown"
	}
}

// NumQueueTypes is the number of distinct queue types the graph schedules.
const NumQueueTypes = int(numQueueTypes)

// Access is a GPU access-mask bit.
type Access uint32

const AccessNone Access = 0

const (
	AccessCopySrc Access = 1 << iota
	AccessCopyDst
	AccessVertex
	AccessIndex
	AccessConstant
	AccessShaderRead
	AccessShaderWrite
	AccessDepthStencilRead
	AccessDepthStencilWrite
	AccessRenderTarget
	AccessPresent
)

func (a Access) Has(flag Access) bool { return a&flag != 0 }

// Stage is a GPU pipeline-stage mask bit.
type Stage uint32

const StageNone Stage = 0

const (
	StageVertexInput Stage = 1 << iota
	StageVertexShader
	StagePixelShader
	StageDepthStencil
	StageRender
	StageResolve
	StageAllGraphics
	StageComputeShader
	StageCopy
	StageAll
)

func (s Stage) Has(flag Stage) bool { return s&flag != 0 }

// Layout is a texture layout.
type Layout int

const (
	LayoutUnknown Layout = iota
	LayoutCommon
	LayoutCopySrc
	LayoutCopyDst
	LayoutShaderRead
	LayoutShaderWrite
	LayoutDepthStencilRead
	LayoutDepthStencilWrite
	LayoutRenderTarget
	LayoutResolveSrc
	LayoutResolveDst
	LayoutPresent
)

func (l Layout) String() string {
	names := [...]string{"Unknown", "Common", "CopySrc", "CopyDst", "ShaderRead",
		"ShaderWrite", "DepthStencilRead", "DepthStencilWrite", "RenderTarget",
		"ResolveSrc", "ResolveDst", "Present"}
	if int(l) < len(names) {
		return names[l]
	}
	return "Unknown"
}

// BufferUsage is a buffer usage-flag bit.
type BufferUsage uint32

const (
	BufferUsageMapRead BufferUsage = 1 << iota
	BufferUsageMapWrite
	BufferUsageCopySrc
	BufferUsageCopyDst
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageConstant
	BufferUsageStorage
)

func (u BufferUsage) Has(flag BufferUsage) bool { return u&flag != 0 }

// TextureUsage is a texture usage-flag bit.
type TextureUsage uint32

const (
	TextureUsageCopySrc TextureUsage = 1 << iota
	TextureUsageCopyDst
	TextureUsageSRV
	TextureUsageUAV
	TextureUsageRenderTarget
	TextureUsageDepthStencil
	TextureUsageCube
	TextureUsageCubeArray
)

func (u TextureUsage) Has(flag TextureUsage) bool { return u&flag != 0 }

// PixelFormat identifies a texture's storage format.
type PixelFormat int

const (
	FormatR8G8B8A8UNorm PixelFormat = iota
	FormatB8G8R8A8UNorm
	FormatR16G16B16A16Float
	FormatD32Float
	FormatD24UNormS8UInt
)

// Dim3D is a 3-dimensional extent (width/height/depth).
type Dim3D struct {
	Width, Height, Depth int
}

// ClearValue is the clear color/depth-stencil a texture description can carry.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// BufferDesc describes a buffer to be allocated by the device.
type BufferDesc struct {
	Name         string
	ElementSize  int
	ElementCount int
	Usage        BufferUsage
}

// Size returns the total byte size the buffer description requests.
func (d BufferDesc) Size() int64 { return int64(d.ElementSize) * int64(d.ElementCount) }

// TextureDesc describes a texture to be allocated by the device.
type TextureDesc struct {
	Name        string
	Size        Dim3D
	ArraySize   int
	MipLevels   int
	Format      PixelFormat
	SampleCount int
	Usage       TextureUsage
	Clear       ClearValue
}

// SamplingDesc describes a sampler to be allocated by the device.
type SamplingDesc struct {
	Name string
}
