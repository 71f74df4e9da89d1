package metal

import "github.com/Carmen-Shannon/oxy-gfx/common"

// Metal enumerants used by the backend.
const (
	pixelFormatRGBA8Unorm   = 70
	pixelFormatBGRA8Unorm   = 80
	pixelFormatDepth32Float = 252

	vertexFormatUChar4Normalized = 9
	vertexFormatFloat2           = 29
	vertexFormatFloat3           = 30

	primitivePoint         = 0
	primitiveLine          = 1
	primitiveLineStrip     = 2
	primitiveTriangle      = 3
	primitiveTriangleStrip = 4

	indexTypeUInt16 = 0
	indexTypeUInt32 = 1

	blendZero                     = 0
	blendOne                      = 1
	blendSourceColor              = 2
	blendOneMinusSourceColor      = 3
	blendSourceAlpha              = 4
	blendOneMinusSourceAlpha      = 5
	blendDestinationColor         = 6
	blendOneMinusDestinationColor = 7
	blendDestinationAlpha         = 8
	blendOneMinusDestinationAlpha = 9
	blendSourceAlphaSaturated     = 10
	blendBlendColor               = 11
	blendOneMinusBlendColor       = 12

	blendOpAdd             = 0
	blendOpSubtract        = 1
	blendOpReverseSubtract = 2
	blendOpMin             = 3
	blendOpMax             = 4

	filterNearest = 0
	filterLinear  = 1

	mipFilterNotMipmapped = 0
	mipFilterNearest      = 1
	mipFilterLinear       = 2

	loadActionLoad  = 1
	loadActionClear = 2

	// metallibMagic starts every compiled Metal library.
	metallibMagic = "MTLB"
)

// handle is a retained Objective-C object owned by the device. 0 is nil.
type handle uintptr

// vertexAttribute places one field of the interleaved vertex in buffer 0.
type vertexAttribute struct {
	Index  uint32
	Format uint32
	Offset uint32
}

// blendDesc is the color attachment 0 blend description.
type blendDesc struct {
	Enabled             bool
	SrcColor, DestColor uint32
	ColorOp             uint32
	SrcAlpha, DestAlpha uint32
	AlphaOp             uint32
}

// pipelineDesc describes a render pipeline state.
type pipelineDesc struct {
	VertexFunction   handle
	FragmentFunction handle
	Attributes       []vertexAttribute
	Stride           uint32
	Blend            blendDesc
	ColorFormat      uint32
	// DepthFormat is 0 for passes without a depth attachment.
	DepthFormat uint32
	SampleCount uint32
}

// device wraps an MTLDevice, its command queue and the CAMetalLayer of the window.
// Every method runs on the render goroutine.
type device interface {
	// Init creates the system default device and command queue and makes a CAMetalLayer the backing layer of the window's content view.
	Init(window uintptr, width, height, sampleCount uint32, vsync bool) error
	// Close waits for in-flight command buffers and releases every device object.
	Close()
	// ResizeDrawable changes the drawable size of the layer and recreates the multisample color texture.
	ResizeDrawable(width, height uint32)
	SetFullscreen(fullscreen bool) error
	// DisplayModes lists the resolutions of the screen containing the window.
	DisplayModes() []common.Size2

	// BeginFrame waits for the command buffer that last used the frame slot, then acquires the next drawable
	// and a new command buffer.
	BeginFrame(slot int) error
	// BeginPass ends the open encoder and starts a render pass on color, or on the drawable when color is 0.
	BeginPass(color, depth handle, loadAction uint32, clearColor [4]float32)
	// EndFrame ends the open encoder, schedules the drawable for presentation and commits the command buffer.
	EndFrame()
	// ReadDrawable copies the last presented drawable to CPU memory as BGRA8 rows, top to bottom.
	ReadDrawable() (data []byte, width, height int, err error)

	// CreateLibrary compiles MSL source, or loads a compiled library when binary is set.
	CreateLibrary(source []byte, binary bool) (handle, error)
	CreateFunction(library handle, name string) (handle, error)
	CreatePipeline(desc pipelineDesc) (handle, error)
	CreateSampler(minMagFilter, mipFilter uint32) (handle, error)
	CreateTexture(width, height, levels, sampleCount, format uint32, renderTarget bool) (handle, error)
	ReplaceRegion(texture handle, level, width, height uint32, data []byte)
	// CreateBuffer creates a shared storage buffer of size bytes, filled with data when given.
	CreateBuffer(data []byte, size uint32) (handle, error)
	WriteBuffer(buffer handle, offset uint32, data []byte)
	Release(h handle)

	SetViewport(width, height float32)
	SetScissor(x, y, width, height uint32)
	SetPipeline(pipeline handle)
	SetVertexBuffer(buffer handle, offset, index uint32)
	SetFragmentBuffer(buffer handle, offset, index uint32)
	SetFragmentTexture(texture, sampler handle, index uint32)
	// DrawIndexed draws count indices starting offset bytes into the index buffer.
	DrawIndexed(primitive, count, indexType uint32, indexBuffer handle, offset uint32)
}
