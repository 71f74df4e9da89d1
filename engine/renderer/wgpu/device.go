package wgpu

import "github.com/cogentcore/webgpu/wgpu"

// handle names a native object owned by the device. 0 is no object.
type handle uintptr

const (
	// uniformGroup holds the vertex (binding 0) and fragment (binding 1) constants with dynamic offsets.
	uniformGroup = 0
	// textureGroup holds texture/sampler pairs at bindings 2*layer and 2*layer+1.
	textureGroup = 1

	// uniformBindingSize is the window of the uniform buffer visible to one draw.
	uniformBindingSize = 4096
)

// pipelineDesc describes a render pipeline built on the shared pipeline layout.
type pipelineDesc struct {
	VertexModule     handle
	VertexEntry      string
	FragmentModule   handle
	FragmentEntry    string
	Attributes       []wgpu.VertexAttribute
	Stride           uint64
	Topology         wgpu.PrimitiveTopology
	StripIndexFormat wgpu.IndexFormat
	// Blend is nil when blending is disabled.
	Blend       *wgpu.BlendState
	ColorFormat wgpu.TextureFormat
	Depth       bool
	SampleCount uint32
}

// passDesc describes the attachments of a render pass. A zero Color targets the surface.
type passDesc struct {
	Color      handle
	Depth      handle
	LoadOp     wgpu.LoadOp
	ClearColor wgpu.Color
}

// device wraps the WebGPU instance, adapter, device, queue and surface.
// Every method runs on the render goroutine.
type device interface {
	// Init creates the device for the surface, configures it and builds the shared bind group and pipeline layouts.
	// It returns the surface format render pipelines targeting the surface must use.
	Init(surface *wgpu.SurfaceDescriptor, width, height, sampleCount uint32, vsync bool) (wgpu.TextureFormat, error)
	// Close releases every object and the device itself.
	Close()
	// Configure reconfigures the surface and recreates the multisample color texture.
	Configure(width, height uint32, vsync bool) error
	// Adapter returns a short description of the adapter for logging.
	Adapter() string

	// BeginFrame acquires the next surface texture and creates the frame's command encoder.
	BeginFrame() error
	// BeginPass ends the open render pass and begins a new one.
	BeginPass(desc passDesc)
	// EndFrame ends the open pass, keeps a copy of the surface texture for ReadFrame, submits and presents.
	EndFrame() error
	// ReadFrame copies the last presented frame to CPU memory as rows of the surface format, top to bottom.
	ReadFrame() (data []byte, width, height, pitch int, err error)

	CreateShaderModule(label, code string) (handle, error)
	CreatePipeline(desc pipelineDesc) (handle, error)
	CreateSampler(filter wgpu.FilterMode, mipFilter wgpu.MipmapFilterMode) (handle, error)
	// CreateTexture creates a 2D texture and its default view; the handle stands for both.
	CreateTexture(width, height, levels uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (handle, error)
	WriteTexture(texture handle, level, width, height uint32, data []byte)
	CreateBuffer(label string, usage wgpu.BufferUsage, size uint64) (handle, error)
	WriteBuffer(buffer handle, offset uint64, data []byte)
	// CreateUniformBindGroup binds buffer to both uniform bindings with a window of uniformBindingSize bytes.
	CreateUniformBindGroup(buffer handle) (handle, error)
	// CreateTextureBindGroup binds a texture and sampler per layer.
	CreateTextureBindGroup(textures, samplers []handle) (handle, error)
	Release(h handle)

	SetViewport(width, height float32)
	SetScissor(x, y, width, height uint32)
	SetPipeline(pipeline handle)
	SetBindGroup(group uint32, bindGroup handle, offsets []uint32)
	SetVertexBuffer(buffer handle)
	SetIndexBuffer(buffer handle, format wgpu.IndexFormat)
	DrawIndexed(count, firstIndex uint32)
}
