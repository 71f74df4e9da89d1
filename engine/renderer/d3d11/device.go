package d3d11

import "github.com/Carmen-Shannon/oxy-gfx/common"

// Direct3D 11 and DXGI enumerants used by the backend.
const (
	formatR8G8B8A8UNorm  = 28
	formatR32G32B32Float = 6
	formatR32G32Float    = 16
	formatR32UInt        = 42
	formatR16UInt        = 57

	topologyPointList     = 1
	topologyLineList      = 2
	topologyLineStrip     = 3
	topologyTriangleList  = 4
	topologyTriangleStrip = 5

	filterMinMagMipPoint       = 0x00
	filterMinMagPointMipLinear = 0x01
	filterMinMagLinearMipPoint = 0x14
	filterMinMagMipLinear      = 0x15

	blendZero           = 1
	blendOne            = 2
	blendSrcColor       = 3
	blendInvSrcColor    = 4
	blendSrcAlpha       = 5
	blendInvSrcAlpha    = 6
	blendDestAlpha      = 7
	blendInvDestAlpha   = 8
	blendDestColor      = 9
	blendInvDestColor   = 10
	blendSrcAlphaSat    = 11
	blendBlendFactor    = 14
	blendInvBlendFactor = 15

	blendOpAdd         = 1
	blendOpSubtract    = 2
	blendOpRevSubtract = 3
	blendOpMin         = 4
	blendOpMax         = 5

	bindVertexBuffer   = 0x1
	bindIndexBuffer    = 0x2
	bindConstantBuffer = 0x4

	// dxbcMagic starts every compiled shader blob.
	dxbcMagic = "DXBC"
)

// handle is a COM interface pointer owned by the device. 0 is the null object.
type handle uintptr

// inputElement is one entry of an input layout.
type inputElement struct {
	Semantic      string
	SemanticIndex uint32
	Format        uint32
	Offset        uint32
}

// blendDesc is the render target 0 blend description.
type blendDesc struct {
	Enabled             bool
	SrcColor, DestColor uint32
	ColorOp             uint32
	SrcAlpha, DestAlpha uint32
	AlphaOp             uint32
}

// device wraps an ID3D11Device, its immediate context and the DXGI swap chain.
// Every method runs on the render goroutine.
type device interface {
	// Init creates the device and a windowed swap chain for the window and returns the back buffer view.
	Init(hwnd uintptr, width, height, sampleCount uint32) (handle, error)
	// Close releases the swap chain, context and device.
	Close()

	// ResizeBuffers drops the back buffer view, resizes the swap chain and returns the new view.
	ResizeBuffers(width, height uint32) (handle, error)
	// SetFullscreenState enters exclusive fullscreen at the output mode closest to mode, or leaves it.
	// It is a no-op when the swap chain is already in the requested state.
	SetFullscreenState(fullscreen bool, mode displayMode) error
	// DisplayModes lists the modes of the output containing the window.
	DisplayModes() []common.Size2
	Present(syncInterval int) error
	// ReadBackBuffer copies the back buffer through a staging texture, resolving multisampling first.
	ReadBackBuffer() (data []byte, width, height, pitch int, err error)

	CreateSampler(filter uint32) (handle, error)
	CreateRasterizerState(scissor, multisample bool) (handle, error)
	// CreateDepthStencilState creates a state with depth testing disabled.
	CreateDepthStencilState() (handle, error)

	// CreateTexture creates an RGBA8 texture and its shader resource view.
	CreateTexture(width, height, levels, sampleCount uint32, renderTarget bool) (texture, view handle, err error)
	UpdateTexture(texture handle, level, width, height uint32, data []byte)
	CreateRenderTargetView(texture handle) (handle, error)
	CreateDepthStencilView(width, height, sampleCount uint32) (handle, error)

	// CompileShader compiles HLSL source for a shader model target such as "vs_4_0".
	CompileShader(source []byte, entry, target string) ([]byte, error)
	CreateVertexShader(bytecode []byte) (handle, error)
	CreatePixelShader(bytecode []byte) (handle, error)
	CreateInputLayout(elements []inputElement, bytecode []byte) (handle, error)
	// CreateBuffer creates a buffer of size bytes; dynamic buffers are CPU writable.
	CreateBuffer(bind uint32, data []byte, size uint32, dynamic bool) (handle, error)
	// UploadBuffer replaces the content of a dynamic buffer.
	UploadBuffer(buffer handle, data []byte) error
	CreateBlendState(desc blendDesc) (handle, error)
	Release(h handle)

	SetRenderTarget(view, depth handle)
	SetViewport(width, height float32)
	ClearRenderTarget(view, depth handle, color [4]float32)
	SetRasterizerState(state handle)
	SetDepthStencilState(state handle)
	SetScissorRect(left, top, right, bottom int32)
	SetShaders(vertex, pixel, layout handle)
	SetConstantBuffers(vertex, pixel handle)
	SetBlendState(state handle)
	SetTextures(views, samplers []handle)
	SetBuffers(vertex handle, stride uint32, index handle, indexFormat uint32)
	DrawIndexed(topology, count, start uint32)
}

// displayMode is a monitor resolution and refresh rate in Hz. A zero refresh rate matches any rate.
type displayMode struct {
	Width, Height, RefreshRate uint32
}
