package renderer

import (
	"runtime"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// Backend names accepted by WithBackend and the settings file.
const (
	BackendDefault    = "default"
	BackendEmpty      = "empty"
	BackendOpenGL     = "opengl"
	BackendDirect3D11 = "direct3d11"
	BackendMetal      = "metal"
	BackendWGPU       = "wgpu"
)

// Surface is the drawable the window layer hands to the renderer.
type Surface interface {
	// Size returns the drawable size in pixels.
	Size() common.Size2

	// Fullscreen reports whether the window is currently fullscreen.
	Fullscreen() bool

	// NativeHandle returns the platform window handle (HWND on Windows, NSWindow* on macOS, X11 window elsewhere).
	NativeHandle() uintptr
}

// GLContext is implemented by surfaces that own an OpenGL context.
type GLContext interface {
	// MakeCurrent binds the context to the calling OS thread.
	MakeCurrent()

	// SwapBuffers presents the back buffer.
	SwapBuffers()

	// SwapInterval sets the number of vertical blanks to wait on swap.
	SwapInterval(interval int)
}

// DisplayModeProvider is implemented by surfaces that can report the modes of the monitor they are on.
type DisplayModeProvider interface {
	// DisplayMode returns the monitor's current resolution and refresh rate.
	DisplayMode() (size common.Size2, refreshRate int)

	// VideoModes returns every resolution the monitor supports, without duplicates.
	VideoModes() []common.Size2
}

// ShaderSource holds a built-in shader in a backend's native language.
type ShaderSource struct {
	PixelShader          []byte
	VertexShader         []byte
	PixelShaderFunction  string
	VertexShaderFunction string
}

// Pixels is a CPU copy of the back buffer in RGBA8, rows top to bottom.
type Pixels struct {
	Data   []byte
	Width  int
	Height int
	// Pitch is the byte distance between rows; it may exceed Width*4.
	Pitch int
}

// TextureDesc is the allocation description of a texture.
type TextureDesc struct {
	Size         common.Size2
	Dynamic      bool
	Mipmaps      bool
	RenderTarget bool
	LevelCount   uint32
}

// ShaderDesc is the full description of a shader program.
type ShaderDesc struct {
	PixelShader               []byte
	VertexShader              []byte
	VertexAttributes          VertexAttributes
	PixelShaderConstants      []ConstantInfo
	VertexShaderConstants     []ConstantInfo
	PixelShaderDataAlignment  uint32
	VertexShaderDataAlignment uint32
	PixelShaderFunction       string
	VertexShaderFunction      string
}

// MeshBufferDesc is the full content of a mesh buffer.
type MeshBufferDesc struct {
	IndexSize        uint32
	IndexCount       uint32
	Indices          []byte
	DynamicIndices   bool
	VertexAttributes VertexAttributes
	VertexCount      uint32
	Vertices         []byte
	DynamicVertices  bool
}

// IndexBytes returns the byte size of the index data.
func (d MeshBufferDesc) IndexBytes() int {
	return int(d.IndexSize * d.IndexCount)
}

// VertexBytes returns the byte size of the vertex data.
func (d MeshBufferDesc) VertexBytes() int {
	return int(d.VertexAttributes.VertexSize() * d.VertexCount)
}

// RenderTargetDesc describes an off-screen render target.
type RenderTargetDesc struct {
	Size        common.Size2
	DepthBuffer bool
	ClearColor  common.Color
	// Texture is the backend object of the color attachment, already initialized.
	Texture TextureObject
}

// BlendStateDesc describes a blend state.
type BlendStateDesc struct {
	Enabled        bool
	ColorSource    BlendFactor
	ColorDest      BlendFactor
	ColorOperation BlendOperation
	AlphaSource    BlendFactor
	AlphaDest      BlendFactor
	AlphaOperation BlendOperation
}

// TextureObject is the backend side of a Texture. It is only used from the render goroutine.
type TextureObject interface {
	// Init allocates the native texture for the description, releasing any previous allocation.
	Init(desc TextureDesc) error
	// UploadMipmap copies the RGBA8 data of one mip level.
	UploadMipmap(level uint32, size common.Size2, data []byte) error
	// Free releases the native texture.
	Free()
}

// ShaderObject is the backend side of a Shader. It is only used from the render goroutine.
type ShaderObject interface {
	Init(desc ShaderDesc) error
	Free()
}

// MeshBufferObject is the backend side of a MeshBuffer. It is only used from the render goroutine.
type MeshBufferObject interface {
	Init(desc MeshBufferDesc) error
	Free()
}

// RenderTargetObject is the backend side of a RenderTarget. It is only used from the render goroutine.
type RenderTargetObject interface {
	Init(desc RenderTargetDesc) error
	Free()
}

// BlendStateObject is the backend side of a BlendState. It is only used from the render goroutine.
type BlendStateObject interface {
	Init(desc BlendStateDesc) error
	Free()
}

// Backend is the per-API implementation driven by the Renderer.
// Every method is called from the render goroutine only.
type Backend interface {
	// Name returns the registry name of the backend.
	Name() string

	// Init creates the device, context and swap chain for the surface.
	// On failure every native object acquired during the call is released.
	//
	// Parameters:
	//   - surface: the drawable supplied by the window layer
	//   - cfg: the device configuration
	//
	// Returns:
	//   - error: error if any native call fails
	Init(surface Surface, cfg Config) error

	// Free releases every native object owned by the backend. Safe to call on an uninitialized backend.
	Free()

	// ShaderLanguage returns the source language the backend consumes.
	ShaderLanguage() ShaderLanguage

	// BuiltinShader returns the native source of a built-in shader by name.
	//
	// Parameters:
	//   - name: ShaderColor or ShaderTexture
	//
	// Returns:
	//   - ShaderSource: the built-in source
	//   - bool: false if the backend has no such shader
	BuiltinShader(name string) (ShaderSource, bool)

	// NPOTMipmaps reports whether mipmaps may be generated for non-power-of-two textures.
	NPOTMipmaps() bool

	// NewTexture creates an uninitialized texture object.
	NewTexture() TextureObject
	// NewShader creates an uninitialized shader object.
	NewShader() ShaderObject
	// NewMeshBuffer creates an uninitialized mesh buffer object.
	NewMeshBuffer() MeshBufferObject
	// NewRenderTarget creates an uninitialized render target object.
	NewRenderTarget() RenderTargetObject
	// NewBlendState creates an uninitialized blend state object.
	NewBlendState() BlendStateObject

	// Draw replays the frame's commands in order and presents the result.
	// With no commands only the back buffer is cleared before presenting.
	//
	// Parameters:
	//   - commands: the frame's draw commands, owned exclusively by the render goroutine
	//
	// Returns:
	//   - error: error if any command cannot be issued; commands already issued are not rolled back
	Draw(commands []DrawCommand) error

	// SetSize resizes the swap chain and back-buffer views.
	SetSize(size common.Size2) error

	// SetFullscreen enters or leaves exclusive fullscreen.
	SetFullscreen(fullscreen bool) error

	// SupportedResolutions lists the display modes of the current output.
	SupportedResolutions() []common.Size2

	// ReadPixels copies the back buffer to CPU memory.
	ReadPixels() (Pixels, error)
}

// BackendFactory creates a backend instance. It returns nil when the backend cannot run on this platform.
type BackendFactory func() Backend

var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
)

// RegisterBackend registers a backend factory under the given name.
// This is called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
//
// Parameters:
//   - name: the registry name
//   - factory: the constructor
func RegisterBackend(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// AvailableBackends returns the registered backend names in ascending order.
func AvailableBackends() []string {
	registryMu.RLock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	registryMu.RUnlock()
	sort.Strings(names)
	return names
}

// backendPriority is the order tried for BackendDefault on the current platform.
func backendPriority() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{BackendDirect3D11, BackendOpenGL, BackendWGPU, BackendEmpty}
	case "darwin", "ios":
		return []string{BackendMetal, BackendOpenGL, BackendWGPU, BackendEmpty}
	default:
		return []string{BackendOpenGL, BackendWGPU, BackendEmpty}
	}
}

// NewBackend creates a backend by name. BackendDefault picks the first available backend in platform priority order.
//
// Parameters:
//   - name: a registry name or BackendDefault
//
// Returns:
//   - Backend: the backend instance
//   - error: ErrBackendNotAvailable if no registered backend matches or it cannot run here
func NewBackend(name string) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if name == "" || name == BackendDefault {
		for _, n := range backendPriority() {
			if factory, ok := backends[n]; ok {
				if b := factory(); b != nil {
					return b, nil
				}
			}
		}
		return nil, ErrBackendNotAvailable
	}

	factory, ok := backends[name]
	if !ok {
		return nil, ErrBackendNotAvailable
	}
	b := factory()
	if b == nil {
		return nil, ErrBackendNotAvailable
	}
	return b, nil
}
