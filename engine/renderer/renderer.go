package renderer

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/cache"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shaders"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	backend Backend
	cfg     Config
	assets  cache.Cache
	mipmaps *mipmapper

	updates *updateQueue
	draws   drawQueue
	// replay is the slice handed to the backend on the last present; it is recycled by the next swap.
	replay []DrawCommand

	// frameMu serializes Present with every other operation that touches the backend.
	frameMu     sync.Mutex
	initialized bool
	builtins    bool
	size        common.Size2
	fullscreen  bool
	// live holds resources whose backend objects exist; render goroutine only.
	live map[updatable]struct{}

	npotMipmaps atomic.Bool

	// stateMu guards the client-side state applied by DrawMeshBuffer.
	stateMu sync.Mutex
	active  activeState

	drawCallCount atomic.Uint32
}

// activeState is the pipeline state set by the Activate* calls.
type activeState struct {
	textures              [TextureLayers]*Texture
	shader                *Shader
	blendState            *BlendState
	renderTarget          *RenderTarget
	pixelShaderConstants  [][]float32
	vertexShaderConstants [][]float32
	scissorTest           bool
	scissorRectangle      common.Rectangle
}

// Renderer defines the interface for the rendering system.
//
// Resources are created and filled on any goroutine; their GPU objects are built and released on the render
// goroutine during Present. Draws are recorded into a pending queue that Present swaps out and replays, so the
// goroutine producing a frame never waits on the GPU.
type Renderer interface {
	// Init creates the device for the surface and registers the built-in shaders and blend states.
	// Calling Init again frees the previous device first; live resources are re-created on the next Present.
	//
	// Parameters:
	//   - surface: the drawable supplied by the window layer
	//
	// Returns:
	//   - error: error if the backend cannot initialize
	Init(surface Surface) error

	// Free releases the device and the backend objects of every resource.
	// The resources themselves stay valid and are re-created after the next Init.
	Free()

	// Backend returns the backend driven by this renderer.
	Backend() Backend

	// Config returns the device configuration.
	Config() Config

	// Assets returns the cache holding the built-in resources and any resources the caller stores by name.
	Assets() cache.Cache

	// Present synchronizes every dirty resource, then replays the commands recorded since the last Present
	// and shows the result.
	// If a resource fails to update, the resources not yet processed stay queued, the frame's commands are
	// discarded and the error is returned.
	//
	// Returns:
	//   - error: ErrNotInitialized before Init, or the first resource or draw failure
	Present() error

	// Clear resets the per-frame draw call counter. The engine calls it at the start of every frame.
	Clear()

	// DrawCallCount returns the number of draws accepted since the last Clear.
	DrawCallCount() uint32

	// SetSize resizes the back buffer. It is a no-op when the size is unchanged.
	//
	// Parameters:
	//   - size: the new drawable size in pixels
	//
	// Returns:
	//   - error: ErrInvalidSize for non-positive sizes or a backend failure
	SetSize(size common.Size2) error

	// Size returns the back buffer size in pixels.
	Size() common.Size2

	// SetFullscreen enters or leaves fullscreen. It is a no-op when the state is unchanged.
	//
	// Parameters:
	//   - fullscreen: the requested state
	//
	// Returns:
	//   - error: error if the backend cannot switch
	SetFullscreen(fullscreen bool) error

	// Fullscreen reports whether the renderer is in fullscreen.
	Fullscreen() bool

	// SupportedResolutions lists the display modes of the current output, or nil before Init.
	SupportedResolutions() []common.Size2

	// SaveScreenshot writes the current back buffer to a PNG file.
	//
	// Parameters:
	//   - path: the destination file
	//
	// Returns:
	//   - error: ErrNotInitialized before Init, or a read back or encoding failure
	SaveScreenshot(path string) error

	// CreateTexture creates an empty texture. Returns nil if the size is not positive.
	//
	// Parameters:
	//   - size: the texture size in pixels
	//   - dynamic: whether Upload may be called later
	//   - mipmaps: whether a mip chain is generated on every upload
	//
	// Returns:
	//   - *Texture: the new texture, or nil on failure
	CreateTexture(size common.Size2, dynamic, mipmaps bool) *Texture

	// CreateTextureFromData creates a texture holding RGBA8 data. Returns nil if the data is invalid.
	//
	// Parameters:
	//   - data: RGBA8 pixels, width*height*4 bytes
	//   - size: the texture size in pixels
	//   - dynamic: whether Upload may be called later
	//   - mipmaps: whether a mip chain is generated
	//
	// Returns:
	//   - *Texture: the new texture, or nil on failure
	CreateTextureFromData(data []byte, size common.Size2, dynamic, mipmaps bool) *Texture

	// CreateTextureFromFile creates a texture from a PNG, JPEG, BMP or WebP image. Returns nil if the file cannot be decoded.
	//
	// Parameters:
	//   - path: the image file
	//   - dynamic: whether Upload may be called later
	//   - mipmaps: whether a mip chain is generated
	//
	// Returns:
	//   - *Texture: the new texture, or nil on failure
	CreateTextureFromFile(path string, dynamic, mipmaps bool) *Texture

	// CreateShaderFromBuffers creates a shader from sources or binaries in the backend's language.
	// Returns nil if either stage is empty.
	//
	// Parameters:
	//   - pixelShader, vertexShader: the stage programs
	//   - attrs: the vertex layout the shader expects
	//   - pixelConstants, vertexConstants: the per-draw constant slots of each stage
	//   - pixelAlignment, vertexAlignment: the byte alignment of each constant slot
	//   - pixelFunction, vertexFunction: the stage entry points; empty selects the backend default
	//
	// Returns:
	//   - *Shader: the new shader, or nil on failure
	CreateShaderFromBuffers(pixelShader, vertexShader []byte, attrs VertexAttributes, pixelConstants, vertexConstants []ConstantInfo, pixelAlignment, vertexAlignment uint32, pixelFunction, vertexFunction string) *Shader

	// CreateShaderFromFiles is CreateShaderFromBuffers with the stages read from files.
	//
	// Returns:
	//   - *Shader: the new shader, or nil if a file cannot be read
	CreateShaderFromFiles(pixelShaderPath, vertexShaderPath string, attrs VertexAttributes, pixelConstants, vertexConstants []ConstantInfo, pixelAlignment, vertexAlignment uint32, pixelFunction, vertexFunction string) *Shader

	// CreateShaderFromWGSL creates a shader from one WGSL module, translated to the backend's language.
	//
	// Parameters:
	//   - source: the WGSL module with both entry points
	//   - attrs: the vertex layout the shader expects
	//   - pixelConstants, vertexConstants: the per-draw constant slots of each stage
	//   - pixelFunction, vertexFunction: the WGSL entry point names
	//
	// Returns:
	//   - *Shader: the new shader, or nil if translation fails
	CreateShaderFromWGSL(source string, attrs VertexAttributes, pixelConstants, vertexConstants []ConstantInfo, pixelFunction, vertexFunction string) *Shader

	// CreateMeshBuffer creates an empty mesh buffer with dynamic 16-bit indices and dynamic vertices.
	CreateMeshBuffer() *MeshBuffer

	// CreateMeshBufferFromData creates a mesh buffer holding indices and interleaved vertices.
	// Returns nil if the index size is not 2 or 4 or the data is shorter than the counts require.
	//
	// Returns:
	//   - *MeshBuffer: the new mesh buffer, or nil on failure
	CreateMeshBufferFromData(indices []byte, indexSize, indexCount uint32, dynamicIndices bool, vertices []byte, attrs VertexAttributes, vertexCount uint32, dynamicVertices bool) *MeshBuffer

	// CreateRenderTarget creates an off-screen render target. Returns nil if the size is not positive.
	//
	// Parameters:
	//   - size: the target size in pixels
	//   - depthBuffer: whether a depth attachment is allocated
	//
	// Returns:
	//   - *RenderTarget: the new render target, or nil on failure
	CreateRenderTarget(size common.Size2, depthBuffer bool) *RenderTarget

	// CreateBlendState creates a blend state.
	CreateBlendState(desc BlendStateDesc) *BlendState

	// ActivateTexture binds a texture to a layer for subsequent DrawMeshBuffer calls; nil unbinds it.
	//
	// Returns:
	//   - error: ErrInvalidLayer if layer is outside [0, TextureLayers)
	ActivateTexture(texture *Texture, layer int) error

	// ActivateShader sets the shader for subsequent DrawMeshBuffer calls.
	ActivateShader(shader *Shader)

	// ActivateBlendState sets the blend state for subsequent DrawMeshBuffer calls; nil disables blending.
	ActivateBlendState(blendState *BlendState)

	// ActivateRenderTarget sets the render target for subsequent DrawMeshBuffer calls; nil selects the back buffer.
	ActivateRenderTarget(renderTarget *RenderTarget)

	// SetShaderConstants sets the per-draw constants for subsequent DrawMeshBuffer calls.
	SetShaderConstants(vertexConstants, pixelConstants [][]float32)

	// SetScissorTest enables or disables clipping to rect for subsequent DrawMeshBuffer calls.
	SetScissorTest(enabled bool, rect common.Rectangle)

	// DrawMeshBuffer records a draw of the mesh buffer with the active state.
	//
	// Parameters:
	//   - meshBuffer: the geometry
	//   - indexCount: the number of indices to draw; 0 draws from startIndex to the end
	//   - mode: the primitive topology
	//   - startIndex: the first index to draw
	//
	// Returns:
	//   - error: ErrNoShader, ErrAttributeMismatch, ErrIndexCountExceeded or ErrInvalidConstants;
	//     a rejected draw is not recorded and not counted
	DrawMeshBuffer(meshBuffer *MeshBuffer, indexCount uint32, mode DrawMode, startIndex uint32) error

	// AddDrawCommand validates and records a fully specified draw command.
	//
	// Returns:
	//   - error: the same validation errors as DrawMeshBuffer
	AddDrawCommand(cmd DrawCommand) error

	// CheckVisibility reports whether a box under transform is at least partly inside the view of camera.
	//
	// Parameters:
	//   - transform: the box's world transform
	//   - box: the box in local space
	//   - camera: the camera projecting world positions to screen pixels
	//
	// Returns:
	//   - bool: true if the box may be visible
	CheckVisibility(transform common.Matrix4, box common.AABB2, camera Camera) bool

	// ViewToScreenLocation maps a pixel position (origin top-left) to normalized device coordinates.
	ViewToScreenLocation(position common.Vector2) common.Vector2

	// ScreenToViewLocation maps normalized device coordinates to a pixel position (origin top-left).
	ScreenToViewLocation(position common.Vector2) common.Vector2
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the backend selected by the options.
// The device is not created until Init.
//
// Parameters:
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the new Renderer
//   - error: ErrBackendNotAvailable if the selected backend cannot run here
func NewRenderer(options ...RendererBuilderOption) (Renderer, error) {
	b := &rendererBuilder{
		backendName: BackendDefault,
		cfg: Config{
			SampleCount:  1,
			VerticalSync: true,
			ClearColor:   common.ColorBlack,
		},
	}
	for _, opt := range options {
		opt(b)
	}

	backend := b.backend
	if backend == nil {
		var err error
		backend, err = NewBackend(b.backendName)
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", b.backendName, err)
		}
	}

	r := &renderer{
		backend: backend,
		cfg:     b.cfg,
		assets:  common.Coalesce(b.assets, cache.NewCache()),
		mipmaps: &mipmapper{pool: b.pool},
		updates: newUpdateQueue(),
		live:    make(map[updatable]struct{}),
		size:    b.cfg.Size,
	}
	r.npotMipmaps.Store(true)
	return r, nil
}

func (r *renderer) markDirty(u updatable) {
	r.updates.mark(u)
}

func (r *renderer) mipmapsAllowed(width, height uint32) bool {
	return r.npotMipmaps.Load() || (common.IsPowerOfTwo(width) && common.IsPowerOfTwo(height))
}

func (r *renderer) Init(surface Surface) error {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()

	if r.initialized {
		r.freeLocked()
	}

	cfg := r.cfg
	cfg.Size = surface.Size()
	cfg.Fullscreen = surface.Fullscreen()
	if err := r.backend.Init(surface, cfg); err != nil {
		common.Logger().Error("failed to initialize renderer backend", "backend", r.backend.Name(), "error", err)
		return fmt.Errorf("failed to initialize %s backend: %w", r.backend.Name(), err)
	}
	r.cfg = cfg
	r.size = cfg.Size
	r.fullscreen = cfg.Fullscreen
	r.npotMipmaps.Store(r.backend.NPOTMipmaps())
	r.initialized = true

	if !r.builtins {
		if err := r.registerBuiltins(); err != nil {
			r.freeLocked()
			return err
		}
		r.builtins = true
	}

	common.Logger().Info("renderer initialized",
		"backend", r.backend.Name(),
		"width", r.size.Width,
		"height", r.size.Height,
		"fullscreen", r.fullscreen,
		"sampleCount", r.cfg.SampleCount,
	)
	return nil
}

func (r *renderer) Free() {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	r.freeLocked()
}

// freeLocked releases every backend object and the device. Resources that had objects are queued again so
// the next Init followed by Present rebuilds them. frameMu must be held.
func (r *renderer) freeLocked() {
	if !r.initialized {
		return
	}
	for u := range r.live {
		u.release()
		r.updates.mark(u)
	}
	clear(r.live)
	r.draws.discard()
	r.backend.Free()
	r.initialized = false
}

func (r *renderer) Backend() Backend { return r.backend }

func (r *renderer) Config() Config {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.cfg
}

func (r *renderer) Assets() cache.Cache { return r.assets }

func (r *renderer) Present() error {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()

	if !r.initialized {
		return ErrNotInitialized
	}

	pending := r.updates.drain()
	for i, u := range pending {
		if err := u.update(); err != nil {
			for _, rest := range pending[i+1:] {
				r.updates.mark(rest)
			}
			r.draws.discard()
			common.Logger().Error("failed to update resource", "error", err, "requeued", len(pending)-i-1)
			return fmt.Errorf("failed to update resource: %w", err)
		}
		if res, ok := u.(Resource); ok && res.Ready() {
			r.live[u] = struct{}{}
		} else {
			delete(r.live, u)
		}
	}

	r.replay = r.draws.swap(r.replay)
	commands := filterReady(r.replay)
	if err := r.backend.Draw(commands); err != nil {
		common.Logger().Error("failed to draw frame", "backend", r.backend.Name(), "error", err)
		return fmt.Errorf("failed to draw frame: %w", err)
	}
	return nil
}

// filterReady drops commands whose geometry, program or target has no backend object and unbinds
// textures and blend states that are not ready. It compacts cmds in place.
func filterReady(cmds []DrawCommand) []DrawCommand {
	out := cmds[:0]
	for _, cmd := range cmds {
		if !cmd.MeshBuffer.Ready() || !cmd.Shader.Ready() {
			continue
		}
		if cmd.RenderTarget != nil && !cmd.RenderTarget.Ready() {
			continue
		}
		for i, tex := range cmd.Textures {
			if tex != nil && !tex.Ready() {
				cmd.Textures[i] = nil
			}
		}
		if cmd.BlendState != nil && !cmd.BlendState.Ready() {
			cmd.BlendState = nil
		}
		out = append(out, cmd)
	}
	return out
}

func (r *renderer) Clear() {
	r.drawCallCount.Store(0)
}

func (r *renderer) DrawCallCount() uint32 {
	return r.drawCallCount.Load()
}

func (r *renderer) SetSize(size common.Size2) error {
	if !size.Positive() {
		return fmt.Errorf("renderer size %vx%v: %w", size.Width, size.Height, ErrInvalidSize)
	}

	r.frameMu.Lock()
	defer r.frameMu.Unlock()

	if size == r.size {
		return nil
	}
	if r.initialized {
		if err := r.backend.SetSize(size); err != nil {
			return fmt.Errorf("failed to resize back buffer: %w", err)
		}
	}
	r.size = size
	r.cfg.Size = size
	return nil
}

func (r *renderer) Size() common.Size2 {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.size
}

func (r *renderer) SetFullscreen(fullscreen bool) error {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()

	if fullscreen == r.fullscreen {
		return nil
	}
	if r.initialized {
		if err := r.backend.SetFullscreen(fullscreen); err != nil {
			return fmt.Errorf("failed to switch fullscreen: %w", err)
		}
	}
	r.fullscreen = fullscreen
	r.cfg.Fullscreen = fullscreen
	return nil
}

func (r *renderer) Fullscreen() bool {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.fullscreen
}

func (r *renderer) SupportedResolutions() []common.Size2 {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	if !r.initialized {
		return nil
	}
	return r.backend.SupportedResolutions()
}

func (r *renderer) CreateTexture(size common.Size2, dynamic, mipmaps bool) *Texture {
	if !validPixelSize(size) {
		common.Logger().Error("failed to create texture", "error", ErrInvalidSize, "width", size.Width, "height", size.Height)
		return nil
	}
	t := newTexture(r, size, dynamic, mipmaps, false)
	r.markDirty(t)
	return t
}

func (r *renderer) CreateTextureFromData(data []byte, size common.Size2, dynamic, mipmaps bool) *Texture {
	t := newTexture(r, size, dynamic, mipmaps, false)
	if err := t.setData(data, size); err != nil {
		common.Logger().Error("failed to create texture", "error", err)
		return nil
	}
	return t
}

func (r *renderer) CreateTextureFromFile(path string, dynamic, mipmaps bool) *Texture {
	img, err := common.LoadImage(path)
	if err != nil {
		common.Logger().Error("failed to load texture", "path", path, "error", err)
		return nil
	}
	t := newTexture(r, img.Size(), dynamic, mipmaps, false)
	t.filename = path
	if err := t.setData(img.Pixels, img.Size()); err != nil {
		common.Logger().Error("failed to create texture", "path", path, "error", err)
		return nil
	}
	return t
}

func (r *renderer) CreateShaderFromBuffers(pixelShader, vertexShader []byte, attrs VertexAttributes, pixelConstants, vertexConstants []ConstantInfo, pixelAlignment, vertexAlignment uint32, pixelFunction, vertexFunction string) *Shader {
	if len(pixelShader) == 0 || len(vertexShader) == 0 {
		common.Logger().Error("failed to create shader", "error", ErrInvalidData)
		return nil
	}
	s := newShader(r, ShaderDesc{
		PixelShader:               append([]byte(nil), pixelShader...),
		VertexShader:              append([]byte(nil), vertexShader...),
		VertexAttributes:          attrs,
		PixelShaderConstants:      append([]ConstantInfo(nil), pixelConstants...),
		VertexShaderConstants:     append([]ConstantInfo(nil), vertexConstants...),
		PixelShaderDataAlignment:  pixelAlignment,
		VertexShaderDataAlignment: vertexAlignment,
		PixelShaderFunction:       pixelFunction,
		VertexShaderFunction:      vertexFunction,
	})
	r.markDirty(s)
	return s
}

func (r *renderer) CreateShaderFromFiles(pixelShaderPath, vertexShaderPath string, attrs VertexAttributes, pixelConstants, vertexConstants []ConstantInfo, pixelAlignment, vertexAlignment uint32, pixelFunction, vertexFunction string) *Shader {
	ps, err := os.ReadFile(pixelShaderPath)
	if err != nil {
		common.Logger().Error("failed to read pixel shader", "path", pixelShaderPath, "error", err)
		return nil
	}
	vs, err := os.ReadFile(vertexShaderPath)
	if err != nil {
		common.Logger().Error("failed to read vertex shader", "path", vertexShaderPath, "error", err)
		return nil
	}
	return r.CreateShaderFromBuffers(ps, vs, attrs, pixelConstants, vertexConstants, pixelAlignment, vertexAlignment, pixelFunction, vertexFunction)
}

func (r *renderer) CreateShaderFromWGSL(source string, attrs VertexAttributes, pixelConstants, vertexConstants []ConstantInfo, pixelFunction, vertexFunction string) *Shader {
	target, ok := translationTarget(r.backend.ShaderLanguage())
	if !ok {
		common.Logger().Error("failed to create shader", "error", ErrUnsupportedOperation, "backend", r.backend.Name())
		return nil
	}
	out, err := shaders.Translate(source, target, vertexFunction, pixelFunction)
	if err != nil {
		common.Logger().Error("failed to translate shader", "target", target.String(), "error", err)
		return nil
	}
	return r.CreateShaderFromBuffers(out.PixelShader, out.VertexShader, attrs, pixelConstants, vertexConstants, 0, 0, out.PixelShaderFunction, out.VertexShaderFunction)
}

func translationTarget(lang ShaderLanguage) (shaders.Target, bool) {
	switch lang {
	case ShaderLanguageWGSL:
		return shaders.TargetWGSL, true
	case ShaderLanguageGLSL:
		return shaders.TargetGLSL, true
	case ShaderLanguageGLSLES:
		return shaders.TargetGLSLES, true
	case ShaderLanguageHLSL:
		return shaders.TargetHLSL, true
	case ShaderLanguageMSL:
		return shaders.TargetMSL, true
	default:
		return 0, false
	}
}

func (r *renderer) CreateMeshBuffer() *MeshBuffer {
	return newMeshBuffer(r)
}

func (r *renderer) CreateMeshBufferFromData(indices []byte, indexSize, indexCount uint32, dynamicIndices bool, vertices []byte, attrs VertexAttributes, vertexCount uint32, dynamicVertices bool) *MeshBuffer {
	m := newMeshBuffer(r)
	err := m.setData(MeshBufferDesc{
		IndexSize:        indexSize,
		IndexCount:       indexCount,
		Indices:          indices,
		DynamicIndices:   dynamicIndices,
		VertexAttributes: attrs,
		VertexCount:      vertexCount,
		Vertices:         vertices,
		DynamicVertices:  dynamicVertices,
	})
	if err != nil {
		common.Logger().Error("failed to create mesh buffer", "error", err)
		return nil
	}
	return m
}

func (r *renderer) CreateRenderTarget(size common.Size2, depthBuffer bool) *RenderTarget {
	if !validPixelSize(size) {
		common.Logger().Error("failed to create render target", "error", ErrInvalidSize, "width", size.Width, "height", size.Height)
		return nil
	}
	rt := newRenderTarget(r, size, depthBuffer)
	r.markDirty(rt)
	return rt
}

func (r *renderer) CreateBlendState(desc BlendStateDesc) *BlendState {
	b := newBlendState(r, desc)
	r.markDirty(b)
	return b
}

func (r *renderer) ActivateTexture(texture *Texture, layer int) error {
	if layer < 0 || layer >= TextureLayers {
		return fmt.Errorf("layer %d: %w", layer, ErrInvalidLayer)
	}
	r.stateMu.Lock()
	r.active.textures[layer] = texture
	r.stateMu.Unlock()
	return nil
}

func (r *renderer) ActivateShader(shader *Shader) {
	r.stateMu.Lock()
	r.active.shader = shader
	r.stateMu.Unlock()
}

func (r *renderer) ActivateBlendState(blendState *BlendState) {
	r.stateMu.Lock()
	r.active.blendState = blendState
	r.stateMu.Unlock()
}

func (r *renderer) ActivateRenderTarget(renderTarget *RenderTarget) {
	r.stateMu.Lock()
	r.active.renderTarget = renderTarget
	r.stateMu.Unlock()
}

func (r *renderer) SetShaderConstants(vertexConstants, pixelConstants [][]float32) {
	r.stateMu.Lock()
	r.active.vertexShaderConstants = copyConstants(vertexConstants)
	r.active.pixelShaderConstants = copyConstants(pixelConstants)
	r.stateMu.Unlock()
}

func (r *renderer) SetScissorTest(enabled bool, rect common.Rectangle) {
	r.stateMu.Lock()
	r.active.scissorTest = enabled
	r.active.scissorRectangle = rect
	r.stateMu.Unlock()
}

func (r *renderer) DrawMeshBuffer(meshBuffer *MeshBuffer, indexCount uint32, mode DrawMode, startIndex uint32) error {
	r.stateMu.Lock()
	cmd := DrawCommand{
		MeshBuffer:            meshBuffer,
		IndexCount:            indexCount,
		DrawMode:              mode,
		StartIndex:            startIndex,
		Shader:                r.active.shader,
		PixelShaderConstants:  r.active.pixelShaderConstants,
		VertexShaderConstants: r.active.vertexShaderConstants,
		BlendState:            r.active.blendState,
		Textures:              r.active.textures,
		RenderTarget:          r.active.renderTarget,
		ScissorTest:           r.active.scissorTest,
		ScissorRectangle:      r.active.scissorRectangle,
	}
	r.stateMu.Unlock()

	return r.AddDrawCommand(cmd)
}

func (r *renderer) AddDrawCommand(cmd DrawCommand) error {
	cmd, err := validateDrawCommand(cmd)
	if err != nil {
		return err
	}
	r.draws.push(cmd)
	r.drawCallCount.Add(1)
	return nil
}
