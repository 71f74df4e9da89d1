// Package metal implements the renderer backend on Metal.
package metal

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

// ErrNoWindow is returned when the surface has no native window.
var ErrNoWindow = errors.New("surface has no native window")

const (
	// uniformFrames is the number of frames whose constants may be in flight at once.
	uniformFrames = 3
	// uniformAlignment is the buffer offset alignment required for constant data.
	uniformAlignment = 256
	// uniformBufferSize is the initial size of each frame's constant buffer.
	uniformBufferSize = 64 * 1024

	// vertex buffer 0 holds the vertices; constants use the following slots
	vertexBufferIndex         = 0
	vertexConstantsIndex      = 1
	fragmentConstantsIndex    = 0
	defaultConstantsAlignment = 16
)

var attributeIndices = map[renderer.VertexAttributes]uint32{
	renderer.VertexPosition:  0,
	renderer.VertexColor:     1,
	renderer.VertexNormal:    2,
	renderer.VertexTexCoord0: 3,
	renderer.VertexTexCoord1: 4,
}

// pipelineKey identifies a pipeline state: the program, the blending and the attachments it renders to.
type pipelineKey struct {
	shader      *shader
	blend       *blendState
	colorFormat uint32
	depth       bool
	samples     uint32
}

// pass describes the attachments of the open render pass.
type pass struct {
	colorFormat uint32
	depth       bool
	samples     uint32
	size        common.Size2
}

type backend struct {
	dev   device
	cfg   renderer.Config
	size  common.Size2
	state *renderer.StateCache

	samplers  [renderer.TextureFilteringCount]handle
	pipelines map[pipelineKey]handle

	frame    uint64
	uniforms [uniformFrames]uniformBuffer
	uniform  *uniformBuffer

	pass     pass
	pipeline handle
}

var _ renderer.Backend = &backend{}

func newBackend(dev device) *backend {
	return &backend{
		dev:       dev,
		state:     renderer.NewStateCache(),
		pipelines: make(map[pipelineKey]handle),
	}
}

func (b *backend) Name() string { return renderer.BackendMetal }

func (b *backend) Init(surface renderer.Surface, cfg renderer.Config) error {
	window := surface.NativeHandle()
	if window == 0 {
		return ErrNoWindow
	}
	b.cfg = cfg
	b.cfg.SampleCount = max(cfg.SampleCount, 1)
	b.size = cfg.Size

	if err := b.dev.Init(window, uint32(cfg.Size.Width), uint32(cfg.Size.Height), b.cfg.SampleCount, cfg.VerticalSync); err != nil {
		return fmt.Errorf("failed to create Metal device: %w", err)
	}

	filters := [renderer.TextureFilteringCount][2]uint32{
		renderer.TextureFilteringNone:      {filterNearest, mipFilterNearest},
		renderer.TextureFilteringLinear:    {filterNearest, mipFilterLinear},
		renderer.TextureFilteringBilinear:  {filterLinear, mipFilterNearest},
		renderer.TextureFilteringTrilinear: {filterLinear, mipFilterLinear},
	}
	for i, f := range filters {
		sampler, err := b.dev.CreateSampler(f[0], f[1])
		if err != nil {
			b.Free()
			return fmt.Errorf("failed to create sampler state: %w", err)
		}
		b.samplers[i] = sampler
	}

	if cfg.Fullscreen {
		if err := b.dev.SetFullscreen(true); err != nil {
			b.Free()
			return fmt.Errorf("failed to enter fullscreen: %w", err)
		}
	}

	b.state.Reset()
	common.Logger().Info("Metal initialized", "width", cfg.Size.Width, "height", cfg.Size.Height, "samples", b.cfg.SampleCount)
	return nil
}

func (b *backend) Free() {
	for key, p := range b.pipelines {
		b.release(p)
		delete(b.pipelines, key)
	}
	for i, s := range b.samplers {
		b.release(s)
		b.samplers[i] = 0
	}
	for i := range b.uniforms {
		b.uniforms[i].free(b)
	}
	b.uniform = nil
	b.pipeline = 0
	b.state.Reset()
	b.dev.Close()
}

func (b *backend) release(h handle) {
	if h != 0 {
		b.dev.Release(h)
	}
}

// evictPipelines releases the cached pipelines built from a shader or blend state that is being freed.
func (b *backend) evictPipelines(obj any) {
	for key, p := range b.pipelines {
		if (key.shader != nil && any(key.shader) == obj) || (key.blend != nil && any(key.blend) == obj) {
			if p == b.pipeline {
				b.pipeline = 0
			}
			b.release(p)
			delete(b.pipelines, key)
		}
	}
}

func (b *backend) ShaderLanguage() renderer.ShaderLanguage { return renderer.ShaderLanguageMSL }

func (b *backend) BuiltinShader(name string) (renderer.ShaderSource, bool) {
	src, ok := builtinSources[name]
	if !ok {
		return renderer.ShaderSource{}, false
	}
	return renderer.ShaderSource{
		VertexShader:         []byte(src),
		PixelShader:          []byte(src),
		VertexShaderFunction: "vsMain",
		PixelShaderFunction:  "psMain",
	}, true
}

func (b *backend) NPOTMipmaps() bool { return true }

func (b *backend) NewTexture() renderer.TextureObject           { return &texture{b: b} }
func (b *backend) NewShader() renderer.ShaderObject             { return &shader{b: b} }
func (b *backend) NewMeshBuffer() renderer.MeshBufferObject     { return &meshBuffer{b: b} }
func (b *backend) NewRenderTarget() renderer.RenderTargetObject { return &renderTarget{b: b} }
func (b *backend) NewBlendState() renderer.BlendStateObject     { return &blendState{b: b} }

func (b *backend) Draw(commands []renderer.DrawCommand) error {
	b.state.Reset()
	slot := int(b.frame % uniformFrames)
	b.frame++
	if err := b.dev.BeginFrame(slot); err != nil {
		return fmt.Errorf("failed to begin frame: %w", err)
	}
	b.uniform = &b.uniforms[slot]
	b.uniform.reset(b)

	for i := range commands {
		if err := b.draw(&commands[i]); err != nil {
			b.dev.EndFrame()
			return fmt.Errorf("draw command %d: %w", i, err)
		}
	}

	if b.state.NeedsClear(nil) {
		b.state.SetRenderTarget(nil)
		b.beginPass(nil, loadActionClear, b.cfg.ClearColor)
	}
	b.dev.EndFrame()
	return nil
}

// beginPass starts a render pass on rt (nil for the drawable). The encoder starts from default state.
func (b *backend) beginPass(rt *renderTarget, loadAction uint32, clearColor common.Color) {
	p := pass{colorFormat: pixelFormatBGRA8Unorm, samples: b.cfg.SampleCount, size: b.size}
	var color, depth handle
	if rt != nil {
		color, depth = rt.color, rt.depth
		p = pass{colorFormat: pixelFormatRGBA8Unorm, depth: rt.depth != 0, samples: 1, size: rt.size}
	}
	b.dev.BeginPass(color, depth, loadAction, clearColor.Float4())
	b.dev.SetViewport(p.size.Width, p.size.Height)
	b.pass = p
	b.pipeline = 0
	b.state.InvalidateBindings()
	// a new encoder has no textures bound
	for layer := range renderer.TextureLayers {
		b.state.SetTexture(layer, nil)
	}
}

func (b *backend) draw(cmd *renderer.DrawCommand) error {
	// render pass
	var rt *renderTarget
	var target renderer.RenderTargetObject
	clearColor := b.cfg.ClearColor
	if cmd.RenderTarget != nil {
		var ok bool
		if rt, ok = cmd.RenderTarget.Object().(*renderTarget); !ok {
			return fmt.Errorf("render target: %w", renderer.ErrNotInitialized)
		}
		target = rt
		clearColor = cmd.RenderTarget.ClearColor()
	}
	if b.state.SetRenderTarget(target) {
		// a target drawn to earlier in the frame keeps its content
		loadAction := uint32(loadActionLoad)
		if b.state.NeedsClear(target) {
			loadAction = loadActionClear
		}
		b.beginPass(rt, loadAction, clearColor)
	}

	// scissor rectangle; a disabled test covers the whole pass
	if b.state.SetScissor(cmd.ScissorTest, cmd.ScissorRectangle) {
		x, y, w, h := uint32(0), uint32(0), uint32(b.pass.size.Width), uint32(b.pass.size.Height)
		if cmd.ScissorTest {
			x, y, w, h = clampScissor(cmd.ScissorRectangle, b.pass.size)
		}
		b.dev.SetScissor(x, y, w, h)
	}

	// pipeline state
	prog, ok := cmd.Shader.Object().(*shader)
	if !ok {
		return fmt.Errorf("shader: %w", renderer.ErrNotInitialized)
	}
	var blend *blendState
	if cmd.BlendState != nil {
		blend, _ = cmd.BlendState.Object().(*blendState)
	}
	pipeline, err := b.pipelineFor(prog, blend)
	if err != nil {
		return err
	}
	if pipeline != b.pipeline {
		b.dev.SetPipeline(pipeline)
		b.pipeline = pipeline
	}

	// constants are written to this frame's slice of the uniform ring
	if err := b.writeConstants(prog.vertexConstants, prog.vertexAlignment, cmd.VertexShaderConstants, func(buf handle, off uint32) {
		b.dev.SetVertexBuffer(buf, off, vertexConstantsIndex)
	}); err != nil {
		return fmt.Errorf("vertex shader constants: %w", err)
	}
	if err := b.writeConstants(prog.pixelConstants, prog.pixelAlignment, cmd.PixelShaderConstants, func(buf handle, off uint32) {
		b.dev.SetFragmentBuffer(buf, off, fragmentConstantsIndex)
	}); err != nil {
		return fmt.Errorf("pixel shader constants: %w", err)
	}

	// textures
	for layer, tex := range cmd.Textures {
		var obj *texture
		if tex != nil {
			obj, _ = tex.Object().(*texture)
		}
		if obj == nil {
			if b.state.SetTexture(layer, nil) {
				b.dev.SetFragmentTexture(0, 0, uint32(layer))
			}
			continue
		}
		if b.state.SetTexture(layer, obj) {
			b.dev.SetFragmentTexture(obj.texture, b.samplers[b.cfg.TextureFiltering], uint32(layer))
		}
	}

	// geometry
	mesh, ok := cmd.MeshBuffer.Object().(*meshBuffer)
	if !ok {
		return fmt.Errorf("mesh buffer: %w", renderer.ErrNotInitialized)
	}
	primitive, err := primitiveType(cmd.DrawMode)
	if err != nil {
		return err
	}
	b.dev.SetVertexBuffer(mesh.vertexBuffer, 0, vertexBufferIndex)
	b.dev.DrawIndexed(primitive, cmd.IndexCount, mesh.indexType, mesh.indexBuffer, cmd.StartIndex*mesh.indexSize)
	return nil
}

func (b *backend) pipelineFor(prog *shader, blend *blendState) (handle, error) {
	key := pipelineKey{
		shader:      prog,
		blend:       blend,
		colorFormat: b.pass.colorFormat,
		depth:       b.pass.depth,
		samples:     b.pass.samples,
	}
	if p, ok := b.pipelines[key]; ok {
		return p, nil
	}

	desc := pipelineDesc{
		VertexFunction:   prog.vertexFunction,
		FragmentFunction: prog.fragmentFunction,
		Attributes:       prog.attributes,
		Stride:           prog.stride,
		Blend:            blendDesc{SrcColor: blendOne, DestColor: blendZero, SrcAlpha: blendOne, DestAlpha: blendZero},
		ColorFormat:      key.colorFormat,
		SampleCount:      key.samples,
	}
	if blend != nil {
		desc.Blend = blend.desc
	}
	if key.depth {
		desc.DepthFormat = pixelFormatDepth32Float
	}
	p, err := b.dev.CreatePipeline(desc)
	if err != nil {
		return 0, fmt.Errorf("failed to create pipeline state: %w", err)
	}
	b.pipelines[key] = p
	return p, nil
}

func (b *backend) writeConstants(infos []renderer.ConstantInfo, alignment uint32, values [][]float32, bind func(handle, uint32)) error {
	packed, err := renderer.PackConstants(infos, values, alignment)
	if err != nil {
		return err
	}
	if len(values) == 0 || len(packed) == 0 {
		return nil
	}
	buf, offset, err := b.uniform.write(b.dev, packed)
	if err != nil {
		return err
	}
	bind(buf, offset)
	return nil
}

// clampScissor converts the rectangle to whole pixels inside the pass; Metal rejects scissors past the attachment.
func clampScissor(r common.Rectangle, size common.Size2) (x, y, w, h uint32) {
	x0 := min(max(r.X, 0), size.Width)
	y0 := min(max(r.Y, 0), size.Height)
	x1 := min(max(r.X+r.Width, x0), size.Width)
	y1 := min(max(r.Y+r.Height, y0), size.Height)
	return uint32(x0), uint32(y0), uint32(x1 - x0), uint32(y1 - y0)
}

func primitiveType(mode renderer.DrawMode) (uint32, error) {
	switch mode {
	case renderer.DrawModePointList:
		return primitivePoint, nil
	case renderer.DrawModeLineList:
		return primitiveLine, nil
	case renderer.DrawModeLineStrip:
		return primitiveLineStrip, nil
	case renderer.DrawModeTriangleList:
		return primitiveTriangle, nil
	case renderer.DrawModeTriangleStrip:
		return primitiveTriangleStrip, nil
	default:
		return 0, fmt.Errorf("draw mode %d: %w", mode, renderer.ErrInvalidDrawMode)
	}
}

func (b *backend) SetSize(size common.Size2) error {
	b.dev.ResizeDrawable(uint32(size.Width), uint32(size.Height))
	b.size = size
	b.cfg.Size = size
	return nil
}

func (b *backend) SetFullscreen(fullscreen bool) error {
	if err := b.dev.SetFullscreen(fullscreen); err != nil {
		return err
	}
	b.cfg.Fullscreen = fullscreen
	return nil
}

func (b *backend) SupportedResolutions() []common.Size2 {
	return b.dev.DisplayModes()
}

func (b *backend) ReadPixels() (renderer.Pixels, error) {
	data, width, height, err := b.dev.ReadDrawable()
	if err != nil {
		return renderer.Pixels{}, fmt.Errorf("failed to read drawable: %w", err)
	}
	// the drawable is BGRA
	for i := 0; i+3 < len(data); i += 4 {
		data[i], data[i+2] = data[i+2], data[i]
	}
	return renderer.Pixels{Data: data, Width: width, Height: height, Pitch: width * 4}, nil
}

// uniformBuffer is one frame's slice of the constant ring. A buffer outgrown mid-frame is retired and
// released once the frame slot comes around again.
type uniformBuffer struct {
	buffer  handle
	size    uint32
	offset  uint32
	retired []handle
}

func (u *uniformBuffer) reset(b *backend) {
	for _, h := range u.retired {
		b.release(h)
	}
	u.retired = u.retired[:0]
	u.offset = 0
}

func (u *uniformBuffer) write(dev device, data []byte) (handle, uint32, error) {
	offset := (u.offset + uniformAlignment - 1) &^ (uniformAlignment - 1)
	if u.buffer == 0 || offset+uint32(len(data)) > u.size {
		size := max(u.size*2, uniformBufferSize)
		for size < uint32(len(data)) {
			size *= 2
		}
		buffer, err := dev.CreateBuffer(nil, size)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to create constant buffer: %w", err)
		}
		if u.buffer != 0 {
			u.retired = append(u.retired, u.buffer)
		}
		u.buffer, u.size, offset = buffer, size, 0
	}
	dev.WriteBuffer(u.buffer, offset, data)
	u.offset = offset + uint32(len(data))
	return u.buffer, offset, nil
}

func (u *uniformBuffer) free(b *backend) {
	u.reset(b)
	b.release(u.buffer)
	*u = uniformBuffer{}
}
